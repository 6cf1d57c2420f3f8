package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/clewcrew/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the project config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default " + config.FileName + " into a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		root, err := projectRoot(args)
		if err != nil {
			return err
		}
		path := filepath.Join(root, config.FileName)
		if err := config.SaveDefaultConfig(path, force); err != nil {
			return err
		}
		fmt.Printf("\n%s Wrote default config\n\n", green("✓"))
		fmt.Printf("  Config: %s\n\n", cyan(path))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Print the effective configuration after defaults and overrides",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot(args)
		if err != nil {
			return err
		}
		cfg, err := config.Load(configPath, root)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
