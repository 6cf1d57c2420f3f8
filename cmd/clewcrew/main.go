package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/clewcrew/internal/config"
	"github.com/steveyegge/clewcrew/internal/logging"
	"github.com/steveyegge/clewcrew/internal/report"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	debug      bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "clewcrew",
	Short: "Artifact-driven quality experts for software projects",
	Long: `clewcrew reads the artifacts a project already has (configs, logs,
coverage and lint reports, CI definitions) and scores its quality across
security, code quality, tests, devops, models, builds, MCP and architecture.

It never runs tools and never modifies the project.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Init(debug); err != nil {
			return err
		}
		report.ToolVersion = version
		return nil
	},
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <project>/"+config.FileName+")")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
