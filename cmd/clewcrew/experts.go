package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/clewcrew/internal/config"
	"github.com/steveyegge/clewcrew/internal/experts"
)

var expertsCmd = &cobra.Command{
	Use:   "experts [path]",
	Short: "List experts with their metric, weight and score curve",
	Long: `List every expert as configured for a project. Weights and curves
reflect overrides from the project's config file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot(args)
		if err != nil {
			return err
		}
		cfg, err := config.Load(configPath, root)
		if err != nil {
			return err
		}

		fmt.Printf("\n%-14s %-22s %6s  %s\n", "EXPERT", "METRIC", "WEIGHT", "CURVE (ceiling/minor/moderate/major)")
		for _, name := range experts.Names() {
			e, err := experts.New(name, cfg.ExpertOptions(name)...)
			if err != nil {
				return err
			}
			curve, _ := experts.DefaultCurve(name)
			if s := cfg.Experts[name]; s.Curve != nil {
				curve = *s.Curve
			}

			status := green("✓")
			if !cfg.Experts[name].Enabled {
				status = gray("-")
			}
			fmt.Printf("%s %-12s %-22s %6.1f  %.0f/%.0f/%.0f/%.0f\n",
				status, name, e.MetricName(), e.MetricWeight(),
				curve.Ceiling, curve.Minor, curve.Moderate, curve.Major)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(expertsCmd)
}
