package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/clewcrew/internal/report"
	"github.com/steveyegge/clewcrew/internal/types"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics [path]",
	Short: "Show per-expert quality metrics and the composite score",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		root, err := projectRoot(args)
		if err != nil {
			return err
		}
		coord, _, err := buildCoordinator(cmd, root)
		if err != nil {
			return err
		}
		rep := coord.Report(context.Background(), root)

		if asJSON {
			out := struct {
				Metrics      []types.QualityMetrics `json:"metrics"`
				Composite    float64                `json:"composite_score"`
				HasComposite bool                   `json:"has_composite"`
				Notes        []string               `json:"notes,omitempty"`
			}{Composite: rep.Composite, HasComposite: rep.HasComposite, Notes: rep.Notes}
			for _, d := range rep.Domains {
				out.Metrics = append(out.Metrics, d.Metrics)
			}
			data, err := report.JSON(out)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		}

		fmt.Printf("\n%-22s %7s %7s %7s %11s\n", "METRIC", "SCORE", "WEIGHT", "ISSUES", "CONFIDENCE")
		for _, d := range rep.Domains {
			m := d.Metrics
			fmt.Printf("%-22s %7s %7.1f %7d %11.2f  %s\n",
				m.Metric, scoreColor(m.QualityScore), m.Weight, m.IssuesFound, m.Confidence, severitySummary(m.SeverityCounts))
			if m.RiskScore > 0 {
				fmt.Printf("%-22s risk score %.0f/10\n", "", m.RiskScore)
			}
		}
		separator()
		if rep.HasComposite {
			fmt.Printf("Composite score: %s\n", scoreColor(rep.Composite))
		} else {
			fmt.Printf("%s No composite score (all weights are zero)\n", yellow("ⓘ"))
		}
		for _, n := range rep.Notes {
			fmt.Printf("%s %s\n", yellow("ⓘ"), n)
		}
		return nil
	},
}

func init() {
	metricsCmd.Flags().Bool("json", false, "Output metrics as JSON")
	addExpertFlag(metricsCmd)
	rootCmd.AddCommand(metricsCmd)
}

// severitySummary formats non-zero severity counts, most severe first.
func severitySummary(counts map[types.Priority]int) string {
	var parts []string
	for _, p := range types.Priorities() {
		if n := counts[p]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", p, n))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return gray(strings.Join(parts, " "))
}
