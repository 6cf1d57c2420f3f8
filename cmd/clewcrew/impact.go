package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/clewcrew/internal/report"
	"github.com/steveyegge/clewcrew/internal/types"
)

var impactCmd = &cobra.Command{
	Use:   "impact <changes.yaml|->",
	Short: "Assess the quality risk of a proposed change set",
	Long: `Assess a list of proposed changes against every expert.

The change file is YAML (or JSON), either a bare list or a "changes" key:

  changes:
    - type: dependency_change
    - type: code_change
      path: app/run.py
      content: subprocess.run(cmd, shell=True)

Use "-" to read from stdin. Exits with status 1 when the overall risk
is at or above --fail-on.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatFlag, _ := cmd.Flags().GetString("format")
		failOnFlag, _ := cmd.Flags().GetString("fail-on")

		format, err := report.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		failOn := types.RiskLevel(failOnFlag)
		if !failOn.IsValid() {
			return fmt.Errorf("--fail-on: invalid risk level %q", failOnFlag)
		}

		changes, err := types.LoadChanges(args[0])
		if err != nil {
			return err
		}
		root, err := projectRoot(nil)
		if err != nil {
			return err
		}
		coord, _, err := buildCoordinator(cmd, root)
		if err != nil {
			return err
		}
		impact := coord.AssessImpact(changes)

		switch format {
		case report.FormatJSON:
			data, err := report.JSON(impact)
			if err != nil {
				return err
			}
			if _, err := os.Stdout.Write(data); err != nil {
				return err
			}
		case report.FormatMarkdown:
			fmt.Print(report.ImpactMarkdown(impact))
		case report.FormatText:
			printImpact(impact)
		default:
			return fmt.Errorf("format %q is not supported for impact", format)
		}

		if impact.Overall.Rank() >= failOn.Rank() {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	impactCmd.Flags().StringP("format", "f", "text", "Output format (text, json, markdown)")
	impactCmd.Flags().String("fail-on", "high", "Lowest overall risk that fails the run (low, medium, high, critical)")
	addExpertFlag(impactCmd)
	rootCmd.AddCommand(impactCmd)
}

func printImpact(impact types.CompositeImpact) {
	fmt.Printf("\nOverall risk: %s\n\n", riskColor(impact.Overall))
	for _, r := range impact.Risks {
		fmt.Printf("  %s %s\n", red("✗"), r)
	}
	for _, b := range impact.Benefits {
		fmt.Printf("  %s %s\n", green("✓"), b)
	}
	if len(impact.Risks)+len(impact.Benefits) > 0 {
		fmt.Println()
	}
	separator()
	for _, ir := range impact.Reports {
		fmt.Printf("%-14s %s\n", ir.Domain, riskColor(ir.RiskLevel))
	}
}

func riskColor(r types.RiskLevel) string {
	switch r {
	case types.RiskCritical, types.RiskHigh:
		return red(string(r))
	case types.RiskMedium:
		return yellow(string(r))
	}
	return green(string(r))
}
