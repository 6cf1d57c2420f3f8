package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/clewcrew/internal/report"
	"github.com/steveyegge/clewcrew/internal/types"
)

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Run the quality experts and report findings",
	Long: `Run every enabled expert against a project and report what they find.

Examples:
  # Check the current directory
  clewcrew check

  # Check another project with only two experts
  clewcrew check ../service --experts security,test

  # Write SARIF for code scanning
  clewcrew check --format sarif --output results.sarif

  # Only fail on high or critical findings
  clewcrew check --fail-on high

Exits with status 1 when any finding is at or above --fail-on.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatFlag, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		verbose, _ := cmd.Flags().GetBool("verbose")
		failOnFlag, _ := cmd.Flags().GetString("fail-on")

		format, err := report.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		failOn, err := types.ParsePriority(failOnFlag)
		if err != nil {
			return fmt.Errorf("--fail-on: %w", err)
		}

		root, err := projectRoot(args)
		if err != nil {
			return err
		}
		coord, _, err := buildCoordinator(cmd, root)
		if err != nil {
			return err
		}

		rep := coord.Report(context.Background(), root)

		if format == report.FormatText {
			printReport(rep, verbose)
		} else if output != "" {
			data, err := renderBytes(format, rep)
			if err != nil {
				return err
			}
			if err := report.WriteFile(output, data); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%s Wrote %s\n", green("✓"), output)
		} else if err := report.Render(os.Stdout, format, rep); err != nil {
			return err
		}

		if countAtLeast(rep.Findings(), failOn) > 0 {
			os.Exit(1) // Exit with error code when issues found
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringP("format", "f", "text", "Output format (text, json, markdown, sarif)")
	checkCmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	checkCmd.Flags().BoolP("verbose", "v", false, "Show every finding and fix")
	checkCmd.Flags().String("fail-on", "low", "Lowest priority that fails the run (low, medium, high, critical)")
	addExpertFlag(checkCmd)

	rootCmd.AddCommand(checkCmd)
}

func renderBytes(format report.Format, rep *types.Report) ([]byte, error) {
	switch format {
	case report.FormatJSON:
		return report.JSON(rep)
	case report.FormatSARIF:
		return report.SARIF(rep)
	case report.FormatMarkdown:
		return []byte(report.Markdown(rep)), nil
	}
	return nil, fmt.Errorf("format %q cannot be written to a file", format)
}

func countAtLeast(findings []types.Finding, threshold types.Priority) int {
	n := 0
	for _, f := range findings {
		if f.Priority.Rank() >= threshold.Rank() {
			n++
		}
	}
	return n
}

// printReport renders a report for the terminal.
func printReport(rep *types.Report, verbose bool) {
	fmt.Printf("\n%s Running quality experts on %s\n\n", cyan("⚕"), rep.Root)

	for _, d := range rep.Domains {
		fmt.Printf("%s %s %s\n", cyan("▶"), bold(d.Expert), gray(fmt.Sprintf("(%s %.1f, confidence %.2f)",
			d.Metrics.Metric, d.Metrics.QualityScore, d.Metrics.Confidence)))

		switch {
		case d.TimedOut:
			fmt.Printf("  %s Did not complete; scored as no evidence\n", red("✗"))
		case d.Metrics.ArtifactsFound == 0:
			fmt.Printf("  %s No artifacts found\n", yellow("ⓘ"))
		case len(d.Findings) == 0:
			fmt.Printf("  %s No issues found\n", green("✓"))
		default:
			fmt.Printf("  %s Found %d issue(s)\n", yellow("!"), len(d.Findings))
			for i, f := range d.Findings {
				if verbose {
					fmt.Printf("  %d. %s [%s]\n", i+1, f.Description, priorityColor(f.Priority))
					if f.Location.Path != "" {
						fmt.Printf("     File: %s\n", f.Location)
					}
				} else {
					fmt.Printf("  - %s\n", f.Description)
				}
			}
		}

		if verbose {
			for _, fx := range d.Fixes {
				fmt.Printf("  %s %s\n", green("→"), fx.Remedy)
			}
			for _, rec := range d.Metrics.Recommendations {
				fmt.Printf("  %s\n", gray(rec))
			}
			fmt.Printf("  Stats: %d artifacts read, %d errors ignored, duration: %v\n",
				d.Stats.ArtifactsRead, d.Stats.ErrorsIgnored, d.Duration)
		}
		fmt.Println()
	}

	separator()
	for _, n := range rep.Notes {
		fmt.Printf("%s %s\n", yellow("ⓘ"), n)
	}
	if rep.HasComposite {
		fmt.Printf("Composite score: %s\n", scoreColor(rep.Composite))
	}
	if total := rep.TotalIssues(); total > 0 {
		fmt.Printf("%s Found %d issue(s)\n", yellow("!"), total)
	} else {
		fmt.Printf("%s No issues found\n", green("✓"))
	}
}

func priorityColor(p types.Priority) string {
	switch p.Normalize() {
	case types.PriorityCritical, types.PriorityHigh:
		return red(string(p))
	case types.PriorityMedium:
		return yellow(string(p))
	}
	return gray(string(p))
}

func scoreColor(score float64) string {
	s := fmt.Sprintf("%.1f", score)
	switch {
	case score >= 80:
		return green(s)
	case score >= 50:
		return yellow(s)
	}
	return red(s)
}
