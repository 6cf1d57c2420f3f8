package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/steveyegge/clewcrew/internal/report"
	"github.com/steveyegge/clewcrew/internal/types"
)

var fixesCmd = &cobra.Command{
	Use:   "fixes [path]",
	Short: "List suggested fixes, most urgent first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		minFlag, _ := cmd.Flags().GetString("min-priority")
		minPriority, err := types.ParsePriority(minFlag)
		if err != nil {
			return fmt.Errorf("--min-priority: %w", err)
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

		var fixes []types.Fix
		for _, d := range rep.Domains {
			for _, fx := range d.Fixes {
				if fx.Priority.Rank() >= minPriority.Rank() {
					fixes = append(fixes, fx)
				}
			}
		}
		sort.SliceStable(fixes, func(i, j int) bool {
			return fixes[i].Priority.Rank() > fixes[j].Priority.Rank()
		})

		if asJSON {
			if fixes == nil {
				fixes = []types.Fix{}
			}
			data, err := report.JSON(fixes)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		}

		if len(fixes) == 0 {
			fmt.Printf("%s No fixes to suggest\n", green("✓"))
			return nil
		}
		for i, fx := range fixes {
			fmt.Printf("%d. [%s] %s\n", i+1, priorityColor(fx.Priority), fx.Remedy)
			if fx.Finding.Location.Path != "" {
				fmt.Printf("   File: %s\n", fx.Finding.Location)
			}
			fmt.Printf("   %s\n", gray(fx.Finding.Description))
			if fx.Detail != "" {
				fmt.Printf("   %s\n", fx.Detail)
			}
		}
		return nil
	},
}

func init() {
	fixesCmd.Flags().Bool("json", false, "Output fixes as JSON")
	fixesCmd.Flags().String("min-priority", "low", "Hide fixes below this priority")
	addExpertFlag(fixesCmd)
	rootCmd.AddCommand(fixesCmd)
}
