package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/clewcrew/internal/config"
	"github.com/steveyegge/clewcrew/internal/coordinator"
	"github.com/steveyegge/clewcrew/internal/experts"
	"github.com/steveyegge/clewcrew/internal/logging"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// projectRoot returns the absolute project root from the optional
// positional argument, defaulting to the working directory.
func projectRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project root %s is not a directory", abs)
	}
	return abs, nil
}

// addExpertFlag registers --experts on commands that run the roster.
func addExpertFlag(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("experts", "e", nil, "Run only these experts ("+strings.Join(experts.Names(), ", ")+")")
}

// buildCoordinator loads configuration for root and returns a coordinator
// over the enabled experts, narrowed by --experts when given.
func buildCoordinator(cmd *cobra.Command, root string) (*coordinator.Coordinator, *config.Config, error) {
	cfg, err := config.Load(configPath, root)
	if err != nil {
		return nil, nil, err
	}

	names := cfg.EnabledExperts()
	if selected, _ := cmd.Flags().GetStringSlice("experts"); len(selected) > 0 {
		// Explicit selection wins over enabled: false in the config file.
		names = selected
	}

	list := make([]experts.Expert, 0, len(names))
	for _, name := range names {
		e, err := experts.New(name, cfg.ExpertOptions(name, experts.WithLogger(logging.Logger))...)
		if err != nil {
			return nil, nil, err
		}
		list = append(list, e)
	}

	coord, err := coordinator.New(list,
		coordinator.WithLogger(logging.Logger),
		coordinator.WithConcurrency(cfg.Concurrency),
		coordinator.WithExpertTimeout(cfg.ExpertTimeout))
	if err != nil {
		return nil, nil, err
	}
	return coord, cfg, nil
}

func separator() {
	fmt.Println(strings.Repeat("─", 60))
}
