package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/clewcrew/internal/api"
	"github.com/steveyegge/clewcrew/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve [dir]",
	Short: "Serve reports over a local HTTP API",
	Long: `Serve the experts over HTTP. Only projects under dir (default: the
current directory) can be analyzed.

Endpoints:
  GET  /healthz
  GET  /experts
  POST /detect   {"root": "service", "experts": ["security"]}
  POST /report   {"root": "service", "format": "json|markdown|sarif"}
  POST /impact   {"changes": [{"type": "dependency_change"}]}
  GET  /metrics  Prometheus metrics`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		dir, err := projectRoot(args)
		if err != nil {
			return err
		}
		coord, _, err := buildCoordinator(cmd, dir)
		if err != nil {
			return err
		}
		srv, err := api.NewServer(coord, dir, api.WithLogger(logging.Logger))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("%s Serving %s on http://%s\n", green("✓"), cyan(dir), addr)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", api.DefaultAddr, "Listen address")
	addExpertFlag(serveCmd)
	rootCmd.AddCommand(serveCmd)
}
