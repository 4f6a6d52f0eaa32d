package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lukamindo/tiktok_live_go/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the check endpoint for an external scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		notifier, err := newNotifier(cfg)
		if err != nil {
			return err
		}
		checker, release, err := newChecker(ctx, cfg, notifier)
		if err != nil {
			return err
		}
		defer release()

		srv := server.New(server.Config{
			CronSecret:        cfg.Server.CronSecret,
			BatchTimeout:      cfg.Check.BatchTimeout,
			RequestsPerSecond: cfg.Server.RequestsPerSecond,
			Burst:             cfg.Server.Burst,
		}, checker, notifier, logger)

		return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Server.Port), cfg.Server.ShutdownTimeout)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
