package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lukamindo/tiktok_live_go/live"
)

var (
	checkUser string
	checkDry  bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check every account once and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if cfg.Check.BatchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Check.BatchTimeout)
			defer cancel()
		}

		notifier, err := newNotifier(cfg)
		if err != nil {
			return err
		}
		checker, release, err := newChecker(ctx, cfg, notifier)
		if err != nil {
			return err
		}
		defer release()

		report, err := checker.Run(ctx, live.RunOptions{DryRun: checkDry, Account: checkUser})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkUser, "user", "", "check only this account")
	checkCmd.Flags().BoolVar(&checkDry, "dry", false, "report verdicts without notifying or saving state")
	rootCmd.AddCommand(checkCmd)
}
