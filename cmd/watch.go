package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lukamindo/tiktok_live_go/live"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Check accounts in a loop until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Graceful shutdown handling
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case s := <-sigChan:
				logger.Info().Str("signal", s.String()).Msg("shutting down gracefully")
				cancel()
			case <-ctx.Done():
			}
		}()

		notifier, err := newNotifier(cfg)
		if err != nil {
			return err
		}
		checker, release, err := newChecker(ctx, cfg, notifier)
		if err != nil {
			return err
		}
		defer release()

		return watch(ctx, checker, cfg.Check.PollInterval, cfg.Check.BatchTimeout)
	},
}

type batchRunner interface {
	Run(ctx context.Context, opts live.RunOptions) (*live.Report, error)
}

// watch runs a batch immediately and then every interval until ctx is
// done. Only configuration errors stop the loop.
func watch(ctx context.Context, checker batchRunner, interval, batchTimeout time.Duration) error {
	tick := func() error {
		batchCtx := ctx
		if batchTimeout > 0 {
			var cancel context.CancelFunc
			batchCtx, cancel = context.WithTimeout(ctx, batchTimeout)
			defer cancel()
		}

		report, err := checker.Run(batchCtx, live.RunOptions{})
		if err != nil {
			if live.IsConfigError(err) {
				return err
			}
			logger.Error().Err(err).Msg("batch failed")
			return nil
		}
		logSummary(report)
		return nil
	}

	// Immediate check on startup
	if err := tick(); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("context canceled, shutting down")
			return nil
		case <-ticker.C:
			if err := tick(); err != nil {
				return err
			}
		}
	}
}

func logSummary(report *live.Report) {
	var liveCount, notified, failed int
	for _, r := range report.Results {
		if r.Live {
			liveCount++
		}
		if r.Notified {
			notified++
		}
		if r.Error != "" {
			failed++
		}
	}
	logger.Info().
		Int("checked", report.Count).
		Int("live", liveCount).
		Int("notified", notified).
		Int("failed", failed).
		Msg("batch complete")
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
