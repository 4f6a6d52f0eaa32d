package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lukamindo/tiktok_live_go/config"
	"github.com/lukamindo/tiktok_live_go/live"
	"github.com/lukamindo/tiktok_live_go/logging"
	"github.com/lukamindo/tiktok_live_go/notify"
	"github.com/lukamindo/tiktok_live_go/render"
	"github.com/lukamindo/tiktok_live_go/state"
)

var configFile string

// cfg and logger are populated in PersistentPreRunE.
var (
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "tiktok-live",
	Short:         "Notify a Telegram chat when TikTok accounts go live",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c
		logger = logging.Init(c.Log)
		logger.Debug().Str("config", c.String()).Msg("configuration loaded")
		return nil
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (default ./config.yaml if present)")
}

func newNotifier(c *config.Config) (*notify.Telegram, error) {
	return notify.NewTelegram(c.Telegram.BotToken, c.Telegram.ChatID, c.Telegram.APIEndpoint)
}

func newRenderer(c *config.Config) live.Renderer {
	if c.Render.Engine == "http" {
		return render.NewHTTP(c.Render.UserAgent)
	}
	return render.NewChrome(render.ChromeConfig{
		ExecPath:    c.Render.ChromePath,
		UserAgent:   c.Render.UserAgent,
		SettleDelay: c.Render.SettleDelay,
	})
}

// newStore opens the configured state backend. The returned func
// releases it.
func newStore(ctx context.Context, c *config.Config) (live.KeyValueStore, func(), error) {
	backend := c.StateBackend()
	logger.Info().Str("backend", backend).Msg("state store selected")

	switch backend {
	case "redis":
		s, err := state.NewRedis(ctx, c.State.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "upstash":
		return state.NewUpstash(c.State.UpstashURL, c.State.UpstashToken), func() {}, nil
	default:
		return state.NewMemory(), func() {}, nil
	}
}

// newChecker wires a checker with the configured renderer and state
// backend. The returned func releases the store.
func newChecker(ctx context.Context, c *config.Config, notifier live.Notifier) (*live.Checker, func(), error) {
	store, closeStore, err := newStore(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	checker, err := live.NewChecker(c.CheckerConfig(), newRenderer(c), store, notifier, logger)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return checker, closeStore, nil
}
