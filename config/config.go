package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/lukamindo/tiktok_live_go/live"
	"github.com/lukamindo/tiktok_live_go/logging"
)

// Config holds all application configuration.
type Config struct {
	Telegram     TelegramConfig `mapstructure:"telegram"`
	Accounts     []string       `mapstructure:"accounts"`
	AccountsFile string         `mapstructure:"accounts_file"`
	State        StateConfig    `mapstructure:"state"`
	Render       RenderConfig   `mapstructure:"render"`
	Check        CheckConfig    `mapstructure:"check"`
	Server       ServerConfig   `mapstructure:"server"`
	Log          logging.Config `mapstructure:"log"`
}

// TelegramConfig holds the bot credentials and destination.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	// ChatID is a numeric chat id or an @channel username.
	ChatID      string `mapstructure:"chat_id"`
	APIEndpoint string `mapstructure:"api_endpoint"`
}

// StateConfig selects and configures the state store.
type StateConfig struct {
	// Backend is one of auto, memory, redis, upstash.
	Backend      string `mapstructure:"backend"`
	RedisURL     string `mapstructure:"redis_url"`
	UpstashURL   string `mapstructure:"upstash_url"`
	UpstashToken string `mapstructure:"upstash_token"`
}

// RenderConfig selects and configures the page renderer.
type RenderConfig struct {
	// Engine is chrome or http.
	Engine      string        `mapstructure:"engine"`
	ChromePath  string        `mapstructure:"chrome_path"`
	UserAgent   string        `mapstructure:"user_agent"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// CheckConfig holds batch timing, cooldowns and the alert time zone.
type CheckConfig struct {
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	Pace             time.Duration `mapstructure:"pace"`
	LiveCooldown     time.Duration `mapstructure:"live_cooldown"`
	OfflineCooldown  time.Duration `mapstructure:"offline_cooldown"`
	RefreshWhileLive bool          `mapstructure:"refresh_while_live"`
	BatchTimeout     time.Duration `mapstructure:"batch_timeout"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	Timezone         string        `mapstructure:"timezone"`
}

// ServerConfig holds the HTTP trigger settings.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	CronSecret        string        `mapstructure:"cron_secret"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultUserAgent is a desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/118 Safari/537.36"

var envBindings = map[string]string{
	"telegram.bot_token":         "BOT_TOKEN",
	"telegram.chat_id":           "CHAT_ID",
	"telegram.api_endpoint":      "TELEGRAM_API_ENDPOINT",
	"accounts":                   "ACCOUNTS",
	"accounts_file":              "ACCOUNTS_FILE",
	"state.backend":              "STATE_BACKEND",
	"state.redis_url":            "REDIS_URL",
	"state.upstash_url":          "UPSTASH_REDIS_REST_URL",
	"state.upstash_token":        "UPSTASH_REDIS_REST_TOKEN",
	"render.engine":              "RENDERER",
	"render.chrome_path":         "CHROME_PATH",
	"render.user_agent":          "USER_AGENT",
	"render.settle_delay":        "SETTLE_DELAY",
	"check.fetch_timeout":        "FETCH_TIMEOUT",
	"check.pace":                 "PACE",
	"check.live_cooldown":        "LIVE_COOLDOWN",
	"check.offline_cooldown":     "OFFLINE_COOLDOWN",
	"check.refresh_while_live":   "LIVE_REFRESH",
	"check.batch_timeout":        "BATCH_TIMEOUT",
	"check.poll_interval":        "POLL_INTERVAL",
	"check.timezone":             "TIMEZONE",
	"server.port":                "PORT",
	"server.cron_secret":         "CRON_SECRET",
	"server.requests_per_second": "TRIGGER_RPS",
	"server.burst":               "TRIGGER_BURST",
	"server.shutdown_timeout":    "SHUTDOWN_TIMEOUT",
	"log.level":                  "LOG_LEVEL",
	"log.pretty":                 "LOG_PRETTY",
}

// Load reads .env (if present), an optional YAML config file and the
// environment. configFile may be empty to search ./config.yaml and
// ./config/config.yaml.
func Load(configFile string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: reading config: %v", live.ErrConfig, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding config: %v", live.ErrConfig, err)
	}

	accounts, err := collectAccounts(cfg.Accounts, cfg.AccountsFile)
	if err != nil {
		return nil, err
	}
	cfg.Accounts = accounts

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.api_endpoint", "https://api.telegram.org/bot%s/%s")
	v.SetDefault("state.backend", "auto")
	v.SetDefault("render.engine", "chrome")
	v.SetDefault("render.user_agent", DefaultUserAgent)
	v.SetDefault("render.settle_delay", 1200*time.Millisecond)
	v.SetDefault("check.fetch_timeout", live.DefaultFetchTimeout)
	v.SetDefault("check.pace", live.DefaultPace)
	v.SetDefault("check.live_cooldown", live.DefaultLiveCooldown)
	v.SetDefault("check.offline_cooldown", live.DefaultOfflineCooldown)
	v.SetDefault("check.refresh_while_live", false)
	v.SetDefault("check.batch_timeout", 55*time.Second)
	v.SetDefault("check.poll_interval", 2*time.Minute)
	v.SetDefault("check.timezone", "Asia/Jakarta")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.requests_per_second", 0.2)
	v.SetDefault("server.burst", 2)
	v.SetDefault("server.shutdown_timeout", 60*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// collectAccounts merges the configured list with the accounts file,
// normalizing handles and dropping duplicates.
func collectAccounts(list []string, file string) ([]string, error) {
	raw := make([]string, 0, len(list))
	for _, item := range list {
		raw = append(raw, strings.Split(item, ",")...)
	}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("%w: reading accounts file: %v", live.ErrConfig, err)
		}
		var fromFile []string
		if err := json.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("%w: accounts file must be a JSON array of strings: %v", live.ErrConfig, err)
		}
		raw = append(raw, fromFile...)
	}

	seen := make(map[live.Account]bool, len(raw))
	accounts := make([]string, 0, len(raw))
	for _, item := range raw {
		acc := live.NormalizeAccount(item)
		if acc == "" || seen[acc] {
			continue
		}
		seen[acc] = true
		accounts = append(accounts, string(acc))
	}
	return accounts, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	var errs []string

	if c.Telegram.BotToken == "" {
		errs = append(errs, "BOT_TOKEN is required")
	}
	if c.Telegram.ChatID == "" {
		errs = append(errs, "CHAT_ID is required")
	}

	switch c.State.Backend {
	case "auto", "memory":
	case "redis":
		if c.State.RedisURL == "" {
			errs = append(errs, "REDIS_URL is required for the redis state backend")
		}
	case "upstash":
		if c.State.UpstashURL == "" || c.State.UpstashToken == "" {
			errs = append(errs, "UPSTASH_REDIS_REST_URL and UPSTASH_REDIS_REST_TOKEN are required for the upstash state backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown STATE_BACKEND %q", c.State.Backend))
	}

	switch c.Render.Engine {
	case "chrome", "http":
	default:
		errs = append(errs, fmt.Sprintf("unknown RENDERER %q", c.Render.Engine))
	}

	if err := c.Tracker().Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Check.PollInterval <= 0 {
		errs = append(errs, "POLL_INTERVAL must be positive")
	}
	if _, err := time.LoadLocation(c.Check.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("invalid TIMEZONE %q", c.Check.Timezone))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", live.ErrConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}

// Tracker returns the transition tracker described by the config.
func (c *Config) Tracker() live.Tracker {
	return live.Tracker{
		LiveCooldown:     c.Check.LiveCooldown,
		OfflineCooldown:  c.Check.OfflineCooldown,
		RefreshWhileLive: c.Check.RefreshWhileLive,
	}
}

// Location returns the time zone alerts are stamped in, UTC if invalid.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Check.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CheckerConfig assembles the batch settings for live.NewChecker.
func (c *Config) CheckerConfig() live.CheckerConfig {
	accounts := make([]live.Account, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		accounts = append(accounts, live.Account(a))
	}
	return live.CheckerConfig{
		Accounts:     accounts,
		Tracker:      c.Tracker(),
		FetchTimeout: c.Check.FetchTimeout,
		Pace:         c.Check.Pace,
		Location:     c.Location(),
	}
}

// StateBackend resolves "auto" to the backend the credentials point at.
func (c *Config) StateBackend() string {
	if c.State.Backend != "auto" {
		return c.State.Backend
	}
	switch {
	case c.State.RedisURL != "":
		return "redis"
	case c.State.UpstashURL != "" && c.State.UpstashToken != "":
		return "upstash"
	default:
		return "memory"
	}
}

// String returns a redacted summary safe for logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Accounts: %d, Telegram: [REDACTED], State: %s, Renderer: %s, Timezone: %s}",
		len(c.Accounts),
		c.StateBackend(),
		c.Render.Engine,
		c.Check.Timezone,
	)
}
