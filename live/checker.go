package live

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Renderer opens browsing sessions. One session serves a whole batch.
type Renderer interface {
	Open(ctx context.Context) (Session, error)
}

// Session fetches rendered profile pages. Close releases it.
type Session interface {
	Fetch(ctx context.Context, username string) (Page, error)
	Close() error
}

// KeyValueStore keeps string values with an expiry.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
}

// Notifier delivers a text message to a fixed destination.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// CheckerConfig holds the batch settings of a Checker.
type CheckerConfig struct {
	Accounts     []Account
	Tracker      Tracker
	FetchTimeout time.Duration
	// Pace is the pause between two consecutive accounts of a batch. It
	// keeps the request rate below what trips the site's bot detection.
	Pace     time.Duration
	Location *time.Location
}

const (
	DefaultFetchTimeout = 45 * time.Second
	DefaultPace         = 1500 * time.Millisecond
)

// Checker runs batches: fetch, extract, decide, notify, persist.
type Checker struct {
	cfg      CheckerConfig
	renderer Renderer
	store    KeyValueStore
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewChecker validates cfg and returns a Checker using the given collaborators.
func NewChecker(cfg CheckerConfig, renderer Renderer, store KeyValueStore, notifier Notifier, logger zerolog.Logger) (*Checker, error) {
	if renderer == nil {
		return nil, fmt.Errorf("%w: renderer is required", ErrConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: state store is required", ErrConfig)
	}
	if notifier == nil {
		return nil, fmt.Errorf("%w: notifier is required", ErrConfig)
	}
	if err := cfg.Tracker.Validate(); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Pace < 0 {
		cfg.Pace = 0
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	return &Checker{
		cfg:      cfg,
		renderer: renderer,
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepCtx,
	}, nil
}

// RunOptions tune a single batch.
type RunOptions struct {
	// DryRun computes verdicts without touching the store or notifying.
	DryRun bool
	// Account, when set, replaces the configured list for this batch.
	Account string
}

// Result is the outcome for one account. Error is set when the page could
// not be fetched; the other error fields report degraded steps.
type Result struct {
	Username   string `json:"username"`
	Live       bool   `json:"live"`
	RoomID     string `json:"roomId,omitempty"`
	Title      string `json:"title,omitempty"`
	ProfileURL string `json:"profileUrl"`
	LiveURL    string `json:"liveUrl"`

	Notified    bool   `json:"notified,omitempty"`
	NotifyError string `json:"notifyError,omitempty"`
	StoreError  string `json:"storeError,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Report is the outcome of one batch.
type Report struct {
	OK      bool     `json:"ok"`
	Dry     bool     `json:"dry"`
	Count   int      `json:"count"`
	Results []Result `json:"results"`
}

// Accounts returns the list a batch with opts would visit.
func (c *Checker) Accounts(opts RunOptions) []Account {
	if opts.Account != "" {
		if acc := NormalizeAccount(opts.Account); acc != "" {
			return []Account{acc}
		}
	}
	return c.cfg.Accounts
}

// Run checks every account once, strictly one after another. Cancelling
// ctx lets the account in flight finish and skips the rest.
func (c *Checker) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	accounts := c.Accounts(opts)
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: no accounts to check", ErrConfig)
	}

	session, err := c.renderer.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening render session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("closing render session")
		}
	}()

	report := &Report{OK: true, Dry: opts.DryRun, Results: make([]Result, 0, len(accounts))}
	for i, acc := range accounts {
		if i > 0 {
			if err := c.sleep(ctx, c.cfg.Pace); err != nil {
				c.logger.Info().Int("remaining", len(accounts)-i).Msg("batch stopped before completion")
				break
			}
		}
		report.Results = append(report.Results, c.checkOne(ctx, session, acc, opts.DryRun))
	}
	report.Count = len(report.Results)
	return report, nil
}

func (c *Checker) checkOne(ctx context.Context, session Session, acc Account, dry bool) Result {
	log := c.logger.With().Str("account", string(acc)).Logger()
	res := Result{
		Username:   string(acc),
		ProfileURL: acc.ProfileURL(),
		LiveURL:    acc.LiveURL(),
	}

	// The account in flight is allowed to finish even if ctx is cancelled.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
	page, err := session.Fetch(fetchCtx, string(acc))
	cancel()
	if err != nil {
		err = newError(ErrFetch, acc, err)
		log.Error().Err(err).Msg("check failed")
		res.Error = err.Error()
		return res
	}

	v := Extract(page)
	res.Live, res.RoomID, res.Title = v.Live, v.RoomID, v.Title
	log.Debug().Bool("live", v.Live).Str("room_id", v.RoomID).Msg("verdict")
	if dry {
		return res
	}

	stateCtx := context.WithoutCancel(ctx)
	prior, err := c.loadState(stateCtx, acc)
	if err != nil {
		log.Warn().Err(err).Msg("treating account as unseen")
		res.StoreError = err.Error()
	}

	d := c.cfg.Tracker.Decide(acc, v, prior, c.now())
	if d.Notify {
		if err := c.notifier.Send(stateCtx, FormatMessage(*d.Event, c.cfg.Location)); err != nil {
			err = newError(ErrNotify, acc, err)
			log.Error().Err(err).Msg("notification not delivered")
			res.NotifyError = err.Error()
		} else {
			res.Notified = true
			log.Info().Str("room_id", v.RoomID).Msg("live notification sent")
		}
	}

	if d.Write {
		if err := c.store.SetEx(stateCtx, acc.StateKey(), EncodeState(d.Next), d.TTL); err != nil {
			err = newError(ErrStore, acc, err)
			log.Warn().Err(err).Msg("state not saved")
			res.StoreError = joinMessages(res.StoreError, err.Error())
		}
	}
	return res
}

func (c *Checker) loadState(ctx context.Context, acc Account) (*TrackedState, error) {
	value, ok, err := c.store.Get(ctx, acc.StateKey())
	if err != nil {
		return nil, newError(ErrStore, acc, err)
	}
	if !ok {
		return nil, nil
	}
	st := DecodeState(value)
	return &st, nil
}

func joinMessages(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsConfigError reports whether err should stop a batch from starting.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}
