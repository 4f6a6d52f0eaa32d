package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/lukamindo/tiktok_live_go/live"
)

// stateScript reads the bootstrap state TikTok keeps on the window.
const stateScript = `(() => {
	try {
		return JSON.stringify(globalThis.SIGI_STATE || globalThis.__UNIVERSAL_DATA__ || null);
	} catch (e) {
		return "";
	}
})()`

// ChromeConfig configures the headless browser.
type ChromeConfig struct {
	// ExecPath is the browser binary; empty lets chromedp search for one.
	ExecPath  string
	UserAgent string
	// SettleDelay is how long scripts get to run after the load event.
	SettleDelay time.Duration
}

// Chrome renders profiles in headless Chrome. Each batch gets one
// browser process and every account a fresh tab.
type Chrome struct {
	cfg     ChromeConfig
	baseURL string
}

// NewChrome returns a renderer; the browser starts on Open.
func NewChrome(cfg ChromeConfig) *Chrome {
	return &Chrome{cfg: cfg}
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1280, 800),
	)
	if c.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.cfg.UserAgent))
	}
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}
	return opts
}

// Open starts the browser. The browser is not tied to ctx's
// cancellation; it lives until the session is closed.
func (c *Chrome) Open(ctx context.Context) (live.Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), c.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		c:       c,
		browser: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}

	// Run with no actions launches the process.
	if err := chromedp.Run(browserCtx); err != nil {
		s.cancel()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}
	return s, nil
}

type chromeSession struct {
	c       *Chrome
	browser context.Context
	cancel  func()
	once    sync.Once
}

func (s *chromeSession) Fetch(ctx context.Context, username string) (live.Page, error) {
	target := live.Account(username).ProfileURL()
	if s.c.baseURL != "" {
		target = s.c.baseURL + "/@" + username
	}

	tabCtx, closeTab := chromedp.NewContext(s.browser)
	defer closeTab()
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithDeadline(tabCtx, deadline)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	var state, html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(target),
		chromedp.Sleep(s.c.cfg.SettleDelay),
		chromedp.Evaluate(stateScript, &state),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return live.Page{}, fmt.Errorf("rendering %s: %w", target, err)
	}

	return live.Page{
		Username: username,
		URL:      target,
		HTML:     html,
		State:    state,
	}, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *chromeSession) Close() error {
	s.once.Do(s.cancel)
	return nil
}

var _ live.Renderer = (*Chrome)(nil)
