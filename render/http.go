package render

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/lukamindo/tiktok_live_go/live"
)

const maxPageSize = 8 << 20

// HTTP fetches the server-rendered profile page without running scripts.
// It is lighter than Chrome but only sees the state TikTok embeds in the
// initial document.
type HTTP struct {
	client    *http.Client
	userAgent string
	// baseURL replaces https://www.tiktok.com in tests.
	baseURL string
}

// NewHTTP returns a renderer sending userAgent. Requests are bounded by
// the context passed to Fetch.
func NewHTTP(userAgent string) *HTTP {
	return &HTTP{
		client:    &http.Client{},
		userAgent: userAgent,
	}
}

// Open returns a session sharing the renderer's client.
func (h *HTTP) Open(ctx context.Context) (live.Session, error) {
	return &httpSession{h: h}, nil
}

type httpSession struct {
	h *HTTP
}

func (s *httpSession) Fetch(ctx context.Context, username string) (live.Page, error) {
	target := live.Account(username).ProfileURL()
	if s.h.baseURL != "" {
		target = s.h.baseURL + "/@" + username
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return live.Page{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.h.client.Do(req)
	if err != nil {
		return live.Page{}, fmt.Errorf("fetching URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return live.Page{}, fmt.Errorf("received non-200 response code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return live.Page{}, fmt.Errorf("reading page: %w", err)
	}

	return live.Page{
		Username: username,
		URL:      target,
		HTML:     string(body),
	}, nil
}

func (s *httpSession) Close() error {
	s.h.client.CloseIdleConnections()
	return nil
}

var _ live.Renderer = (*HTTP)(nil)
