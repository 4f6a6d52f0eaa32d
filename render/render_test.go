package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukamindo/tiktok_live_go/live"
)

const livePage = `<!doctype html><html><head>
<script id="SIGI_STATE" type="application/json">{"LiveRoom":{"liveRoomUserInfo":{"user":{"roomId":"7311234567890"}}},"title":"late night"}</script>
</head><body><h1>alice</h1></body></html>`

const windowStatePage = `<!doctype html><html><head>
<script>window.SIGI_STATE = {"user":{"roomId":"7319876543210"}};</script>
</head><body><h1>bob</h1></body></html>`

func newProfileServer(t *testing.T) (*httptest.Server, *[]*http.Request) {
	t.Helper()
	var requests []*http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r)
		switch r.URL.Path {
		case "/@alice":
			_, _ = w.Write([]byte(livePage))
		case "/@bob":
			_, _ = w.Write([]byte(windowStatePage))
		case "/@slow":
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestHTTPFetch(t *testing.T) {
	srv, requests := newProfileServer(t)
	h := NewHTTP("test-agent/1.0")
	h.baseURL = srv.URL

	session, err := h.Open(context.Background())
	require.NoError(t, err)
	defer session.Close()

	page, err := session.Fetch(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "alice", page.Username)
	assert.Equal(t, srv.URL+"/@alice", page.URL)
	assert.Empty(t, page.State)

	v := live.Extract(page)
	assert.True(t, v.Live)
	assert.Equal(t, "7311234567890", v.RoomID)
	assert.Equal(t, "late night", v.Title)

	require.Len(t, *requests, 1)
	assert.Equal(t, "test-agent/1.0", (*requests)[0].Header.Get("User-Agent"))
	assert.NotEmpty(t, (*requests)[0].Header.Get("Accept-Language"))
}

func TestHTTPFetchNon200(t *testing.T) {
	srv, _ := newProfileServer(t)
	h := NewHTTP("test-agent/1.0")
	h.baseURL = srv.URL

	session, err := h.Open(context.Background())
	require.NoError(t, err)

	_, err = session.Fetch(context.Background(), "nobody")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-200 response code: 404")
}

func TestHTTPFetchHonoursDeadline(t *testing.T) {
	srv, _ := newProfileServer(t)
	h := NewHTTP("test-agent/1.0")
	h.baseURL = srv.URL

	session, err := h.Open(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = session.Fetch(ctx, "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPFetchLimitedOnlyByContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(livePage))
	}))
	defer srv.Close()

	h := NewHTTP("test-agent/1.0")
	h.baseURL = srv.URL
	assert.Zero(t, h.client.Timeout)

	session, err := h.Open(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()
	page, err := session.Fetch(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, live.Extract(page).Live)
}

func TestProfileURLDefault(t *testing.T) {
	// Without an override the session targets the public profile URL;
	// the request is cancelled before it leaves.
	h := NewHTTP("test-agent/1.0")
	session, err := h.Open(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = session.Fetch(ctx, "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "https://www.tiktok.com/@alice")
}

func chromePath(t *testing.T) string {
	t.Helper()
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome binary available")
	return ""
}

func TestChromeFetch(t *testing.T) {
	exe := chromePath(t)
	srv, _ := newProfileServer(t)

	c := NewChrome(ChromeConfig{ExecPath: exe, UserAgent: "test-agent/1.0", SettleDelay: 100 * time.Millisecond})
	c.baseURL = srv.URL

	session, err := c.Open(context.Background())
	require.NoError(t, err)
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	page, err := session.Fetch(ctx, "bob")
	require.NoError(t, err)
	assert.Contains(t, page.State, "7319876543210")
	assert.Contains(t, page.HTML, "<h1>bob</h1>")

	v := live.Extract(page)
	assert.True(t, v.Live)
	assert.Equal(t, "7319876543210", v.RoomID)

	// A second account reuses the same browser.
	page, err = session.Fetch(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, live.Extract(page).Live)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
}
