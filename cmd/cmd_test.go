package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukamindo/tiktok_live_go/live"
)

func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return buf.String(), err
}

// fakeTelegram records the text of every sendMessage call.
func fakeTelegram(t *testing.T) *[]string {
	t.Helper()
	var (
		mu   sync.Mutex
		sent []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Live","username":"live_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			mu.Lock()
			sent = append(sent, r.FormValue("text"))
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	t.Setenv("TELEGRAM_API_ENDPOINT", srv.URL+"/bot%s/%s")
	return &sent
}

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CHAT_ID", "42")
	t.Setenv("ACCOUNTS", "")
	t.Setenv("ACCOUNTS_FILE", "")
	t.Setenv("STATE_BACKEND", "memory")
	t.Setenv("RENDERER", "http")
	t.Setenv("LOG_LEVEL", "disabled")
	configFile = ""
}

func TestPingCommand(t *testing.T) {
	setTestEnv(t)
	sent := fakeTelegram(t)

	out, err := executeCommand(rootCmd, "ping")
	require.NoError(t, err)
	assert.Contains(t, out, "ping sent as @live_bot")
	assert.Equal(t, []string{live.PingMessage()}, *sent)
}

func TestTestCommand(t *testing.T) {
	setTestEnv(t)
	sent := fakeTelegram(t)

	out, err := executeCommand(rootCmd, "test", "--user", "@alice")
	require.NoError(t, err)
	assert.Contains(t, out, "test alert sent for alice")
	assert.Equal(t, []string{live.TestMessage("alice")}, *sent)
}

func TestMissingCredentials(t *testing.T) {
	setTestEnv(t)
	t.Setenv("BOT_TOKEN", "")

	_, err := executeCommand(rootCmd, "ping")
	require.Error(t, err)
	assert.ErrorIs(t, err, live.ErrConfig)
	assert.Contains(t, err.Error(), "BOT_TOKEN is required")
}

func TestCheckWithoutAccounts(t *testing.T) {
	setTestEnv(t)
	sent := fakeTelegram(t)
	checkUser, checkDry = "", false

	_, err := executeCommand(rootCmd, "check")
	require.Error(t, err)
	assert.ErrorIs(t, err, live.ErrConfig)
	assert.Empty(t, *sent)
}

func TestCheckDryRunDuringTelegramOutage(t *testing.T) {
	setTestEnv(t)
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>502 Bad Gateway</html>"))
	}))
	t.Cleanup(srv.Close)
	t.Setenv("TELEGRAM_API_ENDPOINT", srv.URL+"/bot%s/%s")
	t.Setenv("FETCH_TIMEOUT", "500ms")
	t.Setenv("PACE", "0s")
	checkUser, checkDry = "", false

	out, err := executeCommand(rootCmd, "check", "--dry", "--user", "alice")
	require.NoError(t, err)

	var report live.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.True(t, report.OK)
	assert.True(t, report.Dry)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "alice", report.Results[0].Username)
	assert.Zero(t, calls)
}

type fakeRunner struct {
	mu    sync.Mutex
	calls int
	errs  []error
	// tick is signalled after every call.
	tick chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, opts live.RunOptions) (*live.Report, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.mu.Unlock()
	defer func() {
		select {
		case f.tick <- struct{}{}:
		default:
		}
	}()

	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return &live.Report{OK: true, Count: 1, Results: []live.Result{{Username: "alice", Live: true, Notified: true}}}, nil
}

func TestWatchRunsImmediatelyAndOnTicks(t *testing.T) {
	logger = zerolog.Nop()
	runner := &fakeRunner{tick: make(chan struct{}, 8)}
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- watch(ctx, runner, 10*time.Millisecond, time.Second) }()

	for i := 0; i < 3; i++ {
		select {
		case <-runner.tick:
		case <-time.After(5 * time.Second):
			t.Fatal("watch did not tick")
		}
	}
	cancel()
	require.NoError(t, <-errCh)
}

func TestWatchKeepsGoingAfterBatchFailure(t *testing.T) {
	logger = zerolog.Nop()
	runner := &fakeRunner{
		tick: make(chan struct{}, 8),
		errs: []error{errors.New("opening render session: chrome not found")},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- watch(ctx, runner, 10*time.Millisecond, 0) }()

	for i := 0; i < 2; i++ {
		select {
		case <-runner.tick:
		case err := <-errCh:
			t.Fatalf("watch stopped: %v", err)
		case <-time.After(5 * time.Second):
			t.Fatal("watch did not tick")
		}
	}
}

func TestWatchStopsOnConfigError(t *testing.T) {
	logger = zerolog.Nop()
	runner := &fakeRunner{errs: []error{live.ErrConfig}}

	err := watch(context.Background(), runner, time.Hour, 0)
	assert.ErrorIs(t, err, live.ErrConfig)
	assert.Equal(t, 1, runner.calls)
}
