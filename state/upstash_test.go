package state

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstash answers GET, SET and PING commands from a map.
type fakeUpstash struct {
	mu       sync.Mutex
	values   map[string]string
	commands [][]string
}

func (f *fakeUpstash) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer secret" {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
		return
	}

	var args []string
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil || len(args) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "ERR bad command"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, args)

	var result any
	switch args[0] {
	case "GET":
		if v, ok := f.values[args[1]]; ok {
			result = v
		}
	case "SET":
		f.values[args[1]] = args[2]
		result = "OK"
	case "PING":
		result = "PONG"
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
}

func TestUpstashGetSet(t *testing.T) {
	ctx := context.Background()
	fake := &fakeUpstash{values: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewUpstash(srv.URL+"/", "secret")

	_, ok, err := s.Get(ctx, "live:alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetEx(ctx, "live:alice", "1", 2*time.Hour))
	value, ok, err := s.Get(ctx, "live:alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", value)

	require.NoError(t, s.Ping(ctx))
	assert.Contains(t, fake.commands, []string{"SET", "live:alice", "1", "EX", "7200"})
}

func TestUpstashExpiryArguments(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want []string
	}{
		{10 * time.Minute, []string{"SET", "live:bob", "0", "EX", "600"}},
		{1500 * time.Millisecond, []string{"SET", "live:bob", "0", "PX", "1500"}},
		{300 * time.Millisecond, []string{"SET", "live:bob", "0", "PX", "300"}},
		{time.Microsecond, []string{"SET", "live:bob", "0", "PX", "1"}},
		{0, []string{"SET", "live:bob", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.ttl.String(), func(t *testing.T) {
			fake := &fakeUpstash{values: map[string]string{}}
			srv := httptest.NewServer(fake)
			defer srv.Close()

			s := NewUpstash(srv.URL, "secret")
			require.NoError(t, s.SetEx(context.Background(), "live:bob", "0", tt.ttl))
			require.Len(t, fake.commands, 1)
			assert.Equal(t, tt.want, fake.commands[0])
		})
	}
}

func TestUpstashErrors(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(&fakeUpstash{values: map[string]string{}})
	defer srv.Close()

	s := NewUpstash(srv.URL, "wrong")
	_, _, err := s.Get(ctx, "live:alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")

	srv.Close()
	err = NewUpstash(srv.URL, "secret").SetEx(ctx, "live:alice", "0", time.Minute)
	assert.Error(t, err)
}
