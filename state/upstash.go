package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lukamindo/tiktok_live_go/live"
)

// Upstash talks to an Upstash Redis database over its REST API, for
// hosts where outbound TCP to Redis is not available.
type Upstash struct {
	url    string
	token  string
	client *http.Client
}

// NewUpstash returns a store for the database at url, authorized by token.
func NewUpstash(url, token string) *Upstash {
	return &Upstash{
		url:   strings.TrimRight(url, "/"),
		token: token,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type upstashResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// Get returns the value under key; a null result means absent.
func (s *Upstash) Get(ctx context.Context, key string) (string, bool, error) {
	raw, err := s.do(ctx, "GET", key)
	if err != nil {
		return "", false, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return "", false, nil
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false, fmt.Errorf("decoding upstash GET result: %w", err)
	}
	return value, true, nil
}

// SetEx stores value under key, expiring after ttl when ttl is positive.
func (s *Upstash) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	args := []string{"SET", key, value}
	switch {
	case ttl <= 0:
	case ttl%time.Second == 0:
		args = append(args, "EX", strconv.FormatInt(int64(ttl/time.Second), 10))
	default:
		// Sub-second precision, as go-redis does.
		ms := ttl.Milliseconds()
		if ms < 1 {
			ms = 1
		}
		args = append(args, "PX", strconv.FormatInt(ms, 10))
	}
	_, err := s.do(ctx, args...)
	return err
}

// Ping reports whether the database answers.
func (s *Upstash) Ping(ctx context.Context) error {
	_, err := s.do(ctx, "PING")
	return err
}

// do sends one command in the JSON array form accepted at the API root.
func (s *Upstash) do(ctx context.Context, args ...string) (json.RawMessage, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encoding upstash command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating upstash request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending upstash %s: %w", args[0], err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading upstash response: %w", err)
	}

	var out upstashResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("upstash %s: status %d: %w", args[0], resp.StatusCode, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("upstash %s: %s", args[0], out.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstash %s: received non-200 response code: %d", args[0], resp.StatusCode)
	}
	return out.Result, nil
}

var _ live.KeyValueStore = (*Upstash)(nil)
