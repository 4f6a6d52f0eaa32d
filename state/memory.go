package state

import (
	"context"
	"sync"
	"time"

	"github.com/lukamindo/tiktok_live_go/live"
)

type entry struct {
	value   string
	expires time.Time
}

// Memory is an in-process store. It backs the always-on watch loop and
// stands in when no external store is configured, in which case nothing
// survives between invocations.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the value under key unless it has expired.
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// SetEx stores value under key. A non-positive ttl never expires.
func (m *Memory) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

var _ live.KeyValueStore = (*Memory)(nil)
