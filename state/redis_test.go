package state

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	s, err := NewRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisGetSet(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedis(t)

	_, ok, err := s.Get(ctx, "live:alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetEx(ctx, "live:alice", "1:12345678", 2*time.Hour))

	value, ok, err := s.Get(ctx, "live:alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1:12345678", value)
	assert.Equal(t, 2*time.Hour, mr.TTL("live:alice"))

	mr.FastForward(2 * time.Hour)
	_, ok, err = s.Get(ctx, "live:alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisUnreachable(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedis(t)
	mr.Close()

	_, _, err := s.Get(ctx, "live:alice")
	assert.Error(t, err)
	assert.Error(t, s.SetEx(ctx, "live:alice", "0", time.Minute))
	assert.Error(t, s.Ping(ctx))
}

func TestNewRedisErrors(t *testing.T) {
	_, err := NewRedis(context.Background(), "not a url")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedis(context.Background(), "redis://"+addr)
	assert.Error(t, err)
}
