package usage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCounter(t *testing.T, ttl time.Duration) (*Counter, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCounter(client, ttl), server
}

func TestCounterIncrementAndGet(t *testing.T) {
	counter, _ := setupCounter(t, 0)
	ctx := context.Background()

	value, err := counter.Get(ctx, 10, "max_active_keys")
	require.NoError(t, err)
	assert.Equal(t, 0, value, "missing counter reads as zero")

	for want := 1; want <= 3; want++ {
		got, err := counter.Increment(ctx, 10, "max_active_keys")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	value, err = counter.Get(ctx, 10, "max_active_keys")
	require.NoError(t, err)
	assert.Equal(t, 3, value)

	// counters are scoped per account and key
	other, err := counter.Get(ctx, 11, "max_active_keys")
	require.NoError(t, err)
	assert.Equal(t, 0, other)
}

func TestCounterDecrementFloorsAtZero(t *testing.T) {
	counter, _ := setupCounter(t, 0)
	ctx := context.Background()

	_, err := counter.Increment(ctx, 10, "max_active_keys")
	require.NoError(t, err)

	require.NoError(t, counter.Decrement(ctx, 10, "max_active_keys"))
	require.NoError(t, counter.Decrement(ctx, 10, "max_active_keys"))

	value, err := counter.Get(ctx, 10, "max_active_keys")
	require.NoError(t, err)
	assert.Equal(t, 0, value)
}

func TestCounterTTL(t *testing.T) {
	counter, server := setupCounter(t, time.Minute)
	ctx := context.Background()

	_, err := counter.Increment(ctx, 10, "api_calls_daily")
	require.NoError(t, err)

	server.FastForward(2 * time.Minute)

	value, err := counter.Get(ctx, 10, "api_calls_daily")
	require.NoError(t, err)
	assert.Equal(t, 0, value, "expired counter reads as zero")
}

func TestCounterReaderReportsFailure(t *testing.T) {
	counter, server := setupCounter(t, 0)
	read := counter.Reader("max_active_keys")

	_, err := read(context.Background(), 10)
	require.NoError(t, err)

	// a dead Redis surfaces as an error for the caller's fail-open policy
	server.Close()
	_, err = read(context.Background(), 10)
	assert.Error(t, err)
}

func TestCounterSetAndReset(t *testing.T) {
	counter, _ := setupCounter(t, 0)
	ctx := context.Background()

	require.NoError(t, counter.Set(ctx, 10, "max_scripts", 7))
	value, err := counter.Get(ctx, 10, "max_scripts")
	require.NoError(t, err)
	assert.Equal(t, 7, value)

	require.NoError(t, counter.Reset(ctx, 10, "max_scripts"))
	value, err = counter.Get(ctx, 10, "max_scripts")
	require.NoError(t, err)
	assert.Equal(t, 0, value)
}
