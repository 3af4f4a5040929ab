package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/archive-ingest/internal/metrics"
)

func TestThrottleSpacesReleases(t *testing.T) {
	metrics.Init()
	interval := 60 * time.Millisecond
	th := NewThrottle(interval)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, th.Wait(ctx))
	assert.Less(t, time.Since(start), 20*time.Millisecond, "first call should not wait")

	require.NoError(t, th.Wait(ctx))
	require.NoError(t, th.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 2*interval-10*time.Millisecond)
}

func TestThrottleReleasesInArrivalOrder(t *testing.T) {
	th := NewThrottle(30 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, th.Wait(ctx))

	var (
		mu       sync.Mutex
		released []int
		wg       sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := th.Wait(ctx); err != nil {
				t.Errorf("wait %d: %v", n, err)
				return
			}
			mu.Lock()
			released = append(released, n)
			mu.Unlock()
		}(i)
		// Stagger arrivals well inside one interval so arrival order is known.
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3}, released)
}

func TestThrottleZeroIntervalNeverBlocks(t *testing.T) {
	th := NewThrottle(0)
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, th.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestThrottleHonorsContext(t *testing.T) {
	th := NewThrottle(time.Hour)
	require.NoError(t, th.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, th.Wait(ctx))
}

func TestLimiterSeparatesOrigins(t *testing.T) {
	metrics.Init()
	l := New(Config{Interval: time.Second})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example/1"))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "origin b blocked by origin a")
}

func TestOrigin(t *testing.T) {
	assert.Equal(t, "https://example.org", Origin("https://Example.org/path?q=1"))
	assert.Equal(t, "http://example.org:8080", Origin("http://example.org:8080/"))
	assert.Equal(t, "unknown", Origin("not a url"))
}
