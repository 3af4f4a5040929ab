// Package ratelimit serializes outbound requests so that no two requests to an
// origin are released closer together than a configured interval.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/archive-ingest/internal/metrics"
)

// Throttle releases callers one at a time, at least Interval apart, in the
// order they arrived. It is a burst-1 token bucket: each Wait takes the next
// reservation slot under the limiter's lock, so slots are handed out FIFO.
type Throttle struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewThrottle builds a Throttle. A non-positive interval never blocks.
func NewThrottle(interval time.Duration) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttle{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// Interval returns the configured minimum spacing.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}

// Wait blocks until the caller's slot comes up or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle wait: %w", err)
	}
	return nil
}

// Limiter keeps one Throttle per origin.
type Limiter struct {
	mu        sync.Mutex
	throttles map[string]*Throttle
	interval  time.Duration
}

// Config holds rate limiter configuration.
type Config struct {
	Interval time.Duration
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	return &Limiter{
		throttles: make(map[string]*Throttle),
		interval:  cfg.Interval,
	}
}

// Wait blocks until the origin of rawURL may be contacted again.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	origin := Origin(rawURL)
	l.mu.Lock()
	throttle, exists := l.throttles[origin]
	if !exists {
		throttle = NewThrottle(l.interval)
		l.throttles[origin] = throttle
	}
	l.mu.Unlock()

	start := time.Now()
	if err := throttle.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", origin, err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(origin, waited)
	}
	return nil
}

// Origin returns scheme://host for rawURL, or "unknown" when it cannot be parsed.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
