package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// DisallowedError reports a seed that the origin's policy forbids.
type DisallowedError struct {
	URL       string
	RobotsURL string
	Agent     string
}

func (e *DisallowedError) Error() string {
	return fmt.Sprintf("robots.txt at %s blocks %s for user-agent %s", e.RobotsURL, e.URL, e.Agent)
}

// Waiter paces outbound requests per origin.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Gate fetches each origin's robots.txt once and checks seeds against it.
type Gate struct {
	client    *http.Client
	userAgent string
	limiter   Waiter
	logger    *zap.Logger
}

// NewGate builds a Gate. limiter may be nil.
func NewGate(userAgent string, limiter Waiter, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: userAgent,
		limiter:   limiter,
		logger:    logger,
	}
}

// Check returns a *DisallowedError for the first seed the policy forbids.
// An unreachable or non-OK policy allows everything (fail open).
func (g *Gate) Check(ctx context.Context, seeds []string) error {
	byOrigin := make(map[string][]*url.URL)
	var origins []string
	for _, raw := range seeds {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return fmt.Errorf("parse seed %q: invalid absolute url", raw)
		}
		origin := u.Scheme + "://" + u.Host
		if _, ok := byOrigin[origin]; !ok {
			origins = append(origins, origin)
		}
		byOrigin[origin] = append(byOrigin[origin], u)
	}

	for _, origin := range origins {
		robotsURL := origin + "/robots.txt"
		rules, err := g.load(ctx, robotsURL)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("check robots: %w", ctx.Err())
			}
			g.logger.Warn("robots fetch failed; allowing access", zap.String("robots_url", robotsURL), zap.Error(err))
			continue
		}
		for _, seed := range byOrigin[origin] {
			if !rules.Allowed(seed.EscapedPath()) {
				return &DisallowedError{URL: seed.String(), RobotsURL: robotsURL, Agent: g.userAgent}
			}
		}
	}
	return nil
}

// load fetches and parses one policy. A nil *Rules with a nil error means
// there is nothing to enforce.
func (g *Gate) load(ctx context.Context, robotsURL string) (*Rules, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, robotsURL); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			g.logger.Debug("close robots body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.Warn("robots policy unavailable; allowing access", zap.String("robots_url", robotsURL), zap.Int("status", resp.StatusCode))
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, fmt.Errorf("read robots: %w", err)
	}
	return Parse(string(body)).For(g.userAgent), nil
}
