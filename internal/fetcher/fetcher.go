package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-ingest/internal/metrics"
)

// StatusError is returned when the origin answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request for %s failed with status %d", e.URL, e.StatusCode)
}

// Waiter paces requests per origin.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls collector behavior.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxBodySize int
}

// Fetcher implements archive.Fetcher. Cache hits skip both the network and
// the throttle.
type Fetcher struct {
	cfg           Config
	cache         *Cache
	limiter       Waiter
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, cache *Cache, limiter Waiter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		cache:         cache,
		limiter:       limiter,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch returns the document at rawURL, from cache when possible.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if f.cache != nil {
		data, ok, err := f.cache.Get(rawURL)
		if err != nil {
			return nil, err
		}
		if ok {
			metrics.ObserveFetch(rawURL, "cache", "ok", len(data))
			return data, nil
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	body, status, err := f.visit(ctx, rawURL)
	if err != nil {
		metrics.ObserveFetch(rawURL, "network", "error", 0)
		return nil, err
	}
	if status < 200 || status > 299 {
		metrics.ObserveFetch(rawURL, "network", "error", 0)
		return nil, &StatusError{URL: rawURL, StatusCode: status}
	}
	metrics.ObserveFetch(rawURL, "network", "ok", len(body))
	f.logger.Debug("fetched document",
		zap.String("url", rawURL),
		zap.Int("status", status),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	if f.cache != nil {
		if err := f.cache.Put(rawURL, body); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func (f *Fetcher) buildCollector(status *int, body *[]byte, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	if f.cfg.MaxBodySize > 0 {
		collector.MaxBodySize = f.cfg.MaxBodySize
	}
	collector.SetRequestTimeout(f.cfg.Timeout)
	configureHooks(collector, status, body, fetchErr)
	return collector
}

func configureHooks(hooks collectorHooks, status *int, body *[]byte, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*status = r.StatusCode
		*body = append([]byte(nil), r.Body...)
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*status = r.StatusCode
		}
		*fetchErr = err
	})
}

func (f *Fetcher) visit(ctx context.Context, rawURL string) ([]byte, int, error) {
	var (
		status   int
		body     []byte
		fetchErr error
	)
	collector := f.buildCollector(&status, &body, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return nil, 0, fmt.Errorf("fetch %s canceled: %w", rawURL, ctx.Err())
	case err := <-done:
		if status != 0 && (status < 200 || status > 299) {
			return nil, status, nil
		}
		if err != nil {
			return nil, 0, fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		if fetchErr != nil {
			return nil, 0, fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
		}
		return body, status, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
