// Package harvest fetches seed detail pages and writes normalized records as
// a JSONL batch for the ingester.
package harvest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/archive-ingest/internal/archive"
	"github.com/JakeFAU/archive-ingest/internal/batch"
	"github.com/JakeFAU/archive-ingest/internal/clock/system"
	"github.com/JakeFAU/archive-ingest/internal/extract"
	"github.com/JakeFAU/archive-ingest/internal/metrics"
)

// Gate decides whether seeds may be fetched at all.
type Gate interface {
	Check(ctx context.Context, seeds []string) error
}

// Config controls a harvest run.
type Config struct {
	Concurrency int
	Output      string
}

// Validate checks the run configuration.
func (c Config) Validate() error {
	if c.Concurrency <= 0 {
		return errors.New("harvest concurrency must be > 0")
	}
	if c.Output == "" {
		return errors.New("harvest output path is required")
	}
	return nil
}

// Report summarizes a run.
type Report struct {
	Seeds      int
	Written    int
	Duplicates int
	Failed     int
}

// Harvester turns seeds into records.
type Harvester struct {
	cfg     Config
	fetcher archive.Fetcher
	gate    Gate
	clock   archive.Clock
	logger  *zap.Logger
}

// New builds a Harvester. gate may be nil to skip the robots check.
func New(cfg Config, fetcher archive.Fetcher, gate Gate, clock archive.Clock, logger *zap.Logger) *Harvester {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New()
	}
	return &Harvester{cfg: cfg, fetcher: fetcher, gate: gate, clock: clock, logger: logger}
}

// Run checks every seed against the gate, then fetches and extracts them on
// a bounded pool. Failed seeds are logged and counted; the rest are written
// to the output file in seed order with duplicate ids dropped.
func (h *Harvester) Run(ctx context.Context, seeds SeedList) (Report, error) {
	report := Report{Seeds: len(seeds.Seeds)}
	if h.gate != nil {
		if err := h.gate.Check(ctx, seeds.URLs()); err != nil {
			return report, err
		}
	}

	records := make([]*archive.Record, len(seeds.Seeds))
	failed := make([]bool, len(seeds.Seeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.Concurrency)
	for i, seed := range seeds.Seeds {
		g.Go(func() error {
			rec, err := h.harvestOne(gctx, seed, seeds.DefaultMedia)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				h.logger.Warn("seed failed", zap.String("url", seed.URL), zap.Error(err))
				metrics.ObserveHarvest("error")
				failed[i] = true
				return nil
			}
			metrics.ObserveHarvest("ok")
			records[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	seen := make(map[string]struct{}, len(records))
	out := make([]archive.Record, 0, len(records))
	for i, rec := range records {
		if failed[i] {
			report.Failed++
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			report.Duplicates++
			h.logger.Info("dropping duplicate record", zap.String("id", rec.ID), zap.String("url", seeds.Seeds[i].URL))
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, *rec)
	}

	if err := batch.WriteFile(h.cfg.Output, out); err != nil {
		return report, fmt.Errorf("write harvest output: %w", err)
	}
	report.Written = len(out)
	h.logger.Info("harvest finished",
		zap.Int("seeds", report.Seeds),
		zap.Int("written", report.Written),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("failed", report.Failed),
		zap.String("output", h.cfg.Output),
	)
	return report, nil
}

func (h *Harvester) harvestOne(ctx context.Context, seed archive.SeedRecord, fallback archive.MediaType) (archive.Record, error) {
	body, err := h.fetcher.Fetch(ctx, seed.URL)
	if err != nil {
		return archive.Record{}, err
	}
	rec, err := extract.Extract(body, seed.URL, extract.Options{DefaultMedia: fallback, Now: h.clock.Now()})
	if err != nil {
		return archive.Record{}, err
	}
	return extract.ApplySeed(rec, seed), nil
}
