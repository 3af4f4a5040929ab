// Package transcribe extracts audio from playable items, runs speech
// recognition, and merges transcripts and captions back onto the items.
// Job outcomes are persisted after every job so interrupted runs resume.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/archive-ingest/internal/archive"
	"github.com/JakeFAU/archive-ingest/internal/extract"
	"github.com/JakeFAU/archive-ingest/internal/metrics"
)

// Output extensions produced by the recognizer for every job.
var outputExts = []string{".txt", ".vtt", ".srt"}

// Config controls a transcription run.
type Config struct {
	Concurrency int
	JobTimeout  time.Duration
	// WorkDir holds per-job temp dirs; empty uses the OS default.
	WorkDir           string
	CaptionsDir       string
	CaptionsURLPrefix string
	MediaTypes        []archive.MediaType
}

// Validate checks the run configuration.
func (c Config) Validate() error {
	if c.Concurrency <= 0 {
		return errors.New("transcribe concurrency must be > 0")
	}
	if c.CaptionsDir == "" {
		return errors.New("captions dir is required")
	}
	if len(c.MediaTypes) == 0 {
		return errors.New("at least one media type is required")
	}
	for _, m := range c.MediaTypes {
		if !m.Playable() {
			return fmt.Errorf("media type %q cannot be transcribed", m)
		}
	}
	return nil
}

// Report summarizes a run.
type Report struct {
	Candidates int
	Skipped    int
	Completed  int
	Failed     int
}

// Orchestrator runs transcription jobs on a bounded pool.
type Orchestrator struct {
	cfg     Config
	tools   Tools
	fetcher archive.Fetcher
	runner  Runner
	status  *StatusStore
	logger  *zap.Logger
}

// New builds an Orchestrator. fetcher resolves media for items that lack a
// mediaUrl.
func New(cfg Config, tools Tools, fetcher archive.Fetcher, runner Runner, status *StatusStore, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CaptionsURLPrefix == "" {
		cfg.CaptionsURLPrefix = "/captions"
	}
	return &Orchestrator{
		cfg:     cfg,
		tools:   tools,
		fetcher: fetcher,
		runner:  runner,
		status:  status,
		logger:  logger,
	}
}

// result is what a finished job contributes to the merge.
type result struct {
	outputs     outputs
	durationSec *float64
	kind        archive.MediaType
}

// Run transcribes every eligible item and returns the full item set with
// results merged in. Per-item failures are recorded in the status map and
// counted; only status persistence failures and cancellation end the run.
func (o *Orchestrator) Run(ctx context.Context, items []archive.Item) (Report, []archive.Item, error) {
	var report Report
	results := make([]*result, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)

	var completed, failed atomic.Int32
	for i, item := range items {
		if !o.eligible(item) {
			continue
		}
		report.Candidates++
		if out, ok := o.finished(item.ID); ok {
			report.Skipped++
			results[i] = &result{outputs: out}
			o.logger.Debug("skipping transcribed item", zap.String("id", item.ID))
			continue
		}

		g.Go(func() error {
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()

			res, err := o.process(gctx, item)
			if gctx.Err() != nil {
				// The run is ending; leave the entry for the next run.
				return gctx.Err()
			}
			if err != nil {
				o.logger.Warn("transcription failed",
					zap.String("id", item.ID),
					zap.String("source_url", item.SourceURL),
					zap.Error(err),
				)
				metrics.ObserveTranscription("failed")
				failed.Add(1)
				if setErr := o.status.Set(item.ID, archive.JobFailed, err); setErr != nil {
					return fmt.Errorf("persist status for %s: %w", item.ID, setErr)
				}
				return nil
			}
			results[i] = res
			metrics.ObserveTranscription("complete")
			completed.Add(1)
			if setErr := o.status.Set(item.ID, archive.JobComplete, nil); setErr != nil {
				return fmt.Errorf("persist status for %s: %w", item.ID, setErr)
			}
			o.logger.Info("transcription complete", zap.String("id", item.ID))
			return nil
		})
	}
	err := g.Wait()
	report.Completed = int(completed.Load())
	report.Failed = int(failed.Load())
	if err != nil {
		return report, nil, err
	}

	merged := make([]archive.Item, len(items))
	for i, item := range items {
		merged[i] = item
		if results[i] != nil {
			merged[i] = merge(item, *results[i], o.cfg.CaptionsURLPrefix)
		}
	}
	return report, merged, nil
}

// eligible reports whether item is a configured media type still lacking a
// transcript. Existing transcripts are never overwritten.
func (o *Orchestrator) eligible(item archive.Item) bool {
	if strings.TrimSpace(item.TranscriptText) != "" {
		return false
	}
	for _, m := range o.cfg.MediaTypes {
		if item.MediaType == m {
			return true
		}
	}
	return false
}

// finished reports whether id is complete with every output present in the
// captions dir.
func (o *Orchestrator) finished(id string) (outputs, bool) {
	entry, ok := o.status.Get(id)
	if !ok || entry.Status != archive.JobComplete {
		return outputs{}, false
	}
	out, err := readOutputs(o.cfg.CaptionsDir, id)
	if err != nil {
		o.logger.Info("reprocessing item with missing outputs", zap.String("id", id), zap.Error(err))
		return outputs{}, false
	}
	return out, true
}

func (o *Orchestrator) process(ctx context.Context, item archive.Item) (*result, error) {
	if o.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.JobTimeout)
		defer cancel()
	}

	media, err := o.resolveMedia(ctx, item)
	if err != nil {
		return nil, err
	}

	res := &result{kind: media.Kind}
	err = withTempDir(o.cfg.WorkDir, "transcribe-"+item.ID+"-", o.logger, func(dir string) error {
		wav := filepath.Join(dir, item.ID+".wav")
		if err := o.tools.ExtractAudio(ctx, o.runner, media.URL, wav); err != nil {
			return err
		}
		base := filepath.Join(dir, item.ID)
		if err := o.tools.Recognize(ctx, o.runner, wav, base); err != nil {
			return err
		}
		if dur, err := WAVDuration(wav); err != nil {
			o.logger.Warn("could not probe audio duration", zap.String("id", item.ID), zap.Error(err))
		} else {
			res.durationSec = &dur
		}
		for _, ext := range outputExts {
			if err := copyFile(base+ext, filepath.Join(o.cfg.CaptionsDir, item.ID+ext)); err != nil {
				return fmt.Errorf("collect output: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out, err := readOutputs(o.cfg.CaptionsDir, item.ID)
	if err != nil {
		return nil, err
	}
	res.outputs = out
	return res, nil
}

// resolveMedia prefers a known mediaUrl and otherwise scans the source page.
func (o *Orchestrator) resolveMedia(ctx context.Context, item archive.Item) (extract.MediaCandidate, error) {
	if item.MediaURL != "" {
		return extract.MediaCandidate{URL: item.MediaURL, Kind: item.MediaType}, nil
	}
	if item.SourceURL == "" {
		return extract.MediaCandidate{}, errors.New("item has neither media url nor source url")
	}
	body, err := o.fetcher.Fetch(ctx, item.SourceURL)
	if err != nil {
		return extract.MediaCandidate{}, fmt.Errorf("fetch source page: %w", err)
	}
	c, ok, err := extract.FindMedia(body, item.SourceURL, item.MediaType)
	if err != nil {
		return extract.MediaCandidate{}, err
	}
	if !ok {
		return extract.MediaCandidate{}, fmt.Errorf("no playable media found on %s", item.SourceURL)
	}
	return c, nil
}

// outputs are the transcript text and caption file names of a finished job.
type outputs struct {
	transcript string
	vttName    string
	srtName    string
}

func readOutputs(dir, id string) (outputs, error) {
	for _, ext := range outputExts {
		p := filepath.Join(dir, id+ext)
		if _, err := os.Stat(p); err != nil {
			return outputs{}, fmt.Errorf("missing output %s: %w", p, err)
		}
	}
	text, err := os.ReadFile(filepath.Join(dir, id+".txt"))
	if err != nil {
		return outputs{}, fmt.Errorf("read transcript: %w", err)
	}
	return outputs{
		transcript: string(text),
		vttName:    id + ".vtt",
		srtName:    id + ".srt",
	}, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}

func captionsURL(prefix, name string) string {
	return path.Join(prefix, name)
}
