// Package ingest gathers items from a local directory tree and harvested
// batches and writes them to the catalog.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/archive-ingest/internal/archive"
	"github.com/JakeFAU/archive-ingest/internal/batch"
	"github.com/JakeFAU/archive-ingest/internal/storage/sqlite"
)

// Store is the catalog the ingester writes to.
type Store interface {
	Write(ctx context.Context, items []archive.Item, mode sqlite.Mode) (sqlite.Result, error)
	Items(ctx context.Context) ([]archive.Item, error)
	Collections(ctx context.Context) ([]archive.Collection, error)
}

// Mirror receives a copy of each committed write.
type Mirror interface {
	Sync(ctx context.Context, items []archive.Item, collections []archive.Collection) error
}

// Sources names the inputs of one run, processed in order: the local root
// first, then batches in the order given. Later sources win on id collision.
type Sources struct {
	Root      string
	SkipLocal bool
	Batches   []string
}

// Options configures an Ingester.
type Options struct {
	Mode sqlite.Mode
	// ExportPath, when set, receives the full catalog as JSON lines after
	// each run.
	ExportPath string
	Mirror     Mirror
}

// Summary reports what a run did.
type Summary struct {
	Local       int
	Batched     int
	FileErrors  int
	Items       int
	Collections int
}

// Ingester merges sources and commits them in one catalog write.
type Ingester struct {
	store  Store
	files  *FileReader
	batch  *batch.Reader
	opts   Options
	logger *zap.Logger
}

// New constructs an Ingester.
func New(store Store, files *FileReader, reader *batch.Reader, opts Options, logger *zap.Logger) (*Ingester, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if files == nil || reader == nil {
		return nil, fmt.Errorf("file and batch readers are required")
	}
	if _, err := sqlite.ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{store: store, files: files, batch: reader, opts: opts, logger: logger.Named("ingest")}, nil
}

// Run ingests sources. A malformed batch or a failed store write aborts the
// run; an unreadable local file is logged and counted.
func (i *Ingester) Run(ctx context.Context, src Sources) (Summary, error) {
	var sum Summary
	merged := newMergeSet()

	if !src.SkipLocal && src.Root != "" {
		n, failed, err := i.readLocal(ctx, src.Root, merged)
		if err != nil {
			return sum, err
		}
		sum.Local, sum.FileErrors = n, failed
	}

	for _, path := range src.Batches {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("ingest cancelled: %w", err)
		}
		items, err := i.batch.ReadFile(path)
		if err != nil {
			return sum, err
		}
		for _, item := range items {
			merged.put(item)
		}
		sum.Batched += len(items)
		i.logger.Info("batch loaded", zap.String("path", path), zap.Int("records", len(items)))
	}

	items := merged.values()
	res, err := i.store.Write(ctx, items, i.opts.Mode)
	if err != nil {
		return sum, fmt.Errorf("write catalog: %w", err)
	}
	sum.Items, sum.Collections = res.Items, res.Collections

	if i.opts.Mirror != nil {
		collections, err := i.store.Collections(ctx)
		if err != nil {
			return sum, fmt.Errorf("load collections: %w", err)
		}
		if err := i.opts.Mirror.Sync(ctx, items, collections); err != nil {
			return sum, fmt.Errorf("sync mirror: %w", err)
		}
	}

	if i.opts.ExportPath != "" {
		all, err := i.store.Items(ctx)
		if err != nil {
			return sum, fmt.Errorf("load catalog for export: %w", err)
		}
		if err := batch.WriteFile(i.opts.ExportPath, all); err != nil {
			return sum, fmt.Errorf("export catalog: %w", err)
		}
	}

	i.logger.Info("ingest complete",
		zap.Int("local", sum.Local),
		zap.Int("batched", sum.Batched),
		zap.Int("file_errors", sum.FileErrors),
		zap.Int("items", sum.Items),
	)
	return sum, nil
}

func (i *Ingester) readLocal(ctx context.Context, root string, merged *mergeSet) (int, int, error) {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		i.logger.Warn("source directory not found, skipping local files", zap.String("root", root))
		return 0, 0, nil
	}
	files, err := Collect(root)
	if err != nil {
		return 0, 0, err
	}
	read, failed := 0, 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return read, failed, fmt.Errorf("ingest cancelled: %w", err)
		}
		item, err := i.files.Read(f.Path, f.Rel)
		if err != nil {
			failed++
			i.logger.Error("failed to ingest file", zap.String("path", f.Rel), zap.Error(err))
			continue
		}
		merged.put(item)
		read++
	}
	return read, failed, nil
}

// mergeSet keeps the last item per id, in first-seen order.
type mergeSet struct {
	index map[string]int
	items []archive.Item
}

func newMergeSet() *mergeSet {
	return &mergeSet{index: make(map[string]int)}
}

func (m *mergeSet) put(item archive.Item) {
	if i, ok := m.index[item.ID]; ok {
		m.items[i] = item
		return
	}
	m.index[item.ID] = len(m.items)
	m.items = append(m.items, item)
}

func (m *mergeSet) values() []archive.Item {
	return m.items
}
