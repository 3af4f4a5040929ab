package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-ingest/internal/batch"
	"github.com/JakeFAU/archive-ingest/internal/config"
	"github.com/JakeFAU/archive-ingest/internal/hash/sha256"
	"github.com/JakeFAU/archive-ingest/internal/ingest"
	"github.com/JakeFAU/archive-ingest/internal/storage/postgres"
	"github.com/JakeFAU/archive-ingest/internal/storage/sqlite"
)

type ingestFlags struct {
	root       string
	batches    []string
	db         string
	mode       string
	thumbnails string
	export     string
	noLocal    bool
}

func newIngestCmd() *cobra.Command {
	var f ingestFlags
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Merge a local tree and harvested batches into the catalog",
		Long: `Walks the local root (unless --no-local), then reads each --batch file in
order, and commits everything to the SQLite catalog in one transaction. Later
sources win when two carry the same id. A malformed batch line aborts the run
with its line number.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, f)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.root, "root", "", "local archive root (default ingest.root)")
	flags.StringArrayVar(&f.batches, "batch", nil, "harvested JSONL batch; repeatable")
	flags.StringVar(&f.db, "db", "", "SQLite catalog path (default store.path)")
	flags.StringVar(&f.mode, "mode", "", "rebuild or incremental (default ingest.mode)")
	flags.StringVar(&f.thumbnails, "thumbnails", "", "thumbnail output directory (default ingest.thumbnail_dir)")
	flags.StringVar(&f.export, "export", "", "catalog JSONL export path (default items.jsonl next to the catalog)")
	flags.BoolVar(&f.noLocal, "no-local", false, "skip the local root and ingest batches only")
	return cmd
}

func runIngest(cmd *cobra.Command, f ingestFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.GetConfig()
	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.Ingest.Root = f.root
	}
	if flags.Changed("db") {
		cfg.Store.Path = f.db
	}
	if flags.Changed("mode") {
		cfg.Ingest.Mode = f.mode
	}
	if flags.Changed("thumbnails") {
		cfg.Ingest.ThumbnailDir = f.thumbnails
	}
	if flags.Changed("export") {
		cfg.Ingest.ExportPath = f.export
	}
	mode, err := sqlite.ParseMode(cfg.Ingest.Mode)
	if err != nil {
		return err
	}
	if f.noLocal && len(f.batches) == 0 {
		return fmt.Errorf("--no-local needs at least one --batch")
	}

	src := ingest.Sources{Root: cfg.Ingest.Root, SkipLocal: f.noLocal, Batches: f.batches}
	sum, err := ingestCatalog(cmd.Context(), appInstance, cfg, src, mode)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ingested %d items (%d local, %d from batches, %d unreadable files) into %s\n",
		sum.Items, sum.Local, sum.Batched, sum.FileErrors, cfg.Store.Path)
	return nil
}

// ingestCatalog opens the catalog and the optional mirror and runs one
// ingest pass. The transcribe command reuses it to fold results back in.
func ingestCatalog(ctx context.Context, appInstance App, cfg config.Config, src ingest.Sources, mode sqlite.Mode) (ingest.Summary, error) {
	logger := appInstance.GetLogger()
	store, err := sqlite.Open(ctx, cfg.Store.Path, logger.Named("store"))
	if err != nil {
		return ingest.Summary{}, err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("close catalog failed", zap.Error(cerr))
		}
	}()
	appInstance.StartStatusServer(ctx, nil, store)

	opts := ingest.Options{Mode: mode, ExportPath: exportPath(cfg)}
	if cfg.Store.PostgresDSN != "" {
		mirror, err := postgres.New(ctx, postgres.Config{DSN: cfg.Store.PostgresDSN}, logger)
		if err != nil {
			return ingest.Summary{}, fmt.Errorf("open postgres mirror: %w", err)
		}
		defer mirror.Close()
		opts.Mirror = mirror
	}

	now := func() time.Time { return time.Now().UTC() }
	hasher := sha256.New()
	files := ingest.NewFileReader(cfg.Ingest.ThumbnailDir, hasher, now, logger.Named("files"))
	ing, err := ingest.New(store, files, batch.NewReader(hasher, now), opts, logger)
	if err != nil {
		return ingest.Summary{}, err
	}
	return ing.Run(ctx, src)
}

func exportPath(cfg config.Config) string {
	if cfg.Ingest.ExportPath != "" {
		return cfg.Ingest.ExportPath
	}
	return filepath.Join(filepath.Dir(cfg.Store.Path), "items.jsonl")
}
