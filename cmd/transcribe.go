package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-ingest/internal/archive"
	"github.com/JakeFAU/archive-ingest/internal/batch"
	"github.com/JakeFAU/archive-ingest/internal/config"
	"github.com/JakeFAU/archive-ingest/internal/fetcher"
	"github.com/JakeFAU/archive-ingest/internal/hash/sha256"
	"github.com/JakeFAU/archive-ingest/internal/ingest"
	"github.com/JakeFAU/archive-ingest/internal/policy/ratelimit"
	"github.com/JakeFAU/archive-ingest/internal/storage/sqlite"
	"github.com/JakeFAU/archive-ingest/internal/transcribe"
)

type transcribeFlags struct {
	source      string
	fromStore   bool
	out         string
	mediaTypes  []string
	concurrency int
	asrBin      string
	asrModel    string
	ffmpeg      string
	headers     []string
	status      string
	captionsDir string
	jobTimeout  time.Duration
	language    string
	db          string
	ingest      bool
}

func newTranscribeCmd() *cobra.Command {
	var f transcribeFlags
	cmd := &cobra.Command{
		Use:   "transcribe",
		Short: "Transcribe audio and video items and write the merged records",
		Long: `Extracts a mono 16 kHz track from each eligible item with ffmpeg, runs
speech recognition on it, and copies the transcript and captions into the
captions directory. Every finished job is recorded in the status file right
away, so an interrupted run picks up where it stopped: items marked complete
with all outputs present are skipped, everything else is retried.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTranscribe(cmd, f)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.source, "source", "", "JSONL batch of items to transcribe")
	flags.BoolVar(&f.fromStore, "from-store", false, "transcribe catalog items that have no transcript yet")
	flags.StringVar(&f.out, "out", "", "output JSONL path for the merged items")
	flags.StringSliceVar(&f.mediaTypes, "media-types", nil, "media types to transcribe (default transcribe.media_types)")
	flags.IntVar(&f.concurrency, "concurrency", 0, "jobs run in parallel (default transcribe.concurrency)")
	flags.StringVar(&f.asrBin, "asr-bin", "", "speech recognition binary (env ASR_BIN)")
	flags.StringVar(&f.asrModel, "asr-model", "", "speech recognition model file (env ASR_MODEL)")
	flags.StringVar(&f.ffmpeg, "ffmpeg", "", "ffmpeg binary (env FFMPEG_PATH)")
	flags.StringArrayVar(&f.headers, "header", nil, "HTTP header forwarded on media requests, 'Name: value'; repeatable")
	flags.StringVar(&f.status, "status", "", "status file path (default transcribe.status_path)")
	flags.StringVar(&f.captionsDir, "captions-dir", "", "public captions directory (default transcribe.captions_dir)")
	flags.DurationVar(&f.jobTimeout, "job-timeout", 0, "wall-clock limit per job (default transcribe.job_timeout)")
	flags.StringVar(&f.language, "language", "", "spoken language code passed to the recognizer")
	flags.StringVar(&f.db, "db", "", "SQLite catalog path (default store.path)")
	flags.BoolVar(&f.ingest, "ingest", false, "fold the merged items back into the catalog incrementally")
	_ = cmd.MarkFlagRequired("out")
	cmd.MarkFlagsMutuallyExclusive("source", "from-store")
	cmd.MarkFlagsOneRequired("source", "from-store")
	return cmd
}

func applyTranscribeFlags(flags *pflag.FlagSet, f transcribeFlags, cfg *config.Config) {
	t := &cfg.Transcribe
	if flags.Changed("media-types") {
		t.MediaTypes = f.mediaTypes
	}
	if flags.Changed("concurrency") {
		t.Concurrency = f.concurrency
	}
	if flags.Changed("asr-bin") {
		t.ASRPath = f.asrBin
	}
	if flags.Changed("asr-model") {
		t.ASRModel = f.asrModel
	}
	if flags.Changed("ffmpeg") {
		t.FFmpegPath = f.ffmpeg
	}
	if flags.Changed("header") {
		t.Headers = f.headers
	}
	if flags.Changed("status") {
		t.StatusPath = f.status
	}
	if flags.Changed("captions-dir") {
		t.CaptionsDir = f.captionsDir
	}
	if flags.Changed("job-timeout") {
		t.JobTimeout = f.jobTimeout
	}
	if flags.Changed("language") {
		t.Language = f.language
	}
	if flags.Changed("db") {
		cfg.Store.Path = f.db
	}
}

func runTranscribe(cmd *cobra.Command, f transcribeFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.GetConfig()
	logger := appInstance.GetLogger()
	ctx := cmd.Context()
	applyTranscribeFlags(cmd.Flags(), f, &cfg)

	media, err := cfg.Transcribe.Media()
	if err != nil {
		return err
	}
	tools, err := resolveTools(cfg.Transcribe, os.Getenv)
	if err != nil {
		return err
	}
	runCfg := transcribe.Config{
		Concurrency:       cfg.Transcribe.Concurrency,
		JobTimeout:        cfg.Transcribe.JobTimeout,
		CaptionsDir:       cfg.Transcribe.CaptionsDir,
		CaptionsURLPrefix: cfg.Transcribe.CaptionsURLPrefix,
		MediaTypes:        media,
	}
	if err := runCfg.Validate(); err != nil {
		return err
	}

	items, err := loadTranscribeItems(ctx, f, cfg, media, logger)
	if err != nil {
		return err
	}
	status, err := transcribe.LoadStatus(cfg.Transcribe.StatusPath, nil)
	if err != nil {
		return err
	}
	cache, err := fetcher.NewCache(cfg.Fetch.CacheDir)
	if err != nil {
		return fmt.Errorf("open page cache: %w", err)
	}
	limiter := ratelimit.New(ratelimit.Config{Interval: cfg.Harvest.Delay})
	pages := fetcher.New(fetcher.Config{UserAgent: cfg.Fetch.UserAgent, Timeout: cfg.Fetch.Timeout},
		cache, limiter, logger.Named("fetcher"))

	appInstance.StartStatusServer(ctx, status, nil)

	orch := transcribe.New(runCfg, tools, pages, transcribe.ExecRunner{Logger: logger.Named("tools")},
		status, logger.Named("transcribe"))
	report, merged, err := orch.Run(ctx, items)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	if err := batch.WriteFile(f.out, merged); err != nil {
		return fmt.Errorf("write merged items: %w", err)
	}
	logger.Info("transcription run finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("skipped", report.Skipped),
		zap.Int("completed", report.Completed),
		zap.Int("failed", report.Failed),
	)

	if f.ingest {
		sum, err := ingestCatalog(ctx, appInstance, cfg,
			ingest.Sources{SkipLocal: true, Batches: []string{f.out}}, sqlite.ModeIncremental)
		if err != nil {
			return err
		}
		logger.Info("merged items ingested", zap.Int("items", sum.Items))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "transcribed %d, skipped %d, failed %d of %d candidates; wrote %s\n",
		report.Completed, report.Skipped, report.Failed, report.Candidates, f.out)
	return nil
}

func resolveTools(t config.TranscribeConfig, getenv func(string) string) (transcribe.Tools, error) {
	ffmpeg, err := resolveTool(ffmpegTool, t.FFmpegPath, getenv)
	if err != nil {
		return transcribe.Tools{}, err
	}
	asr, err := resolveTool(asrTool, t.ASRPath, getenv)
	if err != nil {
		return transcribe.Tools{}, err
	}
	model, err := resolveTool(asrModel, t.ASRModel, getenv)
	if err != nil {
		return transcribe.Tools{}, err
	}
	tools := transcribe.Tools{
		FFmpeg:   ffmpeg,
		ASR:      asr,
		Model:    model,
		Language: strings.TrimSpace(t.Language),
		Headers:  t.Headers,
	}
	if err := tools.Validate(); err != nil {
		return transcribe.Tools{}, err
	}
	return tools, nil
}

func loadTranscribeItems(ctx context.Context, f transcribeFlags, cfg config.Config, media []archive.MediaType, logger *zap.Logger) ([]archive.Item, error) {
	if !f.fromStore {
		items, err := batch.NewReader(sha256.New(), nil).ReadFile(f.source)
		if err != nil {
			return nil, err
		}
		return items, nil
	}
	store, err := sqlite.Open(ctx, cfg.Store.Path, logger.Named("store"))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("close catalog failed", zap.Error(cerr))
		}
	}()
	return store.Untranscribed(ctx, media)
}
