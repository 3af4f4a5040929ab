package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-ingest/internal/clock/system"
	"github.com/JakeFAU/archive-ingest/internal/fetcher"
	"github.com/JakeFAU/archive-ingest/internal/harvest"
	"github.com/JakeFAU/archive-ingest/internal/policy/ratelimit"
	"github.com/JakeFAU/archive-ingest/internal/robots"
)

type harvestFlags struct {
	seeds       string
	out         string
	concurrency int
	delay       time.Duration
	delayMS     int
	max         int
	cacheDir    string
}

func newHarvestCmd() *cobra.Command {
	var f harvestFlags
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Fetch seed detail pages and write normalized records as JSON lines",
		Long: `Reads a seed file (one URL per line, or YAML seed records with metadata
overrides), checks every seed against its origin's robots.txt, then fetches
and extracts each page through the on-disk cache. Failed seeds are logged
and counted; the run still writes every record it could build.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHarvest(cmd, f)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.seeds, "seeds", "", "seed file (.txt URL list or .yaml seed records)")
	flags.StringVar(&f.out, "out", "", "output JSONL path (default harvest.output)")
	flags.IntVar(&f.concurrency, "concurrency", 0, "pages fetched in parallel (default harvest.concurrency)")
	flags.DurationVar(&f.delay, "delay", 0, "minimum delay between requests to one origin (default harvest.delay)")
	flags.IntVar(&f.delayMS, "delay-ms", 0, "delay in milliseconds, same as --delay")
	flags.IntVar(&f.max, "max", 0, "harvest at most this many seeds")
	flags.StringVar(&f.cacheDir, "cache-dir", "", "page cache directory (default fetch.cache_dir)")
	_ = cmd.MarkFlagRequired("seeds")
	cmd.MarkFlagsMutuallyExclusive("delay", "delay-ms")
	return cmd
}

func runHarvest(cmd *cobra.Command, f harvestFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.GetConfig()
	logger := appInstance.GetLogger()
	flags := cmd.Flags()

	if flags.Changed("out") {
		cfg.Harvest.Output = f.out
	}
	if flags.Changed("concurrency") {
		cfg.Harvest.Concurrency = f.concurrency
	}
	if flags.Changed("delay") {
		cfg.Harvest.Delay = f.delay
	}
	if flags.Changed("delay-ms") {
		cfg.Harvest.Delay = time.Duration(f.delayMS) * time.Millisecond
	}
	if flags.Changed("max") {
		cfg.Harvest.Max = f.max
	}
	if flags.Changed("cache-dir") {
		cfg.Fetch.CacheDir = f.cacheDir
	}
	if cfg.Harvest.Delay < 0 {
		return fmt.Errorf("delay must be >= 0")
	}
	if cfg.Harvest.Max < 0 {
		return fmt.Errorf("max must be >= 0")
	}
	hcfg := harvest.Config{Concurrency: cfg.Harvest.Concurrency, Output: cfg.Harvest.Output}
	if err := hcfg.Validate(); err != nil {
		return err
	}

	seeds, err := harvest.LoadSeeds(f.seeds, cfg.Harvest.Max)
	if err != nil {
		return err
	}
	cache, err := fetcher.NewCache(cfg.Fetch.CacheDir)
	if err != nil {
		return fmt.Errorf("open page cache: %w", err)
	}
	limiter := ratelimit.New(ratelimit.Config{Interval: cfg.Harvest.Delay})
	pages := fetcher.New(fetcher.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Fetch.Timeout,
	}, cache, limiter, logger.Named("fetcher"))
	gate := robots.NewGate(cfg.Fetch.UserAgent, limiter, logger.Named("robots"))

	appInstance.StartStatusServer(cmd.Context(), nil, nil)

	logger.Info("harvest starting",
		zap.String("seeds", f.seeds),
		zap.Int("count", len(seeds.Seeds)),
		zap.Int("concurrency", hcfg.Concurrency),
		zap.Duration("delay", cfg.Harvest.Delay),
	)
	h := harvest.New(hcfg, pages, gate, system.New(), logger.Named("harvest"))
	report, err := h.Run(cmd.Context(), seeds)
	if err != nil {
		return fmt.Errorf("harvest: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "harvested %d of %d seeds into %s (%d duplicates, %d failed)\n",
		report.Written, report.Seeds, hcfg.Output, report.Duplicates, report.Failed)
	return nil
}
