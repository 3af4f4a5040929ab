// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/archive-ingest/internal/archive"
)

// Config captures every configuration knob, loaded from file, environment,
// and defaults. Command flags override these values.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Harvest    HarvestConfig    `mapstructure:"harvest"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Store      StoreConfig      `mapstructure:"store"`
	Transcribe TranscribeConfig `mapstructure:"transcribe"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// FetchConfig controls the page fetcher shared by harvest and transcribe.
type FetchConfig struct {
	UserAgent string        `mapstructure:"user_agent"`
	CacheDir  string        `mapstructure:"cache_dir"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// HarvestConfig governs seed harvesting.
type HarvestConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Delay       time.Duration `mapstructure:"delay"`
	Max         int           `mapstructure:"max"`
	Output      string        `mapstructure:"output"`
}

// IngestConfig governs local and batch ingestion.
type IngestConfig struct {
	Root         string `mapstructure:"root"`
	Mode         string `mapstructure:"mode"`
	ThumbnailDir string `mapstructure:"thumbnail_dir"`
	ExportPath   string `mapstructure:"export_path"`
}

// StoreConfig locates the catalog store and its optional mirror.
type StoreConfig struct {
	Path        string `mapstructure:"path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// TranscribeConfig governs the transcription orchestrator and its tools.
type TranscribeConfig struct {
	Concurrency       int           `mapstructure:"concurrency"`
	JobTimeout        time.Duration `mapstructure:"job_timeout"`
	StatusPath        string        `mapstructure:"status_path"`
	CaptionsDir       string        `mapstructure:"captions_dir"`
	CaptionsURLPrefix string        `mapstructure:"captions_url_prefix"`
	MediaTypes        []string      `mapstructure:"media_types"`
	FFmpegPath        string        `mapstructure:"ffmpeg_path"`
	ASRPath           string        `mapstructure:"asr_path"`
	ASRModel          string        `mapstructure:"asr_model"`
	Language          string        `mapstructure:"language"`
	Headers           []string      `mapstructure:"headers"`
}

// MetricsConfig enables the status server when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARCHIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindCompatEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// bindCompatEnv keeps the variable names older deployments export working.
// The prefixed name is listed first so it wins when both are set.
func bindCompatEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"store.path":  {"ARCHIVE_STORE_PATH", "COLLECTIONS_DB_PATH"},
		"ingest.root": {"ARCHIVE_INGEST_ROOT", "COLLECTIONS_ROOT"},
	}
	for key, names := range bindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("fetch.user_agent", "archive-ingest/0.2 (+mailto:archives-tech@records.nyc.gov)")
	v.SetDefault("fetch.cache_dir", ".cache/pages")
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("harvest.concurrency", 2)
	v.SetDefault("harvest.delay", 750*time.Millisecond)
	v.SetDefault("harvest.max", 0)
	v.SetDefault("harvest.output", "data/harvest/records.jsonl")
	v.SetDefault("ingest.root", "2025-10-18")
	v.SetDefault("ingest.mode", "rebuild")
	v.SetDefault("ingest.thumbnail_dir", "public/thumbnails")
	v.SetDefault("ingest.export_path", "")
	v.SetDefault("store.path", "data/collections.db")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("transcribe.concurrency", 1)
	v.SetDefault("transcribe.job_timeout", 2*time.Hour)
	v.SetDefault("transcribe.status_path", "data/transcribe/status.json")
	v.SetDefault("transcribe.captions_dir", "public/captions")
	v.SetDefault("transcribe.captions_url_prefix", "/captions")
	v.SetDefault("transcribe.media_types", []string{"audio", "video"})
	v.SetDefault("transcribe.ffmpeg_path", "")
	v.SetDefault("transcribe.asr_path", "")
	v.SetDefault("transcribe.asr_model", "")
	v.SetDefault("transcribe.language", "")
	v.SetDefault("transcribe.headers", []string{})
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Fetch.UserAgent == "" {
		return fmt.Errorf("fetch.user_agent must be set")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Harvest.Concurrency <= 0 {
		return fmt.Errorf("harvest.concurrency must be > 0")
	}
	if c.Harvest.Delay < 0 {
		return fmt.Errorf("harvest.delay must be >= 0")
	}
	if c.Harvest.Max < 0 {
		return fmt.Errorf("harvest.max must be >= 0")
	}
	if c.Ingest.Mode != "rebuild" && c.Ingest.Mode != "incremental" {
		return fmt.Errorf("ingest.mode must be rebuild or incremental, got %q", c.Ingest.Mode)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must be set")
	}
	if c.Transcribe.Concurrency <= 0 {
		return fmt.Errorf("transcribe.concurrency must be > 0")
	}
	if c.Transcribe.JobTimeout < 0 {
		return fmt.Errorf("transcribe.job_timeout must be >= 0")
	}
	if _, err := c.Transcribe.Media(); err != nil {
		return err
	}
	return nil
}

// Media parses the configured transcription media types.
func (t TranscribeConfig) Media() ([]archive.MediaType, error) {
	out := make([]archive.MediaType, 0, len(t.MediaTypes))
	for _, raw := range t.MediaTypes {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			m, ok := archive.ParseMediaType(part)
			if !ok || !m.Playable() {
				return nil, fmt.Errorf("transcribe.media_types: %q is not audio or video", strings.TrimSpace(part))
			}
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("transcribe.media_types must not be empty")
	}
	return out, nil
}
