// Package postgres mirrors the catalog into Postgres for hosted readers.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-ingest/internal/archive"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool and target tables.
type Config struct {
	DSN              string
	ItemsTable       string
	CollectionsTable string
	MaxConns         int32
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// Mirror upserts items and collections into Postgres.
type Mirror struct {
	pool        pool
	items       string
	collections string
	logger      *zap.Logger
}

// New connects to Postgres and ensures the mirror tables exist.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Mirror, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres_dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	m, err := NewWithPool(p, cfg.ItemsTable, cfg.CollectionsTable, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := m.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return m, nil
}

// NewWithPool constructs a mirror from an existing pool (primarily for testing).
func NewWithPool(p pool, itemsTable, collectionsTable string, logger *zap.Logger) (*Mirror, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if itemsTable == "" {
		itemsTable = "archive_items"
	}
	if collectionsTable == "" {
		collectionsTable = "archive_collections"
	}
	for _, table := range []string{itemsTable, collectionsTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{pool: p, items: itemsTable, collections: collectionsTable, logger: logger.Named("mirror")}, nil
}

// Close releases the underlying pool resources.
func (m *Mirror) Close() {
	if m == nil || m.pool == nil {
		return
	}
	m.pool.Close()
}

// EnsureSchema creates the mirror tables when missing.
func (m *Mirror) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	date TEXT,
	creators TEXT[] NOT NULL DEFAULT '{}',
	subjects TEXT[] NOT NULL DEFAULT '{}',
	collection TEXT,
	series TEXT,
	source_url TEXT,
	media_type TEXT NOT NULL,
	duration_sec DOUBLE PRECISION,
	thumbnail TEXT,
	rights TEXT,
	citation TEXT,
	advisory BOOLEAN NOT NULL DEFAULT FALSE,
	checksum_sha256 TEXT NOT NULL,
	added_at TIMESTAMPTZ,
	media_url TEXT,
	transcript_text TEXT,
	captions_vtt_path TEXT,
	captions_srt_path TEXT
)`, m.items),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT
)`, m.collections),
	}
	for _, stmt := range statements {
		if _, err := m.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure mirror schema: %w", err)
		}
	}
	return nil
}

// Sync upserts items and their collections in one transaction. It is
// idempotent, so a failed sync is repaired by the next one.
func (m *Mirror) Sync(ctx context.Context, items []archive.Item, collections []archive.Collection) (err error) {
	if m == nil || m.pool == nil {
		return fmt.Errorf("mirror is not configured")
	}
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin mirror transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				m.logger.Error("mirror rollback failed", zap.Error(rbErr))
			}
		}
	}()

	itemQuery := fmt.Sprintf(`
INSERT INTO %s (
	id, title, description, date, creators, subjects, collection, series, source_url,
	media_type, duration_sec, thumbnail, rights, citation, advisory, checksum_sha256,
	added_at, media_url, transcript_text, captions_vtt_path, captions_srt_path
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21
)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	date = EXCLUDED.date,
	creators = EXCLUDED.creators,
	subjects = EXCLUDED.subjects,
	collection = EXCLUDED.collection,
	series = EXCLUDED.series,
	source_url = EXCLUDED.source_url,
	media_type = EXCLUDED.media_type,
	duration_sec = EXCLUDED.duration_sec,
	thumbnail = EXCLUDED.thumbnail,
	rights = EXCLUDED.rights,
	citation = EXCLUDED.citation,
	advisory = EXCLUDED.advisory,
	checksum_sha256 = EXCLUDED.checksum_sha256,
	added_at = EXCLUDED.added_at,
	media_url = EXCLUDED.media_url,
	transcript_text = EXCLUDED.transcript_text,
	captions_vtt_path = EXCLUDED.captions_vtt_path,
	captions_srt_path = EXCLUDED.captions_srt_path`, m.items)

	for i := range items {
		if _, err := tx.Exec(ctx, itemQuery, itemArgs(items[i])...); err != nil {
			return fmt.Errorf("mirror item %s: %w", items[i].ID, err)
		}
	}

	collectionQuery := fmt.Sprintf(`
INSERT INTO %s (id, title, description) VALUES ($1,$2,$3)
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description`, m.collections)
	for _, c := range collections {
		if _, err := tx.Exec(ctx, collectionQuery, c.ID, c.Title, optional(c.Description)); err != nil {
			return fmt.Errorf("mirror collection %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit mirror transaction: %w", err)
	}
	m.logger.Info("mirror synced", zap.Int("items", len(items)), zap.Int("collections", len(collections)))
	return nil
}

func itemArgs(item archive.Item) []any {
	return []any{
		item.ID,
		item.Title,
		optional(item.Description),
		optional(item.Date),
		list(item.Creators),
		list(item.Subjects),
		optional(item.Collection),
		optional(item.Series),
		optional(item.SourceURL),
		string(item.MediaType),
		item.DurationSec,
		optional(item.Thumbnail),
		optional(item.Rights),
		optional(item.Citation),
		item.Advisory,
		item.ChecksumSHA256,
		addedAt(item.AddedAt),
		optional(item.MediaURL),
		optional(item.TranscriptText),
		optional(item.CaptionsVTTPath),
		optional(item.CaptionsSRTPath),
	}
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func list(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func addedAt(raw string) *time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &t
}
