// Package sqlite persists archival items in a SQLite catalog with a
// row-synchronized FTS5 index.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/archive-ingest/internal/archive"
	"github.com/JakeFAU/archive-ingest/internal/logging"
	"github.com/JakeFAU/archive-ingest/internal/metrics"
)

const driverName = "sqlite"

var (
	//go:embed migrations/*.sql
	migrations embed.FS

	// goose keeps its base FS and dialect in package globals.
	migrateMu sync.Mutex
)

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// ErrNotFound is returned when an item id has no row.
var ErrNotFound = errors.New("item not found")

// Mode selects how Write treats existing rows.
type Mode string

const (
	// ModeRebuild replaces the whole catalog.
	ModeRebuild Mode = "rebuild"
	// ModeIncremental upserts the given rows and reindexes them.
	ModeIncremental Mode = "incremental"
)

// ParseMode validates a mode name.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeRebuild:
		return ModeRebuild, nil
	case ModeIncremental:
		return ModeIncremental, nil
	default:
		return "", fmt.Errorf("unknown ingest mode %q (want rebuild or incremental)", raw)
	}
}

// Store is the catalog. It is the only writer of its database file.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the catalog at path and applies
// migrations.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := path
	memory := path == ":memory:"
	if memory {
		dsn = "file::memory:?cache=shared"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	raw, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps transactions and FTS writes serialized.
	raw.SetMaxOpenConns(1)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	pragmas := []string{"PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := raw.ExecContext(ctx, pragma); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if err := migrate(raw, logger); err != nil {
		_ = raw.Close()
		return nil, err
	}

	return &Store{db: sqlx.NewDb(raw, driverName), logger: logger.Named("store")}, nil
}

func migrate(db *sql.DB, logger *zap.Logger) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(logging.NewPrintf(logger.Named("migrate")))
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Result summarizes one Write.
type Result struct {
	Items       int
	Collections int
}

// Write stores items in a single transaction. In rebuild mode the catalog is
// cleared first; in incremental mode only the given rows change. Each row's
// index entry is removed before the row changes and re-added after, so the
// index never references a missing row. Collections are derived from the
// written items and upserted.
func (s *Store) Write(ctx context.Context, items []archive.Item, mode Mode) (res Result, err error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return Result{}, err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if mode == ModeRebuild {
		for _, stmt := range []string{
			`INSERT INTO items_fts(items_fts) VALUES('delete-all')`,
			`DELETE FROM items`,
			`DELETE FROM collections`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return Result{}, fmt.Errorf("clear catalog: %w", err)
			}
		}
	}

	collections := make(map[string]archive.Collection)
	var order []string
	for i := range items {
		row, err := toRow(items[i])
		if err != nil {
			return Result{}, err
		}
		if _, err := tx.ExecContext(ctx, deleteFTSQuery, row.ID); err != nil {
			return Result{}, fmt.Errorf("unindex item %s: %w", row.ID, err)
		}
		if _, err := tx.NamedExecContext(ctx, upsertItemQuery, row); err != nil {
			return Result{}, fmt.Errorf("upsert item %s: %w", row.ID, err)
		}
		if _, err := tx.ExecContext(ctx, insertFTSQuery, row.ID); err != nil {
			return Result{}, fmt.Errorf("index item %s: %w", row.ID, err)
		}
		if c := strings.TrimSpace(items[i].Collection); c != "" {
			if _, ok := collections[c]; !ok {
				collections[c] = archive.Collection{ID: c, Title: HumanizeCollection(c)}
				order = append(order, c)
			}
		}
	}

	for _, id := range order {
		if _, err := tx.NamedExecContext(ctx, upsertCollectionQuery, collectionRow(collections[id])); err != nil {
			return Result{}, fmt.Errorf("upsert collection %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit catalog: %w", err)
	}
	metrics.ObserveIngest(string(mode), len(items))
	s.logger.Info("catalog written",
		zap.String("mode", string(mode)),
		zap.Int("items", len(items)),
		zap.Int("collections", len(order)),
	)
	return Result{Items: len(items), Collections: len(order)}, nil
}

// Items returns every item ordered by id.
func (s *Store) Items(ctx context.Context) ([]archive.Item, error) {
	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+itemColumns+` FROM items ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	return fromRows(rows)
}

// Item returns one item by id.
func (s *Store) Item(ctx context.Context, id string) (archive.Item, error) {
	var row itemRow
	err := s.db.GetContext(ctx, &row, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return archive.Item{}, ErrNotFound
	}
	if err != nil {
		return archive.Item{}, fmt.Errorf("select item %s: %w", id, err)
	}
	return row.toItem()
}

// Untranscribed returns items of the given media types that have no
// transcript yet, ordered by id.
func (s *Store) Untranscribed(ctx context.Context, kinds []archive.MediaType) ([]archive.Item, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	query, args, err := sqlx.In(`SELECT `+itemColumns+` FROM items
WHERE media_type IN (?) AND (transcript_text IS NULL OR transcript_text = '')
ORDER BY id`, names)
	if err != nil {
		return nil, fmt.Errorf("build untranscribed query: %w", err)
	}
	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select untranscribed items: %w", err)
	}
	return fromRows(rows)
}

// Collections returns every collection ordered by id.
func (s *Store) Collections(ctx context.Context) ([]archive.Collection, error) {
	var rows []struct {
		ID          string         `db:"id"`
		Title       string         `db:"title"`
		Description sql.NullString `db:"description"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, title, description FROM collections ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select collections: %w", err)
	}
	out := make([]archive.Collection, 0, len(rows))
	for _, r := range rows {
		out = append(out, archive.Collection{ID: r.ID, Title: r.Title, Description: r.Description.String})
	}
	return out, nil
}

// Search runs an FTS5 match query and returns items best match first.
func (s *Store) Search(ctx context.Context, match string, limit int) ([]archive.Item, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []itemRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+prefixed("i.", itemColumns)+`
FROM items_fts JOIN items i ON i.rowid = items_fts.rowid
WHERE items_fts MATCH ?
ORDER BY rank
LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	return fromRows(rows)
}

// Counts reports the number of item rows and index documents.
func (s *Store) Counts(ctx context.Context) (items, indexed int, err error) {
	if err := s.db.GetContext(ctx, &items, `SELECT count(*) FROM items`); err != nil {
		return 0, 0, fmt.Errorf("count items: %w", err)
	}
	if err := s.db.GetContext(ctx, &indexed, `SELECT count(*) FROM items_fts_docsize`); err != nil {
		return 0, 0, fmt.Errorf("count index: %w", err)
	}
	return items, indexed, nil
}

// CheckIntegrity verifies the index matches the item rows.
func (s *Store) CheckIntegrity(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO items_fts(items_fts, rank) VALUES('integrity-check', 1)`); err != nil {
		return fmt.Errorf("index integrity: %w", err)
	}
	return nil
}

// HumanizeCollection turns a collection id such as "city_hall-photos" into
// "City Hall Photos".
func HumanizeCollection(id string) string {
	words := strings.Split(strings.NewReplacer("-", " ", "_", " ").Replace(id), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func encodeList(values []string) (sql.NullString, error) {
	if len(values) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode list: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeList(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
