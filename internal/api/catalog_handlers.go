package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-ingest/internal/archive"
	"github.com/JakeFAU/archive-ingest/internal/storage/sqlite"
)

const (
	defaultSearchLimit = 25
	maxSearchLimit     = 200
	catalogTimeout     = 3 * time.Second
)

// Catalog is the read side of the item store.
type Catalog interface {
	Search(ctx context.Context, match string, limit int) ([]archive.Item, error)
	Item(ctx context.Context, id string) (archive.Item, error)
	Collections(ctx context.Context) ([]archive.Collection, error)
}

// CatalogHandler exposes read-only catalog endpoints.
type CatalogHandler struct {
	catalog Catalog
	timeout time.Duration
	logger  *zap.Logger
}

// NewCatalogHandler wires the catalog and logger.
func NewCatalogHandler(catalog Catalog, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{
		catalog: catalog,
		timeout: catalogTimeout,
		logger:  logger,
	}
}

// Search handles GET /v1/items?q=&limit=. Every whitespace-separated term
// must appear somewhere in the indexed text.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	match := matchExpression(r.URL.Query().Get("q"))
	if match == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, err := parseLimit(r, defaultSearchLimit, maxSearchLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	items, err := h.catalog.Search(ctx, match, limit)
	if err != nil {
		h.logger.Error("search items failed", zap.String("match", match), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to search items")
		return
	}
	if items == nil {
		items = []archive.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GetItem handles GET /v1/items/{item_id}.
func (h *CatalogHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	id := chi.URLParam(r, "item_id")
	if len(id) != archive.IDLength {
		writeError(w, http.StatusBadRequest, "invalid item_id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	item, err := h.catalog.Item(ctx, id)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		h.logger.Error("get item failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

// ListCollections handles GET /v1/collections.
func (h *CatalogHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	collections, err := h.catalog.Collections(ctx)
	if err != nil {
		h.logger.Error("list collections failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list collections")
		return
	}
	if collections == nil {
		collections = []archive.Collection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": collections})
}

// matchExpression quotes each term so user input never reaches the FTS
// query syntax.
func matchExpression(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	limStr := r.URL.Query().Get("limit")
	if limStr == "" {
		return def, nil
	}
	val, err := strconv.Atoi(limStr)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	if val > maxLimit {
		val = maxLimit
	}
	return val, nil
}
