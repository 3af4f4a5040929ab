package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-ingest/internal/archive"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "collections.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleItems() []archive.Item {
	dur := 205.0
	return []archive.Item{
		{
			Record: archive.Record{
				ID: "vid1", Title: "Sample Video Object", Description: "Parade footage",
				Creators: []string{"Jane Doe", "John Roe"}, Subjects: []string{"parades", "bridges"},
				Collection: "municipal-film_archive", MediaType: archive.MediaVideo, DurationSec: &dur,
				ChecksumSHA256: "c1", AddedAt: "2025-10-18T00:00:00.000Z", SourceURL: "https://example.org/v1",
			},
		},
		{
			Record: archive.Record{
				ID: "doc1", Title: "Council minutes", Collection: "council",
				MediaType: archive.MediaPDF, ChecksumSHA256: "c2", AddedAt: "2025-10-18T00:00:00.000Z",
				Advisory: true, Rights: "Contains potentially harmful content.",
			},
			LocalPath: "2025-10-18/council/minutes.pdf",
			OCRText:   "The council convened at noon.",
		},
		{
			Record: archive.Record{
				ID: "aud1", Title: "Oral history", MediaType: archive.MediaAudio,
				ChecksumSHA256: "c3", AddedAt: "2025-10-18T00:00:00.000Z",
			},
		},
	}
}

func assertConsistent(t *testing.T, s *Store, wantItems int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CheckIntegrity(ctx))
	items, indexed, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantItems, items)
	assert.Equal(t, wantItems, indexed)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	m, err := ParseMode(" Incremental ")
	require.NoError(t, err)
	assert.Equal(t, ModeIncremental, m)

	_, err = ParseMode("append")
	assert.Error(t, err)
}

func TestWriteRebuildRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	res, err := s.Write(ctx, sampleItems(), ModeRebuild)
	require.NoError(t, err)
	assert.Equal(t, Result{Items: 3, Collections: 2}, res)
	assertConsistent(t, s, 3)

	got, err := s.Item(ctx, "vid1")
	require.NoError(t, err)
	assert.Equal(t, sampleItems()[0], got)

	doc, err := s.Item(ctx, "doc1")
	require.NoError(t, err)
	assert.True(t, doc.Advisory)
	assert.Equal(t, "2025-10-18/council/minutes.pdf", doc.LocalPath)
	assert.Nil(t, doc.DurationSec)

	collections, err := s.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []archive.Collection{
		{ID: "council", Title: "Council"},
		{ID: "municipal-film_archive", Title: "Municipal Film Archive"},
	}, collections)

	_, err = s.Item(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReingestIsIdempotent(t *testing.T) {
	t.Parallel()

	for _, mode := range []Mode{ModeRebuild, ModeIncremental} {
		t.Run(string(mode), func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			s := openTestStore(t)
			_, err := s.Write(ctx, sampleItems(), mode)
			require.NoError(t, err)
			assertConsistent(t, s, 3)

			_, err = s.Write(ctx, sampleItems(), mode)
			require.NoError(t, err)
			assertConsistent(t, s, 3)

			hits, err := s.Search(ctx, "parade*", 10)
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, "vid1", hits[0].ID)
		})
	}
}

func TestIncrementalReindexesChangedRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	_, err := s.Write(ctx, sampleItems(), ModeRebuild)
	require.NoError(t, err)

	updated := sampleItems()[2]
	updated.TranscriptText = "We walked across the Brooklyn Bridge."
	updated.CaptionsVTTPath = "/captions/aud1.vtt"
	_, err = s.Write(ctx, []archive.Item{updated}, ModeIncremental)
	require.NoError(t, err)
	assertConsistent(t, s, 3)

	hits, err := s.Search(ctx, "brooklyn", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "aud1", hits[0].ID)
	assert.Equal(t, "/captions/aud1.vtt", hits[0].CaptionsVTTPath)

	updated.TranscriptText = "Replaced transcript."
	_, err = s.Write(ctx, []archive.Item{updated}, ModeIncremental)
	require.NoError(t, err)
	assertConsistent(t, s, 3)

	hits, err = s.Search(ctx, "brooklyn", 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "stale index terms are removed")
}

func TestRebuildReplacesContents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	_, err := s.Write(ctx, sampleItems(), ModeRebuild)
	require.NoError(t, err)

	_, err = s.Write(ctx, sampleItems()[:1], ModeRebuild)
	require.NoError(t, err)
	assertConsistent(t, s, 1)

	collections, err := s.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, collections, 1)
}

func TestIncrementalKeepsCollections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	_, err := s.Write(ctx, sampleItems(), ModeIncremental)
	require.NoError(t, err)
	_, err = s.Write(ctx, sampleItems()[2:], ModeIncremental)
	require.NoError(t, err)

	collections, err := s.Collections(ctx)
	require.NoError(t, err)
	assert.Len(t, collections, 2)
}

func TestWriteIsAtomic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	_, err := s.Write(ctx, sampleItems(), ModeRebuild)
	require.NoError(t, err)

	bad := append(sampleItems()[:1], archive.Item{Record: archive.Record{ID: "x", Title: "X", MediaType: "film"}})
	_, err = s.Write(ctx, bad, ModeRebuild)
	require.Error(t, err)
	assertConsistent(t, s, 3)
}

func TestDuplicateIDsLastWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	first := sampleItems()[0]
	second := first
	second.Title = "Superseded title"
	_, err := s.Write(ctx, []archive.Item{first, second}, ModeRebuild)
	require.NoError(t, err)
	assertConsistent(t, s, 1)

	got, err := s.Item(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Superseded title", got.Title)
}

func TestUntranscribed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	items := sampleItems()
	items[0].TranscriptText = "already done"
	_, err := s.Write(ctx, items, ModeRebuild)
	require.NoError(t, err)

	pending, err := s.Untranscribed(ctx, []archive.MediaType{archive.MediaAudio, archive.MediaVideo})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "aud1", pending[0].ID)

	none, err := s.Untranscribed(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReopenKeepsData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "collections.db")
	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	_, err = s.Write(ctx, sampleItems(), ModeRebuild)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	assertConsistent(t, s, 3)
}

func TestHumanizeCollection(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "City Hall Photos", HumanizeCollection("city_hall-photos"))
	assert.Equal(t, "Already Titled", HumanizeCollection("Already Titled"))
	assert.Equal(t, "A  B", HumanizeCollection("a__b"))
}
