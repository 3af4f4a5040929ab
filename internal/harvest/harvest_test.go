package harvest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-ingest/internal/archive"
	"github.com/JakeFAU/archive-ingest/internal/batch"
	"github.com/JakeFAU/archive-ingest/internal/classify"
	"github.com/JakeFAU/archive-ingest/internal/clock/system"
	"github.com/JakeFAU/archive-ingest/internal/fetcher"
	"github.com/JakeFAU/archive-ingest/internal/robots"
)

var harvestTime = system.Fixed(time.Date(2025, 10, 18, 14, 0, 0, 0, time.UTC))

func detailPage(canonical, title string) string {
	return fmt.Sprintf(`<html><head>
<link rel="canonical" href="%s">
<title>%s</title>
</head><body><h1>%s</h1><p>Plain page.</p></body></html>`, canonical, title, title)
}

type mapFetcher map[string]string

func (f mapFetcher) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	body, ok := f[rawURL]
	if !ok {
		return nil, &fetcher.StatusError{URL: rawURL, StatusCode: http.StatusNotFound}
	}
	return []byte(body), nil
}

type denyGate struct{ err error }

func (g denyGate) Check(context.Context, []string) error { return g.err }

func readOutput(t *testing.T, path string) []archive.Record {
	t.Helper()
	recs, err := batch.NewReader(nil, harvestTime.Now).ReadFile(path)
	require.NoError(t, err)
	out := make([]archive.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Record
	}
	return out
}

func TestRunWritesRecordsInSeedOrder(t *testing.T) {
	pages := mapFetcher{
		"https://archive.example.org/IO_1/":     detailPage("https://archive.example.org/IO_1/", "First"),
		"https://archive.example.org/IO_2/":     detailPage("https://archive.example.org/IO_2/", "Second"),
		"https://archive.example.org/IO_1/?x=1": detailPage("https://archive.example.org/IO_1/", "First again"),
	}
	seeds := SeedList{
		DefaultMedia: classify.DefaultGeneric,
		Seeds: []archive.SeedRecord{
			{URL: "https://archive.example.org/IO_1/"},
			{URL: "https://archive.example.org/missing/"},
			{URL: "https://archive.example.org/IO_2/", Collection: "Municipal Films", MediaType: archive.MediaVideo},
			{URL: "https://archive.example.org/IO_1/?x=1"},
		},
	}
	out := filepath.Join(t.TempDir(), "harvest", "records.jsonl")
	h := New(Config{Concurrency: 3, Output: out}, pages, nil, harvestTime, zap.NewNop())

	report, err := h.Run(context.Background(), seeds)
	require.NoError(t, err)
	assert.Equal(t, Report{Seeds: 4, Written: 2, Duplicates: 1, Failed: 1}, report)

	recs := readOutput(t, out)
	require.Len(t, recs, 2)
	id1, _ := archive.IdentityFromURL("https://archive.example.org/IO_1/")
	assert.Equal(t, id1, recs[0].ID)
	assert.Equal(t, "First", recs[0].Title)
	assert.Equal(t, archive.MediaText, recs[0].MediaType)
	assert.Equal(t, "Second", recs[1].Title)
	assert.Equal(t, "Municipal Films", recs[1].Collection)
	assert.Equal(t, archive.MediaVideo, recs[1].MediaType)
}

func TestRunUsesListDefaultMedia(t *testing.T) {
	pages := mapFetcher{"https://archive.example.org/IO_1/": detailPage("https://archive.example.org/IO_1/", "Film")}
	out := filepath.Join(t.TempDir(), "records.jsonl")
	h := New(Config{Concurrency: 1, Output: out}, pages, nil, harvestTime, nil)

	_, err := h.Run(context.Background(), SeedList{
		DefaultMedia: classify.DefaultDetail,
		Seeds:        []archive.SeedRecord{{URL: "https://archive.example.org/IO_1/"}},
	})
	require.NoError(t, err)
	assert.Equal(t, archive.MediaVideo, readOutput(t, out)[0].MediaType)
}

func TestRunStopsWhenGateRefuses(t *testing.T) {
	var fetched atomic.Int32
	pages := countingFetcher{count: &fetched}
	denied := &robots.DisallowedError{URL: "https://archive.example.org/private/", Agent: "test"}
	out := filepath.Join(t.TempDir(), "records.jsonl")
	h := New(Config{Concurrency: 1, Output: out}, pages, denyGate{err: denied}, harvestTime, nil)

	_, err := h.Run(context.Background(), SeedList{Seeds: []archive.SeedRecord{{URL: "https://archive.example.org/private/"}}})
	var disallowed *robots.DisallowedError
	require.True(t, errors.As(err, &disallowed))
	assert.Zero(t, fetched.Load())
	assert.NoFileExists(t, out)
}

type countingFetcher struct{ count *atomic.Int32 }

func (f countingFetcher) Fetch(context.Context, string) ([]byte, error) {
	f.count.Add(1)
	return nil, errors.New("should not be called")
}

func TestRunAgainstServerWithRobots(t *testing.T) {
	var pageHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private\nAllow: /private/public\n")
	})
	var srv *httptest.Server
	mux.HandleFunc("/private/public/item", func(w http.ResponseWriter, _ *http.Request) {
		pageHits.Add(1)
		_, _ = fmt.Fprint(w, detailPage(srv.URL+"/private/public/item", "Public item"))
	})
	mux.HandleFunc("/private/x", func(w http.ResponseWriter, _ *http.Request) {
		pageHits.Add(1)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := fetcher.New(fetcher.Config{UserAgent: "archive-ingest-test"}, nil, nil, zap.NewNop())
	gate := robots.NewGate("archive-ingest-test", nil, zap.NewNop())
	out := filepath.Join(t.TempDir(), "records.jsonl")
	h := New(Config{Concurrency: 2, Output: out}, f, gate, harvestTime, zap.NewNop())

	report, err := h.Run(context.Background(), SeedList{Seeds: []archive.SeedRecord{{URL: srv.URL + "/private/public/item"}}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Written)
	assert.Equal(t, "Public item", readOutput(t, out)[0].Title)

	_, err = h.Run(context.Background(), SeedList{Seeds: []archive.SeedRecord{
		{URL: srv.URL + "/private/public/item"},
		{URL: srv.URL + "/private/x"},
	}})
	var disallowed *robots.DisallowedError
	require.ErrorAs(t, err, &disallowed)
	assert.Equal(t, int32(1), pageHits.Load())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, Config{Concurrency: 1, Output: "out.jsonl"}.Validate())
	require.ErrorContains(t, Config{Output: "out.jsonl"}.Validate(), "concurrency")
	require.ErrorContains(t, Config{Concurrency: 1}.Validate(), "output")
}
