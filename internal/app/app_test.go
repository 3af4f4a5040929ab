package app_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-ingest/internal/app"
	"github.com/JakeFAU/archive-ingest/internal/config"
)

type fixedIDs struct {
	id  string
	err error
}

func (f fixedIDs) NewID() (string, error) { return f.id, f.err }

func TestNewAppLoadsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("harvest:\n  concurrency: 5\n"), 0o600))

	a, err := app.NewApp(app.Options{ConfigPath: path, Command: "harvest", IDs: fixedIDs{id: "run-1"}})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Equal(t, "run-1", a.GetRunID())
	assert.Equal(t, 5, a.GetConfig().Harvest.Concurrency)
	assert.NotNil(t, a.GetLogger())
}

func TestNewAppFailsFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("harvest:\n  concurrency: 0\n"), 0o600))

	_, err := app.NewApp(app.Options{ConfigPath: path})
	require.ErrorContains(t, err, "harvest.concurrency must be > 0")

	_, err = app.NewApp(app.Options{IDs: fixedIDs{err: errors.New("entropy exhausted")}})
	require.ErrorContains(t, err, "entropy exhausted")
}

func TestStatusServerLifecycle(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := config.Config{Metrics: config.MetricsConfig{Addr: addr}}
	a := app.New(cfg, zap.NewNop(), "run-2")
	a.StartStatusServer(context.Background(), nil, nil)

	url := fmt.Sprintf("http://%s/healthz", addr)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	a.Close()
	_, err = http.Get(url)
	assert.Error(t, err)
}

func TestStatusServerDisabledWithoutAddr(t *testing.T) {
	a := app.New(config.Config{}, nil, "run-3")
	a.StartStatusServer(context.Background(), nil, nil)
	a.Close()
}
