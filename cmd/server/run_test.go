package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testkube/simqueue/internal/config"
)

// targetSite serves every page under the listed targets and 404s the rest.
func targetSite(t *testing.T, healthy ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, name := range healthy {
			if strings.HasPrefix(r.URL.Path, "/"+name+"/") {
				w.Write([]byte("<html></html>"))
				return
			}
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func probeConfig(baseURL string, targets ...string) config.Config {
	return config.Config{
		Concurrency:   2,
		Timeout:       2 * time.Second,
		Dev:           true,
		Build:         true,
		Built:         true,
		WaitForTests:  false,
		Targets:       targets,
		ShardGroups:   1,
		BaseURL:       baseURL + "/",
		MockBuilds:    true,
		Context:       config.ContextProbe,
		Listen:        "127.0.0.1:0",
		Database:      config.DatabaseConfig{Driver: "none"},
		FlushInterval: 10 * time.Millisecond,
		ExitOnDrain:   true,
	}
}

func TestRunDrainsAndExits(t *testing.T) {
	site := targetSite(t, "a", "b")
	cfg := probeConfig(site.URL, "a", "b")
	cfg.Database = config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	assert.NoError(t, run(ctx, cfg, zap.NewNop()))
}

func TestRunReportsFailures(t *testing.T) {
	site := targetSite(t, "a")
	cfg := probeConfig(site.URL, "a", "missing")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	assert.ErrorIs(t, run(ctx, cfg, zap.NewNop()), errRunFailed)
}

func TestResolveTargetsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\nd\n"), 0o644))

	cfg := config.Config{TargetList: path, Exclude: []string{"b"}, ShardGroups: 2, ShardIndex: 1}
	names, err := resolveTargets(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, names)
}

func TestResolveTargetsOverrideSkipsList(t *testing.T) {
	cfg := config.Config{TargetList: "/does/not/exist", Targets: []string{"x", "y"}, ShardGroups: 1}
	names, err := resolveTargets(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, names)
}

func TestResolveTargetsEmpty(t *testing.T) {
	cfg := config.Config{Targets: []string{"a"}, Exclude: []string{"a"}, ShardGroups: 1}
	_, err := resolveTargets(context.Background(), cfg)
	assert.Error(t, err)
}

func TestHostURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/host", hostURL(":8080"))
	assert.Equal(t, "http://10.0.0.1:9000/host", hostURL("10.0.0.1:9000"))
}
