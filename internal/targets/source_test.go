package targets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chipper/data/active-runnables" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("acid-base-solutions\r\narea-builder\n\nballoons-and-static-electricity\n"))
	}))
	defer ts.Close()

	names, err := Fetch(context.Background(), ts.URL+"/chipper/data/active-runnables")
	require.NoError(t, err)
	assert.Equal(t, []string{"acid-base-solutions", "area-builder", "balloons-and-static-electricity"}, names)

	_, err = Fetch(context.Background(), ts.URL+"/missing")
	assert.Error(t, err)
}

func TestFetchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "active-runnables")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\n"), 0o644))

	names, err := Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	_, err = Fetch(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestFetchURLRejectsOversizedList(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a\n", maxListSize/2+1)))
	}))
	defer ts.Close()

	_, err := Fetch(context.Background(), ts.URL+"/list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestFetchURLAcceptsListAtLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a\n", maxListSize/2)))
	}))
	defer ts.Close()

	names, err := Fetch(context.Background(), ts.URL+"/list")
	require.NoError(t, err)
	assert.Len(t, names, maxListSize/2)
}
