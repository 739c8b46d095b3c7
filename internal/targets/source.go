// Package targets fetches the line-delimited list of target names.
package targets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/testkube/simqueue/internal/app"
)

const maxListSize = 4 << 20

// Fetch loads the target list from an http(s) URL or a local file path.
func Fetch(ctx context.Context, source string) ([]string, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return fetchURL(ctx, source)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read target list: %w", err)
	}
	return app.ParseTargetList(string(data)), nil
}

func fetchURL(ctx context.Context, source string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("target list request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("target list returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxListSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read target list: %w", err)
	}
	if len(data) > maxListSize {
		return nil, fmt.Errorf("target list exceeds %d bytes", maxListSize)
	}
	return app.ParseTargetList(string(data)), nil
}
