package buildservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/testkube/simqueue/internal/app"
)

type RealClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRealClient creates a client for the build service rooted at baseURL,
// e.g. http://localhost:45361/
func NewRealClient(baseURL string, timeout time.Duration) (*RealClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid build service url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid build service url %q: scheme must be http or https", baseURL)
	}

	return &RealClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (c *RealClient) Build(ctx context.Context, req app.BuildRequest) (app.BuildResult, error) {
	apiURL := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(req.TargetName))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return app.BuildResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return app.BuildResult{}, fmt.Errorf("build request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return app.BuildResult{}, fmt.Errorf("build service returned %d: %s", resp.StatusCode, string(body))
	}

	// The service answers with {sim, success, output}; targetName is accepted too.
	var apiResponse struct {
		Sim        string `json:"sim"`
		TargetName string `json:"targetName"`
		Success    bool   `json:"success"`
		Output     string `json:"output"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return app.BuildResult{}, fmt.Errorf("failed to parse response: %w", err)
	}

	name := apiResponse.Sim
	if name == "" {
		name = apiResponse.TargetName
	}

	result := app.BuildResult{
		TargetName: req.TargetName,
		Success:    apiResponse.Success,
		Output:     apiResponse.Output,
	}
	if name != req.TargetName {
		result.Success = false
		result.Output = fmt.Sprintf("build service answered for %q instead of %q\n%s", name, req.TargetName, apiResponse.Output)
	}
	return result, nil
}
