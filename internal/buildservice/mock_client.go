package buildservice

import (
	"context"
	"sync"
	"time"

	"github.com/testkube/simqueue/internal/app"
)

// MockClient answers builds in-process. Targets listed in failures fail with
// the mapped output; everything else succeeds after delay.
type MockClient struct {
	mu       sync.Mutex
	delay    time.Duration
	failures map[string]string
	requests []string
}

func NewMockClient(delay time.Duration, failures map[string]string) *MockClient {
	if failures == nil {
		failures = map[string]string{}
	}
	return &MockClient{
		delay:    delay,
		failures: failures,
	}
}

func (c *MockClient) Build(ctx context.Context, req app.BuildRequest) (app.BuildResult, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req.TargetName)
	output, fail := c.failures[req.TargetName]
	c.mu.Unlock()

	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return app.BuildResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	if fail {
		return app.BuildResult{TargetName: req.TargetName, Success: false, Output: output}, nil
	}
	return app.BuildResult{
		TargetName: req.TargetName,
		Success:    true,
		Output:     "Done, without errors.",
	}, nil
}

// Requests returns the target names built so far, in request order.
func (c *MockClient) Requests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.requests...)
}
