// Package sandbox provides execution contexts targets are loaded into.
package sandbox

import (
	"context"
	"sync"
	"time"

	"github.com/testkube/simqueue/internal/app"
)

const blankURL = "about:blank"

// FrameState is what the host page polls to decide what its iframe shows.
type FrameState struct {
	URL        string    `json:"url"`
	Target     string    `json:"target,omitempty"`
	Built      bool      `json:"built"`
	Generation uint64    `json:"generation"`
	Revision   uint64    `json:"revision"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Frame is an execution context rendered by a browser: the host page loads
// whatever Frame currently points at and posts target signals back.
type Frame struct {
	mu    sync.RWMutex
	state FrameState
	clock func() time.Time
}

func NewFrame() *Frame {
	f := &Frame{clock: time.Now}
	f.state = FrameState{URL: blankURL, UpdatedAt: f.clock()}
	return f
}

func (f *Frame) Load(ctx context.Context, req app.LoadRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = FrameState{
		URL:        req.URL,
		Target:     req.Task.TargetName,
		Built:      req.Task.IsBuiltArtifact,
		Generation: req.Generation,
		Revision:   f.state.Revision + 1,
		UpdatedAt:  f.clock(),
	}
	return nil
}

func (f *Frame) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = FrameState{
		URL:        blankURL,
		Generation: f.state.Generation,
		Revision:   f.state.Revision + 1,
		UpdatedAt:  f.clock(),
	}
	return nil
}

// State returns what the frame should currently display.
func (f *Frame) State() FrameState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}
