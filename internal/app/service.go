package app

import "context"

// LoadRequest instructs an execution context to navigate to a target.
// Generation increases with every load so late signals from a replaced
// context can be told apart from current ones.
type LoadRequest struct {
	Task       TestTask `json:"task"`
	URL        string   `json:"url"`
	Generation uint64   `json:"generation"`
}

// ExecutionContext defines the operations we need from the isolated
// environment targets are loaded into. Signals flow back separately.
type ExecutionContext interface {
	Load(ctx context.Context, req LoadRequest) error
	Reset(ctx context.Context) error
}
