package buildservice

import (
	"context"

	"github.com/testkube/simqueue/internal/app"
)

// Client issues build requests. Build blocks until the service answers;
// a transport failure is returned as an error, a failed build is not.
type Client interface {
	Build(ctx context.Context, req app.BuildRequest) (app.BuildResult, error)
}
