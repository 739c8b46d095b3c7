// Package database exports run outcomes to a SQL store. It is a report
// sink: the scheduler never reads its state back from here.
package database

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownDriver is returned by Open for a driver it does not support.
var ErrUnknownDriver = errors.New("database: unknown driver")

type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Targets    int        `json:"targets"`
	Failed     int        `json:"failed"`
}

// StatusRecord is the latest indicator state of one target within a run.
// Classes holds the space separated indicator class names.
type StatusRecord struct {
	RunID     string    `json:"runId"`
	Target    string    `json:"target"`
	Classes   string    `json:"classes"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ErrorRecord struct {
	RunID     string    `json:"runId"`
	Bucket    string    `json:"bucket"`
	Target    string    `json:"target"`
	Message   string    `json:"message,omitempty"`
	Stack     string    `json:"stack,omitempty"`
	Output    string    `json:"output,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Database interface {
	InsertRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, id string, finishedAt time.Time, targets, failed int) error
	UpsertStatus(ctx context.Context, rec StatusRecord) error
	InsertError(ctx context.Context, rec ErrorRecord) error

	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRunStatuses(ctx context.Context, runID string) ([]StatusRecord, error)
	GetRunErrors(ctx context.Context, runID string) ([]ErrorRecord, error)

	Close() error
}
