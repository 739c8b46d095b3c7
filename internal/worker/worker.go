// Package worker periodically exports tracker and error log state to the
// report database.
package worker

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/testkube/simqueue/internal/database"
	"github.com/testkube/simqueue/internal/errlog"
	"github.com/testkube/simqueue/internal/status"
)

const changeBuffer = 1024

type Worker struct {
	db       database.Database
	tracker  *status.Tracker
	errs     *errlog.Log
	log      *zap.Logger
	interval time.Duration
	runID    string

	changes <-chan status.Change
	pending map[string]status.TargetStatus
	offsets map[errlog.Bucket]int
}

// NewWorker subscribes to the tracker immediately so no change made after
// construction is missed.
func NewWorker(db database.Database, tracker *status.Tracker, errs *errlog.Log, log *zap.Logger, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Worker{
		db:       db,
		tracker:  tracker,
		errs:     errs,
		log:      log,
		interval: interval,
		runID:    uuid.NewString(),
		changes:  tracker.Subscribe(changeBuffer),
		pending:  map[string]status.TargetStatus{},
		offsets:  map[errlog.Bucket]int{},
	}
}

// RunID identifies the run rows written by this worker.
func (w *Worker) RunID() string {
	return w.runID
}

// Start records the run and flushes on every tick until ctx ends, then does
// a final full flush and marks the run finished.
func (w *Worker) Start(ctx context.Context) error {
	w.log.Info("starting report worker", zap.String("run", w.runID), zap.Duration("interval", w.interval))
	if err := w.db.InsertRun(ctx, database.Run{ID: w.runID, StartedAt: time.Now()}); err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("stopping report worker", zap.String("run", w.runID))
			finalCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			w.Finish(finalCtx)
			return nil
		case change := <-w.changes:
			w.pending[change.Status.Target] = change.Status
		case <-ticker.C:
			w.Flush(ctx)
		}
	}
}

// Flush writes pending status changes and new error entries.
func (w *Worker) Flush(ctx context.Context) {
	w.drain()
	for name, st := range w.pending {
		if err := w.db.UpsertStatus(ctx, record(w.runID, st)); err != nil {
			w.log.Warn("failed to store status", zap.String("target", name), zap.Error(err))
			continue
		}
		delete(w.pending, name)
	}

	for _, bucket := range errlog.Buckets {
		for _, e := range w.errs.Since(bucket, w.offsets[bucket]) {
			rec := database.ErrorRecord{
				RunID:     w.runID,
				Bucket:    string(e.Bucket),
				Target:    e.Target,
				Message:   e.Message,
				Stack:     e.Stack,
				Output:    e.Output,
				CreatedAt: e.Time,
			}
			if err := w.db.InsertError(ctx, rec); err != nil {
				w.log.Warn("failed to store error entry", zap.String("target", e.Target), zap.Error(err))
				break
			}
			w.offsets[bucket]++
		}
	}
}

// Finish reconciles every status, since changes can be dropped when the
// subscription buffer is full, and closes the run.
func (w *Worker) Finish(ctx context.Context) {
	w.drain()
	snapshot := w.tracker.Snapshot()
	for _, st := range snapshot {
		w.pending[st.Target] = st
	}
	w.Flush(ctx)

	summary := status.Summarize(snapshot)
	if err := w.db.FinishRun(ctx, w.runID, time.Now(), summary.Targets, summary.Failures()); err != nil {
		w.log.Warn("failed to finish run", zap.String("run", w.runID), zap.Error(err))
	}
}

func (w *Worker) drain() {
	for {
		select {
		case change := <-w.changes:
			w.pending[change.Status.Target] = change.Status
		default:
			return
		}
	}
}

func record(runID string, st status.TargetStatus) database.StatusRecord {
	return database.StatusRecord{
		RunID:     runID,
		Target:    st.Target,
		Classes:   strings.Join(st.Flags.Classes(), " "),
		UpdatedAt: st.UpdatedAt,
	}
}
