package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testkube/simqueue/internal/app"
	"github.com/testkube/simqueue/internal/database"
	"github.com/testkube/simqueue/internal/errlog"
	"github.com/testkube/simqueue/internal/status"
)

func TestFlushWritesStatusesAndErrorsOnce(t *testing.T) {
	ctx := context.Background()
	db := database.NewMockDatabase()
	tracker := status.NewTracker()
	errs := errlog.New()
	w := NewWorker(db, tracker, errs, zap.NewNop(), time.Hour)
	require.NoError(t, db.InsertRun(ctx, database.Run{ID: w.RunID(), StartedAt: time.Now()}))

	tracker.Register("a")
	tracker.MarkLoading("a", app.ModeDev)
	tracker.MarkError("a", app.ModeDev)
	errs.AppendExecution(errlog.BucketDev, "a", "boom", "")
	errs.AppendBuild("b", "compile error")

	w.Flush(ctx)
	w.Flush(ctx)

	statuses, err := db.GetRunStatuses(ctx, w.RunID())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "error-dev", statuses[0].Classes)

	recorded, err := db.GetRunErrors(ctx, w.RunID())
	require.NoError(t, err)
	require.Len(t, recorded, 2)
	assert.Equal(t, "dev", recorded[0].Bucket)
	assert.Equal(t, "grunt", recorded[1].Bucket)
	assert.Equal(t, "compile error", recorded[1].Output)
}

func TestStartFinishesRunOnCancel(t *testing.T) {
	db := database.NewMockDatabase()
	tracker := status.NewTracker()
	errs := errlog.New()
	w := NewWorker(db, tracker, errs, zap.NewNop(), 10*time.Millisecond)

	tracker.Register("a")
	tracker.MarkComplete("a", app.ModeDev)
	tracker.Register("b")
	tracker.MarkBuild("b", false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	runs, err := db.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, w.RunID(), runs[0].ID)
	require.NotNil(t, runs[0].FinishedAt)
	assert.Equal(t, 2, runs[0].Targets)
	assert.Equal(t, 1, runs[0].Failed)

	statuses, err := db.GetRunStatuses(context.Background(), w.RunID())
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "complete-dev", statuses[0].Classes)
	assert.Equal(t, "error-grunt", statuses[1].Classes)
}
