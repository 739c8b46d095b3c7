package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *SQLDatabase {
	t.Helper()
	db, err := Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func exercise(t *testing.T, db Database) {
	t.Helper()
	ctx := context.Background()
	start := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, db.InsertRun(ctx, Run{ID: "run-1", StartedAt: start}))
	require.NoError(t, db.InsertRun(ctx, Run{ID: "run-2", StartedAt: start.Add(time.Hour)}))

	require.NoError(t, db.UpsertStatus(ctx, StatusRecord{RunID: "run-1", Target: "b", Classes: "loading-dev", UpdatedAt: start}))
	require.NoError(t, db.UpsertStatus(ctx, StatusRecord{RunID: "run-1", Target: "a", Classes: "complete-dev", UpdatedAt: start}))
	require.NoError(t, db.UpsertStatus(ctx, StatusRecord{RunID: "run-1", Target: "b", Classes: "error-dev", UpdatedAt: start.Add(time.Second)}))

	require.NoError(t, db.InsertError(ctx, ErrorRecord{RunID: "run-1", Bucket: "dev", Target: "b", Message: "boom", CreatedAt: start}))
	require.NoError(t, db.InsertError(ctx, ErrorRecord{RunID: "run-1", Bucket: "grunt", Target: "c", Output: "compile error", CreatedAt: start}))

	require.NoError(t, db.FinishRun(ctx, "run-1", start.Add(time.Minute), 3, 2))

	statuses, err := db.GetRunStatuses(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "a", statuses[0].Target)
	assert.Equal(t, "b", statuses[1].Target)
	assert.Equal(t, "error-dev", statuses[1].Classes)
	assert.Equal(t, start.Add(time.Second).UnixMilli(), statuses[1].UpdatedAt.UnixMilli())

	errs, err := db.GetRunErrors(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, "boom", errs[0].Message)
	assert.Equal(t, "grunt", errs[1].Bucket)
	assert.Equal(t, "compile error", errs[1].Output)

	runs, err := db.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Nil(t, runs[0].FinishedAt)
	assert.Equal(t, "run-1", runs[1].ID)
	require.NotNil(t, runs[1].FinishedAt)
	assert.Equal(t, 3, runs[1].Targets)
	assert.Equal(t, 2, runs[1].Failed)

	limited, err := db.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	empty, err := db.GetRunErrors(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLiteDatabase(t *testing.T) {
	exercise(t, openSQLite(t))
}

func TestMockDatabase(t *testing.T) {
	exercise(t, NewMockDatabase())
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	db := openSQLite(t)
	assert.NoError(t, db.InitSchema(context.Background()))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestRebind(t *testing.T) {
	pg := &SQLDatabase{dialect: dialects["postgres"]}
	assert.Equal(t, "UPDATE runs SET a = $1, b = $2 WHERE id = $3", pg.rebind("UPDATE runs SET a = ?, b = ? WHERE id = ?"))

	my := &SQLDatabase{dialect: dialects["mysql"]}
	assert.Equal(t, "SELECT ? FROM t", my.rebind("SELECT ? FROM t"))
}
