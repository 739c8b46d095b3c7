package database

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockDatabase keeps everything in memory. Used in tests and when no
// database is configured but the runs API is still wanted.
type MockDatabase struct {
	mu       sync.Mutex
	runs     map[string]*Run
	order    []string
	statuses map[string]map[string]StatusRecord
	errors   map[string][]ErrorRecord
}

func NewMockDatabase() *MockDatabase {
	return &MockDatabase{
		runs:     map[string]*Run{},
		statuses: map[string]map[string]StatusRecord{},
		errors:   map[string][]ErrorRecord{},
	}
}

func (db *MockDatabase) InsertRun(ctx context.Context, run Run) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	r := run
	db.runs[run.ID] = &r
	db.order = append(db.order, run.ID)
	return nil
}

func (db *MockDatabase) FinishRun(ctx context.Context, id string, finishedAt time.Time, targets, failed int) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if r, ok := db.runs[id]; ok {
		r.FinishedAt = &finishedAt
		r.Targets = targets
		r.Failed = failed
	}
	return nil
}

func (db *MockDatabase) UpsertStatus(ctx context.Context, rec StatusRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.statuses[rec.RunID] == nil {
		db.statuses[rec.RunID] = map[string]StatusRecord{}
	}
	db.statuses[rec.RunID][rec.Target] = rec
	return nil
}

func (db *MockDatabase) InsertError(ctx context.Context, rec ErrorRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.errors[rec.RunID] = append(db.errors[rec.RunID], rec)
	return nil
}

func (db *MockDatabase) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var runs []Run
	for i := len(db.order) - 1; i >= 0; i-- {
		if limit > 0 && len(runs) == limit {
			break
		}
		runs = append(runs, *db.runs[db.order[i]])
	}
	return runs, nil
}

func (db *MockDatabase) GetRunStatuses(ctx context.Context, runID string) ([]StatusRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var records []StatusRecord
	for _, rec := range db.statuses[runID] {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Target < records[j].Target })
	return records, nil
}

func (db *MockDatabase) GetRunErrors(ctx context.Context, runID string) ([]ErrorRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]ErrorRecord(nil), db.errors[runID]...), nil
}

func (db *MockDatabase) Close() error {
	return nil
}
