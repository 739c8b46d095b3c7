package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// dialect covers the differences between the supported servers. Timestamps
// are stored as unix milliseconds so no driver-specific time parsing is
// needed.
type dialect struct {
	driver     string
	schema     []string
	upsert     string
	numbered   bool // $1 placeholders instead of ?
	singleConn bool
}

var dialects = map[string]dialect{
	"postgres": {
		driver: "postgres",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS runs (
				id VARCHAR(64) PRIMARY KEY,
				started_at BIGINT NOT NULL,
				finished_at BIGINT,
				targets INTEGER NOT NULL DEFAULT 0,
				failed INTEGER NOT NULL DEFAULT 0
			);`,
			`CREATE TABLE IF NOT EXISTS target_statuses (
				run_id VARCHAR(64) NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				target VARCHAR(255) NOT NULL,
				classes TEXT NOT NULL,
				updated_at BIGINT NOT NULL,
				PRIMARY KEY (run_id, target)
			);`,
			`CREATE TABLE IF NOT EXISTS run_errors (
				id SERIAL PRIMARY KEY,
				run_id VARCHAR(64) NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				bucket VARCHAR(16) NOT NULL,
				target VARCHAR(255) NOT NULL,
				message TEXT,
				stack TEXT,
				output TEXT,
				created_at BIGINT NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_run_errors_run ON run_errors(run_id, bucket);`,
		},
		upsert:   `ON CONFLICT (run_id, target) DO UPDATE SET classes = excluded.classes, updated_at = excluded.updated_at`,
		numbered: true,
	},
	"mysql": {
		driver: "mysql",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS runs (
				id VARCHAR(64) PRIMARY KEY,
				started_at BIGINT NOT NULL,
				finished_at BIGINT NULL,
				targets INT NOT NULL DEFAULT 0,
				failed INT NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS target_statuses (
				run_id VARCHAR(64) NOT NULL,
				target VARCHAR(255) NOT NULL,
				classes TEXT NOT NULL,
				updated_at BIGINT NOT NULL,
				PRIMARY KEY (run_id, target)
			)`,
			`CREATE TABLE IF NOT EXISTS run_errors (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				run_id VARCHAR(64) NOT NULL,
				bucket VARCHAR(16) NOT NULL,
				target VARCHAR(255) NOT NULL,
				message TEXT,
				stack TEXT,
				output MEDIUMTEXT,
				created_at BIGINT NOT NULL,
				INDEX idx_run_errors_run (run_id, bucket)
			)`,
		},
		upsert: `ON DUPLICATE KEY UPDATE classes = VALUES(classes), updated_at = VALUES(updated_at)`,
	},
	"sqlite": {
		driver: "sqlite",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS runs (
				id TEXT PRIMARY KEY,
				started_at INTEGER NOT NULL,
				finished_at INTEGER,
				targets INTEGER NOT NULL DEFAULT 0,
				failed INTEGER NOT NULL DEFAULT 0
			);`,
			`CREATE TABLE IF NOT EXISTS target_statuses (
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				target TEXT NOT NULL,
				classes TEXT NOT NULL,
				updated_at INTEGER NOT NULL,
				PRIMARY KEY (run_id, target)
			);`,
			`CREATE TABLE IF NOT EXISTS run_errors (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				bucket TEXT NOT NULL,
				target TEXT NOT NULL,
				message TEXT,
				stack TEXT,
				output TEXT,
				created_at INTEGER NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_run_errors_run ON run_errors(run_id, bucket);`,
		},
		upsert: `ON CONFLICT (run_id, target) DO UPDATE SET classes = excluded.classes, updated_at = excluded.updated_at`,
		// SQLite has a single writer; one connection also keeps :memory: databases alive.
		singleConn: true,
	},
}

// SQLDatabase implements Database on top of database/sql for every
// supported dialect.
type SQLDatabase struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to driver (postgres, mysql or sqlite) and creates the
// schema if needed.
func Open(ctx context.Context, driver, dsn string) (*SQLDatabase, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.singleConn {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sdb := &SQLDatabase{db: db, dialect: d}
	if err := sdb.InitSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return sdb, nil
}

func (d *SQLDatabase) InitSchema(ctx context.Context) error {
	for _, query := range d.dialect.schema {
		if _, err := d.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders for dialects that number them.
func (d *SQLDatabase) rebind(query string) string {
	if !d.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *SQLDatabase) InsertRun(ctx context.Context, run Run) error {
	_, err := d.db.ExecContext(ctx, d.rebind(`
		INSERT INTO runs (id, started_at, targets, failed)
		VALUES (?, ?, ?, ?)
	`), run.ID, run.StartedAt.UnixMilli(), run.Targets, run.Failed)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

func (d *SQLDatabase) FinishRun(ctx context.Context, id string, finishedAt time.Time, targets, failed int) error {
	_, err := d.db.ExecContext(ctx, d.rebind(`
		UPDATE runs SET finished_at = ?, targets = ?, failed = ? WHERE id = ?
	`), finishedAt.UnixMilli(), targets, failed, id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	return nil
}

func (d *SQLDatabase) UpsertStatus(ctx context.Context, rec StatusRecord) error {
	_, err := d.db.ExecContext(ctx, d.rebind(`
		INSERT INTO target_statuses (run_id, target, classes, updated_at)
		VALUES (?, ?, ?, ?)
	`+d.dialect.upsert), rec.RunID, rec.Target, rec.Classes, rec.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert status %s/%s: %w", rec.RunID, rec.Target, err)
	}
	return nil
}

func (d *SQLDatabase) InsertError(ctx context.Context, rec ErrorRecord) error {
	_, err := d.db.ExecContext(ctx, d.rebind(`
		INSERT INTO run_errors (run_id, bucket, target, message, stack, output, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), rec.RunID, rec.Bucket, rec.Target, rec.Message, rec.Stack, rec.Output, rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert error %s/%s: %w", rec.RunID, rec.Target, err)
	}
	return nil
}

func (d *SQLDatabase) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.QueryContext(ctx, d.rebind(`
		SELECT id, started_at, finished_at, targets, failed
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Targets, &r.Failed); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			t := time.UnixMilli(finished.Int64)
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (d *SQLDatabase) GetRunStatuses(ctx context.Context, runID string) ([]StatusRecord, error) {
	rows, err := d.db.QueryContext(ctx, d.rebind(`
		SELECT run_id, target, classes, updated_at
		FROM target_statuses
		WHERE run_id = ?
		ORDER BY target
	`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []StatusRecord
	for rows.Next() {
		var (
			rec     StatusRecord
			updated int64
		)
		if err := rows.Scan(&rec.RunID, &rec.Target, &rec.Classes, &updated); err != nil {
			return nil, err
		}
		rec.UpdatedAt = time.UnixMilli(updated)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (d *SQLDatabase) GetRunErrors(ctx context.Context, runID string) ([]ErrorRecord, error) {
	rows, err := d.db.QueryContext(ctx, d.rebind(`
		SELECT run_id, bucket, target, message, stack, output, created_at
		FROM run_errors
		WHERE run_id = ?
		ORDER BY id
	`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ErrorRecord
	for rows.Next() {
		var (
			rec                    ErrorRecord
			message, stack, output sql.NullString
			created                int64
		)
		if err := rows.Scan(&rec.RunID, &rec.Bucket, &rec.Target, &message, &stack, &output, &created); err != nil {
			return nil, err
		}
		rec.Message = message.String
		rec.Stack = stack.String
		rec.Output = output.String
		rec.CreatedAt = time.UnixMilli(created)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (d *SQLDatabase) Close() error {
	return d.db.Close()
}
