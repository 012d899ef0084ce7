// Package runlog persists rolling-horizon slice summaries so past runs can
// be compared after the process exits.
package runlog

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/harvestplan/harvestplan/core/rolling"
)

// SQLiteStore records slice summaries in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS slice_summary (
        run_id TEXT,
        slice INTEGER,
        offset_day INTEGER,
        lock_from INTEGER,
        lock_to INTEGER,
        objective REAL,
        delivered REAL,
        bound REAL,
        gap_pct REAL,
        duration_ms INTEGER,
        retried INTEGER,
        recorded_at INTEGER,
        PRIMARY KEY(run_id, slice)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// RecordSliceSummary inserts or replaces the summary of a slice. A retried
// slice overwrites its failed first attempt.
func (s *SQLiteStore) RecordSliceSummary(sum rolling.SliceSummary) error {
	_, err := s.db.Exec(`INSERT INTO slice_summary
        (run_id, slice, offset_day, lock_from, lock_to, objective, delivered, bound, gap_pct, duration_ms, retried, recorded_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(run_id, slice) DO UPDATE SET
            offset_day = excluded.offset_day,
            lock_from = excluded.lock_from,
            lock_to = excluded.lock_to,
            objective = excluded.objective,
            delivered = excluded.delivered,
            bound = excluded.bound,
            gap_pct = excluded.gap_pct,
            duration_ms = excluded.duration_ms,
            retried = excluded.retried,
            recorded_at = excluded.recorded_at`,
		sum.RunID, sum.Slice, sum.OffsetDay, sum.LockFrom, sum.LockTo,
		sum.Objective, sum.Delivered, sum.Bound, sum.GapPct,
		sum.Duration.Milliseconds(), boolInt(sum.Retried), time.Now().Unix())
	return err
}

// Query returns the summaries of a run in slice order.
func (s *SQLiteStore) Query(runID string) ([]rolling.SliceSummary, error) {
	rows, err := s.db.Query(`SELECT run_id, slice, offset_day, lock_from, lock_to,
        objective, delivered, bound, gap_pct, duration_ms, retried
        FROM slice_summary WHERE run_id = ? ORDER BY slice`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []rolling.SliceSummary
	for rows.Next() {
		var sum rolling.SliceSummary
		var durMS int64
		var retried int
		if err := rows.Scan(&sum.RunID, &sum.Slice, &sum.OffsetDay, &sum.LockFrom, &sum.LockTo,
			&sum.Objective, &sum.Delivered, &sum.Bound, &sum.GapPct, &durMS, &retried); err != nil {
			return nil, err
		}
		sum.Duration = time.Duration(durMS) * time.Millisecond
		sum.Retried = retried != 0
		res = append(res, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Runs lists the distinct run identifiers, newest first.
func (s *SQLiteStore) Runs() ([]string, error) {
	rows, err := s.db.Query(`SELECT run_id FROM slice_summary
        GROUP BY run_id ORDER BY MAX(recorded_at) DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
