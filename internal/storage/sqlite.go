package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazz-dev/avcheck/internal/runner"
	"github.com/hazz-dev/avcheck/internal/suite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT    PRIMARY KEY,
    team        TEXT    NOT NULL,
    base_url    TEXT    NOT NULL,
    total       INTEGER NOT NULL,
    passed      INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    started_at  TEXT    NOT NULL,
    finished_at TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS run_checks (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id          TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position        INTEGER NOT NULL,
    name            TEXT    NOT NULL,
    url             TEXT    NOT NULL,
    expected_status INTEGER NOT NULL,
    status_code     INTEGER NOT NULL,
    status          TEXT    NOT NULL CHECK(status IN ('pass', 'fail')),
    response_ms     INTEGER NOT NULL,
    error           TEXT    NOT NULL DEFAULT '',
    checked_at      TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_team_started ON runs(team, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_run_checks_run ON run_checks(run_id, position);
`

// Run is a stored run summary.
type Run struct {
	ID         string
	Team       string
	BaseURL    string
	Total      int
	Passed     int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// OK reports whether every check of the run passed.
func (r Run) OK() bool {
	return r.Failed == 0
}

// Check is a stored per-check result. URL has its password redacted.
type Check struct {
	ID             int64
	RunID          string
	Position       int
	Name           string
	URL            string
	ExpectedStatus int
	StatusCode     int
	Status         string
	ResponseMs     int64
	Error          string
	CheckedAt      time.Time
}

// DB wraps a SQLite database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertRun persists a run and its checks in one transaction.
func (d *DB) InsertRun(ctx context.Context, s runner.Summary) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction for run %q: %w", s.RunID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, team, base_url, total, passed, failed, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID,
		s.TeamCode,
		s.BaseURL,
		s.Total,
		s.Passed,
		s.Failed,
		formatTime(s.StartedAt),
		formatTime(s.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting run %q: %w", s.RunID, err)
	}

	for i, r := range s.Results {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_checks (run_id, position, name, url, expected_status, status_code, status, response_ms, error, checked_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.RunID,
			i,
			r.Name,
			suite.Redact(r.URL),
			r.ExpectedStatus,
			r.StatusCode,
			string(r.Status),
			r.ResponseTime.Milliseconds(),
			suite.RedactText(r.Error, r.URL),
			formatTime(r.CheckedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting check %q for run %q: %w", r.Name, s.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run %q: %w", s.RunID, err)
	}
	return nil
}

// LatestRun returns the most recent run for team, or nil if none.
func (d *DB) LatestRun(ctx context.Context, team string) (*Run, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, team, base_url, total, passed, failed, started_at, finished_at FROM runs WHERE team = ? ORDER BY started_at DESC LIMIT 1`,
		team,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest run for %q: %w", team, err)
	}
	return r, nil
}

// RunHistory returns paginated runs for team, newest first, plus the total count.
func (d *DB) RunHistory(ctx context.Context, team string, limit, offset int) ([]Run, int, error) {
	var total int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM runs WHERE team = ?`, team,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting runs for %q: %w", team, err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, team, base_url, total, passed, failed, started_at, finished_at FROM runs WHERE team = ? ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		team, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying history for %q: %w", team, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating run rows: %w", err)
	}
	return runs, total, nil
}

// RunChecks returns the checks of a run in execution order.
func (d *DB) RunChecks(ctx context.Context, runID string) ([]Check, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, run_id, position, name, url, expected_status, status_code, status, response_ms, error, checked_at FROM run_checks WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying checks for run %q: %w", runID, err)
	}
	defer rows.Close()

	var checks []Check
	for rows.Next() {
		var c Check
		var checkedAt string
		err := rows.Scan(&c.ID, &c.RunID, &c.Position, &c.Name, &c.URL, &c.ExpectedStatus, &c.StatusCode, &c.Status, &c.ResponseMs, &c.Error, &checkedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning check row: %w", err)
		}
		if c.CheckedAt, err = parseTime(checkedAt); err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating check rows: %w", err)
	}
	return checks, nil
}

// PassRate returns the percentage of fully passing runs among the last N runs for team.
func (d *DB) PassRate(ctx context.Context, team string, last int) (float64, error) {
	var total int
	var passCount sql.NullInt64
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(CASE WHEN failed = 0 THEN 1 ELSE 0 END)
		FROM (
			SELECT failed FROM runs WHERE team = ? ORDER BY started_at DESC LIMIT ?
		)
	`, team, last).Scan(&total, &passCount)
	if err != nil {
		return 0, fmt.Errorf("calculating pass rate for %q: %w", team, err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(passCount.Int64) / float64(total) * 100, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var startedAt, finishedAt string
	err := row.Scan(&r.ID, &r.Team, &r.BaseURL, &r.Total, &r.Passed, &r.Failed, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	if r.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if r.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// timeLayout keeps a fixed number of fractional digits so stored
// timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Fallback to RFC3339 without sub-second precision.
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
		}
	}
	return t, nil
}
