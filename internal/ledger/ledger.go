// Package ledger records job, combine and single runs in a SQLite database
// so that a partitioned computation can be audited after the fact. Worker
// processes share the database file; SQLite's locking serializes writers.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Status is the state of a ledger entry.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Entry is one recorded run.
type Entry struct {
	ID         int64
	RunID      string
	Config     string
	Routine    string
	Suffixes   []string
	Mode       string
	NJobs      int
	IJob       *int
	Status     Status
	Output     string
	Digest     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Recorder is the subset of the ledger used by routines.
type Recorder interface {
	Start(ctx context.Context, e Entry) (int64, error)
	Finish(ctx context.Context, id int64, output, digest string, runErr error) error
}

// Nop is a Recorder that records nothing.
type Nop struct{}

func (Nop) Start(context.Context, Entry) (int64, error) { return 0, nil }

func (Nop) Finish(context.Context, int64, string, string, error) error { return nil }

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	config      TEXT NOT NULL,
	routine     TEXT NOT NULL,
	suffixes    TEXT NOT NULL,
	mode        TEXT NOT NULL,
	n_jobs      INTEGER NOT NULL,
	i_job       INTEGER,
	status      TEXT NOT NULL,
	output      TEXT,
	digest      TEXT,
	error       TEXT,
	started_at  TEXT NOT NULL,
	finished_at TEXT
);
CREATE INDEX IF NOT EXISTS runs_target ON runs (config, routine, suffixes);
`

// Ledger is a SQLite-backed Recorder.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Compile-time checks.
var (
	_ Recorder = (*Ledger)(nil)
	_ Recorder = Nop{}
)

// Open opens or creates the ledger database at path.
func Open(path string) (*Ledger, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

// Start records a running entry and returns its id.
func (l *Ledger) Start(ctx context.Context, e Entry) (int64, error) {
	var iJob sql.NullInt64
	if e.IJob != nil {
		iJob = sql.NullInt64{Int64: int64(*e.IJob), Valid: true}
	}
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, config, routine, suffixes, mode, n_jobs, i_job, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Config, e.Routine, strings.Join(e.Suffixes, ","), e.Mode, e.NJobs, iJob,
		string(StatusRunning), l.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("record run start: %w", err)
	}
	return res.LastInsertId()
}

// Finish marks entry id completed, or failed when runErr is non-nil.
func (l *Ledger) Finish(ctx context.Context, id int64, output, digest string, runErr error) error {
	status := StatusCompleted
	var errText sql.NullString
	if runErr != nil {
		status = StatusFailed
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}
	_, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, output = ?, digest = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), nullable(output), nullable(digest), errText,
		l.now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// List returns the entries for a configuration, routine and suffix set,
// oldest first.
func (l *Ledger) List(ctx context.Context, config, routine string, suffixes []string) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, run_id, config, routine, suffixes, mode, n_jobs, i_job, status,
		        output, digest, error, started_at, finished_at
		 FROM runs WHERE config = ? AND routine = ? AND suffixes = ? ORDER BY id`,
		config, routine, strings.Join(suffixes, ","))
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                    Entry
			suffixes, status     string
			iJob                 sql.NullInt64
			out, digest, errText sql.NullString
			started              string
			finished             sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Config, &e.Routine, &suffixes, &e.Mode, &e.NJobs, &iJob,
			&status, &out, &digest, &errText, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		if suffixes != "" {
			e.Suffixes = strings.Split(suffixes, ",")
		}
		if iJob.Valid {
			i := int(iJob.Int64)
			e.IJob = &i
		}
		e.Status = Status(status)
		e.Output, e.Digest, e.Error = out.String, digest.String, errText.String
		e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished.Valid {
			e.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
