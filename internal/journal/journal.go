// Package journal records docpost runs and their per-file outcomes in a
// SQLite database.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/einsums/docpost/internal/rewrite"
)

var schemaStmts = []string{
	`CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	mode        TEXT NOT NULL,
	transformer TEXT NOT NULL,
	policy      TEXT NOT NULL,
	status      TEXT NOT NULL,
	files       INTEGER NOT NULL,
	changed     INTEGER NOT NULL,
	failed      INTEGER NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS files (
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq          INTEGER NOT NULL,
	path         TEXT NOT NULL,
	status       TEXT NOT NULL,
	bytes_before INTEGER NOT NULL,
	bytes_after  INTEGER NOT NULL,
	sha_before   TEXT NOT NULL,
	sha_after    TEXT NOT NULL,
	error        TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
}

type Journal struct {
	db *sql.DB
}

type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Mode        string
	Transformer string
	Policy      string
	Status      string
	Files       int
	Changed     int
	Failed      int
}

type File struct {
	Seq         int
	Path        string
	Status      string
	BytesBefore int64
	BytesAfter  int64
	SHABefore   string
	SHAAfter    string
	Error       string
}

// sqliteDSN percent-encodes the path so '?', '#' and '%' in it cannot end
// the path part of the file: URI early.
func sqliteDSN(path string) string {
	escaped := (&url.URL{Path: filepath.ToSlash(path)}).EscapedPath()
	return "file:" + escaped + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range schemaStmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create journal schema: %w", err)
		}
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores a finished run. runErr is the error returned by
// rewrite.Run, if any, and only decides the run status.
func (j *Journal) Record(ctx context.Context, report *rewrite.Report, policy string, runErr error) (string, error) {
	if report == nil {
		return "", errors.New("record run: nil report")
	}
	id := uuid.NewString()
	status := "ok"
	if runErr != nil {
		status = "failed"
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin journal tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, mode, transformer, policy, status, files, changed, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, report.Started.UnixNano(), report.Finished.UnixNano(), report.Mode, report.Transformer,
		policy, status, len(report.Results), report.ChangedCount(), len(report.Failed()))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files (run_id, seq, path, status, bytes_before, bytes_after, sha_before, sha_after, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare file insert: %w", err)
	}
	defer stmt.Close()
	for i, res := range report.Results {
		msg := ""
		if res.Err != nil {
			msg = res.Err.Error()
		}
		if _, err := stmt.ExecContext(ctx, id, i, res.Path, string(res.Status),
			res.BytesBefore, res.BytesAfter, res.SHABefore, res.SHAAfter, msg); err != nil {
			return "", fmt.Errorf("insert file %s: %w", res.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit journal: %w", err)
	}
	return id, nil
}

// Runs returns the most recent runs, newest first. limit <= 0 means all.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, started_at, finished_at, mode, transformer, policy, status, files, changed, failed
		FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &started, &finished, &r.Mode, &r.Transformer, &r.Policy,
			&r.Status, &r.Files, &r.Changed, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		r.FinishedAt = time.Unix(0, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *Journal) Files(ctx context.Context, runID string) ([]File, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, path, status, bytes_before, bytes_after, sha_before, sha_after, error
		 FROM files WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()
	var out []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.Seq, &f.Path, &f.Status, &f.BytesBefore, &f.BytesAfter,
			&f.SHABefore, &f.SHAAfter, &f.Error); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
