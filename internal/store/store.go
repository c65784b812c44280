// Package store persists run reports to a local SQLite database for
// later inspection. Persistence is optional and purely diagnostic: a
// store failure never fails a run.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/sagevision/sagevision/internal/pipeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	final_summary TEXT NOT NULL DEFAULT '',
	frames_read   INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scenes (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	scene_id    INTEGER NOT NULL,
	start_frame INTEGER NOT NULL,
	end_frame   INTEGER NOT NULL,
	summary     TEXT NOT NULL DEFAULT '',
	degraded    INTEGER NOT NULL DEFAULT 0,
	diag        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, scene_id)
);

CREATE TABLE IF NOT EXISTS captions (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	scene_id    INTEGER NOT NULL,
	frame_index INTEGER NOT NULL,
	caption     TEXT NOT NULL,
	PRIMARY KEY (run_id, scene_id, frame_index)
);
`

// Store wraps the SQLite connection.
type Store struct {
	conn   *sql.DB
	logger zerolog.Logger
}

// Open creates or opens the database at dbPath and applies the schema.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{
		conn:   conn,
		logger: log.With().Str("component", "store").Logger(),
	}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// SaveReport writes a finished run and all its scenes and captions in
// one transaction.
func (s *Store) SaveReport(ctx context.Context, report *pipeline.Report) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runErr := ""
	if report.Err != nil {
		runErr = report.Err.Error()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, status, final_summary, frames_read, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		report.RunID, string(report.Status), report.Summary.FinalText,
		report.FramesRead, runErr, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, sc := range report.Scenes {
		degraded := 0
		if sc.Degraded {
			degraded = 1
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO scenes (run_id, scene_id, start_frame, end_frame, summary, degraded, diag)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, sc.ID, sc.Boundary.Start, sc.Boundary.End,
			sc.Summary, degraded, sc.Diag)
		if err != nil {
			return fmt.Errorf("failed to insert scene %d: %w", sc.ID, err)
		}

		for frameIndex, caption := range sc.Captions {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO captions (run_id, scene_id, frame_index, caption)
				 VALUES (?, ?, ?, ?)`,
				report.RunID, sc.ID, frameIndex, caption)
			if err != nil {
				return fmt.Errorf("failed to insert caption for frame %d: %w", frameIndex, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}

	s.logger.Info().Str("run_id", report.RunID).Int("scenes", len(report.Scenes)).Msg("report persisted")
	return nil
}

// RunRecord is one persisted run's top-level row.
type RunRecord struct {
	ID           string
	Status       string
	FinalSummary string
	FramesRead   int
	Error        string
	SceneCount   int
}

// GetRun loads one run with its scene count.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	rec := &RunRecord{}
	err := s.conn.QueryRowContext(ctx,
		`SELECT r.id, r.status, r.final_summary, r.frames_read, r.error,
		        (SELECT COUNT(*) FROM scenes WHERE run_id = r.id)
		 FROM runs r WHERE r.id = ?`, runID).
		Scan(&rec.ID, &rec.Status, &rec.FinalSummary, &rec.FramesRead, &rec.Error, &rec.SceneCount)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return rec, nil
}
