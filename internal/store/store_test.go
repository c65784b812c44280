package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sagevision/sagevision/internal/pipeline"
	"github.com/sagevision/sagevision/internal/scene"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpen_CreatesTables(t *testing.T) {
	st := openTestStore(t)

	for _, table := range []string{"runs", "scenes", "captions"} {
		var name string
		err := st.conn.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpen_WALEnabled(t *testing.T) {
	st := openTestStore(t)

	var journalMode string
	if err := st.conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestOpen_SchemaIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	st1.Close()

	st2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	st2.Close()
}

func TestSaveReport_Roundtrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	report := &pipeline.Report{
		RunID:      "run-123",
		Status:     pipeline.StatusDone,
		FramesRead: 30,
		Summary: pipeline.VideoSummary{
			SceneSummaries: []string{"a dog on a beach", "the dog swims"},
			FinalText:      "a dog plays at the beach and swims",
		},
		Scenes: []pipeline.Scene{
			{
				ID:       0,
				Boundary: scene.Boundary{Start: 0, End: 15},
				Captions: map[int]string{3: "a dog", 9: "a beach"},
				Summary:  "a dog on a beach",
			},
			{
				ID:       1,
				Boundary: scene.Boundary{Start: 15, End: 30},
				Captions: map[int]string{20: "the dog swims"},
				Summary:  "the dog swims",
				Degraded: true,
				Diag:     "captions failed: frame 27: rate limited",
			},
		},
	}

	if err := st.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	rec, err := st.GetRun(ctx, "run-123")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if rec.Status != "done" {
		t.Errorf("Status = %q, want done", rec.Status)
	}
	if rec.FinalSummary != report.Summary.FinalText {
		t.Errorf("FinalSummary = %q, want %q", rec.FinalSummary, report.Summary.FinalText)
	}
	if rec.FramesRead != 30 {
		t.Errorf("FramesRead = %d, want 30", rec.FramesRead)
	}
	if rec.SceneCount != 2 {
		t.Errorf("SceneCount = %d, want 2", rec.SceneCount)
	}

	var captionCount int
	if err := st.conn.QueryRow("SELECT COUNT(*) FROM captions WHERE run_id = 'run-123'").Scan(&captionCount); err != nil {
		t.Fatalf("count captions error = %v", err)
	}
	if captionCount != 3 {
		t.Errorf("caption rows = %d, want 3", captionCount)
	}

	var degraded int
	var diag string
	err = st.conn.QueryRow("SELECT degraded, diag FROM scenes WHERE run_id = 'run-123' AND scene_id = 1").Scan(&degraded, &diag)
	if err != nil {
		t.Fatalf("query scene error = %v", err)
	}
	if degraded != 1 || diag == "" {
		t.Errorf("scene 1 degraded = %d diag = %q, want degraded with diag", degraded, diag)
	}
}

func TestSaveReport_FailedRunKeepsError(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	report := &pipeline.Report{
		RunID:  "run-err",
		Status: pipeline.StatusFailed,
		Err:    errors.New("frame source failed at frame 500"),
	}
	if err := st.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	rec, err := st.GetRun(ctx, "run-err")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if rec.Status != "failed" || rec.Error == "" {
		t.Errorf("got status %q error %q, want failed with error text", rec.Status, rec.Error)
	}
}

func TestGetRun_Missing(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.GetRun(context.Background(), "nope"); err == nil {
		t.Error("GetRun() on missing run returned nil error")
	}
}
