package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/engelphi/metalink-downloader/internal/domain"
)

func testStore(t *testing.T) *PersistentStore {
	t.Helper()
	s, err := NewPersistentStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewPersistentStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string, started time.Time) *domain.RunSummary {
	return &domain.RunSummary{
		ID:         id,
		Source:     "test.meta4",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Files: []domain.FileResult{
			{
				Name:         "a.bin",
				Status:       domain.StatusVerified,
				Size:         1024,
				BytesWritten: 1024,
				LastMirror:   "https://m1.example.com/a.bin",
			},
			{
				Name:   "b.bin",
				Status: domain.StatusIncomplete,
				Size:   -1,
				Error:  "no usable mirror remains",
			},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", time.Now().Truncate(time.Second))
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("run not found")
	}
	if got.Source != "test.meta4" {
		t.Errorf("source %q", got.Source)
	}
	if len(got.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(got.Files))
	}

	a := got.Files[0]
	if a.Name != "a.bin" || a.Status != domain.StatusVerified || a.BytesWritten != 1024 {
		t.Errorf("unexpected file record: %+v", a)
	}
	if a.LastMirror != "https://m1.example.com/a.bin" {
		t.Errorf("last mirror %q", a.LastMirror)
	}

	b := got.Files[1]
	if b.Status != domain.StatusIncomplete || b.Error != "no usable mirror remains" {
		t.Errorf("unexpected file record: %+v", b)
	}
}

func TestGetRunMissing(t *testing.T) {
	s := testStore(t)

	got, err := s.GetRun(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got != nil {
		t.Error("expected nil for a missing run")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	for i, id := range []string{"run-old", "run-mid", "run-new"} {
		if err := s.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("SaveRun %s: %v", id, err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-new" || runs[1].ID != "run-mid" {
		t.Errorf("order wrong: %s, %s", runs[0].ID, runs[1].ID)
	}
	if len(runs[0].Files) != 0 {
		t.Errorf("listing should not hydrate files")
	}
}

func TestSaveRunTwiceUpdates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", time.Now().Truncate(time.Second))
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	run.Files[1].Status = domain.StatusVerified
	run.Files[1].Error = ""
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("second SaveRun: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Files[1].Status != domain.StatusVerified || got.Files[1].Error != "" {
		t.Errorf("upsert did not replace the file record: %+v", got.Files[1])
	}
}
