package store

import (
	"database/sql"
	"time"

	"github.com/engelphi/metalink-downloader/internal/domain"
)

// runDBO maps to the runs table
type runDBO struct {
	ID         string    `db:"id"`
	Source     string    `db:"source"`
	StartedAt  int64     `db:"started_at"`
	FinishedAt int64     `db:"finished_at"`
	CreatedAt  time.Time `db:"created_at"`
}

// Mapper: DBO to domain RunSummary
func (r *runDBO) ToDomain() *domain.RunSummary {
	return &domain.RunSummary{
		ID:         r.ID,
		Source:     r.Source,
		StartedAt:  time.Unix(r.StartedAt, 0),
		FinishedAt: time.Unix(r.FinishedAt, 0),
	}
}

// Mapper: domain RunSummary to DBO
func (r *runDBO) FromDomain(run *domain.RunSummary) {
	r.ID = run.ID
	r.Source = run.Source
	r.StartedAt = run.StartedAt.Unix()
	r.FinishedAt = run.FinishedAt.Unix()
}

// runFileDBO maps to the run_files table
type runFileDBO struct {
	RunID        string         `db:"run_id"`
	Name         string         `db:"name"`
	Status       string         `db:"status"`
	Size         int64          `db:"size"`
	BytesWritten int64          `db:"bytes_written"`
	LastMirror   sql.NullString `db:"last_mirror"`
	Error        sql.NullString `db:"error"`
}

// Mapper: DBO to domain FileResult
func (f *runFileDBO) ToDomain() domain.FileResult {
	return domain.FileResult{
		Name:         f.Name,
		Status:       domain.FileStatus(f.Status),
		Size:         f.Size,
		BytesWritten: uint64(f.BytesWritten),
		LastMirror:   f.LastMirror.String,
		Error:        f.Error.String,
	}
}

// Mapper: domain FileResult to DBO
func (f *runFileDBO) FromDomain(runID string, res domain.FileResult) {
	f.RunID = runID
	f.Name = res.Name
	f.Status = string(res.Status)
	f.Size = res.Size
	f.BytesWritten = int64(res.BytesWritten)
	f.LastMirror = sql.NullString{String: res.LastMirror, Valid: res.LastMirror != ""}
	f.Error = sql.NullString{String: res.Error, Valid: res.Error != ""}
}
