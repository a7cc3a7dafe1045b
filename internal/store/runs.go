package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/engelphi/metalink-downloader/internal/domain"
)

// SaveRun writes a finished run and all of its file outcomes in one
// transaction.
func (s *PersistentStore) SaveRun(ctx context.Context, run *domain.RunSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var dbo runDBO
	dbo.FromDomain(run)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, source, started_at, finished_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at`,
		dbo.ID, dbo.Source, dbo.StartedAt, dbo.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	// Reuse a single DBO instance for efficiency
	var fdbo runFileDBO

	for _, res := range run.Files {
		fdbo.FromDomain(run.ID, res)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_files (run_id, name, status, size, bytes_written, last_mirror, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, name) DO UPDATE SET
				status = excluded.status,
				bytes_written = excluded.bytes_written,
				last_mirror = excluded.last_mirror,
				error = excluded.error`,
			fdbo.RunID, fdbo.Name, fdbo.Status, fdbo.Size, fdbo.BytesWritten, fdbo.LastMirror, fdbo.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run file %s: %w", res.Name, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs without their per-file details.
func (s *PersistentStore) ListRuns(ctx context.Context, limit int) ([]*domain.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.RunSummary
	for rows.Next() {
		var dbo runDBO
		if err := rows.Scan(&dbo.ID, &dbo.Source, &dbo.StartedAt, &dbo.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, dbo.ToDomain())
	}

	return runs, rows.Err()
}

// GetRun fetches a single run with its file outcomes. Returns nil when the
// run does not exist.
func (s *PersistentStore) GetRun(ctx context.Context, id string) (*domain.RunSummary, error) {
	var dbo runDBO
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, started_at, finished_at
		FROM runs
		WHERE id = ? LIMIT 1`, id).Scan(&dbo.ID, &dbo.Source, &dbo.StartedAt, &dbo.FinishedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	run := dbo.ToDomain()

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, name, status, size, bytes_written, last_mirror, error
		FROM run_files
		WHERE run_id = ?
		ORDER BY name`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var fdbo runFileDBO
		if err := rows.Scan(&fdbo.RunID, &fdbo.Name, &fdbo.Status, &fdbo.Size, &fdbo.BytesWritten, &fdbo.LastMirror, &fdbo.Error); err != nil {
			return nil, err
		}
		run.Files = append(run.Files, fdbo.ToDomain())
	}

	return run, rows.Err()
}
