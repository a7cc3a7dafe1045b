package domain

import "time"

// FileResult is the terminal outcome for a single file of a run.
type FileResult struct {
	Name         string     `json:"name"`
	Status       FileStatus `json:"status"`
	Size         int64      `json:"size"`
	BytesWritten uint64     `json:"bytes_written"`
	LastMirror   string     `json:"last_mirror,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// RunSummary aggregates the outcome of one metalink download run.
type RunSummary struct {
	ID         string       `json:"id"`
	Source     string       `json:"source"`
	Files      []FileResult `json:"files"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Succeeded reports whether every file reached a success state.
func (r *RunSummary) Succeeded() bool {
	for _, f := range r.Files {
		if !f.Status.Success() {
			return false
		}
	}
	return true
}
