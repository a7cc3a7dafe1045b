// Package progress collects per-segment and per-file state transitions
// emitted by the engine. The engine only publishes; rendering is left to
// consumers like the CLI bar or the status API.
package progress

import (
	"sync"
	"time"

	"github.com/engelphi/metalink-downloader/internal/domain"
)

// FileSnapshot is a point-in-time view of one file's progress.
type FileSnapshot struct {
	Name              string            `json:"name"`
	Status            domain.FileStatus `json:"status"`
	TotalBytes        int64             `json:"total_bytes"`
	BytesDone         uint64            `json:"bytes_done"`
	SegmentsTotal     int               `json:"segments_total"`
	SegmentsCompleted int               `json:"segments_completed"`
	LastMirror        string            `json:"last_mirror,omitempty"`
}

// Snapshot is a point-in-time view of the whole run.
type Snapshot struct {
	RunID      string         `json:"run_id"`
	Source     string         `json:"source"`
	StartedAt  time.Time      `json:"started_at"`
	TotalBytes int64          `json:"total_bytes"`
	BytesDone  uint64         `json:"bytes_done"`
	Files      []FileSnapshot `json:"files"`
}

type fileState struct {
	name              string
	status            domain.FileStatus
	total             int64
	done              uint64
	segmentsTotal     int
	segmentsCompleted int
	lastMirror        string
}

// Tracker aggregates engine events. All methods are safe for concurrent use
// by the fetch workers.
type Tracker struct {
	mu        sync.Mutex
	runID     string
	source    string
	startedAt time.Time
	order     []string
	files     map[string]*fileState
}

func NewTracker(runID, source string) *Tracker {
	return &Tracker{
		runID:     runID,
		source:    source,
		startedAt: time.Now(),
		files:     make(map[string]*fileState),
	}
}

// RunID returns the identifier assigned to this run.
func (t *Tracker) RunID() string {
	return t.runID
}

// AddFile registers a file before any of its segments run. total is -1 when
// the size is unknown.
func (t *Tracker) AddFile(name string, total int64, segments int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.files[name]; !ok {
		t.order = append(t.order, name)
	}
	t.files[name] = &fileState{
		name:          name,
		status:        domain.StatusPending,
		total:         total,
		segmentsTotal: segments,
	}
}

// FileStatus records a state transition for the file.
func (t *Tracker) FileStatus(name string, status domain.FileStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if f, ok := t.files[name]; ok {
		f.status = status
	}
}

// SegmentCompleted records bytes committed at segment completion.
func (t *Tracker) SegmentCompleted(name string, bytes int64, mirror string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if f, ok := t.files[name]; ok {
		f.done += uint64(bytes)
		f.segmentsCompleted++
		f.lastMirror = mirror
	}
}

// BytesSkipped accounts for bytes already valid on disk from a previous run.
func (t *Tracker) BytesSkipped(name string, bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if f, ok := t.files[name]; ok {
		f.done += uint64(bytes)
	}
}

// LastMirror records the most recently attempted mirror for the file, kept
// for failure reporting.
func (t *Tracker) LastMirror(name, mirror string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if f, ok := t.files[name]; ok {
		f.lastMirror = mirror
	}
}

// File returns the snapshot for one file.
func (t *Tracker) File(name string) (FileSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.files[name]
	if !ok {
		return FileSnapshot{}, false
	}
	return snapshotOf(f), true
}

// Snapshot returns a copy of the whole run state in registration order.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		RunID:     t.runID,
		Source:    t.source,
		StartedAt: t.startedAt,
	}
	for _, name := range t.order {
		f := t.files[name]
		snap.Files = append(snap.Files, snapshotOf(f))
		if f.total > 0 {
			snap.TotalBytes += f.total
		}
		snap.BytesDone += f.done
	}
	return snap
}

func snapshotOf(f *fileState) FileSnapshot {
	return FileSnapshot{
		Name:              f.name,
		Status:            f.status,
		TotalBytes:        f.total,
		BytesDone:         f.done,
		SegmentsTotal:     f.segmentsTotal,
		SegmentsCompleted: f.segmentsCompleted,
		LastMirror:        f.lastMirror,
	}
}
