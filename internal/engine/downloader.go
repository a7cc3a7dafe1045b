// Package engine schedules and executes the downloads described by a plan:
// mirror selection, segmented concurrent fetching, retry with backoff, and
// integrity verification at piece and whole-file level.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/engelphi/metalink-downloader/internal/domain"
	"github.com/engelphi/metalink-downloader/internal/infra/config"
	"github.com/engelphi/metalink-downloader/internal/infra/logger"
	"github.com/engelphi/metalink-downloader/internal/mirror"
	"github.com/engelphi/metalink-downloader/internal/plan"
	"github.com/engelphi/metalink-downloader/internal/progress"
	"github.com/engelphi/metalink-downloader/internal/transport"
	"github.com/engelphi/metalink-downloader/internal/verify"
)

// Options are the knobs of one engine instance.
type Options struct {
	Workers        int
	MaxAttempts    int
	MirrorFailures int
	MinSegmentSize int64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Resume         bool
}

// OptionsFromConfig projects the application config onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers:        cfg.Download.Workers,
		MaxAttempts:    cfg.Download.MaxAttempts,
		MirrorFailures: cfg.Download.MirrorFailures,
		MinSegmentSize: cfg.Download.MinSegmentSize,
		InitialBackoff: cfg.HTTP.InitialBackoff,
		MaxBackoff:     cfg.HTTP.MaxBackoff,
		Resume:         cfg.Download.Resume,
	}
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.MirrorFailures <= 0 {
		o.MirrorFailures = 5
	}
	if o.MinSegmentSize <= 0 {
		o.MinSegmentSize = 1 << 20
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
	return o
}

// Downloader executes one run. Files proceed concurrently; actual transfers
// share the global fetch budget through a semaphore sized at Workers.
type Downloader struct {
	opts    Options
	client  *transport.Client
	writer  *FileWriter
	tracker *progress.Tracker
	log     *logger.Logger
	sem     chan struct{}
}

func NewDownloader(opts Options, client *transport.Client, tracker *progress.Tracker, log *logger.Logger) *Downloader {
	opts = opts.withDefaults()
	return &Downloader{
		opts:    opts,
		client:  client,
		writer:  NewFileWriter(),
		tracker: tracker,
		log:     log,
		sem:     make(chan struct{}, opts.Workers),
	}
}

// Download runs the whole plan. A failing file never aborts its siblings;
// every file ends in exactly one terminal status in the returned summary.
func (d *Downloader) Download(ctx context.Context, p *plan.Plan, source string) *domain.RunSummary {
	summary := &domain.RunSummary{
		ID:        d.tracker.RunID(),
		Source:    source,
		StartedAt: time.Now(),
	}
	defer d.writer.CloseAll()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, f := range p.Files {
		g.Go(func() error {
			res := d.downloadFile(gctx, f)
			mu.Lock()
			summary.Files = append(summary.Files, res)
			mu.Unlock()
			// Sibling files keep going regardless of this outcome.
			return nil
		})
	}
	_ = g.Wait()

	for _, inv := range p.Invalid {
		status := domain.StatusIncomplete
		summary.Files = append(summary.Files, domain.FileResult{
			Name:   inv.Name,
			Status: status,
			Size:   -1,
			Error:  inv.Err.Error(),
		})
	}

	sort.Slice(summary.Files, func(i, j int) bool {
		return summary.Files[i].Name < summary.Files[j].Name
	})
	summary.FinishedAt = time.Now()
	return summary
}

func (d *Downloader) downloadFile(ctx context.Context, f *plan.FilePlan) domain.FileResult {
	result := domain.FileResult{Name: f.Name, Size: f.Size}
	run := &fileRun{plan: f, selector: mirror.NewSelector(f.Resources, d.opts.MirrorFailures)}

	finish := func(status domain.FileStatus, err error) domain.FileResult {
		d.tracker.FileStatus(f.Name, status)
		result.Status = status
		result.Size = f.Size
		if err != nil {
			result.Error = err.Error()
		}
		if snap, ok := d.tracker.File(f.Name); ok {
			result.BytesWritten = snap.BytesDone
			result.LastMirror = snap.LastMirror
		}
		return result
	}

	if err := os.MkdirAll(filepath.Dir(f.TargetPath), 0755); err != nil {
		d.tracker.AddFile(f.Name, f.Size, 0)
		return finish(domain.StatusIOError, fmt.Errorf("%w: %v", errIO, err))
	}

	// A target from an earlier run that still verifies needs no network.
	if d.opts.Resume && fileExists(f.TargetPath) {
		if c := f.StrongestChecksum(); c != nil {
			if ok, err := verify.File(f.TargetPath, c.Algo, c.Digest); err == nil && ok {
				d.tracker.AddFile(f.Name, f.Size, 0)
				if f.Size > 0 {
					d.tracker.BytesSkipped(f.Name, f.Size)
				}
				d.log.Info("%s already present and verified, skipping", f.Name)
				return finish(domain.StatusVerified, nil)
			}
		}
	}

	if f.Size < 0 {
		if err := d.probeSize(ctx, run); err != nil {
			d.tracker.AddFile(f.Name, f.Size, 0)
			return finish(domain.StatusIncomplete, err)
		}
	}

	segs := f.PlanSegments(d.opts.Workers, d.opts.MinSegmentSize)
	d.tracker.AddFile(f.Name, f.Size, len(segs))
	d.tracker.FileStatus(f.Name, domain.StatusDownloading)

	if d.opts.Resume && f.Pieces != nil && fileExists(f.PartPath) {
		d.resumeSegments(f)
	}

	if f.Size >= 0 {
		if err := d.writer.PreAllocate(f.PartPath, f.Size); err != nil {
			return finish(domain.StatusIOError, fmt.Errorf("%w: %v", errIO, err))
		}
	}

	if err := d.runStreamable(ctx, run); err != nil {
		return finish(d.statusFor(err), err)
	}

	return d.verifyAndFinalize(ctx, run, finish)
}

// runStreamable drives the pool, demoting the file to a single whole-stream
// segment when no remaining mirror honors byte ranges. Both the initial
// download and a mismatch refetch go through here, so a range-incapable
// fallback mirror still gets its chance.
func (d *Downloader) runStreamable(ctx context.Context, run *fileRun) error {
	err := d.runPool(ctx, run)
	if !errors.Is(err, errNeedStream) {
		return err
	}

	f := run.plan
	d.log.Warn("no mirror for %s honors byte ranges, falling back to a single stream", f.Name)
	f.PlanWholeStream()
	d.tracker.AddFile(f.Name, f.Size, 1)
	d.tracker.FileStatus(f.Name, domain.StatusDownloading)
	return d.runPool(ctx, run)
}

// verifyAndFinalize performs the whole-file check. On mismatch it excludes
// the suspect mirror and refetches while candidates remain; exhaustion is
// terminal ChecksumMismatch, keeping the partial output on disk.
func (d *Downloader) verifyAndFinalize(ctx context.Context, run *fileRun, finish func(domain.FileStatus, error) domain.FileResult) domain.FileResult {
	f := run.plan
	d.tracker.FileStatus(f.Name, domain.StatusVerifying)

	c := f.StrongestChecksum()
	if c == nil {
		if err := d.finalize(f); err != nil {
			return finish(domain.StatusIOError, err)
		}
		d.log.Info("%s completed without a verifiable checksum", f.Name)
		return finish(domain.StatusCompletedUnverified, nil)
	}

	for round := 0; round <= len(f.Resources); round++ {
		ok, verr := verify.File(f.PartPath, c.Algo, c.Digest)
		if verr != nil {
			return finish(domain.StatusIOError, fmt.Errorf("%w: %v", errIO, verr))
		}
		if ok {
			if err := d.finalize(f); err != nil {
				return finish(domain.StatusIOError, err)
			}
			return finish(domain.StatusVerified, nil)
		}

		if run.lastResource == nil {
			break
		}
		run.selector.Exclude(run.lastResource)
		run.lastResource = nil
		if run.selector.Remaining() == 0 {
			break
		}

		d.log.Warn("whole-file checksum mismatch for %s, refetching from remaining mirrors", f.Name)
		for _, s := range f.Segments {
			s.State = plan.SegmentPending
			s.Attempts = 0
			s.LastErr = nil
		}
		d.tracker.AddFile(f.Name, f.Size, len(f.Segments))
		d.tracker.FileStatus(f.Name, domain.StatusDownloading)

		if err := d.runStreamable(ctx, run); err != nil {
			return finish(d.statusFor(err), err)
		}
		d.tracker.FileStatus(f.Name, domain.StatusVerifying)
	}

	// Partially-correct output is kept for inspection, not deleted.
	_ = d.writer.CloseFile(f.PartPath, f.Size)
	return finish(domain.StatusChecksumMismatch, domain.ErrChecksumMismatch)
}

func (d *Downloader) statusFor(err error) domain.FileStatus {
	switch {
	case errors.Is(err, errIO):
		return domain.StatusIOError
	case errors.Is(err, domain.ErrNoMirrors):
		return domain.StatusIncomplete
	default:
		return domain.StatusIncomplete
	}
}

// probeSize learns an undeclared size via HEAD, charging transient probe
// failures to the mirror that caused them. A mirror that refuses HEAD
// outright leaves the size unknown and the file degrades to one stream.
func (d *Downloader) probeSize(ctx context.Context, run *fileRun) error {
	var last *plan.Resource
	for {
		r, err := run.selector.Next(last)
		if err != nil {
			return err
		}

		info, herr := d.client.Head(ctx, r.URL.String())
		if herr == nil {
			run.selector.SetRangeSupport(r, info.AcceptsRanges)
			if info.Size >= 0 {
				run.plan.Size = info.Size
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var te *transport.Error
		if errors.As(herr, &te) && !te.Transient() {
			return nil
		}

		run.selector.ReportFailure(r)
		last = r
	}
}

// resumeSegments marks piece-aligned segments whose bytes already sit valid
// in the part file, so an interrupted run only refetches what it must.
func (d *Downloader) resumeSegments(f *plan.FilePlan) {
	if !f.Pieces.Algo.Verifiable() {
		return
	}
	for _, s := range f.Segments {
		if s.PieceIndex < 0 {
			continue
		}
		digest := f.Pieces.Digests[s.PieceIndex]
		if digest == nil {
			continue
		}
		ok, err := verify.FileRange(f.PartPath, s.Start, s.ByteCount(), f.Pieces.Algo, digest)
		if err == nil && ok {
			s.State = plan.SegmentCompleted
			d.tracker.BytesSkipped(f.Name, s.ByteCount())
		}
	}
}

func (d *Downloader) finalize(f *plan.FilePlan) error {
	size := f.Size
	if size < 0 {
		size = 0
	}
	if err := d.writer.CloseFile(f.PartPath, size); err != nil {
		return fmt.Errorf("%w: %v", errIO, err)
	}
	if err := os.Rename(f.PartPath, f.TargetPath); err != nil {
		return fmt.Errorf("%w: %v", errIO, err)
	}
	d.log.Info("finished: %s", f.Name)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
