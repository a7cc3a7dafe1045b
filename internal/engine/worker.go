package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/engelphi/metalink-downloader/internal/domain"
	"github.com/engelphi/metalink-downloader/internal/plan"
	"github.com/engelphi/metalink-downloader/internal/transport"
	"github.com/engelphi/metalink-downloader/internal/verify"
)

// runPool drains the file's pending segments through a bounded worker pool.
// The collector in this function is the retry controller: it decides per
// failure whether a segment goes back on the queue, and with what delay.
func (d *Downloader) runPool(ctx context.Context, run *fileRun) error {
	var pending []*plan.Segment
	for _, s := range run.plan.Segments {
		if s.State != plan.SegmentCompleted {
			s.State = plan.SegmentPending
			pending = append(pending, s)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workerCount := d.opts.Workers
	if workerCount > len(pending) {
		workerCount = len(pending)
	}

	// Capacity covers every segment, so requeues never block the timer
	// goroutines that issue them.
	jobs := make(chan *plan.Segment, len(run.plan.Segments))
	results := make(chan segmentResult, workerCount*2)

	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(poolCtx, run, jobs, results)
		}()
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	for _, s := range pending {
		jobs <- s
	}

	completed := 0
	for completed < len(pending) {
		select {
		case <-poolCtx.Done():
			return poolCtx.Err()
		case res := <-results:
			if res.err == nil {
				if res.resource != nil {
					run.lastResource = res.resource
				}
				completed++
				continue
			}
			if err := d.handleFailure(poolCtx, run, res, jobs); err != nil {
				return err
			}
		}
	}

	return nil
}

// handleFailure is the per-segment retry decision. A nil return means the
// segment was requeued; a non-nil return terminates the file.
func (d *Downloader) handleFailure(ctx context.Context, run *fileRun, res segmentResult, jobs chan<- *plan.Segment) error {
	seg := res.seg
	name := run.plan.Name

	switch {
	case errors.Is(res.err, errNeedStream):
		return errNeedStream

	case errors.Is(res.err, domain.ErrNoMirrors):
		seg.State = plan.SegmentFailed
		seg.LastErr = res.err
		return fmt.Errorf("segment %d of %s: %w", seg.Index, name, domain.ErrNoMirrors)

	case errors.Is(res.err, errIO):
		seg.State = plan.SegmentFailed
		seg.LastErr = res.err
		return res.err

	case errors.Is(res.err, transport.ErrRangeNotSupported):
		// Capability discovery, not a mirror fault. The attempt is given
		// back and the selector memo steers the retry elsewhere.
		seg.Attempts--
		d.requeue(ctx, seg, jobs, 0)
		return nil
	}

	transient := transport.IsTransient(res.err) ||
		errors.Is(res.err, domain.ErrPieceMismatch) ||
		errors.Is(res.err, io.ErrUnexpectedEOF)

	if res.resource != nil {
		if transient {
			run.selector.ReportFailure(res.resource)
		} else {
			// 404s and malformed responses will not heal with a retry
			// against the same mirror.
			run.selector.Exclude(res.resource)
		}
	}

	if seg.Attempts >= d.opts.MaxAttempts {
		seg.State = plan.SegmentFailed
		seg.LastErr = res.err
		return fmt.Errorf("segment %d of %s failed after %d attempts: %w",
			seg.Index, name, seg.Attempts, res.err)
	}

	delay := time.Duration(0)
	if transient {
		delay = d.backoff(seg.Attempts)
	}

	d.log.Warn("[retry] segment %d of %s: attempt %d/%d: %v",
		seg.Index, name, seg.Attempts, d.opts.MaxAttempts, res.err)

	d.requeue(ctx, seg, jobs, delay)
	return nil
}

func (d *Downloader) requeue(ctx context.Context, seg *plan.Segment, jobs chan<- *plan.Segment, delay time.Duration) {
	seg.State = plan.SegmentPending
	if delay <= 0 {
		select {
		case jobs <- seg:
		case <-ctx.Done():
		}
		return
	}

	time.AfterFunc(delay, func() {
		select {
		case jobs <- seg:
		case <-ctx.Done():
		}
	})
}

func (d *Downloader) backoff(attempt int) time.Duration {
	delay := d.opts.InitialBackoff << uint(attempt-1)
	if delay > d.opts.MaxBackoff {
		delay = d.opts.MaxBackoff
	}
	return delay
}

// worker pulls segments off the queue until the pool context ends.
func (d *Downloader) worker(ctx context.Context, run *fileRun, jobs <-chan *plan.Segment, results chan<- segmentResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case seg := <-jobs:
			res := d.fetchSegment(ctx, run, seg)
			select {
			case results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// fetchSegment runs one attempt: pick a mirror, fetch the byte range,
// verify the piece when one is declared, and commit at the segment offset.
func (d *Downloader) fetchSegment(ctx context.Context, run *fileRun, seg *plan.Segment) segmentResult {
	// Re-completing a completed segment is a no-op.
	if seg.State == plan.SegmentCompleted {
		return segmentResult{seg: seg}
	}

	f := run.plan
	whole := seg.Start == 0 && (seg.End < 0 || (f.Size >= 0 && seg.End == f.Size-1))

	var r *plan.Resource
	var err error
	if whole {
		r, err = run.selector.Next(seg.LastResource)
	} else {
		r, err = run.selector.NextRanged(seg.LastResource)
		if err == nil && r == nil {
			return segmentResult{seg: seg, err: errNeedStream}
		}
	}
	if err != nil {
		return segmentResult{seg: seg, err: err}
	}

	seg.LastResource = r
	seg.State = plan.SegmentInFlight
	seg.Attempts++
	d.tracker.LastMirror(f.Name, r.String())

	// One slot of the global fetch budget per in-flight transfer.
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		seg.State = plan.SegmentPending
		return segmentResult{seg: seg, resource: r, err: ctx.Err()}
	}
	defer func() { <-d.sem }()

	var resp *transport.Response
	if whole {
		resp, err = d.client.Get(ctx, r.URL.String())
	} else {
		resp, err = d.client.GetRange(ctx, r.URL.String(), seg.Start, seg.End)
		if errors.Is(err, transport.ErrRangeNotSupported) {
			run.selector.SetRangeSupport(r, false)
		}
	}
	if err != nil {
		return segmentResult{seg: seg, resource: r, err: err}
	}
	defer resp.Body.Close()

	if !whole {
		run.selector.SetRangeSupport(r, true)
	}

	n, err := d.commit(f, seg, r, resp.Body)
	if err != nil {
		return segmentResult{seg: seg, resource: r, bytes: n, err: err}
	}

	seg.State = plan.SegmentCompleted
	seg.LastErr = nil
	d.tracker.SegmentCompleted(f.Name, n, r.String())
	return segmentResult{seg: seg, resource: r, bytes: n}
}

// commit moves the response body into the part file at the segment offset.
// Piece-covered segments are buffered and verified before any byte lands on
// disk; everything else streams through in chunks.
func (d *Downloader) commit(f *plan.FilePlan, seg *plan.Segment, r *plan.Resource, body io.Reader) (int64, error) {
	expected := seg.ByteCount()

	if i := seg.PieceIndex; i >= 0 && f.Pieces != nil && f.Pieces.Algo.Verifiable() && f.Pieces.Digests[i] != nil {
		buf := make([]byte, expected)
		if _, err := io.ReadFull(body, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return 0, fmt.Errorf("segment %d of %s: short body: %w", seg.Index, f.Name, io.ErrUnexpectedEOF)
			}
			return 0, transport.Classify(r.URL.String(), err)
		}

		if !verify.Bytes(f.Pieces.Algo, f.Pieces.Digests[i], buf) {
			return 0, fmt.Errorf("piece %d of %s from %s: %w", i, f.Name, r, domain.ErrPieceMismatch)
		}

		if err := d.writer.WriteAt(f.PartPath, buf, seg.Start); err != nil {
			return 0, fmt.Errorf("%w: %v", errIO, err)
		}
		return expected, nil
	}

	return d.copyAt(body, f.PartPath, seg.Start, expected, r.URL.String())
}

// copyAt streams body to the part file starting at offset, enforcing the
// expected byte count when it is known. expected is -1 for read-to-EOF.
func (d *Downloader) copyAt(body io.Reader, path string, offset, expected int64, url string) (int64, error) {
	buf := make([]byte, 256*1024)
	var written int64

	for expected < 0 || written < expected {
		limit := int64(len(buf))
		if expected >= 0 && expected-written < limit {
			limit = expected - written
		}

		n, err := body.Read(buf[:limit])
		if n > 0 {
			if werr := d.writer.WriteAt(path, buf[:n], offset+written); werr != nil {
				return written, fmt.Errorf("%w: %v", errIO, werr)
			}
			written += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, transport.Classify(url, err)
		}
	}

	if expected >= 0 && written != expected {
		return written, fmt.Errorf("short body: got %d of %d bytes: %w", written, expected, io.ErrUnexpectedEOF)
	}
	return written, nil
}
