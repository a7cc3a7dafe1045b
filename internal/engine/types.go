package engine

import (
	"errors"

	"github.com/engelphi/metalink-downloader/internal/mirror"
	"github.com/engelphi/metalink-downloader/internal/plan"
)

// errIO marks write failures. They are fatal for the file immediately:
// retrying cannot fix a full disk or a permission problem.
var errIO = errors.New("io error")

// errNeedStream signals that no remaining mirror honors byte ranges, so a
// multi-segment file must be re-planned as one whole-stream segment.
var errNeedStream = errors.New("no mirror supports ranged fetches")

// fileRun is the per-file runtime state shared by the collector and the
// workers of one pool.
type fileRun struct {
	plan     *plan.FilePlan
	selector *mirror.Selector

	// lastResource is the mirror that served the most recent completed
	// segment, reported on failure and used as the whole-file mismatch
	// exclusion candidate.
	lastResource *plan.Resource
}

// segmentResult is what a worker reports back to the collector.
type segmentResult struct {
	seg      *plan.Segment
	resource *plan.Resource
	bytes    int64
	err      error
}
