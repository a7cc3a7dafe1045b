package plan

// SegmentState is the lifecycle of one fetchable byte range.
type SegmentState int

const (
	SegmentPending SegmentState = iota
	SegmentInFlight
	SegmentCompleted
	SegmentFailed
)

func (s SegmentState) String() string {
	switch s {
	case SegmentPending:
		return "pending"
	case SegmentInFlight:
		return "in_flight"
	case SegmentCompleted:
		return "completed"
	case SegmentFailed:
		return "failed"
	}
	return "unknown"
}

// Segment is a contiguous byte range of a file, fetched and verified as one
// unit. Start and End are inclusive, matching HTTP Range semantics. End is
// -1 for a whole-stream segment of unknown length. State, Attempts and
// LastErr are owned by whichever goroutine currently holds the segment: a
// worker while an attempt is in flight, the collector once its result comes
// back. Ownership moves through the jobs and results channels, never shared.
type Segment struct {
	Index int
	Start int64
	End   int64

	// PieceIndex is the entry in the file's PieceHashes covering this
	// range, or -1 when the file has no piece hashes.
	PieceIndex int

	State    SegmentState
	Attempts int
	LastErr  error

	// LastResource is the mirror that served the most recent attempt,
	// used to bias the next attempt toward an alternate.
	LastResource *Resource
}

// ByteCount returns the exact segment length, or -1 when unknown.
func (s *Segment) ByteCount() int64 {
	if s.End < 0 {
		return -1
	}
	return s.End - s.Start + 1
}

// PlanSegments computes the fetch segments for the file and stores them on
// the plan. With piece hashes present, one segment per piece so each
// verifies independently. Otherwise the file splits into at most maxSegments
// equal parts, never smaller than minSize; unknown or small sizes collapse
// to a single whole-file segment.
func (f *FilePlan) PlanSegments(maxSegments int, minSize int64) []*Segment {
	switch {
	case f.Size == 0:
		f.Segments = []*Segment{{Index: 0, Start: 0, End: -1, PieceIndex: -1}}
	case f.Pieces != nil:
		f.Segments = pieceSegments(f.Size, f.Pieces.Length)
	case f.Size < 0:
		f.Segments = []*Segment{{Index: 0, Start: 0, End: -1, PieceIndex: -1}}
	case f.Size <= minSize:
		f.Segments = []*Segment{{Index: 0, Start: 0, End: f.Size - 1, PieceIndex: -1}}
	default:
		f.Segments = equalSegments(f.Size, maxSegments, minSize)
	}
	return f.Segments
}

func pieceSegments(size, pieceLen int64) []*Segment {
	count := pieceCount(size, pieceLen)
	segs := make([]*Segment, 0, count)
	var start int64
	for i := 0; i < count; i++ {
		end := start + pieceLen - 1
		if end > size-1 {
			end = size - 1
		}
		segs = append(segs, &Segment{Index: i, Start: start, End: end, PieceIndex: i})
		start = end + 1
	}
	return segs
}

func equalSegments(size int64, maxSegments int, minSize int64) []*Segment {
	n := int(size / minSize)
	if n > maxSegments {
		n = maxSegments
	}
	if n < 1 {
		n = 1
	}

	per := size / int64(n)
	segs := make([]*Segment, 0, n)
	var start int64
	for i := 0; i < n; i++ {
		end := start + per - 1
		if i == n-1 {
			end = size - 1
		}
		segs = append(segs, &Segment{Index: i, Start: start, End: end, PieceIndex: -1})
		start = end + 1
	}
	return segs
}

// PlanWholeStream replaces the segment layout with a single whole-stream
// segment. Used when no mirror honors byte ranges; piece-level checks are
// skipped and integrity rests on the whole-file checksum.
func (f *FilePlan) PlanWholeStream() []*Segment {
	end := int64(-1)
	if f.Size > 0 {
		end = f.Size - 1
	}
	f.Segments = []*Segment{{Index: 0, Start: 0, End: end, PieceIndex: -1}}
	return f.Segments
}

// PendingBytes sums the byte counts of segments not yet completed. Returns
// -1 when any pending segment has unknown length.
func (f *FilePlan) PendingBytes() int64 {
	var total int64
	for _, s := range f.Segments {
		if s.State == SegmentCompleted {
			continue
		}
		n := s.ByteCount()
		if n < 0 {
			return -1
		}
		total += n
	}
	return total
}
