// Package mirror ranks and rations a file's candidate resources. The
// selector is the only shared mutable state between fetch workers besides
// the segment queue, so all bookkeeping happens under one small mutex.
package mirror

import (
	"sync"

	"github.com/engelphi/metalink-downloader/internal/domain"
	"github.com/engelphi/metalink-downloader/internal/plan"
)

type candidate struct {
	res      *plan.Resource
	failures int

	// Range support is unknown until the first response from this mirror.
	rangeKnown bool
	rangeOK    bool
	excluded   bool
}

// Selector hands out the next resource to try for a file, re-evaluated on
// every fallback. A resource whose failure budget is exhausted is excluded
// for the rest of the run.
type Selector struct {
	mu         sync.Mutex
	candidates []*candidate
	budget     int
}

// NewSelector builds a selector over the file's resources, which the plan
// already ordered by (priority, declared order). budget is the number of
// failures a single resource may accumulate before permanent exclusion.
func NewSelector(resources []plan.Resource, budget int) *Selector {
	s := &Selector{budget: budget}
	for i := range resources {
		s.candidates = append(s.candidates, &candidate{res: &resources[i]})
	}
	return s
}

// Next returns the best available resource. When avoid is non-nil and an
// alternative exists, the alternative wins, biasing retries away from the
// mirror that just failed. Returns domain.ErrNoMirrors when every candidate
// is excluded.
func (s *Selector) Next(avoid *plan.Resource) (*plan.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var first, alternate *plan.Resource
	for _, c := range s.candidates {
		if c.excluded {
			continue
		}
		if first == nil {
			first = c.res
		}
		if avoid == nil || c.res != avoid {
			alternate = c.res
			break
		}
	}

	if alternate != nil {
		return alternate, nil
	}
	if first != nil {
		return first, nil
	}
	return nil, domain.ErrNoMirrors
}

// NextRanged behaves like Next but skips resources known to ignore byte
// ranges. A nil resource with a nil error means every remaining candidate
// is known not to support ranges, so the caller should switch the file to
// whole-stream mode.
func (s *Selector) NextRanged(avoid *plan.Resource) (*plan.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	anyLeft := false
	var first, alternate *plan.Resource
	for _, c := range s.candidates {
		if c.excluded {
			continue
		}
		anyLeft = true
		if c.rangeKnown && !c.rangeOK {
			continue
		}
		if first == nil {
			first = c.res
		}
		if avoid == nil || c.res != avoid {
			alternate = c.res
			break
		}
	}

	if alternate != nil {
		return alternate, nil
	}
	if first != nil {
		return first, nil
	}
	if anyLeft {
		return nil, nil
	}
	return nil, domain.ErrNoMirrors
}

// ReportFailure charges one failure to the resource and excludes it once
// its budget runs out.
func (s *Selector) ReportFailure(r *plan.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.find(r)
	if c == nil || c.excluded {
		return
	}
	c.failures++
	if c.failures >= s.budget {
		c.excluded = true
	}
}

// Exclude removes the resource from the run outright, used for
// non-transient failures like 404.
func (s *Selector) Exclude(r *plan.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.find(r); c != nil {
		c.excluded = true
	}
}

// SetRangeSupport memoizes whether the resource honored a byte-range
// request.
func (s *Selector) SetRangeSupport(r *plan.Resource, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.find(r); c != nil {
		c.rangeKnown = true
		c.rangeOK = ok
	}
}

// RangeSupport reports the memoized range capability. known is false until
// the first response from the resource has been seen.
func (s *Selector) RangeSupport(r *plan.Resource) (ok, known bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.find(r); c != nil {
		return c.rangeOK, c.rangeKnown
	}
	return false, false
}

// Remaining counts candidates still eligible for fetches.
func (s *Selector) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.candidates {
		if !c.excluded {
			n++
		}
	}
	return n
}

func (s *Selector) find(r *plan.Resource) *candidate {
	for _, c := range s.candidates {
		if c.res == r {
			return c
		}
	}
	return nil
}
