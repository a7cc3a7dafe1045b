package mirror

import (
	"errors"
	"net/url"
	"testing"

	"github.com/engelphi/metalink-downloader/internal/domain"
	"github.com/engelphi/metalink-downloader/internal/plan"
)

func testResources(hosts ...string) []plan.Resource {
	rs := make([]plan.Resource, 0, len(hosts))
	for i, h := range hosts {
		u, _ := url.Parse("https://" + h + "/file.bin")
		rs = append(rs, plan.Resource{URL: u, Priority: i + 1, Order: i})
	}
	return rs
}

func TestNextPrefersFirst(t *testing.T) {
	s := NewSelector(testResources("a.example.com", "b.example.com"), 3)

	r, err := s.Next(nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if r.URL.Host != "a.example.com" {
		t.Errorf("expected the best-ranked mirror first, got %s", r.URL.Host)
	}

	// Without failures the answer is stable.
	again, _ := s.Next(nil)
	if again != r {
		t.Errorf("expected the same resource on repeat calls")
	}
}

func TestNextAvoidsLastFailed(t *testing.T) {
	s := NewSelector(testResources("a.example.com", "b.example.com"), 3)

	a, _ := s.Next(nil)
	b, err := s.Next(a)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if b == a {
		t.Fatal("expected an alternate mirror when one exists")
	}
	if b.URL.Host != "b.example.com" {
		t.Errorf("got %s", b.URL.Host)
	}
}

func TestNextFallsBackToAvoided(t *testing.T) {
	s := NewSelector(testResources("only.example.com"), 3)

	r, _ := s.Next(nil)
	same, err := s.Next(r)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if same != r {
		t.Error("a lone mirror must be handed back even when avoided")
	}
}

func TestFailureBudgetExcludes(t *testing.T) {
	s := NewSelector(testResources("a.example.com", "b.example.com"), 2)

	a, _ := s.Next(nil)
	s.ReportFailure(a)
	if s.Remaining() != 2 {
		t.Fatalf("one failure under budget must not exclude")
	}
	s.ReportFailure(a)
	if s.Remaining() != 1 {
		t.Fatalf("budget exhausted, expected exclusion")
	}

	r, err := s.Next(nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if r == a {
		t.Error("excluded mirror handed out again")
	}
}

func TestAllExcludedIsNoMirrors(t *testing.T) {
	s := NewSelector(testResources("a.example.com", "b.example.com"), 1)

	a, _ := s.Next(nil)
	s.Exclude(a)
	b, _ := s.Next(nil)
	s.Exclude(b)

	if _, err := s.Next(nil); !errors.Is(err, domain.ErrNoMirrors) {
		t.Fatalf("expected ErrNoMirrors, got %v", err)
	}
	if _, err := s.NextRanged(nil); !errors.Is(err, domain.ErrNoMirrors) {
		t.Fatalf("expected ErrNoMirrors from NextRanged, got %v", err)
	}
}

func TestNextRangedSkipsKnownUnsupported(t *testing.T) {
	s := NewSelector(testResources("a.example.com", "b.example.com"), 3)

	a, _ := s.Next(nil)
	s.SetRangeSupport(a, false)

	r, err := s.NextRanged(nil)
	if err != nil {
		t.Fatalf("NextRanged: %v", err)
	}
	if r == nil || r.URL.Host != "b.example.com" {
		t.Fatalf("expected the range-capable candidate, got %v", r)
	}
}

func TestNextRangedSignalsStreamFallback(t *testing.T) {
	s := NewSelector(testResources("a.example.com", "b.example.com"), 3)

	a, _ := s.Next(nil)
	s.SetRangeSupport(a, false)
	r, _ := s.NextRanged(nil)
	s.SetRangeSupport(r, false)

	// Candidates remain but none honors ranges: nil, nil tells the caller
	// to re-plan the file as one stream.
	got, err := s.NextRanged(nil)
	if err != nil {
		t.Fatalf("NextRanged: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil resource, got %s", got.URL.Host)
	}
}

func TestRangeSupportMemo(t *testing.T) {
	s := NewSelector(testResources("a.example.com"), 3)
	a, _ := s.Next(nil)

	if _, known := s.RangeSupport(a); known {
		t.Error("range support should be unknown before any response")
	}
	s.SetRangeSupport(a, true)
	ok, known := s.RangeSupport(a)
	if !known || !ok {
		t.Error("memoized range support lost")
	}
}
