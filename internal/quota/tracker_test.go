package quota

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// newTestTracker returns a tracker with a controllable clock.
func newTestTracker(windows []Window) (*Tracker, *time.Time) {
	tr := NewTracker(windows)
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }
	return tr, &now
}

func mustCheck(t *testing.T, tr *Tracker, clientID string, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		if err := tr.Check(clientID); err != nil {
			t.Fatalf("check %d failed unexpectedly: %v", i+1, err)
		}
	}
}

func TestCheck_MinuteWindowTripsAtLimit(t *testing.T) {
	tr, _ := newTestTracker(Windows(15, 250, 500))

	mustCheck(t, tr, "1.2.3.4", 15)

	err := tr.Check("1.2.3.4")
	var exceeded *ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("16th check: got %v, want ExceededError", err)
	}
	if exceeded.Window != "minute" {
		t.Errorf("Window = %q, want %q", exceeded.Window, "minute")
	}
	if exceeded.RetryAfter <= 0 || exceeded.RetryAfter > 60 {
		t.Errorf("RetryAfter = %d, want in (0, 60]", exceeded.RetryAfter)
	}
}

func TestCheck_HourWindowTripsAtLimit(t *testing.T) {
	tr, now := newTestTracker(Windows(15, 250, 500))

	// Space requests so the minute window never trips first.
	for i := 0; i < 250; i += 10 {
		mustCheck(t, tr, "client", 10)
		*now = now.Add(61 * time.Second)
	}

	err := tr.Check("client")
	var exceeded *ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("251st check: got %v, want ExceededError", err)
	}
	if exceeded.Window != "hour" {
		t.Errorf("Window = %q, want %q", exceeded.Window, "hour")
	}
}

func TestCheck_DayWindowTripsAtLimit(t *testing.T) {
	tr, now := newTestTracker(Windows(15, 250, 500))

	// Space requests so neither shorter window trips first.
	for i := 0; i < 500; i += 10 {
		mustCheck(t, tr, "client", 10)
		*now = now.Add(10 * time.Minute)
	}

	err := tr.Check("client")
	var exceeded *ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("501st check: got %v, want ExceededError", err)
	}
	if exceeded.Window != "day" {
		t.Errorf("Window = %q, want %q", exceeded.Window, "day")
	}
}

func TestCheck_BucketRefillsWholesaleAtBoundary(t *testing.T) {
	tr, now := newTestTracker(Windows(2, 250, 500))

	mustCheck(t, tr, "client", 2)
	if err := tr.Check("client"); err == nil {
		t.Fatal("expected exhausted minute window")
	}

	// One second short of the boundary: still exhausted, no gradual refill.
	*now = now.Add(59 * time.Second)
	if err := tr.Check("client"); err == nil {
		t.Fatal("expected window still exhausted before boundary")
	}

	*now = now.Add(time.Second)
	mustCheck(t, tr, "client", 2)
}

func TestCheck_RetryAfterCountsDownToBoundary(t *testing.T) {
	tr, now := newTestTracker(Windows(1, 250, 500))

	mustCheck(t, tr, "client", 1)

	*now = now.Add(42 * time.Second)
	err := tr.Check("client")
	var exceeded *ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("got %v, want ExceededError", err)
	}
	if exceeded.RetryAfter != 18 {
		t.Errorf("RetryAfter = %d, want 18", exceeded.RetryAfter)
	}
}

func TestCheck_FailedCheckConsumesNothing(t *testing.T) {
	tr, _ := newTestTracker([]Window{
		{Name: "minute", Limit: 2, Duration: time.Minute},
		{Name: "hour", Limit: 1, Duration: time.Hour},
	})

	mustCheck(t, tr, "client", 1)

	// Hour bucket is now empty; the minute bucket must not lose a point
	// on the failing check.
	if err := tr.Check("client"); err == nil {
		t.Fatal("expected exhausted hour window")
	}

	remaining := tr.Remaining("client")
	if remaining[0] != 1 {
		t.Errorf("minute remaining = %d after failed check, want 1", remaining[0])
	}
	if remaining[1] != 0 {
		t.Errorf("hour remaining = %d, want 0", remaining[1])
	}
}

func TestCheck_ClientsAreIndependent(t *testing.T) {
	tr, _ := newTestTracker(Windows(1, 250, 500))

	mustCheck(t, tr, "alpha", 1)
	if err := tr.Check("alpha"); err == nil {
		t.Fatal("expected alpha exhausted")
	}

	if err := tr.Check("beta"); err != nil {
		t.Fatalf("beta should have full budget: %v", err)
	}
}

func TestCheck_NoDoubleSpendUnderConcurrency(t *testing.T) {
	tr := NewTracker(Windows(5, 250, 500))

	const attempts = 50
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- tr.Check("client")
		}()
	}
	wg.Wait()
	close(results)

	allowed := 0
	for err := range results {
		if err == nil {
			allowed++
		}
	}
	if allowed != 5 {
		t.Errorf("allowed = %d concurrent checks, want exactly 5", allowed)
	}
}

func TestRemaining_UnknownClientReportsFullBudgets(t *testing.T) {
	tr, _ := newTestTracker(Windows(15, 250, 500))

	remaining := tr.Remaining("never-seen")
	want := []int{15, 250, 500}
	for i, r := range remaining {
		if r != want[i] {
			t.Errorf("remaining[%d] = %d, want %d", i, r, want[i])
		}
	}
}
