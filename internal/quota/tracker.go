// Package quota enforces per-client fixed-window request budgets.
package quota

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Window describes one fixed-duration budget. The bucket refills wholesale
// at the window boundary, never gradually.
type Window struct {
	Name     string
	Limit    int
	Duration time.Duration
}

// Windows builds the standard minute/hour/day budget set with the given
// limits, in checking order.
func Windows(minuteLimit, hourLimit, dayLimit int) []Window {
	return []Window{
		{Name: "minute", Limit: minuteLimit, Duration: time.Minute},
		{Name: "hour", Limit: hourLimit, Duration: time.Hour},
		{Name: "day", Limit: dayLimit, Duration: 24 * time.Hour},
	}
}

// ExceededError reports an exhausted window and when it next resets.
type ExceededError struct {
	Window     string
	RetryAfter int // seconds until the failing window resets
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("Rate limit exceeded: %s window, retry in %ds", e.Window, e.RetryAfter)
}

type bucket struct {
	remaining int
	resetAt   time.Time
}

// Tracker maintains the per-client buckets for a set of windows. All
// windows are checked conjunctively and consumed together; a failed check
// consumes nothing.
type Tracker struct {
	mu      sync.Mutex
	windows []Window
	buckets map[string][]bucket
	now     func() time.Time
}

// NewTracker constructs a Tracker for the given windows. Buckets are
// created lazily per client and live for the life of the process.
func NewTracker(windows []Window) *Tracker {
	return &Tracker{
		windows: windows,
		buckets: make(map[string][]bucket),
		now:     time.Now,
	}
}

// Check consumes one point from every window for clientID. Windows are
// inspected in declaration order; the first exhausted window aborts the
// check and nothing is consumed.
func (t *Tracker) Check(clientID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	bs, ok := t.buckets[clientID]
	if !ok {
		bs = make([]bucket, len(t.windows))
		for i, w := range t.windows {
			bs[i] = bucket{remaining: w.Limit, resetAt: now.Add(w.Duration)}
		}
		t.buckets[clientID] = bs
	}

	for i, w := range t.windows {
		if !now.Before(bs[i].resetAt) {
			bs[i].remaining = w.Limit
			bs[i].resetAt = now.Add(w.Duration)
		}
		if bs[i].remaining <= 0 {
			return &ExceededError{
				Window:     w.Name,
				RetryAfter: secondsUntil(now, bs[i].resetAt),
			}
		}
	}

	for i := range bs {
		bs[i].remaining--
	}
	return nil
}

// Remaining reports the points left in each window for clientID without
// consuming anything. Clients never seen report full budgets.
func (t *Tracker) Remaining(clientID string) []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	out := make([]int, len(t.windows))
	bs, ok := t.buckets[clientID]
	for i, w := range t.windows {
		if !ok || !now.Before(bs[i].resetAt) {
			out[i] = w.Limit
			continue
		}
		out[i] = bs[i].remaining
	}
	return out
}

func secondsUntil(now, deadline time.Time) int {
	secs := int(math.Ceil(deadline.Sub(now).Seconds()))
	if secs < 0 {
		return 0
	}
	return secs
}
