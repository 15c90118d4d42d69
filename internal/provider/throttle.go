package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Throttled wraps a Client with token-bucket pacing of outbound calls.
// There are no retries: a failed upstream call is terminal for the
// request regardless of pacing.
type Throttled struct {
	inner   Client
	limiter *rate.Limiter
}

// NewThrottled wraps inner with a limiter sustaining requestsPerMinute
// with the given burst.
func NewThrottled(inner Client, requestsPerMinute float64, burst int) (*Throttled, error) {
	if inner == nil {
		return nil, fmt.Errorf("throttle: inner client must not be nil")
	}
	if requestsPerMinute <= 0 {
		return nil, fmt.Errorf("throttle: requestsPerMinute must be > 0")
	}
	if burst <= 0 {
		return nil, fmt.Errorf("throttle: burst must be > 0")
	}

	perSecond := rate.Limit(requestsPerMinute / 60.0)
	return &Throttled{
		inner:   inner,
		limiter: rate.NewLimiter(perSecond, burst),
	}, nil
}

// Name delegates to the inner client.
func (t *Throttled) Name() string { return t.inner.Name() }

// Complete waits for a pacing token then calls the inner client.
func (t *Throttled) Complete(ctx context.Context, prompt string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("throttle wait: %w", err)
	}
	return t.inner.Complete(ctx, prompt)
}
