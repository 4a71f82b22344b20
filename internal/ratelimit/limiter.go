// Package ratelimit paces outbound requests with a shared token bucket.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by every concurrent fetch of a crawl.
//
// Tokens accumulate continuously at the configured rate, so N waiting
// requests are spread out evenly instead of being released in bursts at
// whole-second boundaries. The bucket holds a single token; acquisition
// order between competing goroutines is not FIFO.
//
// A nil *Limiter never throttles.
type Limiter struct {
	limiter *rate.Limiter
}

// New returns a Limiter allowing requestsPerSecond sustained requests.
// A non-positive rate disables throttling and New returns nil.
func New(requestsPerSecond float64) *Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1)}
}

// Acquire blocks until a token is available.
// The only error is the context's, when it is cancelled while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Rate returns the configured requests per second, or 0 when unthrottled.
func (l *Limiter) Rate() float64 {
	if l == nil {
		return 0
	}
	return float64(l.limiter.Limit())
}
