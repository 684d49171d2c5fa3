package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter is an in-memory token bucket backed by x/time/rate.
type LocalLimiter struct {
	limiter *rate.Limiter
}

// Ensure LocalLimiter implements Limiter.
var _ Limiter = (*LocalLimiter)(nil)

// New creates a limiter admitting perSecond calls on average with the given
// burst. A non-positive perSecond yields an unlimited limiter.
func New(perSecond float64, burst int) *LocalLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return newLocal(limit, burst)
}

// Every creates a limiter admitting one call per interval with the given burst.
// A non-positive interval yields an unlimited limiter.
func Every(interval time.Duration, burst int) *LocalLimiter {
	return newLocal(rate.Every(interval), burst)
}

func newLocal(limit rate.Limit, burst int) *LocalLimiter {
	if burst < 1 {
		burst = 1
	}
	return &LocalLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a call may start or ctx is done.
func (l *LocalLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
