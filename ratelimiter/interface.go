package ratelimiter

import (
	"context"
)

// Limiter paces outbound calls to one backend.
// Implementations can be local (in-memory) or distributed (Redis, etc.).
type Limiter interface {
	// Wait blocks until a call may start. Returns an error if the context is
	// cancelled or its deadline would pass before capacity is available.
	Wait(ctx context.Context) error
}
