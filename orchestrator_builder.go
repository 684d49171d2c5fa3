package stylegen

import (
	"log/slog"

	"github.com/mhpenta/stylegen/ratelimiter"
)

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a structured logger for the orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithBackend registers an image backend under its ID. Registering the same
// ID twice replaces the earlier backend.
func WithBackend(b Backend) Option {
	return func(o *Orchestrator) {
		o.backends[b.ID()] = b
	}
}

// WithTextBackend registers a text backend for the enhancement stage.
func WithTextBackend(tb TextBackend) Option {
	return func(o *Orchestrator) {
		o.textBackends[tb.ID()] = tb
	}
}

// WithTextQueue sets the comma-separated text-stage provider order, for
// example "gemini,local".
func WithTextQueue(raw string) Option {
	return func(o *Orchestrator) {
		o.textQueue = raw
	}
}

// WithImageQueue sets the comma-separated image-stage backend order, for
// example "gemini,openai".
func WithImageQueue(raw string) Option {
	return func(o *Orchestrator) {
		o.imageQueue = raw
	}
}

// WithFetcher sets the image fetcher used for source and reference images.
func WithFetcher(f *Fetcher) Option {
	return func(o *Orchestrator) {
		o.fetcher = f
	}
}

// WithDisablementState shares a disablement state with other orchestrators.
// Tests normally leave the default so each orchestrator starts fresh.
func WithDisablementState(s *DisablementState) Option {
	return func(o *Orchestrator) {
		o.disabled = s
	}
}

// WithRateLimiters paces calls per backend. Backends without a limiter in the
// registry are not paced.
func WithRateLimiters(registry ratelimiter.Registry) Option {
	return func(o *Orchestrator) {
		o.limiters = registry
	}
}

// WithStorage sets a storage backend for persisting results.
func WithStorage(storage Storage) Option {
	return func(o *Orchestrator) {
		o.storage = storage
	}
}

// WithRequestIDFunc overrides how request ids are generated.
func WithRequestIDFunc(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newRequestID = fn
	}
}
