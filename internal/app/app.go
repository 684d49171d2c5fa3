// Package app wires an Orchestrator from configuration.
package app

import (
	"log/slog"
	"net/http"

	"github.com/mhpenta/stylegen"
	"github.com/mhpenta/stylegen/internal/config"
	"github.com/mhpenta/stylegen/provider/gemini"
	"github.com/mhpenta/stylegen/provider/openai"
	"github.com/mhpenta/stylegen/ratelimiter"
)

// Options overrides parts of the wiring, mainly for tests.
type Options struct {
	Logger        *slog.Logger
	HTTPClient    *http.Client
	GeminiFactory gemini.ClientFactory
	Storage       stylegen.Storage
}

// NewOrchestrator builds an Orchestrator with the Gemini text and image
// backends and the OpenAI image backend. Backends without credentials are
// still registered; they simply plan no attempts.
func NewOrchestrator(cfg *config.Config, opts Options) *stylegen.Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	factory := opts.GeminiFactory
	if factory == nil {
		factory = gemini.NewClientFactory(cfg.Gemini.BaseURL, httpClient)
	}

	geminiClient := gemini.NewClient(cfg.Gemini.Credentials,
		gemini.WithClientFactory(factory),
		gemini.WithLogger(logger),
	)

	openaiBackend := openai.New(openai.Config{
		APIKey:                 cfg.OpenAI.APIKey,
		BaseURL:                cfg.OpenAI.BaseURL,
		ImageModel:             cfg.OpenAI.ImageModel,
		ToolModel:              cfg.OpenAI.ToolModel,
		ResponsesModel:         cfg.OpenAI.ResponsesModel,
		FallbackResponseModels: cfg.OpenAI.FallbackResponseModels,
		Size:                   cfg.OpenAI.Size,
		Quality:                cfg.OpenAI.Quality,
		OutputFormat:           cfg.OpenAI.OutputFormat,
		InputFidelity:          cfg.OpenAI.InputFidelity,
		Action:                 cfg.OpenAI.Action,
		LegacyFallback:         cfg.OpenAI.LegacyFallback,
		LegacyModel:            cfg.OpenAI.LegacyModel,
		HTTPClient:             httpClient,
		Logger:                 logger,
	})

	fetcher := stylegen.NewFetcher(
		stylegen.WithFetchHTTPClient(httpClient),
		stylegen.WithFetchCacheTTL(cfg.ImageCacheTTL),
		stylegen.WithFetchLogger(logger),
	)

	options := []stylegen.Option{
		stylegen.WithLogger(logger),
		stylegen.WithTextQueue(cfg.TextQueue),
		stylegen.WithImageQueue(cfg.ImageQueue),
		stylegen.WithTextBackend(gemini.NewTextWriter(geminiClient, cfg.Gemini.TextModel)),
		stylegen.WithBackend(gemini.NewImageBackend(geminiClient, cfg.Gemini.ImageModel)),
		stylegen.WithBackend(openaiBackend),
		stylegen.WithFetcher(fetcher),
	}

	if newLimiter := limiterFactory(cfg); newLimiter != nil {
		options = append(options, stylegen.WithRateLimiters(
			ratelimiter.NewUniformRegistry(stylegen.KnownImageBackends, newLimiter),
		))
	}

	if opts.Storage != nil {
		options = append(options, stylegen.WithStorage(opts.Storage))
	}

	return stylegen.New(options...)
}

// limiterFactory returns nil when pacing is off.
func limiterFactory(cfg *config.Config) func() ratelimiter.Limiter {
	switch {
	case cfg.BackendRateInterval > 0:
		return func() ratelimiter.Limiter {
			return ratelimiter.Every(cfg.BackendRateInterval, cfg.BackendRateBurst)
		}
	case cfg.BackendRatePerSecond > 0:
		return func() ratelimiter.Limiter {
			return ratelimiter.New(cfg.BackendRatePerSecond, cfg.BackendRateBurst)
		}
	default:
		return nil
	}
}
