// Package openai provides the tool-based image backend using the OpenAI REST
// API.
//
// Style transfer runs two strategies in order: a direct multipart edit on
// /images/edits (with an optional downgrade to a legacy edit model), then
// image_generation tool calls on /responses across an ordered list of
// response models. Text-to-image runs /images/generations through the
// go-openai SDK, then text-only tool calls.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/mhpenta/stylegen"
)

// Defaults applied by New for empty Config fields.
const (
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultImageModel     = "gpt-image-1.5"
	DefaultResponsesModel = "gpt-4.1-nano"
	DefaultLegacyModel    = "dall-e-2"
	DefaultSize           = "1024x1024"
	DefaultQuality        = "medium"
	DefaultOutputFormat   = "png"
	defaultHTTPTimeout    = 2 * time.Minute
)

// DefaultFallbackResponseModels are tried after the primary response model.
var DefaultFallbackResponseModels = []string{"gpt-4o-mini", "gpt-4.1-mini", "gpt-4o"}

// Pathway names used in attempts and errors.
const (
	PathwayEdits       = "images-edits"
	PathwayLegacyEdits = "images-edits-legacy"
	PathwayResponses   = "responses-tool"
	PathwayGenerations = "images-generations"
)

// Negotiation bounds per pathway.
const (
	maxEditRounds       = 8
	maxResponseRounds   = 10
	maxGenerationRounds = 4

	// maxEditReferences is the number of reference images sent alongside the
	// source image.
	maxEditReferences = 3

	maxErrorBodyBytes = 1 << 20
)

// Config configures the OpenAI backend.
type Config struct {
	APIKey  string
	BaseURL string

	// ImageModel targets /images/edits and /images/generations.
	ImageModel string

	// ToolModel is the image model named inside the image_generation tool.
	// Defaults to ImageModel.
	ToolModel string

	// ResponsesModel is tried first on /responses, then FallbackResponseModels.
	// A nil FallbackResponseModels uses the defaults; an empty one disables
	// fallbacks.
	ResponsesModel         string
	FallbackResponseModels []string

	// Optional generation parameters seeding each attempt's parameter set.
	Size          string
	Quality       string
	OutputFormat  string
	InputFidelity string
	Action        string

	// LegacyFallback enables the downgrade to LegacyModel when the edit
	// endpoint demands it.
	LegacyFallback bool
	LegacyModel    string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Backend is the single-key OpenAI image backend.
type Backend struct {
	cfg     Config
	client  *http.Client
	sdk     *goopenai.Client
	fetcher *stylegen.Fetcher
	logger  *slog.Logger
}

var _ stylegen.Backend = (*Backend)(nil)

// New creates a Backend, filling unset Config fields with defaults. A Backend
// without an API key plans no attempts.
func New(cfg Config) *Backend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	if cfg.ToolModel == "" {
		cfg.ToolModel = cfg.ImageModel
	}
	if cfg.ResponsesModel == "" {
		cfg.ResponsesModel = DefaultResponsesModel
	}
	if cfg.FallbackResponseModels == nil {
		cfg.FallbackResponseModels = DefaultFallbackResponseModels
	}
	if cfg.LegacyModel == "" {
		cfg.LegacyModel = DefaultLegacyModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	sdkCfg := goopenai.DefaultConfig(cfg.APIKey)
	sdkCfg.BaseURL = cfg.BaseURL
	sdkCfg.HTTPClient = cfg.HTTPClient

	return &Backend{
		cfg:    cfg,
		client: cfg.HTTPClient,
		sdk:    goopenai.NewClientWithConfig(sdkCfg),
		fetcher: stylegen.NewFetcher(
			stylegen.WithFetchHTTPClient(cfg.HTTPClient),
			stylegen.WithFetchCacheTTL(0),
			stylegen.WithFetchLogger(cfg.Logger),
		),
		logger: cfg.Logger,
	}
}

// ID returns stylegen.BackendOpenAI.
func (b *Backend) ID() stylegen.BackendID {
	return stylegen.BackendOpenAI
}

// Plan returns the ordered attempts for job. Style transfer without a source
// image plans nothing.
func (b *Backend) Plan(job *stylegen.Job) []stylegen.Attempt {
	if strings.TrimSpace(b.cfg.APIKey) == "" {
		return nil
	}

	var plan []stylegen.Attempt
	switch {
	case job.Mode == stylegen.ModeTextToImage:
		plan = append(plan, stylegen.Attempt{
			Backend: stylegen.BackendOpenAI,
			Pathway: PathwayGenerations,
			Model:   b.cfg.ImageModel,
			StopOn:  []stylegen.ErrorClass{stylegen.ClassAuthFailure},
			Run: func(ctx context.Context) stylegen.Outcome {
				return b.generate(ctx, job)
			},
		})
	case job.Source != nil && !job.Source.IsZero():
		plan = append(plan, b.editAttempt(job, b.cfg.ImageModel, PathwayEdits, nil))
		if b.cfg.LegacyFallback && !strings.EqualFold(b.cfg.ImageModel, b.cfg.LegacyModel) {
			plan = append(plan, b.editAttempt(job, b.cfg.LegacyModel, PathwayLegacyEdits, b.requiresLegacyModel))
		}
	default:
		return nil
	}

	for _, model := range b.responseModels() {
		plan = append(plan, stylegen.Attempt{
			Backend: stylegen.BackendOpenAI,
			Pathway: PathwayResponses,
			Model:   model,
			StopOn:  []stylegen.ErrorClass{stylegen.ClassAuthFailure},
			Run: func(ctx context.Context) stylegen.Outcome {
				return b.respond(ctx, model, job)
			},
		})
	}
	return plan
}

func (b *Backend) editAttempt(job *stylegen.Job, model, pathway string, when func(*stylegen.AttemptError) bool) stylegen.Attempt {
	return stylegen.Attempt{
		Backend: stylegen.BackendOpenAI,
		Pathway: pathway,
		Model:   model,
		When:    when,
		StopOn:  []stylegen.ErrorClass{stylegen.ClassAuthFailure},
		Run: func(ctx context.Context) stylegen.Outcome {
			return b.edit(ctx, model, pathway, job)
		},
	}
}

// requiresLegacyModel reports whether the primary edit failed because the
// endpoint only accepts the configured legacy model.
func (b *Backend) requiresLegacyModel(prev *stylegen.AttemptError) bool {
	if prev == nil || prev.Pathway != PathwayEdits || prev.Class != stylegen.ClassUnsupportedParameter {
		return false
	}
	required, ok := stylegen.RequiredModel(prev.Body)
	return ok && strings.EqualFold(required, b.cfg.LegacyModel)
}

// responseModels returns the primary response model followed by the
// fallbacks, de-duplicated with order preserved.
func (b *Backend) responseModels() []string {
	seen := make(map[string]bool)
	var models []string
	for _, m := range append([]string{b.cfg.ResponsesModel}, b.cfg.FallbackResponseModels...) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}
	return models
}

// do sends req with the API key and returns the body of a 2xx response. Any
// other status becomes a classified AttemptError carrying the raw body.
func (b *Backend) do(req *http.Request, pathway, model string) ([]byte, *stylegen.AttemptError) {
	req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, transportError(err, pathway, model)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		body := strings.TrimSpace(string(raw))
		return nil, &stylegen.AttemptError{
			Backend: stylegen.BackendOpenAI,
			Pathway: pathway,
			Model:   model,
			Class:   stylegen.Classify(resp.StatusCode, body),
			Status:  resp.StatusCode,
			Body:    body,
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(fmt.Errorf("failed to read response: %w", err), pathway, model)
	}
	return raw, nil
}

// decodeImages turns an images API response into an image. Inline base64
// payloads take priority over URLs, which are downloaded.
func (b *Backend) decodeImages(ctx context.Context, raw []byte, mimeType, pathway, model string) stylegen.Outcome {
	var out imagesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return stylegen.Failure(softError(fmt.Errorf("failed to decode response: %w", err), pathway, model))
	}
	if len(out.Data) == 0 {
		return stylegen.Failure(softError(errNoImage, pathway, model))
	}

	first := out.Data[0]
	switch {
	case first.B64JSON != "":
		img, err := stylegen.DecodeBase64Image(first.B64JSON, mimeType)
		if err != nil {
			return stylegen.Failure(softError(err, pathway, model))
		}
		return stylegen.Success(img)
	case first.URL != "":
		img, err := b.fetcher.Fetch(ctx, first.URL)
		if err != nil {
			return stylegen.Failure(softError(fmt.Errorf("image download failed: %w", err), pathway, model))
		}
		return stylegen.Success(img)
	default:
		return stylegen.Failure(softError(errNoImage, pathway, model))
	}
}

type imagesResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json,omitempty"`
		URL     string `json:"url,omitempty"`
	} `json:"data"`
}

var errNoImage = errors.New("response contained no image")

func softError(err error, pathway, model string) *stylegen.AttemptError {
	return &stylegen.AttemptError{
		Backend: stylegen.BackendOpenAI,
		Pathway: pathway,
		Model:   model,
		Class:   stylegen.ClassSoftFailure,
		Err:     err,
	}
}

func transportError(err error, pathway, model string) *stylegen.AttemptError {
	return &stylegen.AttemptError{
		Backend: stylegen.BackendOpenAI,
		Pathway: pathway,
		Model:   model,
		Class:   stylegen.Classify(0, err.Error()),
		Err:     err,
	}
}
