package stylegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mhpenta/stylegen/ratelimiter"
)

var (
	// KnownTextBackends are the identifiers accepted in the text-stage queue.
	KnownTextBackends = []BackendID{BackendGemini, BackendLocal}

	// KnownImageBackends are the identifiers accepted in the image-stage queue.
	KnownImageBackends = []BackendID{BackendGemini, BackendOpenAI}
)

// Orchestrator turns creative requests into images by running the text
// enhancement stage and then each configured image backend in order until one
// succeeds. Every request is strictly sequential; state shared between
// requests is limited to the DisablementState.
type Orchestrator struct {
	backends     map[BackendID]Backend
	textBackends map[BackendID]TextBackend

	// Raw queue settings, resolved with ParseQueue on every request.
	textQueue  string
	imageQueue string

	disabled *DisablementState
	fetcher  *Fetcher
	limiters ratelimiter.Registry
	storage  Storage
	logger   *slog.Logger

	newRequestID func() string

	mu sync.RWMutex
}

// New creates an Orchestrator. Without options it has no backends, so every
// style transfer degrades to the source image and every text-to-image request
// fails with an ExhaustedError.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backends:     make(map[BackendID]Backend),
		textBackends: make(map[BackendID]TextBackend),
		disabled:     NewDisablementState(),
		logger:       slog.Default(),
		newRequestID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.fetcher == nil {
		o.fetcher = NewFetcher(WithFetchLogger(o.logger))
	}
	return o
}

// StyleExistingImage restyles the request's source image. The returned error
// is non-nil only for invalid input or a cancelled context; when every backend
// fails the source URL is returned unchanged.
func (o *Orchestrator) StyleExistingImage(ctx context.Context, req *GenerationRequest) (string, error) {
	if req == nil {
		return "", ErrNilRequest
	}
	r := *req
	r.Mode = ModeStyleTransfer
	if err := ValidateRequest(&r); err != nil {
		return "", err
	}

	logger := o.requestLogger(r.Mode)
	start := time.Now()

	logger.Debug("starting style transfer",
		"title", r.Book.Title,
		"reference_count", len(r.ReferenceImageURLs),
	)

	style := o.enhance(ctx, logger, StyleEnhancementPrompt(r.Book), LocalStyleDescription(r.Book))

	job := &Job{
		Mode:       r.Mode,
		Book:       r.Book,
		Style:      style,
		Prompt:     StylePrompt(r.Book, style),
		References: o.fetcher.FetchAll(ctx, r.ReferenceImageURLs),
	}
	if src, err := o.fetcher.Fetch(ctx, r.SourceImageURL); err != nil {
		logger.Warn("failed to fetch source image", "error", err.Error())
	} else {
		job.Source = &src
	}

	img, err := o.generate(ctx, logger, job)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		logger.Error("all image backends failed, returning original image",
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return r.SourceImageURL, nil
	}

	logger.Info("style transfer completed",
		"duration_ms", duration.Milliseconds(),
		"mime_type", img.MIMEType(),
		"image_size", img.Len(),
	)
	return DataURI(img), nil
}

// GenerateFromPrompt creates a new image from the request's user prompt. On
// total exhaustion it returns an *ExhaustedError carrying the last failure of
// every pathway that was attempted.
func (o *Orchestrator) GenerateFromPrompt(ctx context.Context, req *GenerationRequest) (string, error) {
	if req == nil {
		return "", ErrNilRequest
	}
	r := *req
	r.Mode = ModeTextToImage
	if err := ValidateRequest(&r); err != nil {
		return "", err
	}

	logger := o.requestLogger(r.Mode)
	start := time.Now()

	logger.Debug("starting text-to-image generation",
		"title", r.Book.Title,
		"prompt_length", len(r.UserPrompt),
		"reference_count", len(r.ReferenceImageURLs),
	)

	visual := o.enhance(ctx, logger,
		InspirationEnhancementPrompt(r.Book, r.UserPrompt),
		LocalVisualPrompt(r.Book, r.UserPrompt),
	)

	job := &Job{
		Mode:       r.Mode,
		Book:       r.Book,
		Style:      visual,
		Prompt:     visual,
		References: o.fetcher.FetchAll(ctx, r.ReferenceImageURLs),
	}

	img, err := o.generate(ctx, logger, job)
	duration := time.Since(start)

	if err != nil {
		logger.Error("text-to-image generation failed",
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return "", err
	}

	logger.Info("text-to-image generation completed",
		"duration_ms", duration.Milliseconds(),
		"mime_type", img.MIMEType(),
		"image_size", img.Len(),
	)
	return DataURI(img), nil
}

// EnhanceStyle runs only the text enhancement stage for req and returns the
// style description (style transfer) or visual prompt (text-to-image). It
// never returns an empty string.
func (o *Orchestrator) EnhanceStyle(ctx context.Context, req *GenerationRequest) string {
	if req == nil {
		req = &GenerationRequest{}
	}
	logger := o.requestLogger(req.Mode)
	if req.Mode == ModeTextToImage {
		return o.enhance(ctx, logger,
			InspirationEnhancementPrompt(req.Book, req.UserPrompt),
			LocalVisualPrompt(req.Book, req.UserPrompt),
		)
	}
	return o.enhance(ctx, logger, StyleEnhancementPrompt(req.Book), LocalStyleDescription(req.Book))
}

// Plan returns the attempts the image stage would run for job, in order,
// without performing any network call. Backends that are missing or disabled
// contribute nothing. Guarded attempts are included; whether they run depends
// on earlier failures.
func (o *Orchestrator) Plan(job *Job) []Attempt {
	var plan []Attempt
	for _, id := range o.ImageQueue() {
		b, ok := o.backend(id)
		if !ok || o.disabled.Disabled(id, CapabilityImage) {
			continue
		}
		plan = append(plan, b.Plan(job)...)
	}
	return plan
}

// TextQueue returns the resolved text-stage provider order.
func (o *Orchestrator) TextQueue() []BackendID {
	o.mu.RLock()
	raw := o.textQueue
	o.mu.RUnlock()
	return ParseQueue(raw, KnownTextBackends, DefaultTextQueue)
}

// ImageQueue returns the resolved image-stage backend order.
func (o *Orchestrator) ImageQueue() []BackendID {
	o.mu.RLock()
	raw := o.imageQueue
	o.mu.RUnlock()
	return ParseQueue(raw, KnownImageBackends, DefaultImageQueue)
}

// Disablement returns the state shared by this orchestrator's requests.
func (o *Orchestrator) Disablement() *DisablementState {
	return o.disabled
}

// SaveResult persists a reference returned by StyleExistingImage or
// GenerateFromPrompt to the configured storage. See SaveImageRef.
func (o *Orchestrator) SaveResult(ctx context.Context, ref string, basePath string) (StorageResult, error) {
	o.mu.RLock()
	storage := o.storage
	o.mu.RUnlock()

	return SaveImageRef(ctx, storage, ref, basePath)
}

// enhance runs the text stage. local is returned when no queued text backend
// produces a non-empty result.
func (o *Orchestrator) enhance(ctx context.Context, logger *slog.Logger, prompt, local string) string {
	queue := o.TextQueue()
	logger.Debug("text stage providers", "queue", joinIDs(queue))

	for _, id := range queue {
		if id == BackendLocal {
			logger.Debug("text stage using local template")
			return local
		}

		tb, ok := o.textBackend(id)
		if !ok {
			logger.Debug("text backend not configured, skipping", "backend", string(id))
			continue
		}
		if o.disabled.Disabled(id, CapabilityTextStyle) {
			logger.Warn("text backend disabled for this process, skipping", "backend", string(id))
			continue
		}

		if text, ok := o.enhanceWith(ctx, logger, tb, prompt); ok {
			return text
		}
	}

	logger.Debug("text stage falling back to local template")
	return local
}

// enhanceWith rotates through tb's credentials. It disables the backend for
// text-style work when any failure carried a zero-quota signature or when
// every credential failed with a rate or quota error.
func (o *Orchestrator) enhanceWith(ctx context.Context, logger *slog.Logger, tb TextBackend, prompt string) (string, bool) {
	id := tb.ID()
	creds := tb.Credentials()
	if len(creds) == 0 {
		logger.Warn("text backend has no credentials, skipping", "backend", string(id))
		return "", false
	}

	var (
		sawZeroQuota bool
		rateFailures int
	)
	for i, cred := range creds {
		if ctx.Err() != nil {
			return "", false
		}
		if err := o.wait(ctx, id); err != nil {
			return "", false
		}

		text, err := tb.GenerateText(ctx, cred, prompt)
		if err == nil {
			if text = strings.TrimSpace(text); text != "" {
				logger.Info("text stage completed",
					"backend", string(id),
					"key", i+1,
					"length", len(text),
				)
				return text, true
			}
			logger.Warn("text backend returned empty text", "backend", string(id), "key", i+1)
			continue
		}

		class := classifyError(err)
		if class == ClassQuotaExhausted || IsZeroQuota(err.Error()) {
			sawZeroQuota = true
		}
		if class == ClassRateLimited || class == ClassQuotaExhausted {
			rateFailures++
		}
		logger.Warn("text backend failed",
			"backend", string(id),
			"key", i+1,
			"class", class.String(),
			"error", err.Error(),
		)
	}

	if sawZeroQuota || rateFailures == len(creds) {
		if o.disabled.Disable(id, CapabilityTextStyle) {
			logger.Warn("disabling text backend for this process",
				"backend", string(id),
				"zero_quota", sawZeroQuota,
			)
		}
	}
	return "", false
}

// generate runs the image stage for job.
func (o *Orchestrator) generate(ctx context.Context, logger *slog.Logger, job *Job) (EncodedImage, error) {
	queue := o.ImageQueue()
	logger.Debug("image stage providers", "queue", joinIDs(queue))

	var failures pathwayFailures
	for _, id := range queue {
		b, ok := o.backend(id)
		if !ok {
			logger.Debug("image backend not configured, skipping", "backend", string(id))
			continue
		}
		if o.disabled.Disabled(id, CapabilityImage) {
			logger.Warn("image backend disabled for this process, skipping", "backend", string(id))
			continue
		}

		img, ok, err := o.runBackend(ctx, logger, b, job, &failures)
		if err != nil {
			return EncodedImage{}, err
		}
		if ok {
			return img, nil
		}
	}

	return EncodedImage{}, &ExhaustedError{Failures: failures.list()}
}

// runBackend drives one backend's attempt plan. It returns ok on the first
// success, and a non-nil error only when ctx is done.
func (o *Orchestrator) runBackend(ctx context.Context, logger *slog.Logger, b Backend, job *Job, failures *pathwayFailures) (EncodedImage, bool, error) {
	id := b.ID()
	var prev *AttemptError

	for _, a := range b.Plan(job) {
		if a.When != nil && !a.When(prev) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return EncodedImage{}, false, err
		}
		if err := o.wait(ctx, id); err != nil {
			return EncodedImage{}, false, err
		}

		logger.Debug("starting attempt", "attempt", a.String())
		start := time.Now()
		out := a.Run(ctx)
		duration := time.Since(start)

		if out.OK() {
			logger.Info("attempt succeeded",
				"attempt", a.String(),
				"duration_ms", duration.Milliseconds(),
			)
			return out.Image, true, nil
		}

		fail := out.Err
		if fail.Backend == "" {
			fail.Backend = a.Backend
		}
		if fail.Pathway == "" {
			fail.Pathway = a.Pathway
		}
		if fail.Model == "" {
			fail.Model = a.Model
		}
		failures.add(fail)
		prev = fail

		logger.Warn("attempt failed",
			"attempt", a.String(),
			"class", fail.Class.String(),
			"status", fail.Status,
			"duration_ms", duration.Milliseconds(),
			"error", fail.Error(),
		)

		if fail.Class == ClassQuotaExhausted {
			if o.disabled.Disable(id, CapabilityImage) {
				logger.Warn("zero quota detected, disabling image backend for this process", "backend", string(id))
			}
			return EncodedImage{}, false, nil
		}
		if a.stops(fail.Class) {
			logger.Debug("skipping rest of backend plan", "backend", string(id), "class", fail.Class.String())
			return EncodedImage{}, false, nil
		}
	}
	return EncodedImage{}, false, nil
}

func (o *Orchestrator) wait(ctx context.Context, id BackendID) error {
	o.mu.RLock()
	limiters := o.limiters
	o.mu.RUnlock()

	if limiters == nil {
		return nil
	}
	limiter, ok := limiters.Get(string(id))
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}

func (o *Orchestrator) backend(id BackendID) (Backend, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	b, ok := o.backends[id]
	return b, ok
}

func (o *Orchestrator) textBackend(id BackendID) (TextBackend, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	tb, ok := o.textBackends[id]
	return tb, ok
}

func (o *Orchestrator) requestLogger(mode Mode) *slog.Logger {
	return o.logger.With("request_id", o.newRequestID(), "mode", string(mode))
}

// classifyError returns the class of an AttemptError, or classifies the
// message of any other error.
func classifyError(err error) ErrorClass {
	var attErr *AttemptError
	if errors.As(err, &attErr) {
		return attErr.Class
	}
	return Classify(0, err.Error())
}

// pathwayFailures keeps the last failure per (backend, pathway), in the order
// pathways were first seen.
type pathwayFailures struct {
	order []string
	last  map[string]*AttemptError
}

func (p *pathwayFailures) add(err *AttemptError) {
	key := fmt.Sprintf("%s/%s", err.Backend, err.Pathway)
	if p.last == nil {
		p.last = make(map[string]*AttemptError)
	}
	if _, seen := p.last[key]; !seen {
		p.order = append(p.order, key)
	}
	p.last[key] = err
}

func (p *pathwayFailures) list() []*AttemptError {
	out := make([]*AttemptError, 0, len(p.order))
	for _, key := range p.order {
		out = append(out, p.last[key])
	}
	return out
}

func joinIDs(ids []BackendID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}
