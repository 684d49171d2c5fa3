// Package gemini provides the multi-key image backend and the text
// enhancement writer using Google's Gemini API.
//
// This provider uses the Gemini API backend via the official Go SDK:
// https://github.com/googleapis/go-genai
//
// Both types rotate through an ordered credential list; one genai client is
// created lazily per credential and reused afterwards.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"google.golang.org/genai"

	"github.com/mhpenta/stylegen"
)

// Default API model names.
const (
	DefaultImageModel = "gemini-2.5-flash-image"
	DefaultTextModel  = "gemini-2.5-flash"
)

// ContentGenerator is the subset of the genai Models service used here.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var _ ContentGenerator = (*genai.Models)(nil)

// ClientFactory creates a ContentGenerator authenticated with apiKey.
type ClientFactory func(ctx context.Context, apiKey string) (ContentGenerator, error)

// NewClientFactory returns a factory building Gemini API clients. baseURL and
// httpClient are optional.
func NewClientFactory(baseURL string, httpClient *http.Client) ClientFactory {
	return func(ctx context.Context, apiKey string) (ContentGenerator, error) {
		cfg := &genai.ClientConfig{
			APIKey:     apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: httpClient,
		}
		if baseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
		}

		client, err := genai.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return client.Models, nil
	}
}

// Client holds the credential list and one lazily created generator per
// credential.
type Client struct {
	credentials []stylegen.Credential
	factory     ClientFactory
	logger      *slog.Logger

	generators map[stylegen.Credential]ContentGenerator
	mu         sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithClientFactory overrides how generators are created.
func WithClientFactory(factory ClientFactory) Option {
	return func(c *Client) {
		c.factory = factory
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client rotating through credentials in order.
func NewClient(credentials []stylegen.Credential, opts ...Option) *Client {
	c := &Client{
		credentials: append([]stylegen.Credential(nil), credentials...),
		factory:     NewClientFactory("", nil),
		logger:      slog.Default(),
		generators:  make(map[stylegen.Credential]ContentGenerator),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Credentials returns the rotation list.
func (c *Client) Credentials() []stylegen.Credential {
	return append([]stylegen.Credential(nil), c.credentials...)
}

func (c *Client) generator(ctx context.Context, cred stylegen.Credential) (ContentGenerator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen, ok := c.generators[cred]; ok {
		return gen, nil
	}
	gen, err := c.factory(ctx, string(cred))
	if err != nil {
		return nil, err
	}
	c.generators[cred] = gen
	return gen, nil
}

// permissiveSafetySettings disables blocking for every adjustable category.
// Inputs are user-supplied photos restyled for a creative purpose, and the
// default thresholds reject too many of them.
func permissiveSafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  category,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return settings
}

// attemptError converts an SDK error into a classified AttemptError.
func attemptError(err error, pathway, model string) *stylegen.AttemptError {
	status := 0
	message := err.Error()

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.Code
		if apiErr.Message != "" {
			message = apiErr.Message
		}
		if status == 0 && apiErr.Status == "RESOURCE_EXHAUSTED" {
			status = http.StatusTooManyRequests
		}
	}

	return &stylegen.AttemptError{
		Backend: stylegen.BackendGemini,
		Pathway: pathway,
		Model:   model,
		Class:   stylegen.Classify(status, message),
		Status:  status,
		Body:    message,
		Err:     err,
	}
}
