package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/mhpenta/stylegen"
)

// PathwayGenerateContent names the single multimodal generation pathway.
const PathwayGenerateContent = "generate-content"

// maxInputImages is the number of inline images the image models accept.
const maxInputImages = 14

// ImageBackend generates images with a multimodal Gemini model, trying each
// credential in order. A generic rate limit moves on to the next credential;
// a zero-quota rate limit ends the backend because the ceiling applies to the
// whole project.
type ImageBackend struct {
	client *Client
	model  string
}

var _ stylegen.Backend = (*ImageBackend)(nil)

// NewImageBackend creates an image backend targeting model.
func NewImageBackend(client *Client, model string) *ImageBackend {
	if model == "" {
		model = DefaultImageModel
	}
	return &ImageBackend{client: client, model: model}
}

// ID returns stylegen.BackendGemini.
func (b *ImageBackend) ID() stylegen.BackendID {
	return stylegen.BackendGemini
}

// Plan returns one attempt per credential.
func (b *ImageBackend) Plan(job *stylegen.Job) []stylegen.Attempt {
	creds := b.client.Credentials()
	plan := make([]stylegen.Attempt, 0, len(creds))
	for i, cred := range creds {
		plan = append(plan, stylegen.Attempt{
			Backend:    stylegen.BackendGemini,
			Pathway:    PathwayGenerateContent,
			Model:      b.model,
			Credential: i + 1,
			Run: func(ctx context.Context) stylegen.Outcome {
				return b.generate(ctx, cred, job)
			},
		})
	}
	return plan
}

func (b *ImageBackend) generate(ctx context.Context, cred stylegen.Credential, job *stylegen.Job) stylegen.Outcome {
	gen, err := b.client.generator(ctx, cred)
	if err != nil {
		return stylegen.Failure(attemptError(err, PathwayGenerateContent, b.model))
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: buildParts(job),
		},
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		SafetySettings:     permissiveSafetySettings(),
	}

	result, err := gen.GenerateContent(ctx, b.model, contents, config)
	if err != nil {
		return stylegen.Failure(attemptError(err, PathwayGenerateContent, b.model))
	}

	img, err := parseImage(result)
	if err != nil {
		return stylegen.Failure(&stylegen.AttemptError{
			Backend: stylegen.BackendGemini,
			Pathway: PathwayGenerateContent,
			Model:   b.model,
			Class:   stylegen.ClassSoftFailure,
			Err:     err,
		})
	}
	return stylegen.Success(img)
}

// buildParts places the prompt first, then the source image, then the
// references, capped at maxInputImages images in total.
func buildParts(job *stylegen.Job) []*genai.Part {
	parts := []*genai.Part{{Text: job.Prompt}}

	images := 0
	if job.Source != nil && !job.Source.IsZero() {
		parts = append(parts, inlinePart(*job.Source))
		images++
	}
	for _, ref := range job.References {
		if images >= maxInputImages {
			break
		}
		parts = append(parts, inlinePart(ref))
		images++
	}
	return parts
}

func inlinePart(img stylegen.EncodedImage) *genai.Part {
	return &genai.Part{
		InlineData: &genai.Blob{
			Data:     img.Bytes(),
			MIMEType: img.MIMEType(),
		},
	}
}

var errNoImage = errors.New("response contained no image")

// parseImage returns the first inline image of the first candidate. A finish
// reason other than STOP or MAX_TOKENS is a failure even when parts are present.
func parseImage(result *genai.GenerateContentResponse) (stylegen.EncodedImage, error) {
	if result == nil || len(result.Candidates) == 0 {
		return stylegen.EncodedImage{}, errors.New("empty response from model")
	}

	candidate := result.Candidates[0]
	switch candidate.FinishReason {
	case genai.FinishReasonStop, genai.FinishReasonMaxTokens:
	default:
		return stylegen.EncodedImage{}, fmt.Errorf("finished with reason %q", candidate.FinishReason)
	}

	if candidate.Content == nil {
		return stylegen.EncodedImage{}, errNoImage
	}
	for _, part := range candidate.Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = stylegen.MIMETypePNG
			}
			return stylegen.NewEncodedImage(part.InlineData.Data, mimeType), nil
		}
	}
	return stylegen.EncodedImage{}, errNoImage
}
