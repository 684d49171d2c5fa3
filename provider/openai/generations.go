package openai

import (
	"context"
	"errors"
	"strconv"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/mhpenta/stylegen"
)

// generate runs the text-to-image pathway on /images/generations.
func (b *Backend) generate(ctx context.Context, job *stylegen.Job) stylegen.Outcome {
	model := b.cfg.ImageModel
	prompt := stylegen.GenerationPrompt(job.Prompt)
	mimeType := stylegen.MIMETypeForFormat(b.cfg.OutputFormat)

	params := stylegen.NewParameterSet(
		stylegen.Param{Key: "n", Value: "1"},
		stylegen.Param{Key: "response_format", Value: goopenai.CreateImageResponseFormatB64JSON},
		stylegen.Param{Key: "size", Value: b.cfg.Size},
		stylegen.Param{Key: "quality", Value: b.cfg.Quality},
	)

	return stylegen.Negotiate(ctx, params, maxGenerationRounds,
		func(ctx context.Context, ps *stylegen.ParameterSet) stylegen.Outcome {
			resp, err := b.sdk.CreateImage(ctx, imageRequest(model, prompt, ps))
			if err != nil {
				return stylegen.Failure(sdkError(err, model))
			}
			return decodeSDKImage(ctx, b, resp, mimeType, model)
		},
		rejectedSDKField,
		b.logger,
	)
}

func imageRequest(model, prompt string, params *stylegen.ParameterSet) goopenai.ImageRequest {
	req := goopenai.ImageRequest{
		Model:  model,
		Prompt: prompt,
	}
	if v, ok := params.Get("n"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			req.N = n
		}
	}
	req.ResponseFormat, _ = params.Get("response_format")
	req.Size, _ = params.Get("size")
	req.Quality, _ = params.Get("quality")
	return req
}

func decodeSDKImage(ctx context.Context, b *Backend, resp goopenai.ImageResponse, mimeType, model string) stylegen.Outcome {
	if len(resp.Data) == 0 {
		return stylegen.Failure(softError(errNoImage, PathwayGenerations, model))
	}

	first := resp.Data[0]
	switch {
	case first.B64JSON != "":
		img, err := stylegen.DecodeBase64Image(first.B64JSON, mimeType)
		if err != nil {
			return stylegen.Failure(softError(err, PathwayGenerations, model))
		}
		return stylegen.Success(img)
	case first.URL != "":
		img, err := b.fetcher.Fetch(ctx, first.URL)
		if err != nil {
			return stylegen.Failure(softError(err, PathwayGenerations, model))
		}
		return stylegen.Success(img)
	default:
		return stylegen.Failure(softError(errNoImage, PathwayGenerations, model))
	}
}

// rejectedSDKField reads the structured param from a go-openai API error.
func rejectedSDKField(err *stylegen.AttemptError) (string, bool) {
	var apiErr *goopenai.APIError
	if !errors.As(err, &apiErr) || apiErr.Param == nil || *apiErr.Param == "" {
		return "", false
	}
	return *apiErr.Param, true
}

// sdkError classifies a go-openai error.
func sdkError(err error, model string) *stylegen.AttemptError {
	attErr := &stylegen.AttemptError{
		Backend: stylegen.BackendOpenAI,
		Pathway: PathwayGenerations,
		Model:   model,
		Err:     err,
	}

	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		attErr.Status = apiErr.HTTPStatusCode
		attErr.Body = apiErr.Message
	case errors.As(err, &reqErr):
		attErr.Status = reqErr.HTTPStatusCode
	}

	message := attErr.Body
	if message == "" {
		message = err.Error()
	}
	attErr.Class = stylegen.Classify(attErr.Status, message)
	return attErr
}
