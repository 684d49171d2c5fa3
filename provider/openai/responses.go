package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mhpenta/stylegen"
)

type responsesRequest struct {
	Model      string           `json:"model"`
	Input      []responsesInput `json:"input"`
	Tools      []map[string]any `json:"tools"`
	ToolChoice toolChoice       `json:"tool_choice"`
}

type responsesInput struct {
	Role    string         `json:"role"`
	Content []inputContent `json:"content"`
}

type inputContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type toolChoice struct {
	Type string `json:"type"`
}

type responsesResponse struct {
	Output []struct {
		Type   string `json:"type"`
		Result string `json:"result"`
	} `json:"output"`
}

const imageGenerationTool = "image_generation"

// respond runs one image_generation tool call through responseModel. Style transfer
// sends the source and up to three references as inline images; text-to-image
// sends the prompt alone.
func (b *Backend) respond(ctx context.Context, responseModel string, job *stylegen.Job) stylegen.Outcome {
	content := b.responseContent(job)

	params := stylegen.NewParameterSet(
		stylegen.Param{Key: "model", Value: b.cfg.ToolModel},
		stylegen.Param{Key: "size", Value: b.cfg.Size},
		stylegen.Param{Key: "quality", Value: b.cfg.Quality},
		stylegen.Param{Key: "output_format", Value: b.cfg.OutputFormat},
		stylegen.Param{Key: "input_fidelity", Value: b.cfg.InputFidelity},
		stylegen.Param{Key: "action", Value: b.cfg.Action},
	)
	mimeType := stylegen.MIMETypeForFormat(b.cfg.OutputFormat)

	return stylegen.Negotiate(ctx, params, maxResponseRounds,
		func(ctx context.Context, ps *stylegen.ParameterSet) stylegen.Outcome {
			raw, attErr := b.postResponse(ctx, responseModel, content, ps)
			if attErr != nil {
				return stylegen.Failure(attErr)
			}
			return decodeToolResult(raw, mimeType, responseModel)
		},
		rejectedToolField,
		b.logger,
	)
}

func (b *Backend) responseContent(job *stylegen.Job) []inputContent {
	if job.Mode == stylegen.ModeTextToImage || job.Source == nil {
		return []inputContent{{Type: "input_text", Text: stylegen.GenerationPrompt(job.Prompt)}}
	}

	content := []inputContent{
		{Type: "input_text", Text: stylegen.ReferenceGenerationPrompt(job.Book, job.Style)},
		{Type: "input_image", ImageURL: stylegen.DataURI(*job.Source)},
	}
	for _, ref := range job.References[:min(len(job.References), maxEditReferences)] {
		content = append(content, inputContent{Type: "input_image", ImageURL: stylegen.DataURI(ref)})
	}
	return content
}

// rejectedToolField names the image_generation tool field a 400 rejected.
func rejectedToolField(err *stylegen.AttemptError) (string, bool) {
	return stylegen.ToolParameter(err.Body)
}

func (b *Backend) postResponse(ctx context.Context, responseModel string, content []inputContent, params *stylegen.ParameterSet) ([]byte, *stylegen.AttemptError) {
	tool := map[string]any{"type": imageGenerationTool}
	for _, p := range params.Params() {
		tool[p.Key] = p.Value
	}

	payload := responsesRequest{
		Model:      responseModel,
		Input:      []responsesInput{{Role: "user", Content: content}},
		Tools:      []map[string]any{tool},
		ToolChoice: toolChoice{Type: imageGenerationTool},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, softError(fmt.Errorf("failed to encode request: %w", err), PathwayResponses, responseModel)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, softError(fmt.Errorf("failed to create request: %w", err), PathwayResponses, responseModel)
	}
	req.Header.Set("Content-Type", "application/json")

	return b.do(req, PathwayResponses, responseModel)
}

// decodeToolResult extracts the first image_generation_call result.
func decodeToolResult(raw []byte, mimeType, responseModel string) stylegen.Outcome {
	var out responsesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return stylegen.Failure(softError(fmt.Errorf("failed to decode response: %w", err), PathwayResponses, responseModel))
	}

	for _, item := range out.Output {
		if item.Type != "image_generation_call" || item.Result == "" {
			continue
		}
		img, err := stylegen.DecodeBase64Image(item.Result, mimeType)
		if err != nil {
			return stylegen.Failure(softError(err, PathwayResponses, responseModel))
		}
		return stylegen.Success(img)
	}
	return stylegen.Failure(softError(errNoImage, PathwayResponses, responseModel))
}
