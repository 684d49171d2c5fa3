package gemini

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/mhpenta/stylegen"
)

// PathwayText names the text enhancement pathway.
const PathwayText = "text"

// TextWriter produces style descriptions and visual prompts with a Gemini
// text model. The Orchestrator owns credential rotation and disablement.
type TextWriter struct {
	client *Client
	model  string
}

var _ stylegen.TextBackend = (*TextWriter)(nil)

// NewTextWriter creates a text backend targeting model.
func NewTextWriter(client *Client, model string) *TextWriter {
	if model == "" {
		model = DefaultTextModel
	}
	return &TextWriter{client: client, model: model}
}

// ID returns stylegen.BackendGemini.
func (w *TextWriter) ID() stylegen.BackendID {
	return stylegen.BackendGemini
}

// Credentials returns the rotation list.
func (w *TextWriter) Credentials() []stylegen.Credential {
	return w.client.Credentials()
}

// GenerateText issues one text generation call with cred. Errors are
// *stylegen.AttemptError values.
func (w *TextWriter) GenerateText(ctx context.Context, cred stylegen.Credential, prompt string) (string, error) {
	gen, err := w.client.generator(ctx, cred)
	if err != nil {
		return "", attemptError(err, PathwayText, w.model)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	result, err := gen.GenerateContent(ctx, w.model, contents, nil)
	if err != nil {
		return "", attemptError(err, PathwayText, w.model)
	}
	if result == nil {
		return "", nil
	}
	return strings.TrimSpace(result.Text()), nil
}
