package openai

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/mhpenta/stylegen"
)

// editUpload is one prepared /images/edits call. Everything except params is
// fixed for the whole negotiation.
type editUpload struct {
	model      string
	prompt     string
	source     stylegen.EncodedImage
	references []stylegen.EncodedImage
	legacy     bool
}

// edit runs one direct /images/edits attempt against model. The legacy model gets a
// PNG-normalized source, a compact prompt, the single "image" field and no
// quality or output format.
func (b *Backend) edit(ctx context.Context, model, pathway string, job *stylegen.Job) stylegen.Outcome {
	legacy := strings.EqualFold(model, b.cfg.LegacyModel)

	upload := editUpload{
		model:  model,
		prompt: job.Prompt,
		source: *job.Source,
		legacy: legacy,
	}

	params := []stylegen.Param{
		{Key: "n", Value: "1"},
		{Key: "response_format", Value: "b64_json"},
		{Key: "size", Value: b.cfg.Size},
	}

	mimeType := stylegen.MIMETypeForFormat(b.cfg.OutputFormat)
	if legacy {
		png, err := stylegen.ToPNG(upload.source)
		if err != nil {
			return stylegen.Failure(softError(err, pathway, model))
		}
		upload.source = png
		upload.prompt = stylegen.CompactEditPrompt(job.Style)
		mimeType = stylegen.MIMETypePNG

		b.logger.Debug("using compact prompt for legacy edit model",
			"model", model,
			"prompt_bytes", len(upload.prompt),
		)
	} else {
		upload.references = job.References[:min(len(job.References), maxEditReferences)]
		params = append(params,
			stylegen.Param{Key: "quality", Value: b.cfg.Quality},
			stylegen.Param{Key: "output_format", Value: b.cfg.OutputFormat},
		)
	}

	return stylegen.Negotiate(ctx, stylegen.NewParameterSet(params...), maxEditRounds,
		func(ctx context.Context, ps *stylegen.ParameterSet) stylegen.Outcome {
			raw, attErr := b.postEdit(ctx, upload, ps, pathway)
			if attErr != nil {
				return stylegen.Failure(attErr)
			}
			return b.decodeImages(ctx, raw, mimeType, pathway, model)
		},
		rejectedFormField,
		b.logger,
	)
}

// rejectedFormField names the form field a 400 rejected.
func rejectedFormField(err *stylegen.AttemptError) (string, bool) {
	return stylegen.BadParameter(err.Body)
}

func (b *Backend) postEdit(ctx context.Context, upload editUpload, params *stylegen.ParameterSet, pathway string) ([]byte, *stylegen.AttemptError) {
	body, contentType, err := encodeEditForm(upload, params)
	if err != nil {
		return nil, softError(err, pathway, upload.model)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/images/edits", body)
	if err != nil {
		return nil, softError(fmt.Errorf("failed to create request: %w", err), pathway, upload.model)
	}
	req.Header.Set("Content-Type", contentType)

	return b.do(req, pathway, upload.model)
}

// encodeEditForm writes the multipart body: model, prompt, the optional
// params in order, then the image files.
func encodeEditForm(upload editUpload, params *stylegen.ParameterSet) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := append([]stylegen.Param{
		{Key: "model", Value: upload.model},
		{Key: "prompt", Value: upload.prompt},
	}, params.Params()...)
	for _, f := range fields {
		if err := w.WriteField(f.Key, f.Value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f.Key, err)
		}
	}

	imageField := "image[]"
	if upload.legacy {
		imageField = "image"
	}
	if err := writeImagePart(w, imageField, "source", upload.source); err != nil {
		return nil, "", err
	}
	for i, ref := range upload.references {
		if err := writeImagePart(w, imageField, fmt.Sprintf("reference-%d", i+1), ref); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func writeImagePart(w *multipart.Writer, field, name string, img stylegen.EncodedImage) error {
	filename := name + "." + stylegen.ExtensionForMIMEType(img.MIMEType())

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	h.Set("Content-Type", img.MIMEType())

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := part.Write(img.Bytes()); err != nil {
		return fmt.Errorf("failed to write image part: %w", err)
	}
	return nil
}
