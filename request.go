package stylegen

// Mode selects which generation flow a request runs through.
type Mode string

const (
	// ModeStyleTransfer restyles an existing source image.
	ModeStyleTransfer Mode = "styleTransfer"

	// ModeTextToImage creates a new image from a user prompt.
	ModeTextToImage Mode = "textToImage"
)

// BookContext carries the contextual text a generation is anchored to.
type BookContext struct {
	Title    string
	Author   string
	Synopsis string

	// StyleDirection is an optional explicit style preference; when present it
	// takes priority over anything inferred from the other fields.
	StyleDirection string
}

// GenerationRequest is one inbound creative request. It is read-only once
// handed to the Orchestrator.
type GenerationRequest struct {
	Mode Mode

	// SourceImageURL is the image being restyled. Required for ModeStyleTransfer.
	SourceImageURL string

	// UserPrompt describes the scene to create. Required for ModeTextToImage.
	UserPrompt string

	Book BookContext

	// ReferenceImageURLs are optional style references (0..MaxReferenceImages).
	ReferenceImageURLs []string
}

// Job is the prepared form of a GenerationRequest that backends plan attempts
// against. Source is nil for text-to-image or when the source could not be
// fetched.
type Job struct {
	Mode Mode
	Book BookContext

	// Style is the output of the text enhancement stage: a style description
	// for style transfer, a full visual prompt for text-to-image.
	Style string

	// Prompt is the rich prompt sent to full-capability backends.
	Prompt string

	Source     *EncodedImage
	References []EncodedImage
}
