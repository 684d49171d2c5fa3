package stylegen

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Byte budgets for prompts sent to size-capped endpoints.
const (
	CompactPromptMaxBytes    = 900
	ReferencePromptMaxBytes  = 2200
	GenerationPromptMaxBytes = 4000
)

const (
	moodSynopsisRunes    = 220
	contextSynopsisRunes = 300
	storySynopsisRunes   = 250
)

// clean normalizes user-supplied text to NFC and trims it, so byte budgets are
// computed on a stable representation.
func clean(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func joinSentences(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// StyleEnhancementPrompt asks a text model for a one-paragraph visual style
// description anchored to the book, giving the explicit style direction top
// priority.
func StyleEnhancementPrompt(book BookContext) string {
	title, author := clean(book.Title), clean(book.Author)
	direction := clean(book.StyleDirection)
	if direction == "" {
		direction = "Standard interpretation"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Describe the visual art style associated with the book %q by %s.\n\n", title, author)
	fmt.Fprintf(&sb, "Synopsis for context: %s...\n\n", truncateRunes(clean(book.Synopsis), contextSynopsisRunes))
	fmt.Fprintf(&sb, "TOP PRIORITY (user preference): %s\n\n", direction)
	sb.WriteString("Write a single compact paragraph for an image generator. ")
	sb.WriteString("The user preference comes first, anchored to the world of the book. ")
	fmt.Fprintf(&sb, "The image should read as a frame captured inside the story world of %q, carrying the authorial tone of %s.\n", title, author)
	sb.WriteString("Cover only:\n")
	sb.WriteString("- the style of the book\n")
	sb.WriteString("- palette and contrast\n")
	sb.WriteString("- lighting and atmosphere\n")
	sb.WriteString("- texture and material treatment\n")
	sb.WriteString("- wardrobe, props and architecture that belong to the story universe\n")
	sb.WriteString("- emotional temperature and cinematic mood\n")
	sb.WriteString("- one short sentence tying the result to the book universe\n\n")
	fmt.Fprintf(&sb, "You may name the title %q once and the author %s once as neutral anchors. ", title, author)
	sb.WriteString("Avoid explicit violence or NSFW wording; if the title contains sensitive words, quote it neutrally and do not elaborate. ")
	sb.WriteString("Return only the paragraph, without bullets or notes.")
	return sb.String()
}

// LocalStyleDescription is the deterministic, network-free style description
// used when no text backend produced one.
func LocalStyleDescription(book BookContext) string {
	direction := ""
	if d := clean(book.StyleDirection); d != "" {
		direction = fmt.Sprintf("Preferred style direction: %s.", d)
	}
	return joinSentences(
		"Apply a cinematic editorial style with balanced composition.",
		fmt.Sprintf("Universe anchor: inspired by the fictional universe of %q.", clean(book.Title)),
		fmt.Sprintf("Authorial anchor: reflect the narrative sensibility associated with %q.", clean(book.Author)),
		direction,
		fmt.Sprintf("Mood inspiration: %s.", truncateRunes(clean(book.Synopsis), moodSynopsisRunes)),
		"Scene intent: the frame should feel diegetic, as if it exists inside the story world.",
		"Blend in the textures, lighting and atmosphere of the book universe while keeping the recognizable content of the original photo.",
		"Use detailed textures, soft contrast and cohesive color grading.",
	)
}

// StylePrompt is the rich image prompt for style transfer on full-capability
// backends.
func StylePrompt(book BookContext, style string) string {
	title, author := clean(book.Title), clean(book.Author)

	var sb strings.Builder
	sb.WriteString("Infuse the attached image with the artistic universe and style described below.\n\n")
	fmt.Fprintf(&sb, "PRIMARY DIRECTIVE: %s\n\n", clean(style))
	sb.WriteString("Instructions:\n")
	fmt.Fprintf(&sb, "- The result is a diegetic rendition of the original photo inside the world of %q.\n", title)
	fmt.Fprintf(&sb, "- Balance the visual language of %s with the actual content of the uploaded image.\n", author)
	sb.WriteString("- The transformation must be expressive and clearly different from the original.\n")
	sb.WriteString("- The primary directive drives the change.\n")
	sb.WriteString("- Keep the identity, pose, camera angle and recognizable objects of the original.\n")
	sb.WriteString("- Apply the colors, lighting and surface textures of the fictional setting.\n")
	sb.WriteString("- No text overlays, logos, captions or typography.\n")
	sb.WriteString("- The prompt is safe. Generate the stylized image.")
	return sb.String()
}

// InspirationEnhancementPrompt asks a text model to turn a user scene request
// into one detailed visual prompt set in the book's universe.
func InspirationEnhancementPrompt(book BookContext, userPrompt string) string {
	title, author := clean(book.Title), clean(book.Author)

	var sb strings.Builder
	sb.WriteString("Write a detailed visual prompt for an image generator.\n\n")
	sb.WriteString("Context:\n")
	fmt.Fprintf(&sb, "- Book: %q by %s\n", title, author)
	fmt.Fprintf(&sb, "- Synopsis: %s\n", truncateRunes(clean(book.Synopsis), contextSynopsisRunes))
	if d := clean(book.StyleDirection); d != "" {
		fmt.Fprintf(&sb, "- Style reference: %s\n", d)
	}
	fmt.Fprintf(&sb, "\nThe user wants an image showing: %q\n\n", clean(userPrompt))
	fmt.Fprintf(&sb, "Write one paragraph describing an image that exists inside the universe of %q, merging the request with the book's world. ", title)
	sb.WriteString("Cover the scene composition, a palette and lighting true to the book, ")
	sb.WriteString("textures and props from its universe, and the cinematic mood. ")
	sb.WriteString("It should feel photographed inside the story world. ")
	sb.WriteString("No violence or NSFW content. Return only the paragraph.")
	return sb.String()
}

// LocalVisualPrompt is the deterministic text-to-image prompt used when no
// text backend enhanced the user's request.
func LocalVisualPrompt(book BookContext, userPrompt string) string {
	title := clean(book.Title)

	story := ""
	if s := clean(book.Synopsis); s != "" {
		story = fmt.Sprintf("Story context: %s.", truncateRunes(s, storySynopsisRunes))
	}
	direction := ""
	if d := clean(book.StyleDirection); d != "" {
		direction = fmt.Sprintf("Additional style direction: %s.", d)
	}

	return joinSentences(
		fmt.Sprintf("Create an original illustration that belongs to the fictional universe of %q by %s.", title, clean(book.Author)),
		fmt.Sprintf("The image should depict: %s.", clean(userPrompt)),
		fmt.Sprintf("Style, palette, lighting and atmosphere should feel diegetic, as if the scene was captured inside the story world of %q.", title),
		story,
		direction,
		"Use rich textures, cinematic composition and cohesive color grading.",
		"No text, logos, captions, watermarks or typography.",
		"The result should look like a high-quality editorial photograph or illustration.",
	)
}

// CompactEditPrompt is the short edit prompt for the legacy edit model,
// capped at CompactPromptMaxBytes.
func CompactEditPrompt(style string) string {
	prompt := joinSentences(
		"Restyle this image.",
		"Keep the same subject, framing and composition.",
		"Do not add objects.",
		"Apply this style:",
		clean(style),
		"Adjust only colors, lighting and texture.",
	)
	return TruncateUTF8(collapseWhitespace(prompt), CompactPromptMaxBytes)
}

// ReferenceGenerationPrompt is the prompt for tool-call generation from a
// reference photo, capped at ReferencePromptMaxBytes.
func ReferenceGenerationPrompt(book BookContext, style string) string {
	prompt := joinSentences(
		"Generate a stylized version of the reference image that belongs to the book universe.",
		fmt.Sprintf("Book universe anchor: %q.", clean(book.Title)),
		fmt.Sprintf("Authorial anchor: %q.", clean(book.Author)),
		"Translate the atmosphere of the photo into a diegetic moment from this universe.",
		"PRIMARY STYLE DIRECTIVE: "+clean(style),
		"The transformation from the source image must be significant and expressive.",
		"The primary style directive has the highest priority.",
		"Keep the core identity of the original scene with an obvious stylistic departure.",
		"Do not add text, logos or captions.",
		"The new image represents the uploaded image within the book's universe.",
	)
	return TruncateUTF8(collapseWhitespace(prompt), ReferencePromptMaxBytes)
}

// GenerationPrompt bounds a text-to-image prompt to GenerationPromptMaxBytes.
func GenerationPrompt(prompt string) string {
	return TruncateUTF8(clean(prompt), GenerationPromptMaxBytes)
}
