package stylegen

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validation errors
var (
	ErrNilRequest      = errors.New("request cannot be nil")
	ErrInvalidImageURL = errors.New("invalid image URL")
	ErrUnknownMode     = errors.New("unknown generation mode")
)

// IsValidationError reports whether err rejects the request itself, as
// opposed to a failure while serving it.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrNilRequest, ErrInvalidImageURL, ErrUnknownMode,
		ErrEmptySourceURL, ErrEmptyPrompt, ErrTooManyReferences,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// MaxReferenceImages is the maximum number of reference images per request.
const MaxReferenceImages = 14

// ValidateRequest validates a GenerationRequest for its mode.
func ValidateRequest(req *GenerationRequest) error {
	if req == nil {
		return ErrNilRequest
	}

	switch req.Mode {
	case ModeStyleTransfer:
		if strings.TrimSpace(req.SourceImageURL) == "" {
			return ErrEmptySourceURL
		}
		if err := ValidateImageURL(req.SourceImageURL); err != nil {
			return fmt.Errorf("source image: %w", err)
		}
	case ModeTextToImage:
		if strings.TrimSpace(req.UserPrompt) == "" {
			return ErrEmptyPrompt
		}
		if req.SourceImageURL != "" {
			if err := ValidateImageURL(req.SourceImageURL); err != nil {
				return fmt.Errorf("source image: %w", err)
			}
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}

	if len(req.ReferenceImageURLs) > MaxReferenceImages {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyReferences, len(req.ReferenceImageURLs), MaxReferenceImages)
	}
	for i, ref := range req.ReferenceImageURLs {
		if err := ValidateImageURL(ref); err != nil {
			return fmt.Errorf("reference image %d: %w", i, err)
		}
	}

	return nil
}

// ValidateImageURL accepts absolute http(s) URLs and image data URIs.
func ValidateImageURL(raw string) error {
	if IsDataURI(raw) {
		return nil
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidImageURL, raw)
	}
	return nil
}
