package stylegen

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// MIME types the generation backends accept and produce.
const (
	MIMETypePNG  = "image/png"
	MIMETypeJPEG = "image/jpeg"
	MIMETypeWebP = "image/webp"
)

// EncodedImage is an immutable (bytes, MIME type) pair. Instances are produced by
// the Fetcher, by ToPNG and by backend response decoding.
type EncodedImage struct {
	data     []byte
	mimeType string
}

// NewEncodedImage copies data so later mutation of the caller's slice does not
// leak into the value.
func NewEncodedImage(data []byte, mimeType string) EncodedImage {
	buf := make([]byte, len(data))
	copy(buf, data)
	return EncodedImage{data: buf, mimeType: mimeType}
}

// DecodeBase64Image builds an EncodedImage from a base64 payload as returned by
// the generation APIs.
func DecodeBase64Image(payload, mimeType string) (EncodedImage, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return EncodedImage{}, fmt.Errorf("invalid base64 image payload: %w", err)
	}
	return EncodedImage{data: data, mimeType: mimeType}, nil
}

// Bytes returns a copy of the raw image bytes.
func (i EncodedImage) Bytes() []byte {
	buf := make([]byte, len(i.data))
	copy(buf, i.data)
	return buf
}

// Len reports the payload size in bytes.
func (i EncodedImage) Len() int {
	return len(i.data)
}

// MIMEType returns the image MIME type.
func (i EncodedImage) MIMEType() string {
	return i.mimeType
}

// Base64 returns the standard base64 encoding of the payload.
func (i EncodedImage) Base64() string {
	return base64.StdEncoding.EncodeToString(i.data)
}

// IsZero reports whether the image carries no bytes.
func (i EncodedImage) IsZero() bool {
	return len(i.data) == 0
}

// NormalizeMIMEType maps a Content-Type header value onto png, webp or jpeg,
// defaulting to png when the value is absent or unrecognized.
func NormalizeMIMEType(contentType string) string {
	raw := strings.ToLower(contentType)
	switch {
	case strings.Contains(raw, "image/png"):
		return MIMETypePNG
	case strings.Contains(raw, "image/webp"):
		return MIMETypeWebP
	case strings.Contains(raw, "image/jpeg"), strings.Contains(raw, "image/jpg"):
		return MIMETypeJPEG
	default:
		return MIMETypePNG
	}
}

// MIMETypeForFormat maps an output format name ("png", "jpeg", "webp") to its
// MIME type.
func MIMETypeForFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpg", "jpeg":
		return MIMETypeJPEG
	case "webp":
		return MIMETypeWebP
	default:
		return MIMETypePNG
	}
}

// ExtensionForMIMEType returns a file extension (without dot) for an image MIME type.
func ExtensionForMIMEType(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "png"):
		return "png"
	case strings.Contains(mimeType, "webp"):
		return "webp"
	case strings.Contains(mimeType, "jpeg"), strings.Contains(mimeType, "jpg"):
		return "jpg"
	case strings.Contains(mimeType, "gif"):
		return "gif"
	default:
		return "png"
	}
}
