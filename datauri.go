package stylegen

import (
	"errors"
	"strings"
)

// ErrNotDataURI is returned by ParseDataURI for references that are not
// base64 image data URIs.
var ErrNotDataURI = errors.New("not a base64 image data URI")

// DataURI encodes img as a self-describing "data:<mime>;base64,<payload>"
// reference. This is the only image reference shape returned for generated
// results.
func DataURI(img EncodedImage) string {
	mimeType := img.MIMEType()
	if mimeType == "" {
		mimeType = MIMETypePNG
	}
	return "data:" + mimeType + ";base64," + img.Base64()
}

// IsDataURI reports whether ref is an embedded image reference rather than a URL.
func IsDataURI(ref string) bool {
	return strings.HasPrefix(ref, "data:image/")
}

// ParseDataURI decodes a reference produced by DataURI.
func ParseDataURI(ref string) (EncodedImage, error) {
	if !IsDataURI(ref) {
		return EncodedImage{}, ErrNotDataURI
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return EncodedImage{}, ErrNotDataURI
	}
	mimeType, encoding, _ := strings.Cut(header, ";")
	if encoding != "base64" {
		return EncodedImage{}, ErrNotDataURI
	}
	return DecodeBase64Image(payload, mimeType)
}
