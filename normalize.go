package stylegen

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/webp"
)

// ToPNG re-encodes img as an RGBA PNG with an alpha channel, the canonical
// format required by edit endpoints that accept only transparent-capable
// PNG input. PNG, JPEG, GIF and WebP sources are supported.
func ToPNG(img EncodedImage) (EncodedImage, error) {
	if img.IsZero() {
		return EncodedImage{}, fmt.Errorf("cannot normalize empty image")
	}

	src, format, err := image.Decode(bytes.NewReader(img.data))
	if err != nil {
		return EncodedImage{}, fmt.Errorf("failed to decode %s image: %w", img.MIMEType(), err)
	}

	if _, ok := src.(*image.NRGBA); ok && format == "png" {
		return img, nil
	}

	bounds := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	// image/png writes opaque images without an alpha channel.
	if dst.Opaque() && len(dst.Pix) >= 4 {
		dst.Pix[3] = 0xfe
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return EncodedImage{}, fmt.Errorf("failed to encode png: %w", err)
	}
	return EncodedImage{data: buf.Bytes(), mimeType: MIMETypePNG}, nil
}
