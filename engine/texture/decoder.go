// Package texture decodes raw encoded image bytes into CPU-side pixel
// buffers. It is the narrow texture collaborator of the asset loader: bytes
// in, *image.NRGBA out, nothing GPU-facing.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"

	"github.com/ftrvxmtrx/tga"
)

var errEmptyImage = errors.New("empty image data")

var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic = []byte{0xff, 0xd8}
)

// Decode decodes encoded image bytes into an NRGBA pixel buffer. The format
// is sniffed from the payload's magic bytes; the container's declared MIME
// type is not trusted. Decoders are called directly rather than through
// image.Decode: the TGA format has no magic bytes, so its registered sniffer
// matches any payload and would shadow PNG and JPEG in the global registry.
//
// Parameters:
//   - data: the encoded image bytes (PNG, JPEG, or TGA)
//
// Returns:
//   - *image.NRGBA: the decoded pixels
//   - error: error if the payload is empty or no decoder accepts it
func Decode(data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, errEmptyImage
	}

	var img image.Image
	var err error
	switch {
	case bytes.HasPrefix(data, pngMagic):
		img, err = png.Decode(bytes.NewReader(data))
	case bytes.HasPrefix(data, jpegMagic):
		img, err = jpeg.Decode(bytes.NewReader(data))
	default:
		img, err = tga.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return toNRGBA(img), nil
}

// toNRGBA converts any decoded image to NRGBA, avoiding a copy when it
// already is one.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}
