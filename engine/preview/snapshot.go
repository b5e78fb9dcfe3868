package preview

import (
	"fmt"
	"image"
	"os"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"
)

// Downsample scales an image down to targetSize with premultiplied-alpha
// CatmullRom filtering, avoiding dark fringes at transparent edges. Images
// already at or below the target size are returned unchanged.
func Downsample(img *image.NRGBA, targetSize int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() <= targetSize && b.Dy() <= targetSize {
		return img
	}

	premul := image.NewRGBA(b)
	draw.Draw(premul, b, img, b.Min, draw.Src)

	dst := image.NewRGBA(image.Rect(0, 0, targetSize, targetSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), premul, premul.Bounds(), draw.Src, nil)

	result := image.NewNRGBA(dst.Bounds())
	draw.Draw(result, result.Bounds(), dst, image.Point{}, draw.Src)
	return result
}

// SaveWebP writes an image to path as lossless WebP.
//
// Parameters:
//   - path: the output file path
//   - img: the image to encode
//
// Returns:
//   - error: error if the file cannot be written or encoding fails
func SaveWebP(path string, img *image.NRGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", path, err)
	}
	defer f.Close()

	if err := nativewebp.Encode(f, img, nil); err != nil {
		return fmt.Errorf("failed to encode webp: %w", err)
	}
	return nil
}
