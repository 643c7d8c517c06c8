package capture

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/synthesishq/synthesis-agent/internal/windowctx"
)

// CropPNG cuts the selected region out of a full-screen screenshot and
// writes it to dstPath. region is given in logical coordinates; scale is
// the display's pixel density.
func CropPNG(srcPath, dstPath string, region windowctx.Region, scale float64) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	img, err := png.Decode(src)
	if err != nil {
		return fmt.Errorf("failed to decode screenshot: %w", err)
	}

	pixels := region.Scale(scale)
	rect := image.Rect(
		int(pixels.X), int(pixels.Y),
		int(pixels.X+pixels.Width), int(pixels.Y+pixels.Height),
	).Intersect(img.Bounds())
	if rect.Empty() {
		return fmt.Errorf("selected region lies outside the screenshot bounds")
	}

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	sub, ok := img.(subImager)
	if !ok {
		return fmt.Errorf("screenshot image format does not support cropping")
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if err := png.Encode(dst, sub.SubImage(rect)); err != nil {
		return fmt.Errorf("failed to encode cropped image: %w", err)
	}
	return nil
}
