package organizer

import (
	"fmt"
	"image"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	_ "image/jpeg"
)

const (
	thumbnailName  = "thumbnail.png"
	thumbnailWidth = 512
)

// writeThumbnail renders a PNG preview of a frame, downscaled to at most
// thumbnailWidth pixels wide with the aspect ratio preserved.
func writeThumbnail(framePath, thumbPath string) error {
	f, err := os.Open(framePath)
	if err != nil {
		return err
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("frame has empty bounds %v", bounds)
	}
	if width > thumbnailWidth {
		height = height * thumbnailWidth / width
		if height < 1 {
			height = 1
		}
		width = thumbnailWidth
	}
	thumb := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(thumb, thumb.Bounds(), src, bounds, xdraw.Src, nil)
	out, err := os.Create(thumbPath)
	if err != nil {
		return err
	}
	if err := png.Encode(out, thumb); err != nil {
		out.Close()
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	return out.Close()
}
