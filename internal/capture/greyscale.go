package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"os"

	"astropitography/internal/bayer"
)

const greyscaleQuality = 95

// greyscaleInPlace rewrites a captured frame as a luminance JPEG. Any raw
// sensor block appended after the image data is carried over unchanged so the
// conversion stage can still extract it.
func greyscaleInPlace(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	jpegData, trailer, err := bayer.SplitRaw(data)
	if err != nil {
		return fmt.Errorf("split frame: %w", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	grey := image.NewGray(img.Bounds())
	draw.Draw(grey, grey.Bounds(), img, img.Bounds().Min, draw.Src)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, grey, &jpeg.Options{Quality: greyscaleQuality}); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	buf.Write(trailer)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
