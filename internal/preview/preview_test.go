package preview_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"astropitography/internal/preview"
	"astropitography/internal/testsupport"
)

func writeColourFrame(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 180, G: 60, B: 40, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "frame.jpeg")
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	return path
}

func decodePreview(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	return img
}

func TestRenderOverlaysReticle(t *testing.T) {
	frame := filepath.Join(t.TempDir(), "frame.jpeg")
	testsupport.WriteCapture(t, frame, false)

	data, err := preview.Render(frame, preview.Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img := decodePreview(t, data)
	bounds := img.Bounds()
	if bounds.Dx() != 64 || bounds.Dy() != 48 {
		t.Fatalf("unexpected preview size %v", bounds)
	}
	// The cross passes through the centre, so red dominates there.
	r, g, _, _ := img.At(bounds.Dx()/2, bounds.Dy()/2).RGBA()
	if r <= 2*g {
		t.Fatalf("expected reticle at centre, got r=%d g=%d", r>>8, g>>8)
	}
}

func TestRenderDownscalesWideFrames(t *testing.T) {
	frame := writeColourFrame(t, 64, 48)

	data, err := preview.Render(frame, preview.Options{MaxWidth: 32})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img := decodePreview(t, data)
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 24 {
		t.Fatalf("unexpected preview size %v", img.Bounds())
	}
}

func TestRenderGreyscaleOption(t *testing.T) {
	frame := writeColourFrame(t, 32, 24)

	data, err := preview.Render(frame, preview.Options{Greyscale: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img := decodePreview(t, data)
	// Away from the reticle the frame is pure luminance.
	r, g, b, _ := img.At(4, 4).RGBA()
	if r != g || g != b {
		t.Fatalf("expected grey pixel, got r=%d g=%d b=%d", r>>8, g>>8, b>>8)
	}

	colour, err := preview.Render(frame, preview.Options{})
	if err != nil {
		t.Fatalf("Render colour: %v", err)
	}
	cimg := decodePreview(t, colour)
	cr, cg, _, _ := cimg.At(4, 4).RGBA()
	if cr <= cg {
		t.Fatalf("expected red-dominant source pixel, got r=%d g=%d", cr>>8, cg>>8)
	}
}

func TestRenderRejectsMissingFrame(t *testing.T) {
	if _, err := preview.Render(filepath.Join(t.TempDir(), "absent.jpeg"), preview.Options{}); err == nil {
		t.Fatal("expected error for missing frame")
	}
}

func TestRenderRejectsUndecodableFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.jpeg")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := preview.Render(path, preview.Options{})
	if err == nil || !strings.Contains(err.Error(), "decode frame") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestRenderImageRejectsEmptyBounds(t *testing.T) {
	if _, err := preview.RenderImage(image.NewRGBA(image.Rect(0, 0, 0, 0)), preview.Options{}); err == nil {
		t.Fatal("expected error for empty image")
	}
}
