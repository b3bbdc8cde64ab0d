package capture

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"astropitography/internal/bayer"
)

func writeColourFrame(t *testing.T, trailer []byte) string {
	t.Helper()
	src := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	buf.Write(trailer)
	path := filepath.Join(t.TempDir(), "frame.jpeg")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestGreyscaleInPlacePreservesRawTrailer(t *testing.T) {
	trailer := append([]byte("BRCM"), bytes.Repeat([]byte{0xAB}, 64)...)
	path := writeColourFrame(t, trailer)

	if err := greyscaleInPlace(path); err != nil {
		t.Fatalf("greyscaleInPlace: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	jpegData, gotTrailer, err := bayer.SplitRaw(data)
	if err != nil {
		t.Fatalf("SplitRaw: %v", err)
	}
	if !bytes.Equal(gotTrailer, trailer) {
		t.Fatalf("trailer changed: got %d bytes, want %d", len(gotTrailer), len(trailer))
	}
	img, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if _, ok := img.(*image.Gray); !ok {
		t.Fatalf("expected greyscale image, got %T", img)
	}
}

func TestGreyscaleInPlaceHandlesPlainJPEG(t *testing.T) {
	path := writeColourFrame(t, nil)

	if err := greyscaleInPlace(path); err != nil {
		t.Fatalf("greyscaleInPlace: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	jpegData, gotTrailer, err := bayer.SplitRaw(data)
	if err != nil {
		t.Fatalf("SplitRaw: %v", err)
	}
	if len(gotTrailer) != 0 {
		t.Fatalf("expected empty trailer, got %d bytes", len(gotTrailer))
	}
	if _, err := jpeg.Decode(bytes.NewReader(jpegData)); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestGreyscaleInPlaceRejectsNonJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.jpeg")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := greyscaleInPlace(path); err == nil {
		t.Fatal("expected error for non-JPEG input")
	}
}
