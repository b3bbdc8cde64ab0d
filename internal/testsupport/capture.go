package testsupport

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

// WriteCapture writes a decodable JPEG frame to path. When withRaw is set a
// minimal Broadcom raw block is appended after the end-of-image marker, the
// way raw-enabled captures come off the camera stack.
func WriteCapture(t testing.TB, path string, withRaw bool) {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = 16
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode capture fixture: %v", err)
	}
	if withRaw {
		buf.Write(rawBlock())
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir capture dir: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write capture fixture: %v", err)
	}
}

// rawBlock builds an 8x4 RAW10 BGGR Broadcom block with a ramp payload.
func rawBlock() []byte {
	const (
		headerSize = 32768
		metaOffset = 176
		width      = 8
		height     = 4
	)
	rowBytes := width * 5 / 4
	stride := (rowBytes + 31) &^ 31
	block := make([]byte, headerSize+stride*height)
	copy(block, "BRCM")
	meta := block[metaOffset:]
	copy(meta[:32], "RP_testcam")
	binary.LittleEndian.PutUint16(meta[32:34], width)
	binary.LittleEndian.PutUint16(meta[34:36], height)
	meta[68] = 2 // BGGR
	meta[69] = 3 // RAW10
	payload := block[headerSize:]
	for row := 0; row < height; row++ {
		for i := 0; i < rowBytes; i++ {
			payload[row*stride+i] = byte(row + i)
		}
	}
	return block
}
