package bayer

import (
	"encoding/binary"
	"errors"
	"testing"
)

// buildBlock assembles a Broadcom raw block with the given metadata and
// packed payload rows.
func buildBlock(width, height, padRight, padDown int, order, format uint8, payload []byte) []byte {
	block := make([]byte, blockHeaderSize+len(payload))
	copy(block, brcmMagic)
	meta := block[metaStructOffset:]
	copy(meta[:32], "RP_testcam")
	binary.LittleEndian.PutUint16(meta[32:34], uint16(width))
	binary.LittleEndian.PutUint16(meta[34:36], uint16(height))
	binary.LittleEndian.PutUint16(meta[36:38], uint16(padRight))
	binary.LittleEndian.PutUint16(meta[38:40], uint16(padDown))
	meta[68] = order
	meta[69] = format
	copy(block[blockHeaderSize:], payload)
	return block
}

// buildJPEG wraps entropy bytes in a minimal marker structure and appends
// the trailer after the end-of-image marker.
func buildJPEG(entropy, trailer []byte) []byte {
	var out []byte
	out = append(out, 0xFF, 0xD8)             // SOI
	out = append(out, 0xFF, 0xE0, 0x00, 0x04) // APP0, length 4
	out = append(out, 0xAB, 0xCD)
	out = append(out, 0xFF, 0xDA, 0x00, 0x02) // SOS, length 2
	out = append(out, entropy...)
	out = append(out, 0xFF, 0xD9) // EOI
	out = append(out, trailer...)
	return out
}

func TestExtractBlockFindsAppendedData(t *testing.T) {
	block := buildBlock(8, 1, 0, 0, 2, formatRaw10, make([]byte, rowAlignment))
	data := buildJPEG([]byte{0x11, 0x22, 0x33}, block)

	got, err := ExtractBlock(data)
	if err != nil {
		t.Fatalf("ExtractBlock: %v", err)
	}
	if len(got) != len(block) {
		t.Fatalf("expected %d block bytes, got %d", len(block), len(got))
	}
}

func TestExtractBlockSkipsStuffedBytesAndRestarts(t *testing.T) {
	// Entropy data containing a stuffed 0xFF00 and a restart marker must
	// not be mistaken for the end of image.
	entropy := []byte{0x01, 0xFF, 0x00, 0x02, 0xFF, 0xD0, 0x03}
	block := buildBlock(8, 1, 0, 0, 2, formatRaw10, make([]byte, rowAlignment))
	data := buildJPEG(entropy, block)

	got, err := ExtractBlock(data)
	if err != nil {
		t.Fatalf("ExtractBlock: %v", err)
	}
	if len(got) != len(block) {
		t.Fatalf("expected %d block bytes, got %d", len(block), len(got))
	}
}

func TestExtractBlockWithoutTrailerReturnsNoRawData(t *testing.T) {
	data := buildJPEG([]byte{0x10, 0x20}, nil)
	if _, err := ExtractBlock(data); !errors.Is(err, ErrNoRawData) {
		t.Fatalf("expected ErrNoRawData, got %v", err)
	}
}

func TestExtractBlockRejectsNonJPEG(t *testing.T) {
	if _, err := ExtractBlock([]byte("PNG not jpeg")); err == nil {
		t.Fatal("expected error for non JPEG input")
	}
}

func TestDecodeRaw10UnpacksGroups(t *testing.T) {
	const width, height = 8, 2
	// Two groups per row of four samples each: high bytes then a low-bits
	// byte packing two bits per sample, first sample in the low bits.
	row := []byte{
		0x01, 0x02, 0x03, 0x04, 0xE4, // lows 00,01,10,11
		0x10, 0x20, 0x30, 0x40, 0x00,
	}
	stride := alignUp(len(row), rowAlignment)
	payload := make([]byte, stride*height)
	copy(payload[0:], row)
	copy(payload[stride:], row)

	frame, err := Decode(buildBlock(width, height, 0, 0, 2, formatRaw10, payload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame.Width != width || frame.Height != height || frame.BitDepth != 10 {
		t.Fatalf("unexpected frame shape %+v", frame)
	}
	if frame.SensorName != "RP_testcam" {
		t.Fatalf("unexpected sensor name %q", frame.SensorName)
	}
	want := []uint16{
		1<<2 | 0, 2<<2 | 1, 3<<2 | 2, 4<<2 | 3,
		0x10 << 2, 0x20 << 2, 0x30 << 2, 0x40 << 2,
	}
	for idx, value := range want {
		if frame.Samples[idx] != value {
			t.Fatalf("sample %d: expected %d, got %d", idx, value, frame.Samples[idx])
		}
		second := frame.Samples[width+idx]
		if second != value {
			t.Fatalf("row 1 sample %d: expected %d, got %d", idx, value, second)
		}
	}
	if frame.CFAPattern != [4]byte{2, 1, 1, 0} {
		t.Fatalf("expected BGGR pattern, got %v", frame.CFAPattern)
	}
}

func TestDecodeRaw10HonorsRowPadding(t *testing.T) {
	const width, height, padRight = 4, 1, 4
	rowBytes := width * 5 / 4
	stride := alignUp((width+padRight)*5/4, rowAlignment)
	payload := make([]byte, stride*height)
	copy(payload, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	// Padding bytes past the usable row must be ignored.
	for i := rowBytes; i < stride; i++ {
		payload[i] = 0xAA
	}

	frame, err := Decode(buildBlock(width, height, padRight, 0, 0, formatRaw10, payload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for idx, sample := range frame.Samples {
		if sample != 1023 {
			t.Fatalf("sample %d: expected saturated 1023, got %d", idx, sample)
		}
	}
}

func TestDecodeRaw12UnpacksGroups(t *testing.T) {
	const width, height = 4, 1
	row := []byte{
		0x12, 0x34, 0x8F, // P0=0x12<<4|0xF, P1=0x34<<4|0x8
		0xFF, 0x00, 0x0F, // P2=0xFF<<4|0xF=4095, P3=0
	}
	stride := alignUp(len(row), rowAlignment)
	payload := make([]byte, stride*height)
	copy(payload, row)

	frame, err := Decode(buildBlock(width, height, 0, 0, 0, formatRaw12, payload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame.BitDepth != 12 {
		t.Fatalf("expected 12-bit frame, got %d", frame.BitDepth)
	}
	want := []uint16{0x12<<4 | 0xF, 0x34<<4 | 0x8, 4095, 0}
	for idx, value := range want {
		if frame.Samples[idx] != value {
			t.Fatalf("sample %d: expected %d, got %d", idx, value, frame.Samples[idx])
		}
	}
	if frame.WhiteLevel() != 4095 {
		t.Fatalf("expected white level 4095, got %d", frame.WhiteLevel())
	}
	if frame.BlackLevel() != 256 {
		t.Fatalf("expected black level 256, got %d", frame.BlackLevel())
	}
}

func TestDecodeRejectsUnknownFormat(t *testing.T) {
	block := buildBlock(4, 1, 0, 0, 0, 9, make([]byte, rowAlignment))
	if _, err := Decode(block); err == nil {
		t.Fatal("expected error for unknown raw format")
	}
}

func TestDecodeRejectsShortPayload(t *testing.T) {
	block := buildBlock(64, 4, 0, 0, 0, formatRaw10, make([]byte, 16))
	if _, err := Decode(block); err == nil {
		t.Fatal("expected error for short payload")
	}
}

func TestFrameLevels10Bit(t *testing.T) {
	frame := &Frame{BitDepth: 10}
	if frame.WhiteLevel() != 1023 {
		t.Fatalf("expected white level 1023, got %d", frame.WhiteLevel())
	}
	if frame.BlackLevel() != 64 {
		t.Fatalf("expected black level 64, got %d", frame.BlackLevel())
	}
}
