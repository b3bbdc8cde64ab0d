package bayer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
)

// ErrNoRawData reports a JPEG captured without the appended sensor block,
// which happens when raw capture is disabled.
var ErrNoRawData = errors.New("no raw sensor data appended to image")

const (
	markerPrefix = 0xFF
	markerSOI    = 0xD8
	markerEOI    = 0xD9
	markerSOS    = 0xDA
)

var brcmMagic = []byte("BRCM")

// ExtractBlock walks the JPEG marker segments of a capture and returns the
// Broadcom raw block the firmware appends after the end-of-image marker.
func ExtractBlock(data []byte) ([]byte, error) {
	end, err := imageEnd(data)
	if err != nil {
		return nil, err
	}
	block := data[end:]
	if len(block) == 0 || !bytes.HasPrefix(block, brcmMagic) {
		return nil, ErrNoRawData
	}
	return block, nil
}

// SplitRaw divides a capture into its JPEG bytes and whatever the firmware
// appended after the end-of-image marker. The trailer is empty for captures
// taken without raw enabled.
func SplitRaw(data []byte) (jpeg, trailer []byte, err error) {
	end, err := imageEnd(data)
	if err != nil {
		return nil, nil, err
	}
	return data[:end], data[end:], nil
}

// imageEnd returns the offset just past the JPEG end-of-image marker.
func imageEnd(data []byte) (int, error) {
	if len(data) < 4 || data[0] != markerPrefix || data[1] != markerSOI {
		return 0, errors.New("not a JPEG image")
	}

	pos := 2
	for {
		if pos+4 > len(data) {
			return 0, errors.New("truncated JPEG segment table")
		}
		if data[pos] != markerPrefix {
			return 0, fmt.Errorf("invalid JPEG marker at offset %d", pos)
		}
		marker := data[pos+1]
		if marker == markerSOS {
			pos += 2
			break
		}
		length := int(data[pos+2])<<8 | int(data[pos+3])
		if length < 2 {
			return 0, fmt.Errorf("invalid segment length at offset %d", pos)
		}
		pos += 2 + length
	}

	eoi, err := findEOI(data, pos)
	if err != nil {
		return 0, err
	}
	return eoi + 2, nil
}

// findEOI scans entropy-coded data for the end-of-image marker, skipping
// stuffed 0xFF00 bytes and restart markers.
func findEOI(data []byte, from int) (int, error) {
	for i := from; i+1 < len(data); i++ {
		if data[i] != markerPrefix {
			continue
		}
		next := data[i+1]
		switch {
		case next == 0x00:
			i++
		case next >= 0xD0 && next <= 0xD7:
			i++
		case next == markerEOI:
			return i, nil
		}
	}
	return 0, errors.New("JPEG end-of-image marker not found")
}

// DecodeFile reads a capture from disk and decodes its appended raw block.
func DecodeFile(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	block, err := ExtractBlock(data)
	if err != nil {
		return nil, err
	}
	return Decode(block)
}
