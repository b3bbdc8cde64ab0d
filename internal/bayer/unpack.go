package bayer

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// The Broadcom block opens with a fixed-size header region; the camera
// metadata struct sits at a fixed offset inside it and the packed sensor
// rows follow the region.
const (
	blockHeaderSize  = 32768
	metaStructOffset = 176
	rowAlignment     = 32
)

// Raw formats as recorded in the block metadata.
const (
	formatRaw10 = 3
	formatRaw12 = 4
)

// CFA colour codes follow the DNG convention: 0 red, 1 green, 2 blue.
var bayerOrderPatterns = map[uint8][4]byte{
	0: {0, 1, 1, 2}, // RGGB
	1: {1, 2, 0, 1}, // GBRG
	2: {2, 1, 1, 0}, // BGGR
	3: {1, 0, 2, 1}, // GRBG
}

// Header describes the sensor readout recorded in the Broadcom block.
type Header struct {
	Name         string
	Width        int
	Height       int
	PaddingRight int
	PaddingDown  int
	Transform    int
	BayerOrder   uint8
	BayerFormat  uint8
}

// Frame holds unpacked 16-bit sensor samples.
type Frame struct {
	Width      int
	Height     int
	BitDepth   int
	CFAPattern [4]byte
	SensorName string
	Samples    []uint16
}

// WhiteLevel returns the saturation value for the frame's bit depth.
func (f *Frame) WhiteLevel() uint16 {
	return uint16(1<<f.BitDepth - 1)
}

// BlackLevel returns the sensor pedestal for the frame's bit depth.
func (f *Frame) BlackLevel() uint16 {
	// 64 at 10 bits, scaled with depth.
	return uint16(64 << (f.BitDepth - 10))
}

// ParseHeader decodes the metadata struct of a Broadcom raw block.
func ParseHeader(block []byte) (Header, error) {
	if len(block) < blockHeaderSize {
		return Header{}, fmt.Errorf("raw block too short: %d bytes", len(block))
	}
	meta := block[metaStructOffset:]

	name := meta[:32]
	if idx := strings.IndexByte(string(name), 0); idx >= 0 {
		name = name[:idx]
	}

	hdr := Header{
		Name:         string(name),
		Width:        int(binary.LittleEndian.Uint16(meta[32:34])),
		Height:       int(binary.LittleEndian.Uint16(meta[34:36])),
		PaddingRight: int(binary.LittleEndian.Uint16(meta[36:38])),
		PaddingDown:  int(binary.LittleEndian.Uint16(meta[38:40])),
		Transform:    int(binary.LittleEndian.Uint16(meta[64:66])),
		BayerOrder:   meta[68],
		BayerFormat:  meta[69],
	}
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return Header{}, fmt.Errorf("raw block reports invalid dimensions %dx%d", hdr.Width, hdr.Height)
	}
	return hdr, nil
}

// Decode unpacks a Broadcom raw block into 16-bit samples.
func Decode(block []byte) (*Frame, error) {
	hdr, err := ParseHeader(block)
	if err != nil {
		return nil, err
	}

	var bitDepth, groupBytes, groupPixels int
	switch hdr.BayerFormat {
	case formatRaw10:
		bitDepth, groupBytes, groupPixels = 10, 5, 4
	case formatRaw12:
		bitDepth, groupBytes, groupPixels = 12, 3, 2
	default:
		return nil, fmt.Errorf("unsupported raw format %d", hdr.BayerFormat)
	}

	pattern, ok := bayerOrderPatterns[hdr.BayerOrder]
	if !ok {
		return nil, fmt.Errorf("unsupported bayer order %d", hdr.BayerOrder)
	}

	stride := alignUp((hdr.Width+hdr.PaddingRight)*groupBytes/groupPixels, rowAlignment)
	rowBytes := hdr.Width * groupBytes / groupPixels
	payload := block[blockHeaderSize:]
	if len(payload) < stride*hdr.Height {
		return nil, fmt.Errorf("raw payload short: have %d bytes, need %d", len(payload), stride*hdr.Height)
	}

	samples := make([]uint16, hdr.Width*hdr.Height)
	for row := 0; row < hdr.Height; row++ {
		src := payload[row*stride : row*stride+rowBytes]
		dst := samples[row*hdr.Width : (row+1)*hdr.Width]
		switch hdr.BayerFormat {
		case formatRaw10:
			unpackRow10(src, dst)
		case formatRaw12:
			unpackRow12(src, dst)
		}
	}

	return &Frame{
		Width:      hdr.Width,
		Height:     hdr.Height,
		BitDepth:   bitDepth,
		CFAPattern: pattern,
		SensorName: hdr.Name,
		Samples:    samples,
	}, nil
}

// unpackRow10 expands MIPI RAW10 groups: four high bytes followed by one
// byte carrying the two low bits of each sample.
func unpackRow10(src []byte, dst []uint16) {
	groups := len(dst) / 4
	for g := 0; g < groups; g++ {
		b := src[g*5 : g*5+5]
		low := b[4]
		dst[g*4+0] = uint16(b[0])<<2 | uint16(low)&0x3
		dst[g*4+1] = uint16(b[1])<<2 | uint16(low>>2)&0x3
		dst[g*4+2] = uint16(b[2])<<2 | uint16(low>>4)&0x3
		dst[g*4+3] = uint16(b[3])<<2 | uint16(low>>6)&0x3
	}
}

// unpackRow12 expands MIPI RAW12 groups: two high bytes followed by one
// byte carrying the low nibbles.
func unpackRow12(src []byte, dst []uint16) {
	groups := len(dst) / 2
	for g := 0; g < groups; g++ {
		b := src[g*3 : g*3+3]
		low := b[2]
		dst[g*2+0] = uint16(b[0])<<4 | uint16(low)&0xF
		dst[g*2+1] = uint16(b[1])<<4 | uint16(low>>4)&0xF
	}
}

func alignUp(v, align int) int {
	return (v + align - 1) / align * align
}
