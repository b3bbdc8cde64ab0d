package dng

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"astropitography/internal/bayer"
)

// TIFF field types used by the writer.
const (
	typeByte  = 1
	typeASCII = 2
	typeShort = 3
	typeLong  = 4
)

// Tag numbers for the single IFD.
const (
	tagNewSubfileType    = 254
	tagImageWidth        = 256
	tagImageLength       = 257
	tagBitsPerSample     = 258
	tagCompression       = 259
	tagPhotometric       = 262
	tagMake              = 271
	tagModel             = 272
	tagStripOffsets      = 273
	tagSamplesPerPixel   = 277
	tagRowsPerStrip      = 278
	tagStripByteCounts   = 279
	tagDateTime          = 306
	tagCFARepeatDim      = 33421
	tagCFAPattern        = 33422
	tagDNGVersion        = 50706
	tagUniqueCameraModel = 50708
	tagBlackLevel        = 50714
	tagWhiteLevel        = 50717
)

const photometricCFA = 32803

// Metadata carries the descriptive fields written into the DNG.
type Metadata struct {
	Make      string
	Model     string
	Timestamp time.Time
}

type entry struct {
	tag     uint16
	ftype   uint16
	count   uint32
	inline  [4]byte
	data    []byte // out-of-line payload when the value exceeds four bytes
	pointer bool
}

type ifdBuilder struct {
	entries []entry
}

func (b *ifdBuilder) addShort(tag uint16, values ...uint16) {
	e := entry{tag: tag, ftype: typeShort, count: uint32(len(values))}
	if len(values) <= 2 {
		for i, v := range values {
			binary.LittleEndian.PutUint16(e.inline[i*2:], v)
		}
	} else {
		buf := make([]byte, len(values)*2)
		for i, v := range values {
			binary.LittleEndian.PutUint16(buf[i*2:], v)
		}
		e.data = buf
		e.pointer = true
	}
	b.entries = append(b.entries, e)
}

func (b *ifdBuilder) addLong(tag uint16, values ...uint32) {
	e := entry{tag: tag, ftype: typeLong, count: uint32(len(values))}
	if len(values) == 1 {
		binary.LittleEndian.PutUint32(e.inline[:], values[0])
	} else {
		buf := make([]byte, len(values)*4)
		for i, v := range values {
			binary.LittleEndian.PutUint32(buf[i*4:], v)
		}
		e.data = buf
		e.pointer = true
	}
	b.entries = append(b.entries, e)
}

func (b *ifdBuilder) addBytes(tag uint16, values ...byte) {
	e := entry{tag: tag, ftype: typeByte, count: uint32(len(values))}
	if len(values) <= 4 {
		copy(e.inline[:], values)
	} else {
		e.data = append([]byte(nil), values...)
		e.pointer = true
	}
	b.entries = append(b.entries, e)
}

func (b *ifdBuilder) addASCII(tag uint16, value string) {
	payload := append([]byte(value), 0)
	e := entry{tag: tag, ftype: typeASCII, count: uint32(len(payload))}
	if len(payload) <= 4 {
		copy(e.inline[:], payload)
	} else {
		e.data = payload
		e.pointer = true
	}
	b.entries = append(b.entries, e)
}

// Encode renders a little-endian TIFF with a single IFD followed by the
// strip data.
func Encode(frame *bayer.Frame, meta Metadata) ([]byte, error) {
	if frame == nil || len(frame.Samples) == 0 {
		return nil, errors.New("no sensor samples to encode")
	}
	if len(frame.Samples) != frame.Width*frame.Height {
		return nil, fmt.Errorf("sample count %d does not match %dx%d", len(frame.Samples), frame.Width, frame.Height)
	}

	makeName := meta.Make
	if makeName == "" {
		makeName = "Raspberry Pi"
	}
	modelName := meta.Model
	if modelName == "" {
		modelName = frame.SensorName
	}
	if modelName == "" {
		modelName = "RP_camera"
	}
	timestamp := meta.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	stripBytes := uint32(len(frame.Samples) * 2)

	b := &ifdBuilder{}
	b.addLong(tagNewSubfileType, 0)
	b.addLong(tagImageWidth, uint32(frame.Width))
	b.addLong(tagImageLength, uint32(frame.Height))
	b.addShort(tagBitsPerSample, 16)
	b.addShort(tagCompression, 1)
	b.addShort(tagPhotometric, photometricCFA)
	b.addASCII(tagMake, makeName)
	b.addASCII(tagModel, modelName)
	b.addLong(tagStripOffsets, 0) // patched after layout
	b.addShort(tagSamplesPerPixel, 1)
	b.addLong(tagRowsPerStrip, uint32(frame.Height))
	b.addLong(tagStripByteCounts, stripBytes)
	b.addASCII(tagDateTime, timestamp.Format("2006:01:02 15:04:05"))
	b.addShort(tagCFARepeatDim, 2, 2)
	b.addBytes(tagCFAPattern, frame.CFAPattern[0], frame.CFAPattern[1], frame.CFAPattern[2], frame.CFAPattern[3])
	b.addBytes(tagDNGVersion, 1, 4, 0, 0)
	b.addASCII(tagUniqueCameraModel, makeName+" "+modelName)
	b.addShort(tagBlackLevel, frame.BlackLevel())
	b.addShort(tagWhiteLevel, frame.WhiteLevel())

	sort.Slice(b.entries, func(i, j int) bool {
		return b.entries[i].tag < b.entries[j].tag
	})

	// Layout: 8-byte header, IFD, out-of-line values, strip data.
	ifdSize := 2 + len(b.entries)*12 + 4
	extraOffset := 8 + ifdSize
	extra := &bytes.Buffer{}
	for idx := range b.entries {
		e := &b.entries[idx]
		if !e.pointer {
			continue
		}
		binary.LittleEndian.PutUint32(e.inline[:], uint32(extraOffset+extra.Len()))
		extra.Write(e.data)
		if extra.Len()%2 == 1 {
			extra.WriteByte(0)
		}
	}
	stripOffset := uint32(extraOffset + extra.Len())
	for idx := range b.entries {
		if b.entries[idx].tag == tagStripOffsets {
			binary.LittleEndian.PutUint32(b.entries[idx].inline[:], stripOffset)
		}
	}

	out := &bytes.Buffer{}
	out.Grow(int(stripOffset) + int(stripBytes))
	out.WriteString("II")
	writeU16(out, 42)
	writeU32(out, 8)

	writeU16(out, uint16(len(b.entries)))
	for _, e := range b.entries {
		writeU16(out, e.tag)
		writeU16(out, e.ftype)
		writeU32(out, e.count)
		out.Write(e.inline[:])
	}
	writeU32(out, 0) // no further IFDs
	out.Write(extra.Bytes())

	for _, sample := range frame.Samples {
		writeU16(out, sample)
	}
	return out.Bytes(), nil
}

// WriteFile encodes the frame and writes it to path.
func WriteFile(path string, frame *bayer.Frame, meta Metadata) error {
	data, err := Encode(frame, meta)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write dng: %w", err)
	}
	return nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}
