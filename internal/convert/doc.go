// Package convert extracts DNG files from captured frames.
//
// Raspberry Pi camera tools append the packed Bayer sensor readout after the
// JPEG image data when raw capture is enabled. This stage walks each captured
// frame, unpacks that block, and writes a DNG sibling next to the JPEG so
// stacking software can work from sensor data. Frames captured without raw
// data pass through untouched, and video sessions skip the stage entirely.
//
// When keep_raw_originals is off the JPEG twin is deleted once its DNG has
// been written, leaving only the raw file for the library.
package convert
