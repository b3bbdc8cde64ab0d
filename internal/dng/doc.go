// Package dng writes unpacked sensor frames as minimal little-endian
// DNG files: one IFD, uncompressed 16-bit CFA strip data, and the
// descriptive tags raw converters need to demosaic the image.
package dng
