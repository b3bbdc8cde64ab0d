// Package bayer extracts the raw sensor block Raspberry Pi camera firmware
// appends to JPEG captures and unpacks the MIPI packed Bayer payload into
// 16-bit samples ready for DNG writing.
package bayer
