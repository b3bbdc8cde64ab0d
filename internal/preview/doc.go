// Package preview renders framing previews for headless operation.
//
// A frame is decoded, optionally converted to greyscale, downscaled to a
// transfer-friendly width and composited with a reticle overlay (circle
// plus cross) rasterized from SVG. The result is encoded as PNG for the
// HTTP API and the preview CLI command.
package preview
