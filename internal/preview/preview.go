package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"

	_ "image/jpeg"
)

const (
	defaultMaxWidth = 1024
	reticleColour   = "#ff2a2a"
)

// Options controls preview rendering.
type Options struct {
	// Greyscale converts the frame to luminance before overlaying the
	// reticle, mirroring the greyscale capture toggle.
	Greyscale bool
	// MaxWidth caps the output width in pixels; zero means the default.
	MaxWidth int
}

// Render decodes the frame at path and returns the reticle preview as PNG.
func Render(framePath string, opts Options) ([]byte, error) {
	f, err := os.Open(framePath)
	if err != nil {
		return nil, err
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return RenderImage(src, opts)
}

// RenderImage composites the reticle over an already decoded frame.
func RenderImage(src image.Image, opts Options) ([]byte, error) {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("frame has empty bounds %v", bounds)
	}
	maxWidth := opts.MaxWidth
	if maxWidth <= 0 {
		maxWidth = defaultMaxWidth
	}
	outWidth, outHeight := width, height
	if outWidth > maxWidth {
		outHeight = outHeight * maxWidth / outWidth
		if outHeight < 1 {
			outHeight = 1
		}
		outWidth = maxWidth
	}

	canvas := image.NewRGBA(image.Rect(0, 0, outWidth, outHeight))
	if outWidth == width && outHeight == height {
		draw.Draw(canvas, canvas.Bounds(), src, bounds.Min, draw.Src)
	} else {
		xdraw.CatmullRom.Scale(canvas, canvas.Bounds(), src, bounds, xdraw.Src, nil)
	}
	if opts.Greyscale {
		grey := image.NewGray(canvas.Bounds())
		draw.Draw(grey, grey.Bounds(), canvas, image.Point{}, draw.Src)
		draw.Draw(canvas, canvas.Bounds(), grey, image.Point{}, draw.Src)
	}

	overlay, err := renderReticle(outWidth, outHeight)
	if err != nil {
		return nil, err
	}
	draw.Draw(canvas, canvas.Bounds(), overlay, image.Point{}, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

// renderReticle rasterizes the reticle SVG onto a transparent canvas sized
// to the output frame.
func renderReticle(width, height int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(reticleSVG(width, height)))
	if err != nil {
		return nil, fmt.Errorf("parse reticle: %w", err)
	}
	icon.SetTarget(0, 0, float64(width), float64(height))
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	scanner := rasterx.NewScannerGV(width, height, dst, dst.Bounds())
	dasher := rasterx.NewDasher(width, height, scanner)
	icon.Draw(dasher, 1.0)
	return dst, nil
}

func reticleSVG(width, height int) string {
	w := float64(width)
	h := float64(height)
	min := w
	if h < min {
		min = h
	}
	radius := min * 0.2
	stroke := min / 240
	if stroke < 1 {
		stroke = 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">`, width, height)
	fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="none" stroke="%s" stroke-width="%.1f"/>`, w/2, h/2, radius, reticleColour, stroke)
	fmt.Fprintf(&b, `<line x1="0" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="%.1f"/>`, h/2, w, h/2, reticleColour, stroke)
	fmt.Fprintf(&b, `<line x1="%.1f" y1="0" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="%.1f"/>`, w/2, w/2, h, reticleColour, stroke)
	b.WriteString(`</svg>`)
	return b.String()
}
