package solver

import (
	"fmt"
	"image"
	"math"
	"sort"
)

// Centroid is a detected star in image coordinates. X and Y follow the
// convention that the centre of the top left pixel sits at (0.5, 0.5).
type Centroid struct {
	X    float64
	Y    float64
	Sum  float64
	Area int
}

// ExtractOptions tune star extraction. Limits left at zero disable the
// corresponding filter.
type ExtractOptions struct {
	Sigma        float64
	FilterSize   int
	MinArea      int
	MaxArea      int
	MinSum       float64
	MaxSum       float64
	MaxAxisRatio float64
	MaxReturned  int
	BinaryOpen   bool
	Crop         int
	Downsample   int
}

func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		Sigma:      3,
		FilterSize: 7,
		MinArea:    3,
		BinaryOpen: true,
	}
}

// ExtractCentroids finds star centroids in an image. The background and
// noise floor are estimated with median filters, pixels above the sigma
// threshold are grouped into connected regions, and each surviving
// region contributes one intensity weighted centroid. Results are
// sorted brightest first.
func ExtractCentroids(img image.Image, opts ExtractOptions) ([]Centroid, error) {
	if opts.Sigma == 0 {
		opts.Sigma = 3
	}
	if opts.FilterSize == 0 {
		opts.FilterSize = 7
	}
	if opts.FilterSize < 1 || opts.FilterSize%2 == 0 {
		return nil, fmt.Errorf("median filter size %d must be odd", opts.FilterSize)
	}
	if opts.Crop < 0 || opts.Downsample < 0 {
		return nil, fmt.Errorf("crop %d and downsample %d must not be negative", opts.Crop, opts.Downsample)
	}

	pixels, width, height := grayscale(img)
	pixels, width, height, offX, offY, err := cropAndDownsample(pixels, width, height, opts.Crop, opts.Downsample)
	if err != nil {
		return nil, err
	}

	background := medianFilter(pixels, width, height, opts.FilterSize)
	for i := range pixels {
		pixels[i] -= background[i]
	}
	absolute := background
	for i, v := range pixels {
		absolute[i] = math.Abs(v)
	}
	noise := medianFilter(absolute, width, height, opts.FilterSize)

	mask := make([]bool, len(pixels))
	for i, v := range pixels {
		mask[i] = v > opts.Sigma*1.48*noise[i]
	}
	if opts.BinaryOpen {
		mask = binaryOpen(mask, width, height)
	}

	var centroids []Centroid
	for _, comp := range connectedComponents(mask, width, height) {
		if c, ok := measureComponent(pixels, width, comp, opts); ok {
			centroids = append(centroids, c)
		}
	}
	sort.Slice(centroids, func(i, j int) bool { return centroids[i].Sum > centroids[j].Sum })
	if opts.MaxReturned > 0 && len(centroids) > opts.MaxReturned {
		centroids = centroids[:opts.MaxReturned]
	}

	scale := float64(opts.Downsample)
	if opts.Downsample <= 1 {
		scale = 1
	}
	for i := range centroids {
		centroids[i].X = centroids[i].X*scale + float64(offX)
		centroids[i].Y = centroids[i].Y*scale + float64(offY)
	}
	return centroids, nil
}

func grayscale(img image.Image) ([]float64, int, int) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	pixels := make([]float64, width*height)
	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < height; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+width]
			for x, v := range row {
				pixels[y*width+x] = float64(v)
			}
		}
	case *image.Gray16:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				pixels[y*width+x] = float64(src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y) / 257
			}
		}
	default:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				pixels[y*width+x] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257
			}
		}
	}
	return pixels, width, height
}

// cropAndDownsample optionally extracts a centred square crop and bins
// blocks of downsample by downsample pixels by summation. The returned
// offsets map coordinates in the reduced frame back onto the original.
func cropAndDownsample(pixels []float64, width, height, crop, down int) ([]float64, int, int, int, int, error) {
	offX, offY := 0, 0
	if crop > 0 {
		side := crop
		if down > 1 && side%down != 0 {
			side += down - side%down
		}
		cw, ch := side, side
		if cw > width {
			cw = width
		}
		if ch > height {
			ch = height
		}
		offX = (width - cw) / 2
		offY = (height - ch) / 2
		cropped := make([]float64, cw*ch)
		for y := 0; y < ch; y++ {
			copy(cropped[y*cw:(y+1)*cw], pixels[(y+offY)*width+offX:(y+offY)*width+offX+cw])
		}
		pixels, width, height = cropped, cw, ch
	}
	if down > 1 {
		if width%down != 0 || height%down != 0 {
			return nil, 0, 0, 0, 0, fmt.Errorf("image %dx%d not divisible by downsample factor %d", width, height, down)
		}
		dw, dh := width/down, height/down
		binned := make([]float64, dw*dh)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				binned[(y/down)*dw+x/down] += pixels[y*width+x]
			}
		}
		pixels, width, height = binned, dw, dh
	}
	return pixels, width, height, offX, offY, nil
}

// medianFilter applies a size by size median filter with reflected
// edges.
func medianFilter(pixels []float64, width, height, size int) []float64 {
	out := make([]float64, len(pixels))
	window := make([]float64, 0, size*size)
	half := size / 2
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			window = window[:0]
			for dy := -half; dy <= half; dy++ {
				sy := reflectIndex(y+dy, height)
				for dx := -half; dx <= half; dx++ {
					window = append(window, pixels[sy*width+reflectIndex(x+dx, width)])
				}
			}
			sort.Float64s(window)
			out[y*width+x] = window[len(window)/2]
		}
	}
	return out
}

func reflectIndex(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - i - 1
		}
	}
	return i
}

// binaryOpen erodes then dilates the mask with a 3x3 cross, removing
// single pixel detections while keeping larger regions intact.
func binaryOpen(mask []bool, width, height int) []bool {
	eroded := make([]bool, len(mask))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x == 0 || x == width-1 || y == 0 || y == height-1 {
				continue
			}
			p := y*width + x
			eroded[p] = mask[p] && mask[p-1] && mask[p+1] && mask[p-width] && mask[p+width]
		}
	}
	dilated := make([]bool, len(mask))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := y*width + x
			if !eroded[p] {
				continue
			}
			dilated[p] = true
			if x > 0 {
				dilated[p-1] = true
			}
			if x < width-1 {
				dilated[p+1] = true
			}
			if y > 0 {
				dilated[p-width] = true
			}
			if y < height-1 {
				dilated[p+width] = true
			}
		}
	}
	return dilated
}

// connectedComponents labels the mask with 4-connectivity and returns
// the pixel offsets of each region.
func connectedComponents(mask []bool, width, height int) [][]int {
	seen := make([]bool, len(mask))
	var components [][]int
	var stack []int
	for start, on := range mask {
		if !on || seen[start] {
			continue
		}
		var comp []int
		stack = append(stack[:0], start)
		seen[start] = true
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, p)
			x := p % width
			if x > 0 && mask[p-1] && !seen[p-1] {
				seen[p-1] = true
				stack = append(stack, p-1)
			}
			if x < width-1 && mask[p+1] && !seen[p+1] {
				seen[p+1] = true
				stack = append(stack, p+1)
			}
			if p >= width && mask[p-width] && !seen[p-width] {
				seen[p-width] = true
				stack = append(stack, p-width)
			}
			if p+width < len(mask) && mask[p+width] && !seen[p+width] {
				seen[p+width] = true
				stack = append(stack, p+width)
			}
		}
		components = append(components, comp)
	}
	return components
}

// measureComponent computes the intensity weighted centroid of one
// region over the background subtracted pixels, applying the area, sum
// and elongation filters.
func measureComponent(pixels []float64, width int, comp []int, opts ExtractOptions) (Centroid, bool) {
	if opts.MinArea > 0 && len(comp) < opts.MinArea {
		return Centroid{}, false
	}
	if opts.MaxArea > 0 && len(comp) > opts.MaxArea {
		return Centroid{}, false
	}
	var sum, sumX, sumY float64
	for _, p := range comp {
		v := pixels[p]
		sum += v
		sumX += float64(p%width) * v
		sumY += float64(p/width) * v
	}
	if opts.MinSum > 0 && sum < opts.MinSum {
		return Centroid{}, false
	}
	if opts.MaxSum > 0 && sum > opts.MaxSum {
		return Centroid{}, false
	}
	meanX := sumX / sum
	meanY := sumY / sum
	if opts.MaxAxisRatio > 0 {
		var xx, yy, xy float64
		for _, p := range comp {
			v := pixels[p]
			dx := float64(p%width) - meanX
			dy := float64(p/width) - meanY
			xx += dx * dx * v
			yy += dy * dy * v
			xy += dx * dy * v
		}
		xx = math.Max(0, xx/sum)
		yy = math.Max(0, yy/sum)
		xy /= sum
		root := math.Sqrt((xx-yy)*(xx-yy) + 4*xy*xy)
		minor := math.Sqrt(2 * math.Max(0, xx+yy-root))
		if minor <= 0 {
			return Centroid{}, false
		}
		major := math.Sqrt(2 * (xx + yy + root))
		if major/math.Max(minor, 1e-9) > opts.MaxAxisRatio {
			return Centroid{}, false
		}
	}
	return Centroid{X: meanX + 0.5, Y: meanY + 0.5, Sum: sum, Area: len(comp)}, true
}
