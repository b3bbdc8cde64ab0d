package solver

import (
	"math"
	"sort"
)

// Vec3 is a unit vector on the celestial sphere or in the camera frame.
// Camera frame vectors point x forward along the boresight, y left and
// z up in image space.
type Vec3 [3]float64

func (v Vec3) Dot(o Vec3) float64 { return v[0]*o[0] + v[1]*o[1] + v[2]*o[2] }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v[0] * s, v[1] * s, v[2] * s} }

func vecFromSpherical(ra, dec float64) Vec3 {
	return Vec3{
		math.Cos(ra) * math.Cos(dec),
		math.Sin(ra) * math.Cos(dec),
		math.Sin(dec),
	}
}

func deg2rad(deg float64) float64 { return deg * math.Pi / 180 }

func rad2deg(rad float64) float64 { return rad * 180 / math.Pi }

func mod360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// projectCentroids converts pixel centroids to camera frame unit
// vectors with the pinhole model. fov is the horizontal field of view
// in radians.
func projectCentroids(centroids []Centroid, fov float64, width, height int) []Vec3 {
	centerX := float64(width) / 2
	centerY := float64(height) / 2
	scale := math.Tan(fov/2) / centerX
	vectors := make([]Vec3, len(centroids))
	for n, c := range centroids {
		j := (centerX - c.X) * scale
		k := (centerY - c.Y) * scale
		i := 1 / math.Sqrt(1+j*j+k*k)
		vectors[n] = Vec3{i, j * i, k * i}
	}
	return vectors
}

// pairwiseEdges returns the chord distances between every pair of
// vectors, sorted ascending.
func pairwiseEdges(vectors []Vec3) []float64 {
	edges := make([]float64, 0, len(vectors)*(len(vectors)-1)/2)
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			edges = append(edges, vectors[i].Sub(vectors[j]).Norm())
		}
	}
	sort.Float64s(edges)
	return edges
}

// sortByRadius orders vectors by their distance from the mean vector.
// Two views of the same star pattern sort identically, which pairs the
// image stars with their catalog counterparts.
func sortByRadius(vectors []Vec3) []Vec3 {
	var mean Vec3
	for _, v := range vectors {
		mean[0] += v[0]
		mean[1] += v[1]
		mean[2] += v[2]
	}
	mean = mean.Scale(1 / float64(len(vectors)))
	out := append([]Vec3(nil), vectors...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Sub(mean).Norm() < out[j].Sub(mean).Norm()
	})
	return out
}

// patternIndexSets visits index sets of size k drawn from n candidates,
// exhausting combinations of the lowest (brightest) indices before
// mixing in higher ones. visit returns false to stop the iteration. The
// slice passed to visit is reused between calls.
func patternIndexSets(n, k int, visit func(indices []int) bool) {
	if k <= 0 || n < k {
		return
	}
	idx := make([]int, k+2)
	idx[0] = -1
	for i := 1; i <= k; i++ {
		idx[i] = i - 1
	}
	idx[k+1] = n
	if !visit(idx[1 : k+1]) {
		return
	}
	for idx[1] < n-k {
		for j := 1; j <= k; j++ {
			idx[j]++
			if idx[j] < idx[j+1] {
				break
			}
			idx[j] = idx[j-1] + 1
		}
		if !visit(idx[1 : k+1]) {
			return
		}
	}
}
