package solver

import (
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNoMatch is returned when no star pattern in the image matches the
// database to the required confidence.
var ErrNoMatch = errors.New("no match found")

// SolveOptions tune a solve attempt. Zero values pick defaults: the
// field of view estimate falls back to the database maximum and the
// estimate is unbounded unless FOVMaxErrorDeg is set.
type SolveOptions struct {
	FOVEstimateDeg       float64
	FOVMaxErrorDeg       float64
	MatchRadius          float64
	MatchThreshold       float64
	PatternCheckingStars int
}

// Solution is a successful plate solve.
type Solution struct {
	RADeg       float64
	DecDeg      float64
	RollDeg     float64
	FOVDeg      float64
	RMSEArcsec  float64
	Matches     int
	Probability float64
	ExtractTime time.Duration
	SolveTime   time.Duration
}

// Solver matches star patterns against a pattern database.
type Solver struct {
	db *Database
}

func New(db *Database) (*Solver, error) {
	if db == nil || len(db.Stars) == 0 || len(db.Patterns) == 0 {
		return nil, errors.New("no pattern database loaded")
	}
	return &Solver{db: db}, nil
}

func (s *Solver) Database() *Database {
	return s.db
}

// SolveImage extracts centroids from the image and solves them. When
// extraction options leave MaxReturned unset, the database's catalog
// density is used so the matched star count stays comparable across
// fields.
func (s *Solver) SolveImage(img image.Image, extract ExtractOptions, opts SolveOptions) (*Solution, error) {
	if extract.MaxReturned == 0 {
		extract.MaxReturned = s.db.CatalogStarsPerFOV
	}
	start := time.Now()
	centroids, err := ExtractCentroids(img, extract)
	if err != nil {
		return nil, err
	}
	extractTime := time.Since(start)

	bounds := img.Bounds()
	solution, err := s.SolveCentroids(centroids, bounds.Dx(), bounds.Dy(), opts)
	if err != nil {
		return nil, err
	}
	solution.ExtractTime = extractTime
	return solution, nil
}

// SolveCentroids solves a list of centroids extracted from an image of
// the given size. Centroids must be sorted brightest first.
func (s *Solver) SolveCentroids(centroids []Centroid, width, height int, opts SolveOptions) (*Solution, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if opts.MatchRadius == 0 {
		opts.MatchRadius = 0.01
	}
	if opts.MatchThreshold == 0 {
		opts.MatchThreshold = 1e-9
	}
	if opts.PatternCheckingStars == 0 {
		opts.PatternCheckingStars = 6
	}
	fovEstimate := deg2rad(opts.FOVEstimateDeg)
	if opts.FOVEstimateDeg == 0 {
		fovEstimate = deg2rad(s.db.MaxFOVDeg)
	}

	start := time.Now()
	attempt := &solveAttempt{
		db:             s.db,
		centroids:      centroids,
		width:          width,
		height:         height,
		fovEstimate:    fovEstimate,
		fovMaxError:    deg2rad(opts.FOVMaxErrorDeg),
		matchRadius:    opts.MatchRadius,
		matchThreshold: opts.MatchThreshold,
	}
	checking := opts.PatternCheckingStars
	if checking > len(centroids) {
		checking = len(centroids)
	}
	var solution *Solution
	patternIndexSets(checking, patternSize, func(indices []int) bool {
		solution = attempt.tryPattern(indices)
		return solution == nil
	})
	if solution == nil {
		return nil, ErrNoMatch
	}
	solution.SolveTime = time.Since(start)
	return solution, nil
}

type solveAttempt struct {
	db             *Database
	centroids      []Centroid
	width          int
	height         int
	fovEstimate    float64
	fovMaxError    float64
	matchRadius    float64
	matchThreshold float64
}

// tryPattern fingerprints one four star pattern and checks every
// database entry whose binned edge ratios could produce it.
func (a *solveAttempt) tryPattern(indices []int) *Solution {
	var pattern [patternSize]Centroid
	for i, idx := range indices {
		pattern[i] = a.centroids[idx]
	}
	vectors := projectCentroids(pattern[:], a.fovEstimate, a.width, a.height)
	edges := pairwiseEdges(vectors)
	largest := edges[len(edges)-1]
	if largest == 0 {
		return nil
	}
	var ratios [patternEdges - 1]float64
	var lo, hi [patternEdges - 1]int
	for i := range ratios {
		ratios[i] = edges[i] / largest
		lo[i] = int((ratios[i] - a.db.PatternMaxError) * float64(a.db.Bins))
		if lo[i] < 0 {
			lo[i] = 0
		}
		hi[i] = int((ratios[i] + a.db.PatternMaxError) * float64(a.db.Bins))
		if hi[i] > a.db.Bins-1 {
			hi[i] = a.db.Bins - 1
		}
	}

	// Walk the hash codes within the ratio tolerance. Codes are sorted
	// the way the generator stores them, so permutations repeat and get
	// deduplicated.
	seen := make(map[[patternEdges - 1]int]bool)
	code := lo
	for {
		key := code
		sortKey(&key)
		if !seen[key] {
			seen[key] = true
			if solution := a.tryCode(key, pattern, ratios); solution != nil {
				return solution
			}
		}
		digit := len(code) - 1
		for digit >= 0 {
			code[digit]++
			if code[digit] <= hi[digit] {
				break
			}
			code[digit] = lo[digit]
			digit--
		}
		if digit < 0 {
			return nil
		}
	}
}

func (a *solveAttempt) tryCode(key [patternEdges - 1]int, pattern [patternSize]Centroid, ratios [patternEdges - 1]float64) *Solution {
	index := keyToIndex(key[:], a.db.Bins, uint64(len(a.db.Patterns)))
	for _, row := range a.db.patternsAt(index) {
		if solution := a.tryCandidate(row, pattern, ratios); solution != nil {
			return solution
		}
	}
	return nil
}

// tryCandidate verifies one catalog pattern against the image pattern:
// edge ratios must agree, the refined field of view must stay within
// bounds, and the resulting rotation must place enough catalog stars on
// extracted centroids to make a false match implausible.
func (a *solveAttempt) tryCandidate(row [patternSize]uint16, pattern [patternSize]Centroid, ratios [patternEdges - 1]float64) *Solution {
	var catVectors [patternSize]Vec3
	for i, id := range row {
		catVectors[i] = a.db.Stars[id].Vec
	}
	catEdges := pairwiseEdges(catVectors[:])
	catLargest := catEdges[len(catEdges)-1]
	for i, r := range ratios {
		if math.Abs(catEdges[i]/catLargest-r) > a.db.PatternMaxError {
			return nil
		}
	}

	fov, ok := a.refineFOV(pattern, catEdges)
	if !ok {
		return nil
	}
	if a.fovMaxError > 0 && math.Abs(fov-a.fovEstimate) > a.fovMaxError {
		return nil
	}

	imageVectors := projectCentroids(pattern[:], fov, a.width, a.height)
	rot, ok := findRotation(sortByRadius(imageVectors), sortByRadius(catVectors[:]))
	if !ok {
		return nil
	}
	return a.verify(rot, fov)
}

// refineFOV fits the field of view by Gauss-Newton on the residual
// between the catalog pattern edges and the image pattern edges.
func (a *solveAttempt) refineFOV(pattern [patternSize]Centroid, catEdges []float64) (float64, bool) {
	edgesAt := func(fov float64) []float64 {
		return pairwiseEdges(projectCentroids(pattern[:], fov, a.width, a.height))
	}
	fov := a.fovEstimate
	for iter := 0; iter < 20; iter++ {
		if fov <= 0 || fov >= math.Pi {
			return 0, false
		}
		edges := edgesAt(fov)
		h := fov * 1e-6
		shifted := edgesAt(fov + h)
		var jr, jj float64
		for i := range edges {
			r := catEdges[i] - edges[i]
			j := (catEdges[i] - shifted[i] - r) / h
			jr += j * r
			jj += j * j
		}
		if jj == 0 {
			break
		}
		step := jr / jj
		fov -= step
		if math.Abs(step) < 1e-12 {
			break
		}
	}
	if fov <= 0 || fov >= math.Pi {
		return 0, false
	}
	return fov, true
}

// verify re-projects every extracted centroid with the candidate
// rotation and counts catalog stars landing on exactly one centroid. A
// solution is accepted when the probability of that many coincidences
// from a random pointing falls below the mismatch threshold.
func (a *solveAttempt) verify(rot rotation, fov float64) *Solution {
	imageVectors := projectCentroids(a.centroids, fov, a.width, a.height)
	center := Vec3{rot[0][0], rot[0][1], rot[0][2]}
	fovDiagonal := fov * math.Hypot(float64(a.width), float64(a.height)) / float64(a.width)
	nearbyCos := math.Cos(fovDiagonal / 2)
	var nearby []Vec3
	for _, s := range a.db.Stars {
		if center.Dot(s.Vec) > nearbyCos {
			nearby = append(nearby, s.Vec)
		}
	}

	matchCos := math.Cos(a.matchRadius * fov)
	var imageMatched, catalogMatched []Vec3
	for _, v := range imageVectors {
		rotated := rot.applyTranspose(v)
		matched := -1
		for i, c := range nearby {
			if rotated.Dot(c) > matchCos {
				if matched >= 0 {
					matched = -1
					break
				}
				matched = i
			}
		}
		if matched >= 0 {
			imageMatched = append(imageMatched, v)
			catalogMatched = append(catalogMatched, nearby[matched])
		}
	}
	matches := len(imageMatched)

	probSingle := float64(len(nearby)) * a.matchRadius * a.matchRadius
	if probSingle > 1 {
		probSingle = 1
	}
	extracted := len(a.centroids)
	binom := distuv.Binomial{N: float64(extracted), P: 1 - probSingle}
	probability := binom.CDF(float64(extracted - (matches - 2)))
	if !(probability < a.matchThreshold) {
		return nil
	}

	final, ok := findRotation(imageMatched, catalogMatched)
	if !ok {
		return nil
	}
	var sumSquares float64
	for i, v := range imageMatched {
		m := final.applyTranspose(v)
		c := catalogMatched[i]
		sine := m.Cross(c).Norm() / m.Norm() / c.Norm()
		if sine > 1 {
			sine = 1
		}
		angle := math.Asin(sine)
		sumSquares += angle * angle
	}
	rmse := rad2deg(math.Sqrt(sumSquares/float64(matches))) * 3600

	return &Solution{
		RADeg:       mod360(rad2deg(math.Atan2(final[0][1], final[0][0]))),
		DecDeg:      rad2deg(math.Atan2(final[0][2], math.Hypot(final[1][2], final[2][2]))),
		RollDeg:     mod360(rad2deg(math.Atan2(final[1][2], final[2][2]))),
		FOVDeg:      rad2deg(fov),
		RMSEArcsec:  rmse,
		Matches:     matches,
		Probability: probability,
	}
}

// rotation maps catalog frame vectors to camera frame vectors; its
// transpose maps the camera frame back onto the sky.
type rotation [3][3]float64

func (r rotation) applyTranspose(v Vec3) Vec3 {
	return Vec3{
		r[0][0]*v[0] + r[1][0]*v[1] + r[2][0]*v[2],
		r[0][1]*v[0] + r[1][1]*v[1] + r[2][1]*v[2],
		r[0][2]*v[0] + r[1][2]*v[1] + r[2][2]*v[2],
	}
}

// findRotation solves Wahba's problem for paired unit vectors with the
// SVD method, constraining the result to a proper rotation.
func findRotation(camera, catalog []Vec3) (rotation, bool) {
	h := mat.NewDense(3, 3, nil)
	for i := range camera {
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h.Set(r, c, h.At(r, c)+camera[i][r]*catalog[i][c])
			}
		}
	}
	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return rotation{}, false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	var m mat.Dense
	m.Mul(&u, v.T())
	if mat.Det(&m) < 0 {
		for r := 0; r < 3; r++ {
			m.Set(r, 2, -m.At(r, 2))
		}
	}
	var rot rotation
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			rot[r][c] = m.At(r, c)
		}
	}
	return rot, true
}

func sortKey(key *[patternEdges - 1]int) {
	for i := 1; i < len(key); i++ {
		for j := i; j > 0 && key[j] < key[j-1]; j-- {
			key[j], key[j-1] = key[j-1], key[j]
		}
	}
}
