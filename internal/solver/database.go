package solver

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
)

const (
	patternSize    = 4
	patternEdges   = patternSize * (patternSize - 1) / 2
	patternBins    = 25
	hashMultiplier = 2654435761
	coarseSkyBins  = 4
)

const (
	databaseMagic   = "APDB"
	databaseVersion = 1
)

// GenerateOptions control pattern database generation. Start from
// DefaultGenerateOptions and set MaxFOVDeg to the widest field of view
// the solver should handle.
type GenerateOptions struct {
	MaxFOVDeg          float64
	PatternStarsPerFOV int
	CatalogStarsPerFOV int
	StarMaxMagnitude   float64
	StarMinSeparation  float64 // degrees
	PatternMaxError    float64
}

func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		PatternStarsPerFOV: 10,
		CatalogStarsPerFOV: 20,
		StarMaxMagnitude:   6.5,
		StarMinSeparation:  0.05,
		PatternMaxError:    0.005,
	}
}

// Database holds the star table and the pattern hash table the solver
// matches against. An all zero pattern row marks an empty slot; a
// stored pattern always has four distinct star indices.
type Database struct {
	Stars    []Star
	Patterns [][patternSize]uint16

	Bins               int
	MaxFOVDeg          float64
	PatternMaxError    float64
	PatternStarsPerFOV int
	CatalogStarsPerFOV int
	StarMaxMagnitude   float64
	StarMinSeparation  float64
}

// PatternCount returns the number of patterns stored in the hash table.
func (db *Database) PatternCount() int {
	n := 0
	for _, row := range db.Patterns {
		if row != ([patternSize]uint16{}) {
			n++
		}
	}
	return n
}

// Generate builds a pattern database from a star catalog. Stars are
// culled to the separation and density limits, then every four star
// pattern that fits within the maximum field of view is fingerprinted
// by its sorted edge ratios and inserted into the hash table.
func Generate(stars []Star, opts GenerateOptions) (*Database, error) {
	if opts.MaxFOVDeg <= 0 {
		return nil, errors.New("maximum field of view must be positive")
	}
	if opts.PatternStarsPerFOV <= 0 || opts.CatalogStarsPerFOV <= 0 {
		return nil, errors.New("stars per field of view must be positive")
	}
	if opts.StarMinSeparation <= 0 || opts.PatternMaxError <= 0 {
		return nil, errors.New("star separation and pattern error must be positive")
	}

	sorted := make([]Star, 0, len(stars))
	for _, s := range stars {
		if s.Mag <= opts.StarMaxMagnitude {
			sorted = append(sorted, s)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Mag < sorted[j].Mag })
	if len(sorted) < patternSize {
		return nil, fmt.Errorf("%d stars after magnitude filtering, need at least %d", len(sorted), patternSize)
	}

	maxFOV := deg2rad(opts.MaxFOVDeg)
	minSepCos := math.Cos(deg2rad(opts.StarMinSeparation))
	halfFOVCos := math.Cos(maxFOV / 2)

	keepPattern := make([]bool, len(sorted))
	keepVerify := make([]bool, len(sorted))
	keepPattern[0] = true
	keepVerify[0] = true
	patternVecs := []Vec3{sorted[0].Vec}
	verifyVecs := []Vec3{sorted[0].Vec}
	for i := 1; i < len(sorted); i++ {
		v := sorted[i].Vec
		if underDensityLimit(v, patternVecs, minSepCos, halfFOVCos, opts.PatternStarsPerFOV) {
			keepPattern[i] = true
			keepVerify[i] = true
		} else if underDensityLimit(v, verifyVecs, minSepCos, halfFOVCos, opts.CatalogStarsPerFOV) {
			keepVerify[i] = true
		}
		if keepPattern[i] {
			patternVecs = append(patternVecs, v)
		}
		if keepVerify[i] {
			verifyVecs = append(verifyVecs, v)
		}
	}

	table := make([]Star, 0, len(verifyVecs))
	remap := make([]int, len(sorted))
	for i, s := range sorted {
		remap[i] = -1
		if keepVerify[i] {
			remap[i] = len(table)
			table = append(table, s)
		}
	}
	if len(table) > math.MaxUint16+1 {
		return nil, fmt.Errorf("%d catalog stars exceed the pattern index range", len(table))
	}
	var patternStars []int
	for i := range sorted {
		if keepPattern[i] {
			patternStars = append(patternStars, remap[i])
		}
	}

	// Coarse sky map so pattern enumeration only considers neighbours.
	skyMap := make(map[[3]int][]int)
	for _, id := range patternStars {
		cell := coarseCell(table[id].Vec)
		skyMap[cell] = append(skyMap[cell], id)
	}

	fovCos := math.Cos(maxFOV)
	var patterns [][patternSize]int
	for _, lead := range patternStars {
		leadVec := table[lead].Vec
		cell := coarseCell(leadVec)
		ids := skyMap[cell]
		for i, id := range ids {
			if id == lead {
				skyMap[cell] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		neighbors := nearbyPatternStars(skyMap, table, leadVec, maxFOV)
		for a := 0; a+2 < len(neighbors); a++ {
			for b := a + 1; b+1 < len(neighbors); b++ {
				for c := b + 1; c < len(neighbors); c++ {
					p := [patternSize]int{lead, neighbors[a], neighbors[b], neighbors[c]}
					if patternWithinFOV(p, table, fovCos) {
						patterns = append(patterns, p)
					}
				}
			}
		}
	}
	if len(patterns) == 0 {
		return nil, errors.New("no star patterns fit the field of view")
	}

	db := &Database{
		Stars:              table,
		Patterns:           make([][patternSize]uint16, 2*len(patterns)),
		Bins:               patternBins,
		MaxFOVDeg:          opts.MaxFOVDeg,
		PatternMaxError:    opts.PatternMaxError,
		PatternStarsPerFOV: opts.PatternStarsPerFOV,
		CatalogStarsPerFOV: opts.CatalogStarsPerFOV,
		StarMaxMagnitude:   opts.StarMaxMagnitude,
		StarMinSeparation:  opts.StarMinSeparation,
	}
	for _, p := range patterns {
		var vecs [patternSize]Vec3
		var row [patternSize]uint16
		for i, id := range p {
			vecs[i] = table[id].Vec
			row[i] = uint16(id)
		}
		edges := pairwiseEdges(vecs[:])
		largest := edges[len(edges)-1]
		key := make([]int, len(edges)-1)
		for i := range key {
			key[i] = int(edges[i] / largest * patternBins)
		}
		if err := insertPattern(db.Patterns, keyToIndex(key, patternBins, uint64(len(db.Patterns))), row); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// underDensityLimit reports whether v clears the double star separation
// against every kept vector and sees fewer than limit kept stars within
// half the maximum field of view.
func underDensityLimit(v Vec3, kept []Vec3, minSepCos, halfFOVCos float64, limit int) bool {
	inFOV := 0
	for _, k := range kept {
		d := v.Dot(k)
		if d >= minSepCos {
			return false
		}
		if d > halfFOVCos {
			inFOV++
		}
	}
	return inFOV < limit
}

func coarseCell(v Vec3) [3]int {
	return [3]int{
		int((v[0] + 1) * coarseSkyBins),
		int((v[1] + 1) * coarseSkyBins),
		int((v[2] + 1) * coarseSkyBins),
	}
}

// nearbyPatternStars returns the pattern stars within radius radians of
// center, walking only the coarse sky map cells the radius can reach.
func nearbyPatternStars(skyMap map[[3]int][]int, table []Star, center Vec3, radius float64) []int {
	cosRadius := math.Cos(radius)
	var lo, hi [3]int
	for axis := 0; axis < 3; axis++ {
		lo[axis] = int((center[axis] + 1 - radius) * coarseSkyBins)
		if lo[axis] < 0 {
			lo[axis] = 0
		}
		hi[axis] = int((center[axis] + 1 + radius) * coarseSkyBins)
		if hi[axis] > 2*coarseSkyBins-1 {
			hi[axis] = 2*coarseSkyBins - 1
		}
	}
	var nearby []int
	for x := lo[0]; x <= hi[0]; x++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for z := lo[2]; z <= hi[2]; z++ {
				for _, id := range skyMap[[3]int{x, y, z}] {
					if center.Dot(table[id].Vec) > cosRadius {
						nearby = append(nearby, id)
					}
				}
			}
		}
	}
	return nearby
}

func patternWithinFOV(p [patternSize]int, table []Star, fovCos float64) bool {
	for a := 0; a < patternSize; a++ {
		for b := a + 1; b < patternSize; b++ {
			if table[p[a]].Vec.Dot(table[p[b]].Vec) <= fovCos {
				return false
			}
		}
	}
	return true
}

func insertPattern(patterns [][patternSize]uint16, index uint64, row [patternSize]uint16) error {
	n := uint64(len(patterns))
	for c := uint64(0); c < n; c++ {
		slot := (index + c*c) % n
		if patterns[slot] == ([patternSize]uint16{}) {
			patterns[slot] = row
			return nil
		}
	}
	return errors.New("pattern hash table is full")
}

// keyToIndex folds a binned edge ratio key into a slot of the pattern
// hash table.
func keyToIndex(key []int, bins int, tableLen uint64) uint64 {
	var sum uint64
	mult := uint64(1)
	for _, k := range key {
		sum += uint64(k) * mult
		mult *= uint64(bins)
	}
	return sum * hashMultiplier % tableLen
}

// patternsAt collects the candidate rows along the quadratic probe
// sequence starting at index, stopping at the first empty slot.
func (db *Database) patternsAt(index uint64) [][patternSize]uint16 {
	n := uint64(len(db.Patterns))
	var found [][patternSize]uint16
	for c := uint64(0); c < n; c++ {
		row := db.Patterns[(index+c*c)%n]
		if row == ([patternSize]uint16{}) {
			break
		}
		found = append(found, row)
	}
	return found
}

// databaseHeader is the fixed part of the on-disk format, written little
// endian after the magic and version.
type databaseHeader struct {
	Bins               uint16
	MaxFOVDeg          float64
	PatternMaxError    float64
	PatternStarsPerFOV uint16
	CatalogStarsPerFOV uint16
	StarMaxMagnitude   float64
	StarMinSeparation  float64
	StarCount          uint32
	PatternCount       uint32
}

// Save writes the database to path, creating parent directories as
// needed.
func (db *Database) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	hdr := databaseHeader{
		Bins:               uint16(db.Bins),
		MaxFOVDeg:          db.MaxFOVDeg,
		PatternMaxError:    db.PatternMaxError,
		PatternStarsPerFOV: uint16(db.PatternStarsPerFOV),
		CatalogStarsPerFOV: uint16(db.CatalogStarsPerFOV),
		StarMaxMagnitude:   db.StarMaxMagnitude,
		StarMinSeparation:  db.StarMinSeparation,
		StarCount:          uint32(len(db.Stars)),
		PatternCount:       uint32(len(db.Patterns)),
	}
	var buf bytes.Buffer
	buf.WriteString(databaseMagic)
	for _, v := range []any{uint16(databaseVersion), hdr, db.Stars, db.Patterns} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("encode database: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write database: %w", err)
	}
	return nil
}

// LoadDatabase reads a database written by Save.
func LoadDatabase(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, len(databaseMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read database magic: %w", err)
	}
	if string(magic) != databaseMagic {
		return nil, fmt.Errorf("bad database magic %q", magic)
	}
	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read database version: %w", err)
	}
	if version != databaseVersion {
		return nil, fmt.Errorf("unsupported database version %d", version)
	}
	var hdr databaseHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read database header: %w", err)
	}
	if hdr.Bins == 0 {
		return nil, errors.New("database reports zero ratio bins")
	}
	if hdr.StarCount == 0 || hdr.StarCount > 1<<20 {
		return nil, fmt.Errorf("database reports %d stars", hdr.StarCount)
	}
	if hdr.PatternCount == 0 || hdr.PatternCount > 1<<28 {
		return nil, fmt.Errorf("database reports %d pattern slots", hdr.PatternCount)
	}
	db := &Database{
		Stars:              make([]Star, hdr.StarCount),
		Patterns:           make([][patternSize]uint16, hdr.PatternCount),
		Bins:               int(hdr.Bins),
		MaxFOVDeg:          hdr.MaxFOVDeg,
		PatternMaxError:    hdr.PatternMaxError,
		PatternStarsPerFOV: int(hdr.PatternStarsPerFOV),
		CatalogStarsPerFOV: int(hdr.CatalogStarsPerFOV),
		StarMaxMagnitude:   hdr.StarMaxMagnitude,
		StarMinSeparation:  hdr.StarMinSeparation,
	}
	if err := binary.Read(r, binary.LittleEndian, db.Stars); err != nil {
		return nil, fmt.Errorf("read star table: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, db.Patterns); err != nil {
		return nil, fmt.Errorf("read pattern table: %w", err)
	}
	return db, nil
}
