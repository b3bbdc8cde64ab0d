package solver

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"time"
)

// Star is one catalog entry with its position propagated to the
// database epoch. RA and Dec are in radians.
type Star struct {
	RA  float64
	Dec float64
	Vec Vec3
	Mag float64
}

// NewStar returns a star at the given position in degrees.
func NewStar(raDeg, decDeg, mag float64) Star {
	ra := deg2rad(raDeg)
	dec := deg2rad(decDeg)
	return Star{RA: ra, Dec: dec, Vec: vecFromSpherical(ra, dec), Mag: mag}
}

// bsc5Header is the fixed preamble of the Yale Bright Star Catalog in
// its binary BSC5 edition.
type bsc5Header struct {
	Star0 int32
	Star1 int32
	StarN int32 // record count, negative in the J2000 edition
	StNum int32
	MProp int32
	NMag  int32
	NBEnt int32 // bytes per record
}

type bsc5Entry struct {
	ID    float32
	RA    float64 // radians, B1950
	Dec   float64
	Type  int16
	Mag   int16 // visual magnitude times 100
	RAPM  float32 // proper motion, radians per year
	DecPM float32
}

const maxCatalogStars = 100000

// LoadCatalog reads a BSC5 star catalog, propagates proper motion to
// epochYear (the current year when zero), drops blank entries and stars
// dimmer than maxMagnitude, and returns the remainder brightest first.
func LoadCatalog(path string, maxMagnitude float64, epochYear int) ([]Star, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var hdr bsc5Header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	if hdr.StarN < 0 {
		return nil, fmt.Errorf("catalog holds J2000 positions, need the B1950 BSC5 edition")
	}
	if hdr.StarN == 0 || hdr.StarN > maxCatalogStars {
		return nil, fmt.Errorf("catalog reports %d stars", hdr.StarN)
	}
	if hdr.NBEnt != 32 {
		return nil, fmt.Errorf("catalog reports %d byte records, want 32", hdr.NBEnt)
	}
	if epochYear == 0 {
		epochYear = time.Now().UTC().Year()
	}
	years := float64(epochYear - 1950)

	stars := make([]Star, 0, hdr.StarN)
	for i := int32(0); i < hdr.StarN; i++ {
		var ent bsc5Entry
		if err := binary.Read(r, binary.LittleEndian, &ent); err != nil {
			return nil, fmt.Errorf("read catalog entry %d: %w", i, err)
		}
		mag := float64(ent.Mag) / 100
		if mag > maxMagnitude {
			continue
		}
		ra := ent.RA + float64(ent.RAPM)*years
		dec := ent.Dec + float64(ent.DecPM)*years
		if ra == 0 && dec == 0 {
			continue
		}
		stars = append(stars, Star{RA: ra, Dec: dec, Vec: vecFromSpherical(ra, dec), Mag: mag})
	}
	sort.Slice(stars, func(i, j int) bool { return stars[i].Mag < stars[j].Mag })
	return stars, nil
}
