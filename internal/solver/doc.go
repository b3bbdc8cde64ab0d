// Package solver implements a lost-in-space plate solver. It extracts
// star centroids from an image, fingerprints four-star patterns by
// their edge ratios, and matches them against a pattern database built
// from the Yale Bright Star Catalog to recover the pointing (right
// ascension, declination, roll) and the field of view.
package solver
