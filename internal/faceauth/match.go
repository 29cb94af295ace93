package faceauth

import (
	"math"

	"github.com/kozaktomas/facegate/internal/facerec"
)

// DistanceFunc compares two encodings.
type DistanceFunc func(a, b facerec.Encoding) float64

// MatchResult is the outcome of comparing a probe against known encodings.
// Distance is the best matching distance when Match is set, otherwise the
// minimum distance over all known encodings.
type MatchResult struct {
	Match    bool
	Distance float64
}

// Match compares probe with every known encoding. An encoding matches when its
// distance is within tolerance. With no known encodings the result is a
// non-match at +Inf.
func Match(known []facerec.Encoding, probe facerec.Encoding, tolerance float64, dist DistanceFunc) MatchResult {
	bestMatch := math.Inf(1)
	minAll := math.Inf(1)
	matched := false

	for _, enc := range known {
		d := dist(enc, probe)
		minAll = min(minAll, d)
		if facerec.Within(d, tolerance) {
			matched = true
			bestMatch = min(bestMatch, d)
		}
	}

	if matched {
		return MatchResult{Match: true, Distance: bestMatch}
	}
	return MatchResult{Match: false, Distance: minAll}
}
