// Package facerec wraps the face detection and encoding capability behind a
// small Engine interface. This package holds the client for a remote
// embedding server and stays free of cgo; the in-process dlib engine lives
// in the dlib subpackage.
package facerec

import (
	"context"
	"errors"
	"image"
)

// ErrRegionNotFound is returned by Encode when the requested region no longer
// matches any face the engine detects.
var ErrRegionNotFound = errors.New("no detected face matches the region")

// Encoding is a fixed-length face descriptor.
type Encoding []float32

// Region is a detected face bounding box.
type Region struct {
	Rect  image.Rectangle
	Score float64

	// descriptor computed during detection, reused by Encode
	desc Encoding
}

// Engine detects faces in a bitmap and turns them into comparable encodings.
type Engine interface {
	Detect(ctx context.Context, img *image.RGBA) ([]Region, error)
	Encode(ctx context.Context, img *image.RGBA, region Region) (Encoding, error)
	Distance(a, b Encoding) float64
	Close() error
}

// Within reports whether distance is a match under tolerance.
func Within(distance, tolerance float64) bool {
	return distance <= tolerance
}

// NewRegion builds a Region that carries a precomputed descriptor.
func NewRegion(rect image.Rectangle, score float64, desc Encoding) Region {
	return Region{Rect: rect, Score: score, desc: desc}
}

// Descriptor returns the descriptor computed during detection, if any.
func (r Region) Descriptor() (Encoding, bool) {
	if len(r.desc) == 0 {
		return nil, false
	}
	out := make(Encoding, len(r.desc))
	copy(out, r.desc)
	return out, true
}

// minRegionIoU is the overlap required to treat a re-detected face as the requested region.
const minRegionIoU = 0.5

// PickRegion returns the descriptor of the candidate overlapping region best.
func PickRegion(candidates []Region, region Region) (Encoding, error) {
	best, bestIoU := -1, 0.0
	for i, c := range candidates {
		if iou := IoU(c.Rect, region.Rect); iou > bestIoU {
			best, bestIoU = i, iou
		}
	}
	if best < 0 || bestIoU < minRegionIoU {
		return nil, ErrRegionNotFound
	}
	desc, ok := candidates[best].Descriptor()
	if !ok {
		return nil, ErrRegionNotFound
	}
	return desc, nil
}
