// Package dlib runs dlib's face detector and ResNet descriptor in process
// through cgo. Only binaries that select the dlib engine import it.
package dlib

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/Kagami/go-face"

	"github.com/kozaktomas/facegate/internal/facerec"
	"github.com/kozaktomas/facegate/internal/imaging"
)

// Detectors supported by the dlib engine.
const (
	DetectorHOG = "hog"
	DetectorCNN = "cnn"
)

const jpegQuality = 95

var _ facerec.Engine = (*Engine)(nil)

// Engine implements facerec.Engine on top of go-face.
// The underlying recognizer is not safe for concurrent use, so calls are serialized.
type Engine struct {
	mu       sync.Mutex
	rec      *face.Recognizer
	detector string
}

// NewEngine loads the dlib models from modelsDir. detector is "hog" or "cnn".
func NewEngine(modelsDir, detector string) (*Engine, error) {
	if detector == "" {
		detector = DetectorHOG
	}
	if detector != DetectorHOG && detector != DetectorCNN {
		return nil, fmt.Errorf("unknown detector %q", detector)
	}

	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load face models from %s: %w", modelsDir, err)
	}

	return &Engine{rec: rec, detector: detector}, nil
}

// Detect returns every face found in img. Each region carries its descriptor.
func (e *Engine) Detect(ctx context.Context, img *image.RGBA) ([]facerec.Region, error) {
	faces, err := e.recognize(ctx, img)
	if err != nil {
		return nil, err
	}

	regions := make([]facerec.Region, 0, len(faces))
	for _, f := range faces {
		desc := make(facerec.Encoding, len(f.Descriptor))
		copy(desc, f.Descriptor[:])
		regions = append(regions, facerec.NewRegion(f.Rectangle, 1, desc))
	}
	return regions, nil
}

// Encode returns the 128-d descriptor for region.
func (e *Engine) Encode(ctx context.Context, img *image.RGBA, region facerec.Region) (facerec.Encoding, error) {
	if desc, ok := region.Descriptor(); ok {
		return desc, nil
	}

	candidates, err := e.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	return facerec.PickRegion(candidates, region)
}

// Distance is the Euclidean distance used by dlib's face_recognition tooling.
func (e *Engine) Distance(a, b facerec.Encoding) float64 {
	return facerec.EuclideanDistance(a, b)
}

// Close frees the dlib models.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec != nil {
		e.rec.Close()
		e.rec = nil
	}
	return nil
}

func (e *Engine) recognize(ctx context.Context, img *image.RGBA) ([]face.Face, error) {
	// go-face only reads JPEG
	data, err := imaging.EncodeJPEG(img, jpegQuality)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.rec == nil {
		return nil, errors.New("recognizer is closed")
	}

	var faces []face.Face
	if e.detector == DetectorCNN {
		faces, err = e.rec.RecognizeCNN(data)
	} else {
		faces, err = e.rec.Recognize(data)
	}
	if err != nil {
		return nil, fmt.Errorf("face recognition failed: %w", err)
	}
	return faces, nil
}
