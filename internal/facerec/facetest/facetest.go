// Package facetest provides a scripted face engine for tests.
//
// Images are identified by the color of their top-left pixel: a test registers
// a color together with the faces and encodings the engine should report for
// any image carrying that color.
package facetest

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"

	"github.com/kozaktomas/facegate/internal/facerec"
)

// Script describes what the engine reports for one image color.
type Script struct {
	Faces     []image.Rectangle
	Encodings []facerec.Encoding // one per face, same order
	DetectErr error
	EncodeErr error
}

// Engine implements facerec.Engine from registered scripts.
// Unregistered images contain no faces.
type Engine struct {
	mu      sync.Mutex
	scripts map[color.RGBA]Script

	DetectCalls int
	EncodeCalls int
}

func New() *Engine {
	return &Engine{scripts: make(map[color.RGBA]Script)}
}

// Register scripts the engine's answers for images whose top-left pixel is c.
func (e *Engine) Register(c color.RGBA, s Script) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts[c] = s
}

// RegisterFace is a shortcut for an image containing exactly one face with enc.
func (e *Engine) RegisterFace(c color.RGBA, enc facerec.Encoding) {
	e.Register(c, Script{
		Faces:     []image.Rectangle{image.Rect(1, 1, 7, 7)},
		Encodings: []facerec.Encoding{enc},
	})
}

func (e *Engine) script(img *image.RGBA) (Script, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.scripts[img.RGBAAt(img.Bounds().Min.X, img.Bounds().Min.Y)]
	return s, ok
}

func (e *Engine) Detect(_ context.Context, img *image.RGBA) ([]facerec.Region, error) {
	e.mu.Lock()
	e.DetectCalls++
	e.mu.Unlock()

	s, ok := e.script(img)
	if !ok {
		return nil, nil
	}
	if s.DetectErr != nil {
		return nil, s.DetectErr
	}

	regions := make([]facerec.Region, 0, len(s.Faces))
	for _, r := range s.Faces {
		regions = append(regions, facerec.Region{Rect: r, Score: 1})
	}
	return regions, nil
}

func (e *Engine) Encode(_ context.Context, img *image.RGBA, region facerec.Region) (facerec.Encoding, error) {
	e.mu.Lock()
	e.EncodeCalls++
	e.mu.Unlock()

	s, ok := e.script(img)
	if !ok {
		return nil, facerec.ErrRegionNotFound
	}
	if s.EncodeErr != nil {
		return nil, s.EncodeErr
	}
	for i, r := range s.Faces {
		if r == region.Rect && i < len(s.Encodings) {
			out := make(facerec.Encoding, len(s.Encodings[i]))
			copy(out, s.Encodings[i])
			return out, nil
		}
	}
	return nil, facerec.ErrRegionNotFound
}

func (e *Engine) Distance(a, b facerec.Encoding) float64 {
	return facerec.EuclideanDistance(a, b)
}

func (e *Engine) Close() error {
	return nil
}

// Image returns a small solid image of color c.
func Image(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// Base64 returns Image(c) as a base64 PNG payload.
func Base64(c color.RGBA) string {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Image(c)); err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// Vector returns an encoding of length dim with every element set to v.
func Vector(dim int, v float32) facerec.Encoding {
	enc := make(facerec.Encoding, dim)
	for i := range enc {
		enc[i] = v
	}
	return enc
}
