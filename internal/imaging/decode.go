package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrEmptyPayload     = errors.New("empty image payload")
	ErrMalformedBase64  = errors.New("malformed base64")
	ErrUnsupportedImage = errors.New("unsupported or corrupt image")
)

// DefaultMaxPixels bounds the decoded bitmap at roughly 160 MB of RGBA.
const DefaultMaxPixels = 40_000_000

// DecodeError is returned by DecodeBase64 for every input it cannot turn into a bitmap.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "could not decode image: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeBase64 decodes a base64 image payload, optionally prefixed with a
// data URI header such as "data:image/jpeg;base64,", into an opaque RGBA bitmap.
// Images larger than maxPixels are rejected before decoding; maxPixels <= 0
// means DefaultMaxPixels.
func DecodeBase64(payload string, maxPixels int) (*image.RGBA, error) {
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[i+1:]
	}
	payload = stripSpace(payload)
	if payload == "" {
		return nil, &DecodeError{Err: ErrEmptyPayload}
	}

	data, err := decodeBase64String(payload)
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %v", ErrMalformedBase64, err)}
	}
	if len(data) == 0 {
		return nil, &DecodeError{Err: ErrEmptyPayload}
	}

	return DecodeBytes(data, maxPixels)
}

// DecodeBytes decodes raw image bytes into an opaque RGBA bitmap.
// The size limit works as in DecodeBase64.
func DecodeBytes(data []byte, maxPixels int) (*image.RGBA, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %v", ErrUnsupportedImage, err)}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %dx%d exceeds %d pixels",
			ErrUnsupportedImage, cfg.Width, cfg.Height, maxPixels)}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %v", ErrUnsupportedImage, err)}
	}
	return Flatten(img), nil
}

// Flatten composites img onto a white background. Every pixel of the result has alpha 255.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

func decodeBase64String(s string) ([]byte, error) {
	if strings.ContainsAny(s, "-_") {
		return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func stripSpace(s string) string {
	if !strings.ContainsAny(s, " \t\r\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
