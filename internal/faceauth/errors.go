package faceauth

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrValidation    = errors.New("validation failed")
	ErrImageDecode   = errors.New("image decode failed")
	ErrNoFace        = errors.New("no face found")
	ErrMultipleFaces = errors.New("multiple faces detected")
	ErrEncoding      = errors.New("face encoding failed")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string        { return e.Message }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ImageDecodeError reports an image payload that could not be decoded.
type ImageDecodeError struct {
	Err error
}

func (e *ImageDecodeError) Error() string        { return "image decode failed: " + e.Err.Error() }
func (e *ImageDecodeError) Unwrap() error        { return e.Err }
func (e *ImageDecodeError) Is(target error) bool { return target == ErrImageDecode }

// NoFaceError reports an enrollment image without any detected face.
type NoFaceError struct{}

func (e *NoFaceError) Error() string        { return ErrNoFace.Error() }
func (e *NoFaceError) Is(target error) bool { return target == ErrNoFace }

// MultipleFacesError reports an enrollment image with more than one face.
type MultipleFacesError struct {
	Count int
}

func (e *MultipleFacesError) Error() string {
	return fmt.Sprintf("%d faces detected, expected exactly one", e.Count)
}
func (e *MultipleFacesError) Is(target error) bool { return target == ErrMultipleFaces }

// EncodingError reports a failure inside the face engine.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string        { return "face encoding failed: " + e.Err.Error() }
func (e *EncodingError) Unwrap() error        { return e.Err }
func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }
