// Package faceauth enrolls employee faces and verifies snapshots against them.
package faceauth

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"go.uber.org/zap"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/facerec"
	"github.com/kozaktomas/facegate/internal/imaging"
)

// DefaultTolerance is stricter than dlib's customary 0.6.
const DefaultTolerance = 0.55

// Verification reasons
const (
	ReasonNoEnrolledFaces = "no enrolled faces"
	ReasonNoFace          = "no face detected"
	ReasonMultipleFaces   = "multiple faces detected"
	ReasonNoMatch         = "no match found"
)

// Outcome labels reported to the Recorder
const (
	OutcomeEnrolled        = "enrolled"
	OutcomeMatch           = "match"
	OutcomeNoMatch         = "no_match"
	OutcomeNoEnrolledFaces = "no_enrolled_faces"
	OutcomeNoFace          = "no_face"
	OutcomeMultipleFaces   = "multiple_faces"
	OutcomeInvalid         = "invalid"
	OutcomeDecodeError     = "decode_error"
	OutcomeEncodingError   = "encoding_error"
	OutcomeStoreError      = "store_error"
)

// Recorder receives one outcome per Enroll or Verify call.
type Recorder interface {
	EnrollOutcome(outcome string)
	VerifyOutcome(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) EnrollOutcome(string) {}
func (nopRecorder) VerifyOutcome(string) {}

type EnrollRequest struct {
	EmployeeID  string
	ImageBase64 string
}

type EnrollResult struct {
	EmployeeID    string
	EncodingCount int
	Upsert        database.UpsertResult
}

type VerifyRequest struct {
	EmployeeID  string
	ImageBase64 string
}

// VerifyResult is always returned for a completed verification, match or not.
// Distance is set on a match, MinDistance on a non-match against enrolled faces.
type VerifyResult struct {
	EmployeeID  string
	Match       bool
	Reason      string
	Distance    *float64
	MinDistance *float64
}

type Options struct {
	Tolerance    float64
	MaxImageSize int // 0 keeps images at original size
	MaxPixels    int // 0 uses imaging.DefaultMaxPixels
	Recorder     Recorder
}

// Service orchestrates decoding, face detection, encoding and storage.
type Service struct {
	store     database.EmployeeStore
	engine    facerec.Engine
	tolerance float64
	maxSize   int
	maxPixels int
	recorder  Recorder
	log       *zap.Logger
}

// NewService creates a Service. A zero tolerance falls back to DefaultTolerance.
func NewService(store database.EmployeeStore, engine facerec.Engine, opts Options, log *zap.Logger) *Service {
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:     store,
		engine:    engine,
		tolerance: opts.Tolerance,
		maxSize:   opts.MaxImageSize,
		maxPixels: opts.MaxPixels,
		recorder:  opts.Recorder,
		log:       log,
	}
}

// Tolerance returns the distance threshold used for matching.
func (s *Service) Tolerance() float64 {
	return s.tolerance
}

// Enroll stores the encoding of the single face in req's image.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResult, error) {
	log := s.log.With(zap.String("employee_id", req.EmployeeID))

	if req.EmployeeID == "" || req.ImageBase64 == "" {
		s.recorder.EnrollOutcome(OutcomeInvalid)
		return nil, &ValidationError{Message: "Missing employee_id or image_base64"}
	}

	img, err := s.decode(req.ImageBase64)
	if err != nil {
		log.Info("enrollment image could not be decoded", zap.Error(err))
		s.recorder.EnrollOutcome(OutcomeDecodeError)
		return nil, err
	}

	regions, err := s.engine.Detect(ctx, img)
	if err != nil {
		log.Error("face detection failed", zap.Error(err))
		s.recorder.EnrollOutcome(OutcomeEncodingError)
		return nil, &EncodingError{Err: err}
	}
	switch {
	case len(regions) == 0:
		log.Info("no face found in enrollment image")
		s.recorder.EnrollOutcome(OutcomeNoFace)
		return nil, &NoFaceError{}
	case len(regions) > 1:
		log.Info("multiple faces found in enrollment image", zap.Int("faces", len(regions)))
		s.recorder.EnrollOutcome(OutcomeMultipleFaces)
		return nil, &MultipleFacesError{Count: len(regions)}
	}

	enc, err := s.engine.Encode(ctx, img, regions[0])
	if err == nil && len(enc) == 0 {
		err = errors.New("engine returned an empty encoding")
	}
	if err != nil {
		log.Error("could not encode enrollment face", zap.Error(err))
		s.recorder.EnrollOutcome(OutcomeEncodingError)
		return nil, &EncodingError{Err: err}
	}

	res, err := s.store.AppendEncoding(ctx, req.EmployeeID, enc)
	if err != nil {
		log.Error("could not store encoding", zap.Error(err))
		s.recorder.EnrollOutcome(OutcomeStoreError)
		return nil, fmt.Errorf("store encoding: %w", err)
	}

	log.Info("face enrolled",
		zap.Int64("matched", res.Matched),
		zap.Int64("modified", res.Modified),
		zap.Bool("upserted", res.UpsertedID != nil),
		zap.Int("encodings", res.EncodingCount))
	s.recorder.EnrollOutcome(OutcomeEnrolled)

	return &EnrollResult{
		EmployeeID:    req.EmployeeID,
		EncodingCount: res.EncodingCount,
		Upsert:        *res,
	}, nil
}

// Verify compares the single face in req's image against the employee's
// enrolled encodings. Negative outcomes are reported in the result, not as errors.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	log := s.log.With(zap.String("employee_id", req.EmployeeID))

	if req.EmployeeID == "" || req.ImageBase64 == "" {
		s.recorder.VerifyOutcome(OutcomeInvalid)
		return nil, &ValidationError{Message: "Missing employee_id or image_base64_to_check"}
	}

	rec, err := s.store.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		log.Error("could not load employee", zap.Error(err))
		s.recorder.VerifyOutcome(OutcomeStoreError)
		return nil, fmt.Errorf("load employee: %w", err)
	}
	if rec == nil || len(rec.Encodings) == 0 {
		log.Info("no enrolled faces")
		s.recorder.VerifyOutcome(OutcomeNoEnrolledFaces)
		return s.negative(req.EmployeeID, ReasonNoEnrolledFaces), nil
	}

	img, err := s.decode(req.ImageBase64)
	if err != nil {
		log.Info("verification image could not be decoded", zap.Error(err))
		s.recorder.VerifyOutcome(OutcomeDecodeError)
		return nil, err
	}

	regions, err := s.engine.Detect(ctx, img)
	if err != nil {
		log.Error("face detection failed", zap.Error(err))
		s.recorder.VerifyOutcome(OutcomeEncodingError)
		return nil, &EncodingError{Err: err}
	}
	switch {
	case len(regions) == 0:
		log.Info("no face found in verification image")
		s.recorder.VerifyOutcome(OutcomeNoFace)
		return s.negative(req.EmployeeID, ReasonNoFace), nil
	case len(regions) > 1:
		log.Info("multiple faces found in verification image", zap.Int("faces", len(regions)))
		s.recorder.VerifyOutcome(OutcomeMultipleFaces)
		return s.negative(req.EmployeeID, ReasonMultipleFaces), nil
	}

	probe, err := s.engine.Encode(ctx, img, regions[0])
	if err == nil && len(probe) == 0 {
		err = errors.New("engine returned an empty encoding")
	}
	if err != nil {
		log.Error("could not encode verification face", zap.Error(err))
		s.recorder.VerifyOutcome(OutcomeEncodingError)
		return nil, &EncodingError{Err: err}
	}

	m := Match(rec.Encodings, probe, s.tolerance, s.engine.Distance)
	result := &VerifyResult{EmployeeID: req.EmployeeID, Match: m.Match}
	if m.Match {
		d := m.Distance
		result.Distance = &d
		log.Info("face match", zap.Float64("distance", d))
		s.recorder.VerifyOutcome(OutcomeMatch)
		return result, nil
	}

	result.Reason = ReasonNoMatch
	// +Inf means every stored encoding was incomparable; it has no JSON form
	if !math.IsInf(m.Distance, 0) {
		d := m.Distance
		result.MinDistance = &d
	}
	log.Info("face no match", zap.Float64("min_distance", m.Distance))
	s.recorder.VerifyOutcome(OutcomeNoMatch)
	return result, nil
}

func (s *Service) negative(employeeID, reason string) *VerifyResult {
	return &VerifyResult{EmployeeID: employeeID, Match: false, Reason: reason}
}

func (s *Service) decode(payload string) (*image.RGBA, error) {
	img, err := imaging.DecodeBase64(payload, s.maxPixels)
	if err != nil {
		return nil, &ImageDecodeError{Err: err}
	}
	return imaging.Downscale(img, s.maxSize), nil
}
