package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kozaktomas/facegate/internal/faceauth"
)

// Client-facing messages for enrollment failures.
const (
	msgEnrollDecode   = "Could not load image from base64 string for enrollment."
	msgEnrollNoFace   = "No face found in the provided image for enrollment."
	msgEnrollMultiple = "Multiple faces detected. Please use an image with a single clear face."
	msgEnrollEncoding = "Could not get face encoding from image."
)

// Verification reasons for failures that are not a regular negative outcome.
const (
	reasonVerifyDecode   = "Could not load image_to_check from base64."
	reasonVerifyEncoding = "Error processing snapshot features."
)

// FaceService is the enrollment and verification capability used by FacesHandler.
type FaceService interface {
	Enroll(ctx context.Context, req faceauth.EnrollRequest) (*faceauth.EnrollResult, error)
	Verify(ctx context.Context, req faceauth.VerifyRequest) (*faceauth.VerifyResult, error)
}

// FacesHandler handles the enroll and verify endpoints.
type FacesHandler struct {
	service  FaceService
	validate *validator.Validate
	log      *zap.Logger
}

// NewFacesHandler creates a new faces handler.
func NewFacesHandler(service FaceService, log *zap.Logger) *FacesHandler {
	return &FacesHandler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

type enrollRequest struct {
	EmployeeID  string `json:"employee_id" validate:"required"`
	ImageBase64 string `json:"image_base64" validate:"required"`
}

type mongoResult struct {
	Matched    int64   `json:"matched"`
	Modified   int64   `json:"modified"`
	UpsertedID *string `json:"upserted_id"`
}

type enrollResponse struct {
	Message             string      `json:"message"`
	EmployeeID          string      `json:"employee_id"`
	NumEncodingsForUser int         `json:"num_encodings_for_user"`
	MongoResult         mongoResult `json:"mongo_result"`
}

type verifyRequest struct {
	EmployeeID         string `json:"employee_id" validate:"required"`
	ImageBase64ToCheck string `json:"image_base64_to_check" validate:"required"`
}

type verifyResponse struct {
	Match       bool     `json:"match"`
	EmployeeID  string   `json:"employee_id,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Distance    *float64 `json:"distance,omitempty"`
	MinDistance *float64 `json:"min_distance,omitempty"`
}

// Enroll handles POST /enroll_face.
func (h *FacesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "Missing employee_id or image_base64")
		return
	}

	res, err := h.service.Enroll(r.Context(), faceauth.EnrollRequest{
		EmployeeID:  req.EmployeeID,
		ImageBase64: req.ImageBase64,
	})
	if err != nil {
		status, msg := enrollErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("enrollment failed",
				zap.String("employee_id", sanitizeForLog(req.EmployeeID)),
				zap.Error(err))
		}
		respondError(w, status, msg)
		return
	}

	respondJSON(w, http.StatusCreated, enrollResponse{
		Message:             fmt.Sprintf("Face successfully enrolled for employee_id: %s.", res.EmployeeID),
		EmployeeID:          res.EmployeeID,
		NumEncodingsForUser: res.EncodingCount,
		MongoResult: mongoResult{
			Matched:    res.Upsert.Matched,
			Modified:   res.Upsert.Modified,
			UpsertedID: res.Upsert.UpsertedID,
		},
	})
}

// enrollErrorStatus maps an enrollment error to a status code and client message.
func enrollErrorStatus(err error) (int, string) {
	var verr *faceauth.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, faceauth.ErrImageDecode):
		return http.StatusBadRequest, msgEnrollDecode
	case errors.Is(err, faceauth.ErrNoFace):
		return http.StatusBadRequest, msgEnrollNoFace
	case errors.Is(err, faceauth.ErrMultipleFaces):
		return http.StatusBadRequest, msgEnrollMultiple
	case errors.Is(err, faceauth.ErrEncoding):
		return http.StatusInternalServerError, msgEnrollEncoding
	default:
		return http.StatusInternalServerError, errInternal
	}
}

// Verify handles POST /verify_face.
func (h *FacesHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "Missing employee_id or image_base64_to_check")
		return
	}

	res, err := h.service.Verify(r.Context(), faceauth.VerifyRequest{
		EmployeeID:  req.EmployeeID,
		ImageBase64: req.ImageBase64ToCheck,
	})
	if err != nil {
		h.verifyError(w, req.EmployeeID, err)
		return
	}

	respondJSON(w, http.StatusOK, verifyResponse{
		Match:       res.Match,
		EmployeeID:  res.EmployeeID,
		Reason:      res.Reason,
		Distance:    res.Distance,
		MinDistance: res.MinDistance,
	})
}

func (h *FacesHandler) verifyError(w http.ResponseWriter, employeeID string, err error) {
	var verr *faceauth.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, faceauth.ErrImageDecode):
		respondJSON(w, http.StatusBadRequest, verifyResponse{
			EmployeeID: employeeID,
			Reason:     reasonVerifyDecode,
		})
	case errors.Is(err, faceauth.ErrEncoding):
		h.log.Error("verification failed",
			zap.String("employee_id", sanitizeForLog(employeeID)),
			zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, verifyResponse{
			EmployeeID: employeeID,
			Reason:     reasonVerifyEncoding,
		})
	default:
		h.log.Error("verification failed",
			zap.String("employee_id", sanitizeForLog(employeeID)),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
	}
}
