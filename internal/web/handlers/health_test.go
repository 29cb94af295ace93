package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kozaktomas/facegate/internal/database/mock"
)

func TestHealthHandler_Ready(t *testing.T) {
	store := mock.NewEmployeeStore()
	h := NewHealthHandler(store, zap.NewNop())

	recorder := httptest.NewRecorder()
	h.Ready(recorder, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	if result["status"] != "ready" {
		t.Errorf("expected status 'ready', got '%s'", result["status"])
	}
}

func TestHealthHandler_NotReady(t *testing.T) {
	store := mock.NewEmployeeStore()
	store.PingError = errors.New("server selection timeout")
	h := NewHealthHandler(store, zap.NewNop())

	recorder := httptest.NewRecorder()
	h.Ready(recorder, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	if result["status"] != "unavailable" {
		t.Errorf("expected status 'unavailable', got '%s'", result["status"])
	}
}
