package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		data       any
		wantBody   string
	}{
		{"created with body", http.StatusCreated, map[string]int{"count": 2}, "{\"count\":2}\n"},
		{"empty map", http.StatusOK, map[string]string{}, "{}\n"},
		{"nil data", http.StatusOK, nil, ""},
		{"server error", http.StatusInternalServerError, []string{"a"}, "[\"a\"]\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.statusCode, tc.data)

			assertStatusCode(t, recorder, tc.statusCode)
			assertContentType(t, recorder, "application/json")
			if recorder.Body.String() != tc.wantBody {
				t.Errorf("expected body %q, got %q", tc.wantBody, recorder.Body.String())
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusBadRequest, "something went wrong")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertContentType(t, recorder, "application/json")
	assertJSONError(t, recorder, "something went wrong")
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ada"}`))

		var p payload
		if !decodeJSON(recorder, req, &p) {
			t.Fatalf("decodeJSON() = false, body %s", recorder.Body.String())
		}
		if p.Name != "ada" {
			t.Errorf("expected name 'ada', got '%s'", p.Name)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))

		var p payload
		if !decodeJSON(recorder, req, &p) {
			t.Error("expected empty body to pass through to validation")
		}
	})

	t.Run("malformed", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))

		var p payload
		if decodeJSON(recorder, req, &p) {
			t.Fatal("expected decodeJSON() = false")
		}
		assertStatusCode(t, recorder, http.StatusBadRequest)
		assertJSONError(t, recorder, errInvalidRequestBody)
	})

	t.Run("too large", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("x", 64)+`"}`))
		req.Body = http.MaxBytesReader(recorder, req.Body, 16)

		var p payload
		if decodeJSON(recorder, req, &p) {
			t.Fatal("expected decodeJSON() = false")
		}
		assertStatusCode(t, recorder, http.StatusRequestEntityTooLarge)
		assertJSONError(t, recorder, errRequestTooLarge)
	})
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("emp-1\r\nforged line"); got != "emp-1forged line" {
		t.Errorf("sanitizeForLog() = %q", got)
	}
}

func TestHealthCheck(t *testing.T) {
	methods := []string{"GET", "HEAD"}

	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/health", nil)
			recorder := httptest.NewRecorder()

			HealthCheck(recorder, req)

			assertStatusCode(t, recorder, http.StatusOK)
			var result map[string]string
			if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if result["status"] != "ok" {
				t.Errorf("expected status 'ok', got '%s'", result["status"])
			}
		})
	}
}
