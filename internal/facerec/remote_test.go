package facerec

import (
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newEmbeddingServer(t *testing.T, handler func(w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/embed/face" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Header.Get("Content-Type") != "image/jpeg" {
			t.Errorf("expected image/jpeg part, got %s", header.Header.Get("Content-Type"))
		}
		if _, err := jpeg.Decode(file); err != nil {
			t.Errorf("uploaded file is not a JPEG: %v", err)
		}
		handler(w)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRemoteEngine_Detect(t *testing.T) {
	server := newEmbeddingServer(t, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(faceResponse{
			FacesCount: 2,
			Faces: []faceDetection{
				{FaceIndex: 0, Dim: 3, Embedding: []float32{1, 0, 0}, BBox: []float64{1.2, 2.6, 10, 12}, DetScore: 0.9},
				{FaceIndex: 1, Dim: 3, Embedding: []float32{0, 1, 0}, BBox: []float64{20, 20, 30, 30}, DetScore: 0.7},
			},
			Model: "buffalo_l",
		})
	})

	engine := NewRemoteEngine(server.URL + "/")
	defer engine.Close()

	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	regions, err := engine.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(regions))
	}
	if regions[0].Rect != image.Rect(1, 3, 10, 12) {
		t.Errorf("unexpected rect %v", regions[0].Rect)
	}
	if regions[1].Score != 0.7 {
		t.Errorf("unexpected score %v", regions[1].Score)
	}

	enc, err := engine.Encode(context.Background(), img, regions[1])
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if engine.Distance(enc, Encoding{0, 1, 0}) > 1e-9 {
		t.Errorf("unexpected encoding %v", enc)
	}
}

func TestRemoteEngine_EncodeRedetects(t *testing.T) {
	calls := 0
	server := newEmbeddingServer(t, func(w http.ResponseWriter) {
		calls++
		_ = json.NewEncoder(w).Encode(faceResponse{
			FacesCount: 1,
			Faces:      []faceDetection{{Embedding: []float32{0.5, 0.5}, BBox: []float64{0, 0, 10, 10}, DetScore: 1}},
		})
	})

	engine := NewRemoteEngine(server.URL)
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))

	enc, err := engine.Encode(context.Background(), img, Region{Rect: image.Rect(0, 0, 10, 11)})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(enc) != 2 {
		t.Errorf("unexpected encoding %v", enc)
	}
	if calls != 1 {
		t.Errorf("expected 1 server call, got %d", calls)
	}
}

func TestRemoteEngine_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"server error", http.StatusInternalServerError, `{"detail":"boom"}`},
		{"invalid json", http.StatusOK, `not json`},
		{"empty embedding", http.StatusOK, `{"faces_count":1,"faces":[{"bbox":[0,0,1,1],"embedding":[]}]}`},
		{"bad bbox", http.StatusOK, `{"faces_count":1,"faces":[{"bbox":[0,0,1],"embedding":[1]}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := newEmbeddingServer(t, func(w http.ResponseWriter) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.payload))
			})

			engine := NewRemoteEngine(server.URL)
			if _, err := engine.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8))); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestRemoteEngine_NoFaces(t *testing.T) {
	server := newEmbeddingServer(t, func(w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"faces_count":0,"faces":[],"model":"buffalo_l"}`))
	})

	engine := NewRemoteEngine(server.URL)
	regions, err := engine.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(regions) != 0 {
		t.Errorf("expected no regions, got %d", len(regions))
	}
}
