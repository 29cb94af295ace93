package facerec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/facegate/internal/imaging"
)

const (
	defaultEmbeddingURL = "http://localhost:8000"
	remoteJPEGQuality   = 90
	remoteTimeout       = 60 * time.Second
)

// faceDetection represents a single face returned by the embedding server
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// faceResponse represents the response from the face embedding endpoint
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// RemoteEngine delegates detection and encoding to an embedding server
// exposing POST /embed/face. Embeddings are compared with cosine distance.
type RemoteEngine struct {
	baseURL string
	client  *http.Client
}

// NewRemoteEngine creates a client for the embedding server at baseURL.
func NewRemoteEngine(baseURL string) *RemoteEngine {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &RemoteEngine{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: remoteTimeout},
	}
}

// Detect uploads img and returns one region per face the server found.
func (e *RemoteEngine) Detect(ctx context.Context, img *image.RGBA) ([]Region, error) {
	data, err := imaging.EncodeJPEG(img, remoteJPEGQuality)
	if err != nil {
		return nil, err
	}

	resp, err := e.computeFaceEmbeddings(ctx, data)
	if err != nil {
		return nil, err
	}

	regions := make([]Region, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.BBox) != 4 {
			return nil, fmt.Errorf("face %d: invalid bbox %v", f.FaceIndex, f.BBox)
		}
		rect := image.Rect(
			int(math.Round(f.BBox[0])), int(math.Round(f.BBox[1])),
			int(math.Round(f.BBox[2])), int(math.Round(f.BBox[3])),
		)
		regions = append(regions, NewRegion(rect, f.DetScore, f.Embedding))
	}
	return regions, nil
}

// Encode returns the embedding of region, re-querying the server if the region
// was not produced by Detect.
func (e *RemoteEngine) Encode(ctx context.Context, img *image.RGBA, region Region) (Encoding, error) {
	if desc, ok := region.Descriptor(); ok {
		return desc, nil
	}

	candidates, err := e.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	return PickRegion(candidates, region)
}

func (e *RemoteEngine) Distance(a, b Encoding) float64 {
	return CosineDistance(a, b)
}

func (e *RemoteEngine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func (e *RemoteEngine) computeFaceEmbeddings(ctx context.Context, imageData []byte) (*faceResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed/face", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	for _, f := range faceResp.Faces {
		if len(f.Embedding) == 0 {
			return nil, fmt.Errorf("face %d: empty embedding returned", f.FaceIndex)
		}
	}

	return &faceResp, nil
}
