package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"time"
)

// Encoder maps an aligned face crop to a fixed-length embedding vector.
type Encoder interface {
	Encode(ctx context.Context, face image.Image) ([]float64, error)
	EncodeBatch(ctx context.Context, faces []image.Image) ([][]float64, error)
}

// EncoderClient handles communication with the face embedding service
type EncoderClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// NewEncoderClient creates a new embedding service client
func NewEncoderClient(baseURL string) *EncoderClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8090" // Default to localhost
	}

	return &EncoderClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 2 * time.Minute, // Batch embedding can take time
		},
	}
}

// Encode returns the embedding for a single face crop.
func (c *EncoderClient) Encode(ctx context.Context, face image.Image) ([]float64, error) {
	embeddings, err := c.EncodeBatch(ctx, []image.Image{face})
	if err != nil {
		return nil, err
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("embedding service returned %d vectors for 1 face", len(embeddings))
	}
	return embeddings[0], nil
}

// EncodeBatch sends all face crops in one request and returns one
// embedding per face, in order.
func (c *EncoderClient) EncodeBatch(ctx context.Context, faces []image.Image) ([][]float64, error) {
	if len(faces) == 0 {
		return nil, nil
	}

	// Encode faces as base64-free JSON: raw JPEG bytes per face would
	// need multipart, but the service accepts a JSON array of images.
	payload := struct {
		Images [][]byte `json:"images"`
	}{Images: make([][]byte, 0, len(faces))}

	for i, face := range faces {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, face, &jpeg.Options{Quality: 95}); err != nil {
			return nil, fmt.Errorf("failed to encode face %d: %w", i, err)
		}
		payload.Images = append(payload.Images, buf.Bytes())
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/embed", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(embedResp.Embeddings) != len(faces) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d faces",
			len(embedResp.Embeddings), len(faces))
	}

	return embedResp.Embeddings, nil
}

// HealthCheck checks if the embedding service is healthy
func (c *EncoderClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}
