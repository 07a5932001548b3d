package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClientOptions contains configuration options for the HTTP client.
type HTTPClientOptions struct {
	// BaseURL is the embedding service endpoint, e.g.
	// "https://embeddings.internal/v1/embeddings".
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Model selects the embedding model on the server side.
	Model string

	// Dimension is the vector length the service produces.
	Dimension int

	// Timeout bounds each request.
	Timeout time.Duration

	// HTTPClient overrides the default client (e.g. for tests).
	HTTPClient *http.Client
}

// DefaultHTTPClientOptions contains the default configuration options for
// the HTTP client.
var DefaultHTTPClientOptions = HTTPClientOptions{
	Model:     "clip-vit-base-patch32",
	Dimension: 384,
	Timeout:   30 * time.Second,
}

// HTTPClient is a Generator backed by an OpenAI-compatible embeddings
// endpoint: POST {"input": [...], "model": "..."} returning
// {"data": [{"embedding": [...], "index": 0}]}.
type HTTPClient struct {
	client *http.Client
	opts   HTTPClientOptions
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewHTTPClient creates a Generator calling a remote embedding service.
func NewHTTPClient(optFns ...func(o *HTTPClientOptions)) (*HTTPClient, error) {
	opts := DefaultHTTPClientOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("embedder: base URL is required")
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("embedder: dimension must be positive, got %d", opts.Dimension)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPClient{client: client, opts: opts}, nil
}

// Generate implements Generator.
func (c *HTTPClient) Generate(ctx context.Context, imageRef string) ([]float32, error) {
	if imageRef == "" {
		return nil, fmt.Errorf("embedder: empty image reference")
	}

	body, err := json.Marshal(embeddingRequest{
		Input: []string{imageRef},
		Model: c.opts.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedder: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedder: service returned status %d: %s", resp.StatusCode, respBody)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("embedder: parse response: %w", err)
	}
	if len(parsed.Data) != 1 {
		return nil, fmt.Errorf("embedder: expected 1 embedding, got %d", len(parsed.Data))
	}

	vector := parsed.Data[0].Embedding
	if len(vector) != c.opts.Dimension {
		return nil, fmt.Errorf("embedder: service returned %d-dimensional vector, expected %d", len(vector), c.opts.Dimension)
	}
	return vector, nil
}

// Dimension implements Generator.
func (c *HTTPClient) Dimension() int {
	return c.opts.Dimension
}
