package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/roach88/chronicle/internal/fault"
)

// Encoder turns texts into fixed-dimension vectors. Implementations are
// injected; the engine never assumes a particular model.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// HTTPEncoder calls an OpenAI-compatible embeddings endpoint.
type HTTPEncoder struct {
	endpoint  string
	model     string
	apiKey    string
	dimension int
	client    *http.Client
}

// NewHTTPEncoder creates an encoder for the given embeddings endpoint URL.
func NewHTTPEncoder(endpoint, model, apiKey string, dimension int) *HTTPEncoder {
	return &HTTPEncoder{
		endpoint:  endpoint,
		model:     model,
		apiKey:    apiKey,
		dimension: dimension,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *HTTPEncoder) Dimension() int {
	return e.dimension
}

func (e *HTTPEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(map[string]any{
		"model": e.model,
		"input": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.SearchBackend, "call embeddings endpoint", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fault.New(fault.SearchBackend, "embeddings endpoint returned %s", resp.Status)
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fault.Wrap(fault.SearchBackend, "decode embeddings response", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fault.New(fault.SearchBackend, "embeddings endpoint returned %d vectors for %d texts", len(parsed.Data), len(texts))
	}

	vectors := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// FixedEncoder returns pre-seeded vectors keyed by text. Used in tests.
type FixedEncoder struct {
	Vectors map[string][]float32
	Dim     int
}

func (e *FixedEncoder) Dimension() int {
	return e.Dim
}

func (e *FixedEncoder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.Vectors[t]
		if !ok {
			return nil, fmt.Errorf("no fixed vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}
