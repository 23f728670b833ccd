package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout is the per-request timeout when none is configured.
const DefaultTimeout = 30 * time.Second

// OllamaClient talks to an Ollama HTTP API.
type OllamaClient struct {
	mu         sync.RWMutex
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// OllamaOption configures an OllamaClient.
type OllamaOption func(*OllamaClient)

// WithLogger sets a logger for request failures.
func WithLogger(l *zap.Logger) OllamaOption {
	return func(c *OllamaClient) { c.logger = l }
}

// WithHTTPClient replaces the HTTP client (e.g. in tests).
func WithHTTPClient(hc *http.Client) OllamaOption {
	return func(c *OllamaClient) { c.httpClient = hc }
}

// NewOllamaClient creates a client for baseURL using model. A non-positive timeout uses DefaultTimeout.
func NewOllamaClient(baseURL, model string, timeout time.Duration, opts ...OllamaOption) *OllamaClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

type embeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingsResponse struct {
	Embedding []float32 `json:"embedding"`
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// Configure switches the service URL and model used by subsequent calls.
func (c *OllamaClient) Configure(baseURL, model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.model = model
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// BaseURL returns the configured service URL.
func (c *OllamaClient) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Endpoint returns the service URL and model the next calls will use.
func (c *OllamaClient) Endpoint() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL, c.model
}

// Embed returns the embedding vector for text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	baseURL, model := c.Endpoint()
	body, err := json.Marshal(embeddingsRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %d %s", ErrBadStatus, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("%w: missing or empty embedding field", ErrMalformedResponse)
	}
	return result.Embedding, nil
}

// Ping checks that the service answers the lightweight version call.
func (c *OllamaClient) Ping(ctx context.Context) error {
	baseURL, _ := c.Endpoint()
	resp, err := c.get(ctx, baseURL+"/api/version")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Models lists the names of models installed on the service.
func (c *OllamaClient) Models(ctx context.Context) ([]string, error) {
	baseURL, _ := c.Endpoint()
	resp, err := c.get(ctx, baseURL+"/api/tags")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		names = append(names, name)
	}
	return names, nil
}

func (c *OllamaClient) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("embedding service request failed", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %d", ErrBadStatus, url, resp.StatusCode)
	}
	return resp, nil
}
