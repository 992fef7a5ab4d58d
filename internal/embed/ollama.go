package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/qanoon-search/qanoon/internal/qerrors"
)

// Ollama defaults.
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"

	ollamaRetryBaseDelay = 500 * time.Millisecond
)

// OllamaConfig configures the Ollama provider.
type OllamaConfig struct {
	Host       string
	Model      string
	Dimensions int // 0 autodetects from the first embedding
	BatchSize  int
	Timeout    time.Duration
	MaxRetries int
	// SkipHealthCheck skips the startup reachability and dimension
	// probe; used by tests that point at a stub server.
	SkipHealthCheck bool
}

// OllamaEmbedder generates embeddings through Ollama's /api/embed
// endpoint, with per-request timeouts and retry with exponential
// backoff on transient failures.
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaConfig
	dims      int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder creates an Ollama embedder. Unless SkipHealthCheck
// is set it probes the host and detects dimensions up front, so a
// misconfigured host fails at startup instead of on the first query.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     10 * time.Second,
	}

	// No http.Client.Timeout: per-request context timeouts in
	// embedWithRetry would be overridden by a static client timeout.
	e := &OllamaEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		if !e.Available(checkCtx) {
			transport.CloseIdleConnections()
			return nil, qerrors.New(qerrors.ErrCodeEmbedUnavailable,
				"cannot reach Ollama at "+cfg.Host, nil).
				WithSuggestion("start Ollama or set embeddings.provider to static")
		}

		if e.dims == 0 {
			probe, err := e.embedWithRetry(checkCtx, []string{"probe"})
			if err != nil {
				transport.CloseIdleConnections()
				return nil, fmt.Errorf("failed to detect embedding dimensions: %w", err)
			}
			if len(probe) == 0 || len(probe[0]) == 0 {
				transport.CloseIdleConnections()
				return nil, qerrors.New(qerrors.ErrCodeEmbedFailed,
					"Ollama returned an empty probe embedding", nil)
			}
			e.dims = len(probe[0])
		}
	}

	return e, nil
}

// Embed generates one embedding.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in provider-sized sub-batches, preserving
// order. Vectors come back unit-normalized.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		vecs, err := e.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, vecs...)
	}

	if len(results) != len(texts) {
		return nil, qerrors.New(qerrors.ErrCodeEmbedFailed,
			fmt.Sprintf("Ollama returned %d embeddings for %d inputs", len(results), len(texts)), nil)
	}

	for _, v := range results {
		normalizeVector(v)
	}
	return results, nil
}

// embedWithRetry posts one batch, retrying transient failures with
// exponential backoff. The caller's context bounds the whole attempt
// sequence; each attempt additionally gets the configured timeout.
func (e *OllamaEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := ollamaRetryBaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, e.wrapContextErr(ctx.Err())
			case <-time.After(delay):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		vecs, err := e.embedOnce(attemptCtx, texts)
		cancel()

		if err == nil {
			return vecs, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, e.wrapContextErr(ctx.Err())
		}
		if !qerrors.IsRetryable(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

func (e *OllamaEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, qerrors.New(qerrors.ErrCodeEmbedTimeout, "Ollama request timed out", err)
		}
		return nil, qerrors.New(qerrors.ErrCodeEmbedUnavailable, "Ollama request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		code := qerrors.ErrCodeEmbedFailed
		if resp.StatusCode >= 500 {
			code = qerrors.ErrCodeEmbedUnavailable
		}
		return nil, qerrors.New(code,
			fmt.Sprintf("Ollama returned status %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, qerrors.New(qerrors.ErrCodeEmbedFailed, "failed to decode Ollama response", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, qerrors.New(qerrors.ErrCodeEmbedFailed,
			fmt.Sprintf("Ollama returned %d embeddings for %d inputs", len(result.Embeddings), len(texts)), nil)
	}

	return result.Embeddings, nil
}

func (e *OllamaEmbedder) wrapContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return qerrors.New(qerrors.ErrCodeEmbedTimeout, "embedding timed out", err)
	}
	return qerrors.New(qerrors.ErrCodeEmbedFailed, "embedding canceled", err)
}

// Dimensions returns the embedding width (0 if never detected).
func (e *OllamaEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the configured model.
func (e *OllamaEmbedder) ModelName() string {
	return e.config.Model
}

// Available probes the host's tag listing endpoint.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
