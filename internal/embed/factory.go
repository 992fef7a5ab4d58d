package embed

import (
	"context"
	"strings"
	"time"

	"github.com/qanoon-search/qanoon/internal/qerrors"
)

// Provider identifies an embedding backend.
type Provider string

const (
	ProviderStatic Provider = "static"
	ProviderOllama Provider = "ollama"
)

// Config selects and tunes a provider.
type Config struct {
	Provider   Provider
	Host       string
	Model      string
	Dimensions int
	BatchSize  int
	MaxRetries int
	Timeout    time.Duration
	// CacheSize sizes the query-embedding LRU; 0 uses the default.
	CacheSize int
}

// ParseProvider normalizes a provider name. Empty defaults to static.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "static":
		return ProviderStatic, nil
	case "ollama":
		return ProviderOllama, nil
	default:
		return "", qerrors.New(qerrors.ErrCodeConfigInvalid, "unknown embedding provider: "+s, nil).
			WithSuggestion("use static or ollama")
	}
}

// New builds the configured provider wrapped in the LRU cache.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	provider, err := ParseProvider(string(cfg.Provider))
	if err != nil {
		return nil, err
	}

	var inner Embedder
	switch provider {
	case ProviderOllama:
		inner, err = NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
	default:
		inner = NewStaticEmbedder(cfg.Dimensions)
	}

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
