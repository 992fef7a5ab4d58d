// Package config loads and validates qanoon configuration from YAML,
// with QANOON_* environment variable overrides layered on top.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/qanoon-search/qanoon/internal/qerrors"
)

// Config is the root configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Paths      PathsConfig      `yaml:"paths"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Access     AccessConfig     `yaml:"access"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PathsConfig locates data on disk.
type PathsConfig struct {
	// DataDir holds the built index artifacts.
	DataDir string `yaml:"data_dir"`
	// Corpus is the chunk corpus file consumed by the index command.
	Corpus string `yaml:"corpus"`
	// Glossary is an optional YAML synonym file.
	Glossary string `yaml:"glossary"`
}

// SearchConfig tunes retrieval and fusion.
type SearchConfig struct {
	// TopK is the default number of results returned.
	TopK int `yaml:"top_k"`
	// MaxTopK caps the per-request top_k override.
	MaxTopK int `yaml:"max_top_k"`
	// BM25K and VecK size the per-modality candidate pools.
	BM25K int `yaml:"bm25_k"`
	VecK  int `yaml:"vec_k"`
	// Alpha weights the vector modality in fusion: fused =
	// alpha*vector + (1-alpha)*bm25 after per-modality rescaling.
	Alpha float64 `yaml:"alpha"`
	// K1 and B are the BM25 term saturation and length normalization
	// parameters.
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
	// BM25Backend selects the lexical backend ("memory" or "bleve").
	BM25Backend string `yaml:"bm25_backend"`
	// VectorBackend selects the ANN backend ("hnsw" or "flat").
	VectorBackend string `yaml:"vector_backend"`
	// EmbedFallback degrades to BM25-only results when the embedding
	// provider fails at query time. When false the query fails instead.
	EmbedFallback bool `yaml:"embed_fallback"`
	// EmbedTimeout bounds query-time embedding, e.g. "2s".
	EmbedTimeout string `yaml:"embed_timeout"`
}

// EmbeddingsConfig selects and tunes the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "static" or "ollama".
	Provider string `yaml:"provider"`
	// OllamaHost is the Ollama base URL.
	OllamaHost string `yaml:"ollama_host"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions is the embedding width; 0 means autodetect.
	Dimensions int `yaml:"dimensions"`
	// BatchSize is the build-time embedding batch size.
	BatchSize int `yaml:"batch_size"`
	// MaxRetries for transient provider failures.
	MaxRetries int `yaml:"max_retries"`
}

// AccessConfig defines role resolution and chunk restriction rules.
type AccessConfig struct {
	// RestrictedMarker restricts any document whose name contains it
	// (case-insensitive) to legal and admin readers.
	RestrictedMarker string `yaml:"restricted_marker"`
	// Hierarchy maps a role to the roles it implies. Empty uses the
	// built-in admin/legal/staff hierarchy.
	Hierarchy map[string][]string `yaml:"hierarchy"`
	// Users is the static token -> roles table for the CLI authorizer.
	Users map[string][]string `yaml:"users"`
}

// LoggingConfig tunes the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: ".qanoon",
		},
		Search: SearchConfig{
			TopK:          5,
			MaxTopK:       50,
			BM25K:         50,
			VecK:          50,
			Alpha:         0.5,
			K1:            1.5,
			B:             0.75,
			BM25Backend:   "memory",
			VectorBackend: "hnsw",
			EmbedFallback: true,
			EmbedTimeout:  "10s",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			OllamaHost: "http://localhost:11434",
			Model:      "nomic-embed-text",
			BatchSize:  32,
			MaxRetries: 3,
		},
		Access: AccessConfig{
			RestrictedMarker: "restricted",
			Users: map[string][]string{
				"u_admin": {"admin"},
				"u_legal": {"legal"},
				"u_staff": {"staff"},
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, layering file values and then
// environment overrides over the defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, qerrors.New(qerrors.ErrCodeConfigNotFound, "config file not found: "+path, err)
			}
			return nil, qerrors.Wrap(qerrors.ErrCodeConfigInvalid, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, qerrors.New(qerrors.ErrCodeConfigInvalid, "invalid config YAML: "+err.Error(), err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers QANOON_* environment variables over the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("QANOON_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("QANOON_GLOSSARY"); v != "" {
		c.Paths.Glossary = v
	}
	if v := os.Getenv("QANOON_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.Alpha = f
		}
	}
	if v := os.Getenv("QANOON_EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("QANOON_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("QANOON_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks parameter ranges and returns a config error naming the
// first offending field.
func (c *Config) Validate() error {
	s := c.Search
	switch {
	case s.TopK <= 0:
		return invalid("search.top_k", "must be positive")
	case s.MaxTopK < s.TopK:
		return invalid("search.max_top_k", "must be >= search.top_k")
	case s.BM25K <= 0:
		return invalid("search.bm25_k", "must be positive")
	case s.VecK <= 0:
		return invalid("search.vec_k", "must be positive")
	case s.Alpha < 0 || s.Alpha > 1:
		return invalid("search.alpha", "must be in [0,1]")
	case s.K1 <= 0:
		return invalid("search.k1", "must be positive")
	case s.B < 0 || s.B > 1:
		return invalid("search.b", "must be in [0,1]")
	}

	switch s.BM25Backend {
	case "", "memory", "bleve":
	default:
		return invalid("search.bm25_backend", "must be memory or bleve")
	}
	switch s.VectorBackend {
	case "", "hnsw", "flat":
	default:
		return invalid("search.vector_backend", "must be hnsw or flat")
	}

	if s.EmbedTimeout != "" {
		if _, err := time.ParseDuration(s.EmbedTimeout); err != nil {
			return invalid("search.embed_timeout", "must be a duration like 2s")
		}
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "", "static", "ollama":
	default:
		return invalid("embeddings.provider", "must be static or ollama")
	}

	if c.Embeddings.BatchSize < 0 {
		return invalid("embeddings.batch_size", "must not be negative")
	}
	return nil
}

// EmbedTimeout returns the parsed query-time embedding timeout.
func (c *Config) EmbedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Search.EmbedTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

func invalid(field, reason string) error {
	return qerrors.New(qerrors.ErrCodeConfigInvalid, field+" "+reason, nil).
		WithDetail("field", field)
}
