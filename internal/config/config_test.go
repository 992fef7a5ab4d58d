package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qanoon-search/qanoon/internal/qerrors"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, 0.5, cfg.Search.Alpha)
	assert.Equal(t, 1.5, cfg.Search.K1)
	assert.Equal(t, 0.75, cfg.Search.B)
	assert.Equal(t, "memory", cfg.Search.BM25Backend)
	assert.Equal(t, "hnsw", cfg.Search.VectorBackend)
	assert.True(t, cfg.Search.EmbedFallback)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, "restricted", cfg.Access.RestrictedMarker)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeConfigNotFound, qerrors.GetCode(err))
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Search.TopK)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qanoon.yaml")
	yaml := `
search:
  top_k: 10
  alpha: 0.6
  embed_fallback: false
  embed_timeout: 2s
embeddings:
  provider: ollama
  model: bge-m3
access:
  restricted_marker: secret
  users:
    analyst: [staff]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Search.TopK)
	assert.Equal(t, 0.6, cfg.Search.Alpha)
	assert.False(t, cfg.Search.EmbedFallback)
	assert.Equal(t, 2*time.Second, cfg.EmbedTimeout())
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, "secret", cfg.Access.RestrictedMarker)
	assert.Equal(t, []string{"staff"}, cfg.Access.Users["analyst"])

	// Untouched fields keep defaults.
	assert.Equal(t, 1.5, cfg.Search.K1)
	assert.Equal(t, "memory", cfg.Search.BM25Backend)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: [broken"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeConfigInvalid, qerrors.GetCode(err))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QANOON_ALPHA", "0.9")
	t.Setenv("QANOON_DATA_DIR", "/tmp/qanoon-data")
	t.Setenv("QANOON_EMBED_PROVIDER", "ollama")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Search.Alpha)
	assert.Equal(t, "/tmp/qanoon-data", cfg.Paths.DataDir)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero top_k", func(c *Config) { c.Search.TopK = 0 }},
		{"max_top_k below top_k", func(c *Config) { c.Search.MaxTopK = 1 }},
		{"negative bm25_k", func(c *Config) { c.Search.BM25K = -1 }},
		{"alpha above one", func(c *Config) { c.Search.Alpha = 1.1 }},
		{"alpha below zero", func(c *Config) { c.Search.Alpha = -0.1 }},
		{"zero k1", func(c *Config) { c.Search.K1 = 0 }},
		{"b above one", func(c *Config) { c.Search.B = 1.5 }},
		{"unknown bm25 backend", func(c *Config) { c.Search.BM25Backend = "lucene" }},
		{"unknown vector backend", func(c *Config) { c.Search.VectorBackend = "faiss" }},
		{"bad embed timeout", func(c *Config) { c.Search.EmbedTimeout = "soon" }},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "openai" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, qerrors.ErrCodeConfigInvalid, qerrors.GetCode(err))
		})
	}
}

func TestEmbedTimeoutFallback(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.EmbedTimeout = ""
	assert.Equal(t, 10*time.Second, cfg.EmbedTimeout())
}
