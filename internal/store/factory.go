package store

import (
	"fmt"
	"path/filepath"
)

// Backend names accepted by the factories.
const (
	BM25BackendMemory = "memory"
	BM25BackendBleve  = "bleve"

	VectorBackendHNSW = "hnsw"
	VectorBackendFlat = "flat"
)

// Artifact file names inside a data directory.
const (
	MetadataFile = "metadata.db"
	bm25BaseName = "bm25"
	vecBaseName  = "vectors"
)

// BM25IndexPath returns the artifact path for a lexical backend inside
// dataDir: bm25.idx for the memory backend, the bm25.bleve directory
// for bleve.
func BM25IndexPath(dataDir, backend string) string {
	base := filepath.Join(dataDir, bm25BaseName)
	if backend == BM25BackendBleve {
		return base + ".bleve"
	}
	return base + ".idx"
}

// VectorStorePath returns the artifact path for a vector backend inside
// dataDir. The HNSW backend also writes a .meta sidecar next to it.
func VectorStorePath(dataDir, backend string) string {
	base := filepath.Join(dataDir, vecBaseName)
	if backend == VectorBackendFlat {
		return base + ".flat"
	}
	return base + ".hnsw"
}

// MetadataPath returns the metadata store path inside dataDir.
func MetadataPath(dataDir string) string {
	return filepath.Join(dataDir, MetadataFile)
}

// NewBM25Index creates an empty lexical index for the given backend.
// The path is only used by the bleve backend, which is disk-backed from
// creation; the memory backend ignores it until Save/Load.
func NewBM25Index(backend, path string, cfg BM25Config) (BM25Index, error) {
	switch backend {
	case BM25BackendMemory, "":
		return NewMemoryBM25Index(cfg), nil
	case BM25BackendBleve:
		return NewBleveBM25Index(path, cfg)
	default:
		return nil, fmt.Errorf("unknown BM25 backend: %s (valid options: memory, bleve)", backend)
	}
}

// NewVectorStore creates an empty vector store for the given backend.
func NewVectorStore(backend string, cfg VectorConfig) (VectorStore, error) {
	switch backend {
	case VectorBackendHNSW, "":
		return NewHNSWStore(cfg)
	case VectorBackendFlat:
		return NewFlatStore(cfg)
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (valid options: hnsw, flat)", backend)
	}
}
