package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/qanoon-search/qanoon/internal/qerrors"
)

// Snapshot bundles one consistent generation of the three retrieval
// stores. A snapshot is immutable after OpenSnapshot: queries read from
// it without coordination, and rebuilds publish a fresh snapshot
// through a SnapshotHolder instead of mutating a live one.
type Snapshot struct {
	BM25   BM25Index
	Vector VectorStore
	Meta   MetadataStore

	// Dimensions is the embedding width the artifacts were built with.
	Dimensions int
	// Model is the embedder model recorded at build time.
	Model string
}

// SnapshotConfig locates and parameterizes the stores.
type SnapshotConfig struct {
	DataDir       string
	BM25Backend   string
	VectorBackend string
	BM25          BM25Config
}

// OpenSnapshot loads the artifacts in dataDir. Missing artifacts yield
// an index-unavailable error; artifacts that exist but cannot be
// decoded yield an index-corrupt error.
func OpenSnapshot(cfg SnapshotConfig) (*Snapshot, error) {
	metaPath := MetadataPath(cfg.DataDir)
	if _, err := os.Stat(metaPath); err != nil {
		return nil, qerrors.New(qerrors.ErrCodeIndexNotFound,
			"no index found at "+cfg.DataDir+"; run the index command first", err)
	}

	meta, err := NewSQLiteStore(metaPath)
	if err != nil {
		return nil, qerrors.New(qerrors.ErrCodeIndexCorrupt, "metadata store unreadable", err)
	}

	ctx := context.Background()
	dimsStr, err := meta.GetState(ctx, StateEmbedderDimensions)
	if err != nil {
		meta.Close()
		return nil, qerrors.New(qerrors.ErrCodeIndexCorrupt, "cannot read build state", err)
	}
	dims, _ := strconv.Atoi(dimsStr)
	if dims <= 0 {
		meta.Close()
		return nil, qerrors.New(qerrors.ErrCodeIndexCorrupt,
			"build state missing embedder dimensions; rebuild the index", nil)
	}
	model, err := meta.GetState(ctx, StateEmbedderModel)
	if err != nil {
		meta.Close()
		return nil, qerrors.New(qerrors.ErrCodeIndexCorrupt, "cannot read build state", err)
	}

	bm25Path := BM25IndexPath(cfg.DataDir, cfg.BM25Backend)
	if _, err := os.Stat(bm25Path); err != nil {
		meta.Close()
		return nil, qerrors.New(qerrors.ErrCodeIndexNotFound, "lexical index artifact missing: "+bm25Path, err)
	}

	bm25, err := NewBM25Index(cfg.BM25Backend, bm25Path, cfg.BM25)
	if err != nil {
		meta.Close()
		return nil, qerrors.New(qerrors.ErrCodeIndexCorrupt, "cannot open lexical index", err)
	}
	// The bleve backend is already open at its path; the memory backend
	// still needs its artifact loaded.
	if cfg.BM25Backend != BM25BackendBleve {
		if err := bm25.Load(bm25Path); err != nil {
			bm25.Close()
			meta.Close()
			return nil, qerrors.New(qerrors.ErrCodeIndexCorrupt, "cannot load lexical index", err)
		}
	}

	vecPath := VectorStorePath(cfg.DataDir, cfg.VectorBackend)
	if _, err := os.Stat(vecPath); err != nil {
		bm25.Close()
		meta.Close()
		return nil, qerrors.New(qerrors.ErrCodeIndexNotFound, "vector store artifact missing: "+vecPath, err)
	}

	vector, err := NewVectorStore(cfg.VectorBackend, DefaultVectorConfig(dims))
	if err != nil {
		bm25.Close()
		meta.Close()
		return nil, qerrors.New(qerrors.ErrCodeIndexCorrupt, "cannot create vector store", err)
	}
	if err := vector.Load(vecPath); err != nil {
		vector.Close()
		bm25.Close()
		meta.Close()
		return nil, qerrors.New(qerrors.ErrCodeIndexCorrupt, "cannot load vector store", err)
	}

	if vector.Dimensions() != dims {
		vector.Close()
		bm25.Close()
		meta.Close()
		return nil, qerrors.New(qerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("vector store width %d does not match build state %d", vector.Dimensions(), dims), nil)
	}

	return &Snapshot{
		BM25:       bm25,
		Vector:     vector,
		Meta:       meta,
		Dimensions: dims,
		Model:      model,
	}, nil
}

// Close releases all three stores.
func (s *Snapshot) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.BM25 != nil {
		errs = append(errs, s.BM25.Close())
	}
	if s.Vector != nil {
		errs = append(errs, s.Vector.Close())
	}
	if s.Meta != nil {
		errs = append(errs, s.Meta.Close())
	}
	return errors.Join(errs...)
}

// SnapshotHolder publishes the current snapshot to concurrent readers.
// Readers Load once per request and use that snapshot throughout, so a
// swap mid-request never mixes generations.
type SnapshotHolder struct {
	ptr atomic.Pointer[Snapshot]
}

// NewSnapshotHolder creates a holder, optionally seeded with a snapshot.
func NewSnapshotHolder(s *Snapshot) *SnapshotHolder {
	h := &SnapshotHolder{}
	if s != nil {
		h.ptr.Store(s)
	}
	return h
}

// Load returns the current snapshot, or nil if none is published.
func (h *SnapshotHolder) Load() *Snapshot {
	return h.ptr.Load()
}

// Swap publishes a new snapshot and returns the previous one. The
// caller decides when the previous generation is safe to close.
func (h *SnapshotHolder) Swap(s *Snapshot) *Snapshot {
	return h.ptr.Swap(s)
}
