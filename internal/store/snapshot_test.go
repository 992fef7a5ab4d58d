package store

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qanoon-search/qanoon/internal/normalize"
	"github.com/qanoon-search/qanoon/internal/qerrors"
)

// buildTestArtifacts writes a complete artifact generation into dir
// using the memory and flat backends.
func buildTestArtifacts(t *testing.T, dir string) {
	t.Helper()
	ctx := context.Background()

	meta, err := NewSQLiteStore(MetadataPath(dir))
	require.NoError(t, err)
	require.NoError(t, meta.SaveChunks(ctx, testChunks()))
	require.NoError(t, meta.SetState(ctx, StateEmbedderModel, "static"))
	require.NoError(t, meta.SetState(ctx, StateEmbedderDimensions, strconv.Itoa(4)))
	require.NoError(t, meta.Close())

	bm25 := NewMemoryBM25Index(DefaultBM25Config())
	docs := []*Document{
		docFromText("labor_law::art1", "ينظم هذا القانون عقود العمل."),
		docFromText("policy_restricted::art2", "بند سري خاص بالشؤون القانونية."),
	}
	require.NoError(t, bm25.Index(ctx, docs))
	require.NoError(t, bm25.Save(BM25IndexPath(dir, BM25BackendMemory)))
	require.NoError(t, bm25.Close())

	vec, err := NewFlatStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	require.NoError(t, vec.Add(ctx,
		[]string{"labor_law::art1", "policy_restricted::art2"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))
	require.NoError(t, vec.Save(VectorStorePath(dir, VectorBackendFlat)))
	require.NoError(t, vec.Close())
}

func testSnapshotConfig(dir string) SnapshotConfig {
	return SnapshotConfig{
		DataDir:       dir,
		BM25Backend:   BM25BackendMemory,
		VectorBackend: VectorBackendFlat,
		BM25:          DefaultBM25Config(),
	}
}

func TestOpenSnapshot(t *testing.T) {
	dir := t.TempDir()
	buildTestArtifacts(t, dir)

	snap, err := OpenSnapshot(testSnapshotConfig(dir))
	require.NoError(t, err)
	defer snap.Close()

	assert.Equal(t, 4, snap.Dimensions)
	assert.Equal(t, "static", snap.Model)
	assert.Equal(t, 2, snap.Vector.Count())
	assert.Equal(t, 2, snap.BM25.Stats().DocumentCount)

	ctx := context.Background()
	results, err := snap.BM25.Search(ctx, normalize.Tokens("القانون"), 5)
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	chunks, err := snap.Meta.GetChunks(ctx, []string{"labor_law::art1"})
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestOpenSnapshotMissingDir(t *testing.T) {
	_, err := OpenSnapshot(testSnapshotConfig(t.TempDir()))
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeIndexNotFound, qerrors.GetCode(err))
}

func TestOpenSnapshotMissingDimensions(t *testing.T) {
	dir := t.TempDir()
	meta, err := NewSQLiteStore(MetadataPath(dir))
	require.NoError(t, err)
	require.NoError(t, meta.Close())

	_, err = OpenSnapshot(testSnapshotConfig(dir))
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeIndexCorrupt, qerrors.GetCode(err))
}

func TestSnapshotHolderSwap(t *testing.T) {
	dir := t.TempDir()
	buildTestArtifacts(t, dir)

	first, err := OpenSnapshot(testSnapshotConfig(dir))
	require.NoError(t, err)

	holder := NewSnapshotHolder(first)
	assert.Same(t, first, holder.Load())

	second, err := OpenSnapshot(testSnapshotConfig(dir))
	require.NoError(t, err)

	old := holder.Swap(second)
	assert.Same(t, first, old)
	assert.Same(t, second, holder.Load())

	// The replaced generation still serves its in-flight readers.
	results, err := old.BM25.Search(context.Background(), normalize.Tokens("القانون"), 5)
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	require.NoError(t, old.Close())
	require.NoError(t, second.Close())
}

func TestSnapshotHolderEmpty(t *testing.T) {
	holder := NewSnapshotHolder(nil)
	assert.Nil(t, holder.Load())
}
