package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVectors() ([]string, [][]float32) {
	ids := []string{"law::art1", "law::art2", "law::art3", "law::art4"}
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.9, 0.1, 0, 0},
		{0, 0, 1, 0},
	}
	return ids, vectors
}

func TestFlatStoreSearchOrdering(t *testing.T) {
	ctx := context.Background()
	s, err := NewFlatStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	defer s.Close()

	ids, vectors := testVectors()
	require.NoError(t, s.Add(ctx, ids, vectors))

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "law::art1", results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "law::art3", results[1].ChunkID)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestFlatStoreTiesBreakByID(t *testing.T) {
	ctx := context.Background()
	s, err := NewFlatStore(DefaultVectorConfig(2))
	require.NoError(t, err)
	defer s.Close()

	// Identical vectors under different IDs: equal scores, ID order.
	require.NoError(t, s.Add(ctx,
		[]string{"law::b", "law::a", "law::c"},
		[][]float32{{1, 0}, {1, 0}, {1, 0}}))

	results, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "law::a", results[0].ChunkID)
	assert.Equal(t, "law::b", results[1].ChunkID)
	assert.Equal(t, "law::c", results[2].ChunkID)
}

func TestFlatStoreDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s, err := NewFlatStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	defer s.Close()

	err = s.Add(ctx, []string{"x"}, [][]float32{{1, 0}})
	require.Error(t, err)
	assert.IsType(t, ErrDimensionMismatch{}, err)

	_, err = s.Search(ctx, []float32{1, 0}, 1)
	require.Error(t, err)
	assert.IsType(t, ErrDimensionMismatch{}, err)
}

func TestFlatStoreReAddReplaces(t *testing.T) {
	ctx := context.Background()
	s, err := NewFlatStore(DefaultVectorConfig(2))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Add(ctx, []string{"x"}, [][]float32{{1, 0}}))
	require.NoError(t, s.Add(ctx, []string{"x"}, [][]float32{{0, 1}}))
	assert.Equal(t, 1, s.Count())

	results, err := s.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestFlatStoreSaveLoadRoundtrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.flat")

	s, err := NewFlatStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	ids, vectors := testVectors()
	require.NoError(t, s.Add(ctx, ids, vectors))

	want, err := s.Search(ctx, []float32{0.5, 0.5, 0, 0}, 4)
	require.NoError(t, err)
	require.NoError(t, s.Save(path))
	require.NoError(t, s.Close())

	loaded, err := NewFlatStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	defer loaded.Close()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 4, loaded.Count())
	assert.Equal(t, 4, loaded.Dimensions())

	got, err := loaded.Search(ctx, []float32{0.5, 0.5, 0, 0}, 4)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHNSWStoreSearch(t *testing.T) {
	ctx := context.Background()
	s, err := NewHNSWStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	defer s.Close()

	ids, vectors := testVectors()
	require.NoError(t, s.Add(ctx, ids, vectors))
	assert.Equal(t, 4, s.Count())

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "law::art1", results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestHNSWStoreEmptyGraph(t *testing.T) {
	ctx := context.Background()
	s, err := NewHNSWStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	defer s.Close()

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStoreDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s, err := NewHNSWStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	defer s.Close()

	err = s.Add(ctx, []string{"x"}, [][]float32{{1}})
	require.Error(t, err)
	assert.IsType(t, ErrDimensionMismatch{}, err)
}

func TestHNSWStoreSaveLoadRoundtrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	s, err := NewHNSWStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	ids, vectors := testVectors()
	require.NoError(t, s.Add(ctx, ids, vectors))
	require.NoError(t, s.Save(path))
	require.NoError(t, s.Close())

	dims, err := ReadHNSWDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 4, dims)

	loaded, err := NewHNSWStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	defer loaded.Close()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 4, loaded.Count())
	results, err := loaded.Search(ctx, []float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "law::art2", results[0].ChunkID)
}

func TestReadHNSWDimensionsMissing(t *testing.T) {
	dims, err := ReadHNSWDimensions(filepath.Join(t.TempDir(), "nothing.hnsw"))
	require.NoError(t, err)
	assert.Equal(t, 0, dims)
}

func TestNewVectorStoreFactory(t *testing.T) {
	s, err := NewVectorStore(VectorBackendFlat, DefaultVectorConfig(4))
	require.NoError(t, err)
	assert.IsType(t, &FlatStore{}, s)
	s.Close()

	s, err = NewVectorStore("", DefaultVectorConfig(4))
	require.NoError(t, err)
	assert.IsType(t, &HNSWStore{}, s)
	s.Close()

	_, err = NewVectorStore("faiss", DefaultVectorConfig(4))
	assert.Error(t, err)
}
