package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qanoon-search/qanoon/internal/access"
	"github.com/qanoon-search/qanoon/internal/embed"
	"github.com/qanoon-search/qanoon/internal/normalize"
	"github.com/qanoon-search/qanoon/internal/qerrors"
	"github.com/qanoon-search/qanoon/internal/store"
)

const testCorpus = `{"id":"labor_law::art1","doc_id":"labor_law.pdf","article_no":"المادة 1","pages":[3],"text":"يستحق العامل إجازة سنوية مدفوعة الأجر"}
{"id":"labor_law::art2","doc_id":"labor_law.pdf","article_no":"المادة 2","pages":[4,5],"text":"ساعات العمل اليومية ثماني ساعات"}

{"id":"policy_restricted::art1","doc_id":"policy_restricted.pdf","article_no":"البند 1","pages":[1],"text":"مكافآت المدراء التنفيذيين سرية"}
`

func writeCorpus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadCorpus(t *testing.T) {
	chunks, err := ReadCorpus(writeCorpus(t, testCorpus))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "labor_law::art1", chunks[0].ID)
	assert.Equal(t, "labor_law.pdf", chunks[0].DocID)
	assert.Equal(t, []int{4, 5}, chunks[1].Pages)
}

func TestReadCorpusRejectsBadRecords(t *testing.T) {
	cases := map[string]string{
		"invalid JSON": "{not json}\n",
		"missing id":   `{"doc_id":"a.pdf","text":"نص"}` + "\n",
		"missing doc":  `{"id":"a::1","text":"نص"}` + "\n",
		"missing text": `{"id":"a::1","doc_id":"a.pdf","text":"  "}` + "\n",
		"duplicate id": strings.Repeat(`{"id":"a::1","doc_id":"a.pdf","text":"نص"}`+"\n", 2),
		"empty file":   "\n\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCorpus(writeCorpus(t, content))
			require.Error(t, err)
			assert.True(t, qerrors.IsCategory(err, qerrors.CategoryValidation))
		})
	}
}

func TestReadCorpusMissingFile(t *testing.T) {
	_, err := ReadCorpus(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeConfigNotFound, qerrors.GetCode(err))
}

func testBuilderConfig(t *testing.T) BuilderConfig {
	t.Helper()
	return BuilderConfig{
		DataDir:       t.TempDir(),
		CorpusPath:    writeCorpus(t, testCorpus),
		BM25Backend:   store.BM25BackendMemory,
		VectorBackend: store.VectorBackendFlat,
		BM25:          store.DefaultBM25Config(),
	}
}

func TestBuilderBuildAndQuery(t *testing.T) {
	ctx := context.Background()
	cfg := testBuilderConfig(t)
	embedder := embed.NewStaticEmbedder(64)

	b, err := NewBuilder(cfg, embedder, nil)
	require.NoError(t, err)

	stats, err := b.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Chunks)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 64, stats.Dimensions)
	assert.Equal(t, embedder.ModelName(), stats.Model)

	// The built generation opens as a snapshot and serves both
	// modalities.
	snap, err := store.OpenSnapshot(store.SnapshotConfig{
		DataDir:       cfg.DataDir,
		BM25Backend:   cfg.BM25Backend,
		VectorBackend: cfg.VectorBackend,
		BM25:          cfg.BM25,
	})
	require.NoError(t, err)
	defer snap.Close()

	assert.Equal(t, 64, snap.Dimensions)
	assert.Equal(t, embedder.ModelName(), snap.Model)

	hits, err := snap.BM25.Search(ctx, normalize.Tokens("إجازة سنوية"), 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "labor_law::art1", hits[0].ChunkID)

	vec, err := embedder.Embed(ctx, normalize.Text("إجازة سنوية مدفوعة"))
	require.NoError(t, err)
	vecHits, err := snap.Vector.Search(ctx, vec, 3)
	require.NoError(t, err)
	require.NotEmpty(t, vecHits)
	assert.Equal(t, "labor_law::art1", vecHits[0].ChunkID)

	chunks, err := snap.Meta.GetChunks(ctx, []string{"policy_restricted::art1"})
	require.NoError(t, err)
	restricted := chunks["policy_restricted::art1"]
	require.NotNil(t, restricted)
	assert.ElementsMatch(t, []access.Role{access.RoleLegal, access.RoleAdmin}, restricted.RequiredRoles)

	public, err := snap.Meta.GetChunks(ctx, []string{"labor_law::art1"})
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]access.Role{access.RoleStaff, access.RoleLegal, access.RoleAdmin},
		public["labor_law::art1"].RequiredRoles)
}

func TestBuilderRebuildReplacesGeneration(t *testing.T) {
	ctx := context.Background()
	cfg := testBuilderConfig(t)
	embedder := embed.NewStaticEmbedder(32)

	b, err := NewBuilder(cfg, embedder, nil)
	require.NoError(t, err)

	_, err = b.Build(ctx)
	require.NoError(t, err)
	stats, err := b.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Chunks)

	snap, err := store.OpenSnapshot(store.SnapshotConfig{
		DataDir:       cfg.DataDir,
		BM25Backend:   cfg.BM25Backend,
		VectorBackend: cfg.VectorBackend,
		BM25:          cfg.BM25,
	})
	require.NoError(t, err)
	defer snap.Close()

	chunks, docs, err := snap.Meta.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, chunks)
	assert.Equal(t, 2, docs)
}

func TestNewBuilderValidation(t *testing.T) {
	embedder := embed.NewStaticEmbedder(32)

	_, err := NewBuilder(BuilderConfig{CorpusPath: "c.jsonl"}, embedder, nil)
	require.Error(t, err)

	_, err = NewBuilder(BuilderConfig{DataDir: t.TempDir()}, embedder, nil)
	require.Error(t, err)

	_, err = NewBuilder(testBuilderConfig(t), nil, nil)
	require.Error(t, err)
}

func TestBuilderMissingCorpus(t *testing.T) {
	cfg := testBuilderConfig(t)
	cfg.CorpusPath = filepath.Join(t.TempDir(), "absent.jsonl")

	b, err := NewBuilder(cfg, embed.NewStaticEmbedder(32), nil)
	require.NoError(t, err)

	_, err = b.Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeConfigNotFound, qerrors.GetCode(err))
}
