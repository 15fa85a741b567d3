package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/litreview/ai/mock"
	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/storage"
	"github.com/poiesic/litreview/storage/badger"
)

type countingRebuilder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRebuilder) Rebuild(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func setupTestRepository(t *testing.T) storage.ChunkRepository {
	chunkRepo, auditRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		auditRepo.Close()
		chunkRepo.Close()
		backend.Close()
	})
	return chunkRepo
}

func setupTestPipeline(t *testing.T, opts ...Option) (*Pipeline, storage.ChunkRepository, *mock.MockEmbedder) {
	repo := setupTestRepository(t)
	embedder := mock.NewMockEmbedder()
	p, err := NewPipeline(repo, embedder, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p, repo, embedder
}

func paragraphs(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = strings.Repeat("edge computing reduces latency for inference workloads ", 3)
	}
	return strings.Join(parts, "\n\n")
}

func TestNewPipeline(t *testing.T) {
	repo := setupTestRepository(t)

	t.Run("requires repository", func(t *testing.T) {
		_, err := NewPipeline(nil, mock.NewMockEmbedder())
		assert.ErrorIs(t, err, ErrChunkRepositoryRequired)
	})

	t.Run("requires embedder", func(t *testing.T) {
		_, err := NewPipeline(repo, nil)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("rejects overlap not below size", func(t *testing.T) {
		_, err := NewPipeline(repo, mock.NewMockEmbedder(), WithChunking(100, 100))
		assert.ErrorIs(t, err, ErrInvalidChunking)
	})

	t.Run("defaults", func(t *testing.T) {
		p, err := NewPipeline(repo, mock.NewMockEmbedder())
		require.NoError(t, err)
		defer p.Release()
		assert.Equal(t, DefaultChunkSize, p.chunkSize)
		assert.Equal(t, DefaultChunkOverlap, p.chunkOverlap)
		assert.GreaterOrEqual(t, p.poolSize, 1)
	})
}

func TestIngest_SplitsAndStoresChunks(t *testing.T) {
	p, repo, _ := setupTestPipeline(t, WithChunking(200, 20), WithBatchSize(2))
	ctx := context.Background()

	doc := Document{
		BaseID:   "10_1000_edge",
		Text:     paragraphs(4),
		Metadata: core.ChunkMetadata{Title: "Edge Inference", Year: 2022, Source: core.SourceOpenAlex},
	}

	stats, err := p.Ingest(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Greater(t, stats.Chunks, 1)
	assert.Equal(t, stats.Chunks, stats.Embedded)

	chunks, err := repo.GetChunksByBase(ctx, "10_1000_edge")
	require.NoError(t, err)
	require.Len(t, chunks, stats.Chunks)

	for i, chunk := range chunks {
		assert.Equal(t, core.ChunkID("10_1000_edge", i), chunk.ID)
		assert.Equal(t, i, chunk.Metadata.ChunkIndex)
		assert.Equal(t, len(chunks), chunk.Metadata.TotalChunks)
		assert.Equal(t, "Edge Inference", chunk.Metadata.Title)
		assert.Equal(t, 2022, chunk.Metadata.Year)
		assert.LessOrEqual(t, len([]rune(chunk.Text)), 200)
		assert.Len(t, chunk.Vector, mock.DefaultDimension)
		assert.Equal(t, core.DigestOf(chunk.Text), chunk.Digest)
	}
}

func TestIngest_Idempotent(t *testing.T) {
	p, repo, embedder := setupTestPipeline(t)
	ctx := context.Background()

	doc := Document{BaseID: "paper_0", Text: "Federated learning keeps data on the device."}

	first, err := p.Ingest(ctx, doc)
	require.NoError(t, err)
	require.Equal(t, 1, first.Chunks)

	before, err := repo.GetChunk(ctx, core.ChunkID("paper_0", 0))
	require.NoError(t, err)
	embedded := embedder.TextCount()

	second, err := p.Ingest(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Chunks)
	assert.Equal(t, 1, second.Reused)
	assert.Zero(t, second.Embedded)
	assert.Equal(t, embedded, embedder.TextCount(), "unchanged text should not be re-embedded")

	count, err := repo.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	after, err := repo.GetChunk(ctx, core.ChunkID("paper_0", 0))
	require.NoError(t, err)
	assert.Equal(t, before.Ordinal, after.Ordinal)
	assert.Equal(t, before.Vector, after.Vector)
}

func TestIngest_ChangedTextIsReembedded(t *testing.T) {
	p, repo, _ := setupTestPipeline(t)
	ctx := context.Background()

	_, err := p.Ingest(ctx, Document{BaseID: "paper_0", Text: "Version one of the abstract."})
	require.NoError(t, err)

	stats, err := p.Ingest(ctx, Document{BaseID: "paper_0", Text: "Version two of the abstract."})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Embedded)

	chunk, err := repo.GetChunk(ctx, core.ChunkID("paper_0", 0))
	require.NoError(t, err)
	assert.Equal(t, "Version two of the abstract.", chunk.Text)
	assert.Equal(t, mock.DeterministicVector(chunk.Text, mock.DefaultDimension), chunk.Vector)
}

func TestIngest_RemovesStaleChunks(t *testing.T) {
	p, repo, _ := setupTestPipeline(t, WithChunking(200, 0))
	ctx := context.Background()

	long, err := p.Ingest(ctx, Document{BaseID: "doc", Text: paragraphs(5)})
	require.NoError(t, err)
	require.Greater(t, long.Chunks, 1)

	short, err := p.Ingest(ctx, Document{BaseID: "doc", Text: "A single short paragraph."})
	require.NoError(t, err)
	assert.Equal(t, 1, short.Chunks)
	assert.Equal(t, long.Chunks-1, short.Removed)

	chunks, err := repo.GetChunksByBase(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].Metadata.TotalChunks)
}

func TestIngest_EmptiedDocumentIsPurged(t *testing.T) {
	rebuilder := &countingRebuilder{}
	p, repo, _ := setupTestPipeline(t, WithChunking(200, 0), WithRebuilder(rebuilder))
	ctx := context.Background()

	first, err := p.Ingest(ctx,
		Document{BaseID: "doc", Text: paragraphs(3)},
		Document{BaseID: "keep", Text: "Unrelated abstract that stays."},
	)
	require.NoError(t, err)
	require.Greater(t, first.Chunks, 2)

	emptied, err := p.Ingest(ctx, Document{BaseID: "doc", Text: "  \n "})
	require.NoError(t, err)
	assert.Equal(t, 0, emptied.Chunks)
	assert.Equal(t, first.Chunks-1, emptied.Removed)
	assert.Equal(t, 2, rebuilder.calls, "removal rebuilds the index")

	chunks, err := repo.GetChunksByBase(ctx, "doc")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	count, err := repo.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngest_Rebuilds(t *testing.T) {
	rebuilder := &countingRebuilder{}
	p, _, _ := setupTestPipeline(t, WithRebuilder(rebuilder))
	ctx := context.Background()

	_, err := p.Ingest(ctx, Document{BaseID: "doc", Text: "Some text."})
	require.NoError(t, err)
	assert.Equal(t, 1, rebuilder.calls)

	t.Run("nothing to ingest skips rebuild", func(t *testing.T) {
		_, err := p.Ingest(ctx, Document{BaseID: "empty", Text: "   "})
		require.NoError(t, err)
		assert.Equal(t, 1, rebuilder.calls)
	})

	t.Run("rebuild failure is returned", func(t *testing.T) {
		rebuilder.err = errors.New("boom")
		_, err := p.Ingest(ctx, Document{BaseID: "doc2", Text: "More text."})
		assert.Error(t, err)
	})
}

func TestIngest_EmbedderFailure(t *testing.T) {
	p, repo, embedder := setupTestPipeline(t)
	ctx := context.Background()

	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedder offline")
	}

	_, err := p.Ingest(ctx, Document{BaseID: "doc", Text: "Some text."})
	require.Error(t, err)

	count, err := repo.CountChunks(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "nothing is stored when embedding fails")

	t.Run("vector count mismatch", func(t *testing.T) {
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{}, nil
		}
		_, err := p.Ingest(ctx, Document{BaseID: "doc", Text: "Some text."})
		assert.ErrorIs(t, err, ErrEmbeddingMismatch)
	})
}

func TestIngest_MissingBaseID(t *testing.T) {
	p, _, _ := setupTestPipeline(t)

	_, err := p.Ingest(context.Background(), Document{Text: "orphan"})
	assert.ErrorIs(t, err, core.ErrEmptyBaseID)
}

func TestIngest_DuplicateDocumentsKeepLast(t *testing.T) {
	p, repo, _ := setupTestPipeline(t)
	ctx := context.Background()

	stats, err := p.Ingest(ctx,
		Document{BaseID: "doc", Text: "first version"},
		Document{BaseID: "doc", Text: "second version"},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)

	chunk, err := repo.GetChunk(ctx, core.ChunkID("doc", 0))
	require.NoError(t, err)
	assert.Equal(t, "second version", chunk.Text)
}
