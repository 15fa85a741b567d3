package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunkRepo(t *testing.T) storage.ChunkRepository {
	t.Helper()
	chunkRepo, auditRepo, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		auditRepo.Close()
		chunkRepo.Close()
		backend.Close()
	})
	return chunkRepo
}

func TestUpsertChunks_AssignsOrdinalsAndTimestamps(t *testing.T) {
	repo := newTestChunkRepo(t)
	ctx := context.Background()

	added, err := repo.UpsertChunks(ctx,
		testChunk("a", 0, 2, "first", nil, 2020, core.SourceArxiv),
		testChunk("a", 1, 2, "second", nil, 2020, core.SourceArxiv),
	)
	require.NoError(t, err)
	require.Len(t, added, 2)

	assert.NotZero(t, added[0].Ordinal)
	assert.Greater(t, added[1].Ordinal, added[0].Ordinal)
	assert.False(t, added[0].InsertedAt.IsZero())
	assert.Equal(t, core.DigestOf("first"), added[0].Digest)

	stored, err := repo.GetChunk(ctx, added[0].ID)
	require.NoError(t, err)
	assert.Equal(t, added[0].InsertedAt, stored.InsertedAt, "returned timestamps survive a round trip")
	assert.Equal(t, added[0].UpdatedAt, stored.UpdatedAt)
}

func TestUpsertChunks_IdempotentReingestion(t *testing.T) {
	repo := newTestChunkRepo(t)
	ctx := context.Background()

	first, err := repo.UpsertChunks(ctx, testChunk("doc", 0, 1, "original text", nil, 2021, core.SourceArxiv))
	require.NoError(t, err)
	ordinal := first[0].Ordinal
	inserted := first[0].InsertedAt

	_, err = repo.UpsertChunks(ctx, testChunk("other", 0, 1, "another doc", nil, 2021, core.SourceArxiv))
	require.NoError(t, err)

	again, err := repo.UpsertChunks(ctx, testChunk("doc", 0, 1, "revised text", nil, 2021, core.SourceArxiv))
	require.NoError(t, err)

	count, err := repo.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "same (base_id, chunk_index) must stay one chunk")

	assert.Equal(t, ordinal, again[0].Ordinal, "upsert keeps insertion order")
	assert.Equal(t, inserted, again[0].InsertedAt)

	stored, err := repo.GetChunk(ctx, core.ChunkID("doc", 0))
	require.NoError(t, err)
	assert.Equal(t, "revised text", stored.Text)
}

func TestUpsertChunks_RejectsInvalid(t *testing.T) {
	repo := newTestChunkRepo(t)

	bad := testChunk("doc", 2, 2, "out of range", nil, 2021, core.SourceArxiv)
	_, err := repo.UpsertChunks(context.Background(), bad)
	assert.True(t, errors.Is(err, core.ErrChunkIndexRange))

	count, err := repo.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetChunk(t *testing.T) {
	repo := newTestChunkRepo(t)
	ctx := context.Background()

	_, err := repo.UpsertChunks(ctx, testChunk("doc", 0, 1, "text", []float32{1, 2}, 2021, core.SourceArxiv))
	require.NoError(t, err)

	t.Run("existing chunk", func(t *testing.T) {
		chunk, err := repo.GetChunk(ctx, core.ChunkID("doc", 0))
		require.NoError(t, err)
		assert.Equal(t, "text", chunk.Text)
		assert.Equal(t, []float32{1, 2}, chunk.Vector)
	})

	t.Run("missing chunk", func(t *testing.T) {
		_, err := repo.GetChunk(ctx, "nope_chunk_0")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("batch skips missing ids", func(t *testing.T) {
		chunks, err := repo.GetChunks(ctx, "nope_chunk_0", core.ChunkID("doc", 0))
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, core.ChunkID("doc", 0), chunks[0].ID)
	})
}

func TestGetChunksByBase(t *testing.T) {
	repo := newTestChunkRepo(t)
	ctx := context.Background()

	_, err := repo.UpsertChunks(ctx,
		testChunk("doc", 2, 3, "third", nil, 2021, core.SourceArxiv),
		testChunk("doc", 0, 3, "first", nil, 2021, core.SourceArxiv),
		testChunk("doc2", 0, 1, "elsewhere", nil, 2021, core.SourceArxiv),
		testChunk("doc", 1, 3, "second", nil, 2021, core.SourceArxiv),
	)
	require.NoError(t, err)

	chunks, err := repo.GetChunksByBase(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "first", chunks[0].Text)
	assert.Equal(t, "second", chunks[1].Text)
	assert.Equal(t, "third", chunks[2].Text)
}

func TestScanChunks_InsertionOrder(t *testing.T) {
	repo := newTestChunkRepo(t)
	ctx := context.Background()

	for _, base := range []string{"zeta", "alpha", "mu"} {
		_, err := repo.UpsertChunks(ctx, testChunk(base, 0, 1, base+" text", nil, 2021, core.SourceArxiv))
		require.NoError(t, err)
	}

	var seen []string
	err := repo.ScanChunks(ctx, func(c *core.Chunk) error {
		seen = append(seen, c.Metadata.BaseID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mu"}, seen)

	stop := errors.New("stop")
	calls := 0
	err = repo.ScanChunks(ctx, func(c *core.Chunk) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestDeleteChunks(t *testing.T) {
	repo := newTestChunkRepo(t)
	ctx := context.Background()

	_, err := repo.UpsertChunks(ctx,
		testChunk("doc", 0, 2, "first", nil, 2021, core.SourceArxiv),
		testChunk("doc", 1, 2, "second", nil, 2021, core.SourceArxiv),
	)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteChunks(ctx, core.ChunkID("doc", 0)))

	count, err := repo.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	chunks, err := repo.GetChunksByBase(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "second", chunks[0].Text)

	err = repo.DeleteChunks(ctx, core.ChunkID("doc", 0))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
