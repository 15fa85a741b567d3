package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	backend, err := OpenBackend(file, false)
	assert.Error(t, err)
	assert.Nil(t, backend)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	_, err = backend.NearestChunks(context.Background(), []float32{1}, core.Filter{}, 3)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestNearestChunks_NoChunks(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	results, err := backend.NearestChunks(context.Background(), []float32{0.1, 0.2, 0.3}, core.Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNearestChunks_RanksByDistance(t *testing.T) {
	chunkRepo, auditRepo, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		auditRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	_, err = chunkRepo.UpsertChunks(ctx,
		testChunk("far", 0, 1, "cooking recipes", []float32{0, 0, 1}, 2020, core.SourceOpenAlex),
		testChunk("near", 0, 1, "edge computing", []float32{1, 0, 0}, 2021, core.SourceArxiv),
		testChunk("mid", 0, 1, "fog computing", []float32{0.8, 0.2, 0}, 2019, core.SourceArxiv),
		testChunk("novec", 0, 1, "no embedding yet", nil, 2021, core.SourceArxiv),
		testChunk("twin", 0, 1, "edge computing again", []float32{1, 0, 0}, 2022, core.SourceArxiv),
	)
	require.NoError(t, err)

	t.Run("closest first with insertion order on ties", func(t *testing.T) {
		results, err := backend.NearestChunks(ctx, []float32{1, 0, 0}, core.Filter{}, 10)
		require.NoError(t, err)
		require.Len(t, results, 4)
		assert.Equal(t, core.ChunkID("near", 0), results[0].Chunk.ID)
		assert.Equal(t, core.ChunkID("twin", 0), results[1].Chunk.ID)
		assert.Equal(t, core.ChunkID("mid", 0), results[2].Chunk.ID)
		assert.Equal(t, core.ChunkID("far", 0), results[3].Chunk.ID)
		assert.Zero(t, results[0].Distance)
		assert.InDelta(t, 0.08, results[2].Distance, 1e-6)
	})

	t.Run("limit truncates", func(t *testing.T) {
		results, err := backend.NearestChunks(ctx, []float32{1, 0, 0}, core.Filter{}, 2)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("filter applied without padding", func(t *testing.T) {
		results, err := backend.NearestChunks(ctx, []float32{1, 0, 0}, core.Filter{MinYear: 2021, Source: core.SourceArxiv}, 10)
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, r := range results {
			assert.GreaterOrEqual(t, r.Chunk.Metadata.Year, 2021)
			assert.Equal(t, core.SourceArxiv, r.Chunk.Metadata.Source)
		}
	})

	t.Run("dimension mismatch skipped", func(t *testing.T) {
		results, err := backend.NearestChunks(ctx, []float32{1, 0}, core.Filter{}, 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func testChunk(baseID string, index, total int, text string, vector []float32, year int, source string) *core.Chunk {
	return &core.Chunk{
		ID:     core.ChunkID(baseID, index),
		Text:   text,
		Vector: vector,
		Metadata: core.ChunkMetadata{
			Title:       baseID,
			Year:        year,
			Source:      source,
			BaseID:      baseID,
			ChunkIndex:  index,
			TotalChunks: total,
		},
	}
}
