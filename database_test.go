package litreview

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/litreview/ai/mock"
	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/ingestion"
	"github.com/poiesic/litreview/loop"
)

func newTestDatabase(t *testing.T, generator *mock.MockGenerator) *Database {
	t.Helper()
	if generator == nil {
		generator = mock.NewMockGenerator()
	}
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), generator)
	db, err := NewDatabase("", WithInMemory(), WithProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func ingestCorpus(t *testing.T, db *Database) {
	t.Helper()
	pipeline, err := db.NewIngestionPipeline()
	require.NoError(t, err)
	defer pipeline.Release()

	_, err = pipeline.Ingest(context.Background(),
		ingestion.Document{BaseID: "a", Text: "edge computing reduces latency", Metadata: core.ChunkMetadata{Year: 2022, Source: core.SourceArxiv}},
		ingestion.Document{BaseID: "b", Text: "cloud computing centralizes resources", Metadata: core.ChunkMetadata{Year: 2019, Source: core.SourceOpenAlex}},
		ingestion.Document{BaseID: "c", Text: "edge devices run edge computing inference", Metadata: core.ChunkMetadata{Year: 2023, Source: core.SourceArxiv}},
	)
	require.NoError(t, err)
}

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(tmpDir, WithProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		assert.NotNil(t, db.ChunkRepository())
		assert.NotNil(t, db.AuditRepository())
		assert.NotNil(t, db.Provider())
		assert.False(t, db.SparseIndex().Built())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

		db, err := NewDatabase(tmpFile, WithProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("close", func(t *testing.T) {
		db, err := NewDatabase(t.TempDir(), WithProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		assert.NoError(t, db.Close())
	})
}

func TestDatabase_IngestThenRetrieve(t *testing.T) {
	db := newTestDatabase(t, nil)
	ctx := context.Background()
	ingestCorpus(t, db)

	assert.True(t, db.SparseIndex().Built(), "ingestion rebuilds the sparse index")
	assert.Equal(t, 3, db.SparseIndex().Size())

	results, err := db.Retrieve(ctx, core.RetrievalQuery{Text: "edge computing", Limit: 2, Strategy: core.StrategySparse})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c_chunk_0", results[0].ChunkID)
	assert.Equal(t, "a_chunk_0", results[1].ChunkID)

	t.Run("hybrid with filter", func(t *testing.T) {
		results, err := db.Retrieve(ctx, core.RetrievalQuery{
			Text: "edge computing", Limit: 5, Strategy: core.StrategyHybrid, HybridWeight: 0.5, MinYear: 2023,
		})
		require.NoError(t, err)
		require.NotEmpty(t, results)
		for _, r := range results {
			assert.GreaterOrEqual(t, r.Chunk.Metadata.Year, 2023)
		}
	})
}

func TestDatabase_LazySparseBuild(t *testing.T) {
	db := newTestDatabase(t, nil)
	ctx := context.Background()

	_, err := db.ChunkRepository().UpsertChunks(ctx, &core.Chunk{
		ID:       core.ChunkID("x", 0),
		Text:     "graph neural networks",
		Metadata: core.ChunkMetadata{BaseID: "x", TotalChunks: 1},
	})
	require.NoError(t, err)
	require.False(t, db.SparseIndex().Built())

	results, err := db.Retrieve(ctx, core.RetrievalQuery{Text: "graph", Limit: 3, Strategy: core.StrategySparse})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, db.SparseIndex().Built())
}

func TestDatabase_EmptyCorpus(t *testing.T) {
	db := newTestDatabase(t, nil)

	for _, strategy := range []core.Strategy{core.StrategyDense, core.StrategySparse, core.StrategyHybrid} {
		results, err := db.Retrieve(context.Background(), core.RetrievalQuery{Text: "anything", Limit: 3, Strategy: strategy, HybridWeight: 0.5})
		require.NoError(t, err, strategy)
		assert.Empty(t, results, strategy)
	}
}

func TestDatabase_NewRunner(t *testing.T) {
	draft := strings.Repeat("Edge computing moves inference close to the data source [1]. ", 4)
	generator := mock.NewMockGenerator(
		draft,
		"OVERALL_SCORE: 6.0\nSUMMARY: needs more sources",
		draft+"Revised with more evidence.",
		"OVERALL_SCORE: 8.5\nSUMMARY: good",
	)
	db := newTestDatabase(t, generator)
	ingestCorpus(t, db)

	runner, err := db.NewRunner(RunnerOptions{
		Runner: []loop.Option{loop.WithConfig(loop.NewConfig(loop.WithTargetScore(8), loop.WithMaxIterations(3)))},
	})
	require.NoError(t, err)

	ctx := context.Background()
	outcome, err := runner.Run(ctx, "edge computing")
	require.NoError(t, err)
	assert.True(t, outcome.Succeeded())
	assert.Equal(t, 1, outcome.Iteration)
	assert.Equal(t, 8.5, outcome.Score)

	records, err := db.AuditRepository().ListAuditRecords(ctx, outcome.RunID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, core.DecisionRevise, records[0].Decision)
	assert.Equal(t, core.DecisionFinalizeSuccess, records[1].Decision)

	calls := generator.Calls()
	require.Len(t, calls, 4)
	assert.Contains(t, calls[0].Prompt, "edge devices run edge computing inference")
}
