package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/litreview/ai"
	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/storage"
)

// BatchProcessor embeds a batch of chunks and writes the new vectors back.
type BatchProcessor struct {
	repo           storage.ChunkRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(repo storage.ChunkRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process re-embeds the chunks and upserts them. Text, digest and ordinal are untouched.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var vectors [][]float32
	err := ai.RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("embedding %d chunks failed after %d attempts: %w", len(chunks), bp.maxRetries, err)
	}

	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCount, len(chunks), len(vectors))
	}

	for i, c := range chunks {
		c.Vector = vectors[i]
	}

	if _, err := bp.repo.UpsertChunks(ctx, chunks...); err != nil {
		return fmt.Errorf("storing re-embedded chunks: %w", err)
	}
	return nil
}
