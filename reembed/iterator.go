package reembed

import (
	"context"

	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/storage"
)

// DefaultBatchSize is the default number of chunks loaded per batch.
const DefaultBatchSize = 100

// ChunkIterator walks the corpus in insertion order, one batch at a time.
type ChunkIterator struct {
	repo      storage.ChunkRepository
	batchSize int
}

// NewChunkIterator creates an iterator. A non-positive batchSize uses DefaultBatchSize.
func NewChunkIterator(repo storage.ChunkRepository, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ChunkIterator{repo: repo, batchSize: batchSize}
}

// IDs returns every chunk id in insertion order.
func (it *ChunkIterator) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := it.repo.ScanChunks(ctx, func(c *core.Chunk) error {
		ids = append(ids, c.ID)
		return nil
	})
	return ids, err
}

// ForEach loads the chunks named by ids in batches and calls fn for each batch.
// Ids that disappeared since they were listed are skipped. Iteration stops on
// the first error from fn or when ctx is done.
func (it *ChunkIterator) ForEach(ctx context.Context, ids []string, fn func([]*core.Chunk) error) error {
	for start := 0; start < len(ids); start += it.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := it.repo.GetChunks(ctx, ids[start:min(start+it.batchSize, len(ids))]...)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			continue
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}
