package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/litreview/ai"
	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/storage"
)

var (
	// ErrRepositoryRequired is returned when a chunk repository is not provided.
	ErrRepositoryRequired = errors.New("chunk repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")
)

// DenseHit is one nearest-neighbor match.
type DenseHit struct {
	Chunk *core.Chunk
	// Distance is the squared Euclidean distance to the query vector.
	Distance float64
}

// Dense answers similarity queries by embedding the query text and asking
// the chunk store for its nearest vectors.
type Dense struct {
	repo     storage.ChunkRepository
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewDense creates a dense index over repo.
func NewDense(repo storage.ChunkRepository, embedder ai.Embedder, opts ...Option) (*Dense, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	o, err := applyOptions("dense-index", opts)
	if err != nil {
		return nil, err
	}
	return &Dense{repo: repo, embedder: embedder, logger: o.logger}, nil
}

// Search returns up to limit chunks matching filter, closest first.
// Returns core.ErrIndexUnavailable when the corpus is empty.
func (d *Dense) Search(ctx context.Context, text string, limit int, filter core.Filter) ([]DenseHit, error) {
	count, err := d.repo.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: dense corpus is empty", core.ErrIndexUnavailable)
	}

	vector, err := d.embedder.EmbedText(ctx, text)
	if err != nil {
		d.logger.Error("error generating embedding for query", "err", err)
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: embedder returned an empty vector", core.ErrIndexUnavailable)
	}

	neighbors, err := d.repo.NearestChunks(ctx, vector, filter, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]DenseHit, len(neighbors))
	for i, n := range neighbors {
		hits[i] = DenseHit{Chunk: n.Chunk, Distance: n.Distance}
	}
	d.logger.Debug("dense search complete", "hits", len(hits), "limit", limit)
	return hits, nil
}
