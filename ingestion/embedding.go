package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/litreview/ai"
	"github.com/poiesic/litreview/core"
)

// embeddingProcessor fills in the vectors of a batch of chunks.
type embeddingProcessor struct {
	embedder ai.Embedder
	logger   *slog.Logger
}

func newEmbeddingProcessor(embedder ai.Embedder, logger *slog.Logger) (*embeddingProcessor, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		embedder: embedder,
		logger:   logger.With("processor", "embeddings"),
	}, nil
}

// process embeds the text of every chunk and stores the vector on the chunk.
func (ep *embeddingProcessor) process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	ep.logger.Debug("generating embeddings for chunks", "chunks", len(texts))
	embeddings, err := ep.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return err
	}

	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(chunks), len(embeddings))
	}

	for i := range embeddings {
		chunks[i].Vector = embeddings[i]
	}
	return nil
}
