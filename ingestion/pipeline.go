package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/poiesic/litreview/ai"
	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/storage"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the number of characters shared by neighbouring chunks.
	DefaultChunkOverlap = 200

	// DefaultBatchSize is the number of chunks sent to the embedder per request.
	DefaultBatchSize = 32
)

var separators = []string{"\n\n", "\n", " ", ""}

// Document is one source document handed to the pipeline.
// Metadata.BaseID, ChunkIndex and TotalChunks are assigned by the pipeline.
type Document struct {
	BaseID   string
	Text     string
	Metadata core.ChunkMetadata
}

// Rebuilder rebuilds a derived index after the corpus changes.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// Stats summarizes one ingestion call.
type Stats struct {
	Documents int // Documents that produced at least one chunk
	Chunks    int // Chunks stored
	Embedded  int // Chunks sent to the embedder
	Reused    int // Chunks whose text was unchanged and kept their vector
	Removed   int // Stale chunks deleted because a document got shorter
}

// Pipeline splits documents into chunks, embeds them and stores them.
type Pipeline struct {
	repository    storage.ChunkRepository
	embeddingProc *embeddingProcessor
	pool          *ants.Pool
	splitter      textsplitter.RecursiveCharacter
	poolSize      int
	batchSize     int
	chunkSize     int
	chunkOverlap  int
	rebuilder     Rebuilder
	logger        *slog.Logger

	// mu serializes Ingest calls.
	mu sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.poolSize = size
		return nil
	}
}

// WithBatchSize sets how many chunks are embedded per request.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithChunking sets the chunk size and overlap in characters.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) error {
		if size < 1 || overlap < 0 || overlap >= size {
			return fmt.Errorf("%w: size %d, overlap %d", ErrInvalidChunking, size, overlap)
		}
		p.chunkSize = size
		p.chunkOverlap = overlap
		return nil
	}
}

// WithRebuilder registers an index to rebuild after every successful ingestion.
func WithRebuilder(r Rebuilder) Option {
	return func(p *Pipeline) error {
		p.rebuilder = r
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(repository storage.ChunkRepository, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	p := &Pipeline{
		repository:   repository,
		poolSize:     poolSize,
		batchSize:    DefaultBatchSize,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	embeddingProc, err := newEmbeddingProcessor(embedder, p.logger)
	if err != nil {
		return nil, err
	}
	p.embeddingProc = embeddingProc

	pool, err := ants.NewPool(p.poolSize)
	if err != nil {
		return nil, err
	}
	p.pool = pool

	p.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(p.chunkSize),
		textsplitter.WithChunkOverlap(p.chunkOverlap),
		textsplitter.WithSeparators(separators),
	)

	return p, nil
}

// Ingest splits, embeds and stores documents. Chunk ids are derived from the
// document base id and chunk position, so ingesting the same document again
// replaces its chunks instead of duplicating them. Chunks whose text did not
// change keep their stored vector. When a document now yields fewer chunks
// than before, the surplus chunks are deleted, and a document whose text is
// now empty loses all of its chunks.
func (p *Pipeline) Ingest(ctx context.Context, docs ...Document) (Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var stats Stats

	docs, err := p.dedupe(docs)
	if err != nil {
		return stats, err
	}

	var chunks []*core.Chunk
	counts := make(map[string]int, len(docs))
	for _, doc := range docs {
		docChunks, err := p.split(doc)
		if err != nil {
			return stats, fmt.Errorf("split %s: %w", doc.BaseID, err)
		}
		counts[doc.BaseID] = len(docChunks)
		if len(docChunks) == 0 {
			p.logger.Warn("document produced no chunks", "base_id", doc.BaseID)
			continue
		}
		chunks = append(chunks, docChunks...)
		stats.Documents++
	}

	if len(chunks) > 0 {
		pending, err := p.reuseVectors(ctx, chunks)
		if err != nil {
			return stats, err
		}
		stats.Reused = len(chunks) - len(pending)

		if err := p.embed(ctx, pending); err != nil {
			return stats, err
		}
		stats.Embedded = len(pending)

		stored, err := p.repository.UpsertChunks(ctx, chunks...)
		if err != nil {
			return stats, err
		}
		stats.Chunks = len(stored)
	}

	removed, err := p.removeStale(ctx, counts)
	if err != nil {
		return stats, err
	}
	stats.Removed = removed
	if stats.Chunks == 0 && removed == 0 {
		return stats, nil
	}

	p.logger.Info("ingested documents",
		"documents", stats.Documents,
		"chunks", stats.Chunks,
		"embedded", stats.Embedded,
		"reused", stats.Reused,
		"removed", stats.Removed)

	if p.rebuilder != nil {
		if err := p.rebuilder.Rebuild(ctx); err != nil {
			return stats, fmt.Errorf("rebuild index: %w", err)
		}
	}
	return stats, nil
}

// IngestPublications ingests a publication list.
func (p *Pipeline) IngestPublications(ctx context.Context, pubs []Publication) (Stats, error) {
	return p.Ingest(ctx, Documents(pubs)...)
}

// IngestFile loads a publication list from disk and ingests it.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (Stats, error) {
	pubs, err := LoadPublicationsFile(path)
	if err != nil {
		return Stats{}, err
	}
	p.logger.Info("loaded publications", "path", path, "publications", len(pubs))
	return p.IngestPublications(ctx, pubs)
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// dedupe keeps the last document for every base id.
func (p *Pipeline) dedupe(docs []Document) ([]Document, error) {
	seen := make(map[string]int, len(docs))
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if doc.BaseID == "" {
			doc.BaseID = doc.Metadata.BaseID
		}
		if doc.BaseID == "" {
			return nil, fmt.Errorf("%w: %w", core.ErrInvalidChunk, core.ErrEmptyBaseID)
		}
		if i, ok := seen[doc.BaseID]; ok {
			p.logger.Warn("duplicate document in batch, keeping the last one", "base_id", doc.BaseID)
			out[i] = doc
			continue
		}
		seen[doc.BaseID] = len(out)
		out = append(out, doc)
	}
	return out, nil
}

func (p *Pipeline) split(doc Document) ([]*core.Chunk, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, nil
	}

	parts, err := p.splitter.SplitText(doc.Text)
	if err != nil {
		return nil, err
	}

	texts := parts[:0]
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			texts = append(texts, part)
		}
	}

	chunks := make([]*core.Chunk, len(texts))
	for i, text := range texts {
		meta := doc.Metadata
		meta.BaseID = doc.BaseID
		meta.ChunkIndex = i
		meta.TotalChunks = len(texts)
		meta.Extra = maps.Clone(doc.Metadata.Extra)

		chunks[i] = &core.Chunk{
			ID:       core.ChunkID(doc.BaseID, i),
			Text:     text,
			Metadata: meta,
			Digest:   core.DigestOf(text),
		}
	}
	return chunks, nil
}

// reuseVectors copies stored vectors onto chunks whose text is unchanged and
// returns the chunks that still need embedding.
func (p *Pipeline) reuseVectors(ctx context.Context, chunks []*core.Chunk) ([]*core.Chunk, error) {
	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.ID
	}

	existing, err := p.repository.GetChunks(ctx, ids...)
	if err != nil {
		return nil, err
	}
	stored := make(map[string]*core.Chunk, len(existing))
	for _, chunk := range existing {
		stored[chunk.ID] = chunk
	}

	var pending []*core.Chunk
	for _, chunk := range chunks {
		if prev, ok := stored[chunk.ID]; ok && prev.Digest == chunk.Digest && len(prev.Vector) > 0 {
			chunk.Vector = prev.Vector
			continue
		}
		pending = append(pending, chunk)
	}
	return pending, nil
}

// embed runs batches of chunks through the embedder on the worker pool.
func (p *Pipeline) embed(ctx context.Context, chunks []*core.Chunk) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for start := 0; start < len(chunks); start += p.batchSize {
		batch := chunks[start:min(start+p.batchSize, len(chunks))]
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if err := p.embeddingProc.process(ctx, batch); err != nil {
				record(err)
			}
		})
		if err != nil {
			wg.Done()
			record(err)
			break
		}
	}
	wg.Wait()

	return errors.Join(errs...)
}

// removeStale deletes chunks beyond the new chunk count of each document.
func (p *Pipeline) removeStale(ctx context.Context, counts map[string]int) (int, error) {
	var stale []string
	for baseID, count := range counts {
		chunks, err := p.repository.GetChunksByBase(ctx, baseID)
		if err != nil {
			return 0, err
		}
		for _, chunk := range chunks {
			if chunk.Metadata.ChunkIndex >= count {
				stale = append(stale, chunk.ID)
			}
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := p.repository.DeleteChunks(ctx, stale...); err != nil {
		return 0, err
	}
	return len(stale), nil
}
