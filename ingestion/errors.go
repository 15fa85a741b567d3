package ingestion

import "errors"

var (
	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidChunking is returned when chunk size or overlap cannot produce chunks.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrEmbeddingMismatch is returned when the embedder returns a different number of vectors than texts.
	ErrEmbeddingMismatch = errors.New("embedding result mismatch")

	// ErrFileIngesterRequired is returned when a watcher has nothing to ingest files with.
	ErrFileIngesterRequired = errors.New("file ingester required")

	// ErrWatcherClosed is returned by Watcher.Run after Close.
	ErrWatcherClosed = errors.New("watcher closed")

	// ErrInvalidPublications is returned when a publication file cannot be decoded.
	ErrInvalidPublications = errors.New("invalid publication list")
)
