package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend    *Backend
	ordinalSeq *badger.Sequence
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	ordinalSeq, err := backend.GetSequence(chunkOrdinalSeq)
	if err != nil {
		return nil, err
	}

	return &ChunkRepository{
		backend:    backend,
		ordinalSeq: ordinalSeq,
	}, nil
}

// Close releases the ordinal sequence.
func (r *ChunkRepository) Close() error {
	return r.ordinalSeq.Release()
}

// NearestChunks delegates to the backend.
func (r *ChunkRepository) NearestChunks(ctx context.Context, vector []float32, filter core.Filter, limit int) ([]storage.ChunkNeighbor, error) {
	return r.backend.NearestChunks(ctx, vector, filter, limit)
}

// UpsertChunks stores chunks under their deterministic ids.
func (r *ChunkRepository) UpsertChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC().Truncate(time.Microsecond)
		for _, chunk := range chunks {
			key := makeChunkKey(chunk.ID)

			existing, err := readChunk(tx, key)
			if err != nil {
				return err
			}

			if existing != nil {
				chunk.Ordinal = existing.Ordinal
				chunk.InsertedAt = existing.InsertedAt
			} else {
				ordinal, err := r.nextOrdinal()
				if err != nil {
					return err
				}
				chunk.Ordinal = ordinal
				chunk.InsertedAt = now

				if err := tx.Set(makeChunkOrdinalKey(ordinal), storage.MarshalString(chunk.ID)); err != nil {
					return err
				}
				baseKey := makeChunkBaseKey(chunk.Metadata.BaseID, chunk.Metadata.ChunkIndex)
				if err := tx.Set(baseKey, storage.MarshalString(chunk.ID)); err != nil {
					return err
				}
			}

			chunk.Digest = core.DigestOf(chunk.Text)
			chunk.UpdatedAt = now

			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return chunks, nil
}

// GetChunk retrieves a single chunk by id.
func (r *ChunkRepository) GetChunk(ctx context.Context, id string) (*core.Chunk, error) {
	var result *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readChunk(tx, makeChunkKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetChunks retrieves multiple chunks by id.
func (r *ChunkRepository) GetChunks(ctx context.Context, ids ...string) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, err := readChunk(tx, makeChunkKey(id))
			if err != nil {
				return err
			}
			if chunk != nil {
				result = append(result, chunk)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetChunksByBase retrieves every chunk of one document ordered by chunk index.
func (r *ChunkRepository) GetChunksByBase(ctx context.Context, baseID string) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialChunkBaseKey(baseID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			chunk, err := resolveIndexEntry(tx, iter.Item())
			if err != nil {
				return err
			}
			if chunk != nil {
				result = append(result, chunk)
			}
		}
		return nil
	}, false)
	return result, err
}

// DeleteChunks removes chunks and their index entries.
func (r *ChunkRepository) DeleteChunks(ctx context.Context, ids ...string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeChunkKey(id)

			chunk, err := readChunk(tx, key)
			if err != nil {
				return err
			}
			if chunk == nil {
				return storage.ErrNotFound
			}

			if err := tx.Delete(makeChunkOrdinalKey(chunk.Ordinal)); err != nil {
				return err
			}
			if err := tx.Delete(makeChunkBaseKey(chunk.Metadata.BaseID, chunk.Metadata.ChunkIndex)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ScanChunks walks the insertion-order index and calls fn for each chunk.
func (r *ChunkRepository) ScanChunks(ctx context.Context, fn func(*core.Chunk) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = chunkOrdinalKeyPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			chunk, err := resolveIndexEntry(tx, iter.Item())
			if err != nil {
				return err
			}
			if chunk == nil {
				continue
			}
			if err := fn(chunk); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// CountChunks counts entries in the insertion-order index.
func (r *ChunkRepository) CountChunks(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = chunkOrdinalKeyPrefix()
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Helper methods

// nextOrdinal draws the next insertion ordinal. Sequences can return 0 on
// first call, so 0 is skipped and never used as an ordinal.
func (r *ChunkRepository) nextOrdinal() (uint64, error) {
	next, err := r.ordinalSeq.Next()
	if err != nil {
		return 0, err
	}
	if next == 0 {
		return r.ordinalSeq.Next()
	}
	return next, nil
}

// readChunk reads a chunk from the transaction. A missing key yields nil, nil.
func readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		chunk, unmarshalErr = storage.UnmarshalChunk(val)
		return unmarshalErr
	})
	return chunk, err
}

// resolveIndexEntry follows a secondary index entry to its chunk.
func resolveIndexEntry(tx *badger.Txn, item *badger.Item) (*core.Chunk, error) {
	var id string
	err := item.Value(func(val []byte) error {
		var err error
		id, err = storage.UnmarshalString(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return readChunk(tx, makeChunkKey(id))
}
