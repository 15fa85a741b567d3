// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"

	"github.com/poiesic/litreview/core"
)

// Repository is the base interface for storage backends.
type Repository interface {
	// Close releases resources held by the repository.
	Close() error
}

// ChunkNeighbor is a chunk paired with its distance from a query vector.
// Smaller distances mean more similar chunks.
type ChunkNeighbor struct {
	Chunk    *core.Chunk
	Distance float64
}

// ChunkRepository provides operations for managing the chunk corpus.
type ChunkRepository interface {
	Repository

	// UpsertChunks validates and stores chunks keyed by their deterministic id.
	// Storing an id that already exists replaces its content but keeps the
	// original Ordinal and InsertedAt, so corpus insertion order is stable.
	// Returns the chunks with Ordinal and timestamps populated.
	UpsertChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// GetChunk retrieves a single chunk by id.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id string) (*core.Chunk, error)

	// GetChunks retrieves multiple chunks by id, in the order requested.
	// Returns only the chunks that exist (no error for missing chunks).
	GetChunks(ctx context.Context, ids ...string) ([]*core.Chunk, error)

	// GetChunksByBase retrieves every chunk of one source document ordered by chunk index.
	GetChunksByBase(ctx context.Context, baseID string) ([]*core.Chunk, error)

	// DeleteChunks removes chunks and their indices.
	// Returns ErrNotFound if any chunk doesn't exist.
	DeleteChunks(ctx context.Context, ids ...string) error

	// ScanChunks calls fn for every chunk in corpus insertion order.
	// Iteration stops at the first error returned by fn.
	ScanChunks(ctx context.Context, fn func(*core.Chunk) error) error

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)

	// NearestChunks returns up to limit embedded chunks satisfying filter,
	// ordered by squared Euclidean distance to vector (ascending), ties broken
	// by insertion order. Fewer than limit results are returned rather than
	// padding with non-matching chunks.
	NearestChunks(ctx context.Context, vector []float32, filter core.Filter, limit int) ([]ChunkNeighbor, error)
}

// AuditRepository is the append-only log of convergence loop iterations.
type AuditRepository interface {
	Repository

	// AppendAuditRecord stores one record per (run, iteration).
	// Returns ErrDuplicateKey if a record for that iteration already exists;
	// records are never overwritten.
	AppendAuditRecord(ctx context.Context, record *core.AuditRecord) error

	// ListAuditRecords returns the records of one run ordered by iteration.
	ListAuditRecords(ctx context.Context, runID string) ([]*core.AuditRecord, error)

	// ListRuns returns the ids of every run with at least one record.
	ListRuns(ctx context.Context) ([]string, error)
}
