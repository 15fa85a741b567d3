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

// Package storage provides the storage abstraction layer for litreview.
//
// This package defines repository interfaces that decouple the chunk corpus
// and the convergence audit log from their backend. The BadgerDB
// implementation lives in storage/badger.
//
// # Architecture
//
//   - ChunkRepository: the Chunk Store. Upsert by deterministic id, lookup,
//     insertion-order scan, and the nearest-neighbour scan behind the dense index.
//   - AuditRepository: append-only per-iteration records of loop runs.
//
// Values are encoded with hand-written MUS serializers for chunks and
// audit records, built on mus-go's varint and ord packages.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	chunks, err := badger.NewChunkRepository(backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stored, err := chunks.UpsertChunks(ctx, chunk)
//
// Use in tests with in-memory storage:
//
//	chunks, audit, backend, err := badger.NewMemoryRepositories()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
