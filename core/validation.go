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

package core

import (
	"fmt"
	"math"
	"strings"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - BaseID must not be empty
//   - 0 <= ChunkIndex < TotalChunks
//   - ID must equal ChunkID(BaseID, ChunkIndex)
//
// NOT validated (populated later):
//   - Vector (can be empty until embedded)
//   - Ordinal and timestamps (assigned by the store)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if strings.TrimSpace(chunk.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	meta := chunk.Metadata
	if meta.BaseID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyBaseID)
	}

	if meta.ChunkIndex < 0 || meta.ChunkIndex >= meta.TotalChunks {
		return fmt.Errorf("%w: %w: index %d of %d", ErrInvalidChunk, ErrChunkIndexRange,
			meta.ChunkIndex, meta.TotalChunks)
	}

	if want := ChunkID(meta.BaseID, meta.ChunkIndex); chunk.ID != want {
		return fmt.Errorf("%w: %w: got %q, want %q", ErrInvalidChunk, ErrChunkIDMismatch, chunk.ID, want)
	}

	return nil
}

// ValidateQuery rejects malformed retrieval queries before any index is touched.
// Limits above the engine cap are not an error; the ranker clamps them.
func ValidateQuery(q RetrievalQuery) error {
	if strings.TrimSpace(q.Text) == "" {
		return NewConfigurationError(ErrEmptyQuery, "query %q", q.Text)
	}
	if q.Limit <= 0 {
		return NewConfigurationError(ErrInvalidLimit, "limit %d", q.Limit)
	}
	switch q.Strategy {
	case StrategyDense, StrategySparse, StrategyHybrid:
	default:
		return NewConfigurationError(ErrInvalidStrategy, "strategy %q", q.Strategy)
	}
	if math.IsNaN(q.HybridWeight) || q.HybridWeight < 0 || q.HybridWeight > 1 {
		return NewConfigurationError(ErrInvalidHybridWeight, "weight %v", q.HybridWeight)
	}
	return nil
}

// ValidateTargetScore checks that a loop target lies on the 0-10 rubric scale.
func ValidateTargetScore(target float64) error {
	if math.IsNaN(target) || target < MinScore || target > MaxScore {
		return NewConfigurationError(ErrInvalidTargetScore, "target %v", target)
	}
	return nil
}

// ValidateMaxIterations checks an iteration budget.
func ValidateMaxIterations(n int) error {
	if n < 0 {
		return NewConfigurationError(ErrInvalidMaxIterations, "max iterations %d", n)
	}
	return nil
}
