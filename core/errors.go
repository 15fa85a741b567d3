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
	"errors"
	"fmt"
)

// Error taxonomy shared by the retrieval engine and the convergence loop.
var (
	// ErrIndexUnavailable indicates an index holds no data or has not been built.
	// Callers treat it as "no results".
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrEvaluationParse indicates a scoring response could not be parsed into the rubric.
	ErrEvaluationParse = errors.New("evaluation parse failure")

	// ErrProducerFailure indicates the artifact producer returned empty or too-short output.
	ErrProducerFailure = errors.New("producer failure")

	// ErrConfiguration indicates invalid parameters rejected at a component boundary.
	ErrConfiguration = errors.New("configuration error")
)

// Configuration details, always wrapped by ErrConfiguration.
var (
	// ErrEmptyQuery indicates the query text is empty.
	ErrEmptyQuery = errors.New("query text cannot be empty")

	// ErrInvalidLimit indicates a non-positive result limit.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrInvalidStrategy indicates an unknown retrieval strategy.
	ErrInvalidStrategy = errors.New("unknown retrieval strategy")

	// ErrInvalidHybridWeight indicates a hybrid weight outside [0,1].
	ErrInvalidHybridWeight = errors.New("hybrid weight must be within [0,1]")

	// ErrInvalidTargetScore indicates a target score outside [0,10].
	ErrInvalidTargetScore = errors.New("target score must be within [0,10]")

	// ErrInvalidMaxIterations indicates a negative iteration budget.
	ErrInvalidMaxIterations = errors.New("max iterations cannot be negative")
)

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyContent indicates the chunk text is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyBaseID indicates the chunk has no base id.
	ErrEmptyBaseID = errors.New("base id cannot be empty")

	// ErrChunkIndexRange indicates chunk_index is not below total_chunks.
	ErrChunkIndexRange = errors.New("chunk index out of range")

	// ErrChunkIDMismatch indicates the id was not derived from base id and index.
	ErrChunkIDMismatch = errors.New("chunk id does not match base id and index")
)

// NewConfigurationError wraps detail with ErrConfiguration and a formatted context message.
func NewConfigurationError(detail error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrConfiguration, detail, fmt.Sprintf(format, args...))
}
