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

// Package search provides the fusion ranker that answers retrieval queries.
//
// A Retriever delegates dense and sparse queries to the matching index and,
// for hybrid queries, runs both passes concurrently over an oversampled
// candidate set, merges them by chunk id and ranks them by a weighted
// combination of the normalized dense score and the reciprocal sparse rank.
// Equal combined scores are ordered by dense rank, then sparse rank, then
// corpus insertion order, so repeated queries always return the same list.
//
// An index with nothing to search contributes no results rather than
// failing the query.
package search
