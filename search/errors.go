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

package search

import "errors"

var (
	// ErrIndexRequired is returned when neither a dense nor a sparse index is provided.
	ErrIndexRequired = errors.New("at least one index required")

	// ErrInvalidOversample is returned for an oversample factor below 1.
	ErrInvalidOversample = errors.New("oversample factor must be at least 1")

	// ErrInvalidMaxLimit is returned for a result cap below 1.
	ErrInvalidMaxLimit = errors.New("max limit must be at least 1")
)
