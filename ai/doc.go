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

// Package ai provides abstractions for the model services the review pipeline uses.
//
// Two capabilities are needed: Embedder turns text into vectors for dense
// retrieval, and Generator turns a system instruction plus a prompt into
// text. Generator serves both the writer that drafts a review and the
// evaluator that scores it. AIProvider bundles the two for lifecycle
// management.
//
// # Implementation Packages
//
//   - ai/openai: production clients for OpenAI-compatible APIs
//   - ai/mock: deterministic test doubles
//
// Production constructors return interfaces. Mock constructors return
// concrete types so tests can script responses and inspect calls:
//
//	gen := mock.NewMockGenerator("draft one", "draft two")
//	text, _ := gen.Generate(ctx, "system", "prompt")
//	calls := gen.Calls()
package ai
