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

// Package loop implements the evaluator-optimizer convergence loop.
//
// A run alternates between producing an artifact, scoring it and deciding
// what to do next:
//
//	produce -> evaluate -> decide -> (revise -> produce | finalize)
//
// Decide finalizes with success once the score reaches the target, finalizes
// with the best effort result once the iteration budget is spent, and
// otherwise starts the next iteration. A run therefore makes at most
// MaxIterations+1 producer and evaluator calls.
//
// State is a plain value. Produced, Evaluated and Decide return a new State
// and never modify their receiver, which makes every transition testable in
// isolation. Runner.Step performs one phase against the collaborators;
// Runner.Run loops Step to completion and appends one audit record per
// iteration.
//
// # Failures
//
// Evaluation never fails a run: the evaluator substitutes a fallback score.
// A producer error, or an artifact shorter than MinArtifactLength, aborts the
// run with a *RunError wrapping core.ErrProducerFailure. The audit log still
// receives a producer_failure record for that iteration.
package loop
