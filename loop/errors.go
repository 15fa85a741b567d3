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

package loop

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a transition is applied in the wrong phase.
	ErrInvalidTransition = errors.New("invalid loop transition")

	// ErrProducerRequired is returned when a runner is created without a producer.
	ErrProducerRequired = errors.New("producer required")

	// ErrEvaluatorRequired is returned when a runner is created without an evaluator.
	ErrEvaluatorRequired = errors.New("evaluator required")
)

// RunError is a fatal loop failure. It carries the iteration that failed and
// the last good state so callers can inspect or resume from it.
type RunError struct {
	Iteration int
	State     State
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s iteration %d (%s): %v", e.State.RunID, e.Iteration, e.State.Phase, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
