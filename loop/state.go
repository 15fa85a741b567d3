package loop

import (
	"fmt"
	"maps"

	"github.com/poiesic/litreview/core"
)

// Phase is the step a run will perform next.
type Phase int

const (
	PhaseProduce Phase = iota
	PhaseEvaluate
	PhaseDecide
	PhaseFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseProduce:
		return "produce"
	case PhaseEvaluate:
		return "evaluate"
	case PhaseDecide:
		return "decide"
	case PhaseFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Termination records why a finalized run stopped.
type Termination int

const (
	TerminationNone Termination = iota
	TerminationSuccess
	TerminationBudgetExhausted
)

func (t Termination) String() string {
	switch t {
	case TerminationNone:
		return "none"
	case TerminationSuccess:
		return "success"
	case TerminationBudgetExhausted:
		return "budget_exhausted"
	default:
		return fmt.Sprintf("termination(%d)", int(t))
	}
}

// State is the complete, copyable state of one run.
// Transitions return a new State and leave the receiver untouched.
type State struct {
	RunID         string
	Topic         string
	TargetScore   float64
	MaxIterations int

	Iteration   int
	Phase       Phase
	Artifact    string
	Assessment  core.QualityAssessment
	Termination Termination
}

// NewState returns the initial state: iteration 0, about to produce, empty
// artifact and a zero-score assessment.
func NewState(runID, topic string, cfg Config) State {
	return State{
		RunID:         runID,
		Topic:         topic,
		TargetScore:   cfg.TargetScore,
		MaxIterations: cfg.MaxIterations,
		Phase:         PhaseProduce,
	}
}

// Done reports whether the run has been finalized.
func (s State) Done() bool {
	return s.Phase == PhaseFinalized
}

// Request builds the producer input. On revisions it carries the previous
// artifact, its score and the evaluator feedback.
func (s State) Request() ProduceRequest {
	req := ProduceRequest{
		Topic:       s.Topic,
		Iteration:   s.Iteration,
		TargetScore: s.TargetScore,
	}
	if s.Iteration > 0 {
		req.PreviousArtifact = s.Artifact
		req.PreviousScore = s.Assessment.Score
		req.Feedback = s.Assessment.Feedback
	}
	return req
}

// Produced stores a freshly produced artifact and moves to evaluation.
func (s State) Produced(artifact string) (State, error) {
	if s.Phase != PhaseProduce {
		return s, fmt.Errorf("%w: produce in phase %s", ErrInvalidTransition, s.Phase)
	}
	s.Artifact = artifact
	s.Phase = PhaseEvaluate
	return s, nil
}

// Evaluated stores the assessment of the artifact just produced.
// The score is clamped and Passed recomputed against the run's target.
func (s State) Evaluated(a core.QualityAssessment) (State, error) {
	if s.Phase != PhaseEvaluate {
		return s, fmt.Errorf("%w: evaluate in phase %s", ErrInvalidTransition, s.Phase)
	}
	a.Score = core.ClampScore(a.Score)
	a.Passed = a.Score >= s.TargetScore
	a.Criteria = maps.Clone(a.Criteria)
	s.Assessment = a
	s.Phase = PhaseDecide
	return s, nil
}

// Decide applies the transition rule in priority order: finalize on
// success, finalize when the budget is spent, otherwise revise.
func (s State) Decide() (State, core.Decision, error) {
	if s.Phase != PhaseDecide {
		return s, "", fmt.Errorf("%w: decide in phase %s", ErrInvalidTransition, s.Phase)
	}
	switch {
	case s.Assessment.Score >= s.TargetScore:
		s.Phase = PhaseFinalized
		s.Termination = TerminationSuccess
		return s, core.DecisionFinalizeSuccess, nil
	case s.Iteration >= s.MaxIterations:
		s.Phase = PhaseFinalized
		s.Termination = TerminationBudgetExhausted
		return s, core.DecisionFinalizeBudget, nil
	default:
		s.Iteration++
		s.Phase = PhaseProduce
		return s, core.DecisionRevise, nil
	}
}
