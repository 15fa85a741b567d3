package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/litreview/ai"
	"github.com/poiesic/litreview/core"
)

// ErrGeneratorRequired is returned when no scoring generator is provided.
var ErrGeneratorRequired = errors.New("generator required")

// RubricContext is what the evaluator knows about the run besides the artifact.
type RubricContext struct {
	Topic         string
	TargetScore   float64
	PreviousScore float64
	// Iteration is the zero-based loop iteration being scored.
	Iteration int
}

// Evaluator scores artifacts against the review rubric using a generator.
type Evaluator struct {
	generator ai.Generator
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithTimeout bounds each scoring call. Zero means no bound beyond the caller's context.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Evaluator) error {
		if timeout < 0 {
			return fmt.Errorf("evaluator timeout cannot be negative: %s", timeout)
		}
		e.timeout = timeout
		return nil
	}
}

// NewEvaluator creates an evaluator backed by generator.
func NewEvaluator(generator ai.Generator, opts ...Option) (*Evaluator, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	e := &Evaluator{
		generator: generator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "evaluator")

	return e, nil
}

// Assess scores artifact. It never fails: when the generator errors, times
// out or returns something unparsable, the assessment carries the
// Fallback score and Fallback is set.
// Passed is always Score >= rc.TargetScore.
func (e *Evaluator) Assess(ctx context.Context, artifact string, rc RubricContext) core.QualityAssessment {
	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	response, err := e.generator.Generate(callCtx, systemPrompt, buildPrompt(artifact, rc))
	if err != nil {
		return e.fallback(rc, response, fmt.Errorf("scoring call failed: %w", err))
	}

	parsed, err := Parse(response)
	if err != nil {
		return e.fallback(rc, response, err)
	}

	feedback := parsed.Summary
	if feedback == "" {
		feedback = "Evaluation completed"
	}
	assessment := core.QualityAssessment{
		Score:    parsed.Score,
		Criteria: parsed.Criteria,
		Feedback: feedback,
		Passed:   parsed.Score >= rc.TargetScore,
		Raw:      response,
	}

	e.logger.Info("artifact evaluated",
		"iteration", rc.Iteration,
		"score", assessment.Score,
		"criteria", len(assessment.Criteria),
		"passed", assessment.Passed,
		"elapsed", time.Since(start))
	return assessment
}

func (e *Evaluator) fallback(rc RubricContext, response string, cause error) core.QualityAssessment {
	score := Fallback(rc.PreviousScore, rc.Iteration)
	e.logger.Warn("evaluation failed, using fallback score",
		"iteration", rc.Iteration,
		"previous_score", rc.PreviousScore,
		"fallback_score", score,
		"err", cause)

	return core.QualityAssessment{
		Score:    score,
		Criteria: map[string]float64{},
		Feedback: fmt.Sprintf("Evaluation failed: %v. Using fallback score.", cause),
		Passed:   score >= rc.TargetScore,
		Fallback: true,
		Raw:      response,
	}
}
