package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/evaluate"
	"github.com/poiesic/litreview/storage"
)

// ProduceRequest is everything the producer is told about the iteration.
type ProduceRequest struct {
	Topic            string
	Iteration        int
	PreviousArtifact string
	PreviousScore    float64
	TargetScore      float64
	Feedback         string
}

// Producer writes or revises the artifact.
type Producer interface {
	Produce(ctx context.Context, req ProduceRequest) (string, error)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context, req ProduceRequest) (string, error)

func (f ProducerFunc) Produce(ctx context.Context, req ProduceRequest) (string, error) {
	return f(ctx, req)
}

// Evaluator scores an artifact. It must always return a usable assessment.
type Evaluator interface {
	Assess(ctx context.Context, artifact string, rc evaluate.RubricContext) core.QualityAssessment
}

var _ Evaluator = (*evaluate.Evaluator)(nil)

// Outcome is the result of a finalized run.
type Outcome struct {
	RunID       string
	Topic       string
	Artifact    string
	Score       float64
	Iteration   int
	Termination Termination
	Assessment  core.QualityAssessment
}

// Succeeded reports whether the run reached its target score.
func (o *Outcome) Succeeded() bool {
	return o.Termination == TerminationSuccess
}

// Runner drives runs through produce, evaluate and decide until they finalize.
type Runner struct {
	producer  Producer
	evaluator Evaluator
	audit     storage.AuditRepository
	sink      ArtifactSink
	config    Config
	newRunID  func() string
	logger    *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithConfig sets the run bounds. The config is validated.
func WithConfig(cfg *Config) Option {
	return func(r *Runner) error {
		if cfg == nil {
			return nil
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		r.config = *cfg
		return nil
	}
}

// WithSink receives every revision and the final artifact.
func WithSink(sink ArtifactSink) Option {
	return func(r *Runner) error {
		r.sink = sink
		return nil
	}
}

// WithRunIDFunc overrides run id generation.
// Default is a random UUID.
func WithRunIDFunc(fn func() string) Option {
	return func(r *Runner) error {
		if fn == nil {
			return errors.New("run id func cannot be nil")
		}
		r.newRunID = fn
		return nil
	}
}

// NewRunner creates a runner. audit may be nil, in which case nothing is persisted.
func NewRunner(producer Producer, evaluator Evaluator, audit storage.AuditRepository, opts ...Option) (*Runner, error) {
	if producer == nil {
		return nil, ErrProducerRequired
	}
	if evaluator == nil {
		return nil, ErrEvaluatorRequired
	}

	r := &Runner{
		producer:  producer,
		evaluator: evaluator,
		audit:     audit,
		config:    *DefaultConfig(),
		newRunID:  uuid.NewString,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "loop")

	return r, nil
}

// Config returns the run bounds in effect.
func (r *Runner) Config() Config {
	return r.config
}

// Start returns the initial state of a new run.
func (r *Runner) Start(topic string) State {
	return NewState(r.newRunID(), topic, r.config)
}

// Run executes a run to completion. Fatal failures are returned as *RunError.
func (r *Runner) Run(ctx context.Context, topic string) (*Outcome, error) {
	state := r.Start(topic)
	logger := r.logger.With("run_id", state.RunID)
	logger.Info("run started",
		"topic", topic,
		"target_score", state.TargetScore,
		"max_iterations", state.MaxIterations)

	start := time.Now()
	for !state.Done() {
		next, err := r.Step(ctx, state)
		if err != nil {
			logger.Error("run aborted", "iteration", state.Iteration, "phase", state.Phase, "err", err)
			return nil, err
		}
		state = next
	}

	outcome := &Outcome{
		RunID:       state.RunID,
		Topic:       state.Topic,
		Artifact:    state.Artifact,
		Score:       state.Assessment.Score,
		Iteration:   state.Iteration,
		Termination: state.Termination,
		Assessment:  state.Assessment,
	}
	if r.sink != nil {
		if err := r.sink.SaveFinal(ctx, outcome); err != nil {
			logger.Warn("error saving final artifact", "err", err)
		}
	}

	logger.Info("run finished",
		"termination", outcome.Termination,
		"score", outcome.Score,
		"iteration", outcome.Iteration,
		"elapsed", time.Since(start))
	return outcome, nil
}

// Step performs the single phase state is in and returns the next state.
// The context is checked before any work so cancellation aborts between phases.
func (r *Runner) Step(ctx context.Context, state State) (State, error) {
	if err := ctx.Err(); err != nil {
		return state, r.fail(state, err)
	}

	switch state.Phase {
	case PhaseProduce:
		return r.produce(ctx, state)
	case PhaseEvaluate:
		return r.evaluate(ctx, state)
	case PhaseDecide:
		return r.decide(ctx, state)
	default:
		return state, r.fail(state, fmt.Errorf("%w: step in phase %s", ErrInvalidTransition, state.Phase))
	}
}

func (r *Runner) produce(ctx context.Context, state State) (State, error) {
	artifact, err := r.producer.Produce(ctx, state.Request())
	if err == nil {
		if n := len(strings.TrimSpace(artifact)); n < r.config.MinArtifactLength {
			err = fmt.Errorf("artifact has %d characters, need at least %d", n, r.config.MinArtifactLength)
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return state, r.fail(state, ctxErr)
		}
		cause := fmt.Errorf("%w: %w", core.ErrProducerFailure, err)
		if recErr := r.record(ctx, &core.AuditRecord{
			RunID:          state.RunID,
			Topic:          state.Topic,
			Iteration:      state.Iteration,
			Score:          state.Assessment.Score,
			Decision:       core.DecisionProducerFailure,
			ArtifactLength: len(artifact),
			Error:          cause.Error(),
		}); recErr != nil {
			cause = errors.Join(cause, recErr)
		}
		return state, r.fail(state, cause)
	}

	next, err := state.Produced(artifact)
	if err != nil {
		return state, r.fail(state, err)
	}
	if r.sink != nil {
		if err := r.sink.SaveRevision(ctx, next.RunID, next.Iteration, artifact); err != nil {
			r.logger.Warn("error saving revision", "run_id", next.RunID, "iteration", next.Iteration, "err", err)
		}
	}
	r.logger.Debug("artifact produced", "run_id", next.RunID, "iteration", next.Iteration, "length", len(artifact))
	return next, nil
}

func (r *Runner) evaluate(ctx context.Context, state State) (State, error) {
	assessment := r.evaluator.Assess(ctx, state.Artifact, evaluate.RubricContext{
		Topic:         state.Topic,
		TargetScore:   state.TargetScore,
		PreviousScore: state.Assessment.Score,
		Iteration:     state.Iteration,
	})

	next, err := state.Evaluated(assessment)
	if err != nil {
		return state, r.fail(state, err)
	}
	return next, nil
}

func (r *Runner) decide(ctx context.Context, state State) (State, error) {
	next, decision, err := state.Decide()
	if err != nil {
		return state, r.fail(state, err)
	}

	a := state.Assessment
	if err := r.record(ctx, &core.AuditRecord{
		RunID:          state.RunID,
		Topic:          state.Topic,
		Iteration:      state.Iteration,
		Score:          a.Score,
		Passed:         a.Passed,
		Fallback:       a.Fallback,
		Feedback:       a.Feedback,
		Decision:       decision,
		ArtifactLength: len(state.Artifact),
	}); err != nil {
		return state, r.fail(state, err)
	}

	r.logger.Info("iteration decided",
		"run_id", state.RunID,
		"iteration", state.Iteration,
		"score", a.Score,
		"fallback", a.Fallback,
		"decision", decision)
	return next, nil
}

// record appends one audit entry. A nil audit repository records nothing.
func (r *Runner) record(ctx context.Context, rec *core.AuditRecord) error {
	if r.audit == nil {
		return nil
	}
	if err := r.audit.AppendAuditRecord(ctx, rec); err != nil {
		r.logger.Error("error appending audit record", "run_id", rec.RunID, "iteration", rec.Iteration, "err", err)
		return fmt.Errorf("appending audit record: %w", err)
	}
	return nil
}

func (r *Runner) fail(state State, err error) *RunError {
	return &RunError{Iteration: state.Iteration, State: state, Err: err}
}
