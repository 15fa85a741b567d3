package author

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/litreview/ai"
	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/loop"
)

var (
	// ErrRetrieverRequired is returned when a writer is created without a retriever.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrGeneratorRequired is returned when a writer is created without a generator.
	ErrGeneratorRequired = errors.New("generator required")
)

// feedbackTerms caps how much of the evaluator feedback joins the evidence query.
const feedbackTerms = 24

// Retriever finds evidence for the chapter.
type Retriever interface {
	Retrieve(ctx context.Context, query core.RetrievalQuery) ([]core.ScoredResult, error)
}

// Writer drafts and revises a related-work chapter from retrieved evidence.
type Writer struct {
	retriever     Retriever
	generator     ai.Generator
	evidenceLimit int
	hybridWeight  float64
	logger        *slog.Logger
}

var _ loop.Producer = (*Writer)(nil)

// Option configures a Writer.
type Option func(*Writer) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// WithEvidenceLimit sets how many chunks are retrieved per draft.
// Default is 10.
func WithEvidenceLimit(limit int) Option {
	return func(w *Writer) error {
		if limit < 1 {
			return fmt.Errorf("evidence limit must be positive, got %d", limit)
		}
		w.evidenceLimit = limit
		return nil
	}
}

// WithHybridWeight sets the dense weight of evidence queries.
// Default is 0.5.
func WithHybridWeight(weight float64) Option {
	return func(w *Writer) error {
		if weight < 0 || weight > 1 {
			return core.NewConfigurationError(core.ErrInvalidHybridWeight, "weight %v", weight)
		}
		w.hybridWeight = weight
		return nil
	}
}

// NewWriter creates a writer.
func NewWriter(retriever Retriever, generator ai.Generator, opts ...Option) (*Writer, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	w := &Writer{
		retriever:     retriever,
		generator:     generator,
		evidenceLimit: 10,
		hybridWeight:  0.5,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	w.logger = w.logger.With("component", "writer")

	return w, nil
}

// Produce writes a fresh chapter on the first iteration and a revision
// conditioned on the previous draft, its score and feedback afterwards.
// Evidence retrieval failures are logged and the chapter is written without sources.
func (w *Writer) Produce(ctx context.Context, req loop.ProduceRequest) (string, error) {
	results, err := w.retriever.Retrieve(ctx, core.RetrievalQuery{
		Text:         evidenceQuery(req),
		Limit:        w.evidenceLimit,
		Strategy:     core.StrategyHybrid,
		HybridWeight: w.hybridWeight,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		w.logger.Warn("evidence retrieval failed, writing without sources", "iteration", req.Iteration, "err", err)
		results = nil
	}
	sources := formatSources(results)

	prompt := draftPrompt(req, sources)
	if req.Iteration > 0 && req.PreviousArtifact != "" {
		prompt = revisionPrompt(req, sources)
	}

	start := time.Now()
	text, err := w.generator.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		w.logger.Error("error generating chapter", "iteration", req.Iteration, "err", err)
		return "", err
	}

	w.logger.Info("chapter written",
		"iteration", req.Iteration,
		"sources", len(results),
		"length", len(text),
		"elapsed", time.Since(start))
	return strings.TrimSpace(text), nil
}

// evidenceQuery is the topic, extended on revisions with the start of the feedback.
func evidenceQuery(req loop.ProduceRequest) string {
	if req.Iteration == 0 || strings.TrimSpace(req.Feedback) == "" {
		return req.Topic
	}
	terms := strings.Fields(req.Feedback)
	if len(terms) > feedbackTerms {
		terms = terms[:feedbackTerms]
	}
	return req.Topic + " " + strings.Join(terms, " ")
}
