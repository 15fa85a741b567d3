package search

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/index"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultOversample is the candidate multiple fetched from each pass for hybrid fusion.
	DefaultOversample = 4

	// DefaultMaxLimit caps the number of results a query may request.
	DefaultMaxLimit = 20
)

// DenseSearcher is the dense retrieval pass.
type DenseSearcher interface {
	Search(ctx context.Context, text string, limit int, filter core.Filter) ([]index.DenseHit, error)
}

// SparseSearcher is the lexical retrieval pass.
type SparseSearcher interface {
	Search(ctx context.Context, text string, limit int, filter core.Filter) ([]index.SparseHit, error)
}

var (
	_ DenseSearcher  = (*index.Dense)(nil)
	_ SparseSearcher = (*index.Sparse)(nil)
)

// Retriever is the fusion ranker.
type Retriever struct {
	dense      DenseSearcher
	sparse     SparseSearcher
	oversample int
	maxLimit   int
	monitor    RetrievalMonitor
	logger     *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithOversample sets how many times the limit each hybrid pass fetches.
func WithOversample(factor int) Option {
	return func(r *Retriever) error {
		if factor < 1 {
			return ErrInvalidOversample
		}
		r.oversample = factor
		return nil
	}
}

// WithMaxLimit sets the result cap. Larger limits are clamped to it.
func WithMaxLimit(limit int) Option {
	return func(r *Retriever) error {
		if limit < 1 {
			return ErrInvalidMaxLimit
		}
		r.maxLimit = limit
		return nil
	}
}

// WithMonitor installs a retrieval monitor.
func WithMonitor(monitor RetrievalMonitor) Option {
	return func(r *Retriever) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		r.monitor = monitor
		return nil
	}
}

// NewRetriever creates a fusion ranker over the given passes.
// Either pass may be nil, in which case strategies needing it return no results.
func NewRetriever(dense DenseSearcher, sparse SparseSearcher, opts ...Option) (*Retriever, error) {
	if dense == nil && sparse == nil {
		return nil, ErrIndexRequired
	}

	r := &Retriever{
		dense:      dense,
		sparse:     sparse,
		oversample: DefaultOversample,
		maxLimit:   DefaultMaxLimit,
		monitor:    &noopMonitor{},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "retriever")

	return r, nil
}

// MaxLimit returns the result cap.
func (r *Retriever) MaxLimit() int {
	return r.maxLimit
}

// Retrieve answers query with at most min(query.Limit, MaxLimit()) results, best first.
// Invalid queries are rejected with a core.ErrConfiguration error before any
// index is touched. An empty or unbuilt index yields an empty list.
func (r *Retriever) Retrieve(ctx context.Context, query core.RetrievalQuery) ([]core.ScoredResult, error) {
	if err := core.ValidateQuery(query); err != nil {
		return nil, err
	}
	if query.Limit > r.maxLimit {
		r.logger.Debug("clamping query limit", "requested", query.Limit, "max", r.maxLimit)
		query.Limit = r.maxLimit
	}

	r.monitor.Start(query)

	var (
		results []core.ScoredResult
		err     error
	)
	switch query.Strategy {
	case core.StrategyDense:
		results, err = r.retrieveDense(ctx, query)
	case core.StrategySparse:
		results, err = r.retrieveSparse(ctx, query)
	default:
		results, err = r.retrieveHybrid(ctx, query)
	}
	if err != nil {
		return nil, err
	}

	r.monitor.Finish(results)
	r.logger.Debug("retrieval complete",
		"strategy", query.Strategy,
		"limit", query.Limit,
		"results", len(results))
	return results, nil
}

func (r *Retriever) retrieveDense(ctx context.Context, query core.RetrievalQuery) ([]core.ScoredResult, error) {
	hits, err := r.searchDense(ctx, query.Text, query.Limit, query.Filter())
	r.monitor.AfterDense(hits, err)
	if err != nil {
		return r.absorb("dense", err)
	}

	results := make([]core.ScoredResult, len(hits))
	for i, h := range hits {
		score := denseScore(h.Distance)
		results[i] = core.ScoredResult{
			ChunkID:   h.Chunk.ID,
			Chunk:     h.Chunk,
			Score:     score,
			Relevance: score,
			Ranks:     core.SourceRanks{Dense: i + 1},
		}
	}
	return results, nil
}

func (r *Retriever) retrieveSparse(ctx context.Context, query core.RetrievalQuery) ([]core.ScoredResult, error) {
	hits, err := r.searchSparse(ctx, query.Text, query.Limit, query.Filter())
	r.monitor.AfterSparse(hits, err)
	if err != nil {
		return r.absorb("sparse", err)
	}

	results := make([]core.ScoredResult, len(hits))
	for i, h := range hits {
		results[i] = core.ScoredResult{
			ChunkID:   h.Chunk.ID,
			Chunk:     h.Chunk,
			Score:     h.Score,
			Relevance: 1 / float64(i+1),
			Ranks:     core.SourceRanks{Sparse: i + 1},
		}
	}
	return results, nil
}

// fused accumulates both passes' view of one chunk.
type fused struct {
	chunk    *core.Chunk
	dense    float64
	ranks    core.SourceRanks
	combined float64
}

func (r *Retriever) retrieveHybrid(ctx context.Context, query core.RetrievalQuery) ([]core.ScoredResult, error) {
	candidates := query.Limit * r.oversample
	filter := query.Filter()

	var (
		denseHits  []index.DenseHit
		sparseHits []index.SparseHit
		denseErr   error
		sparseErr  error
	)

	// Pass errors are kept aside so one failing index does not cancel the other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		denseHits, denseErr = r.searchDense(gctx, query.Text, candidates, filter)
		return nil
	})
	g.Go(func() error {
		sparseHits, sparseErr = r.searchSparse(gctx, query.Text, candidates, filter)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.monitor.AfterDense(denseHits, denseErr)
	r.monitor.AfterSparse(sparseHits, sparseErr)

	if denseErr != nil && sparseErr != nil &&
		!errors.Is(denseErr, core.ErrIndexUnavailable) && !errors.Is(sparseErr, core.ErrIndexUnavailable) {
		r.logger.Error("both retrieval passes failed", "dense_err", denseErr, "sparse_err", sparseErr)
		return nil, errors.Join(denseErr, sparseErr)
	}
	if denseErr != nil {
		r.logPassFailure("dense", denseErr)
	}
	if sparseErr != nil {
		r.logPassFailure("sparse", sparseErr)
	}

	merged := make(map[string]*fused, len(denseHits)+len(sparseHits))
	for i, h := range denseHits {
		merged[h.Chunk.ID] = &fused{
			chunk: h.Chunk,
			dense: denseScore(h.Distance),
			ranks: core.SourceRanks{Dense: i + 1},
		}
	}
	for i, h := range sparseHits {
		f, ok := merged[h.Chunk.ID]
		if !ok {
			f = &fused{chunk: h.Chunk}
			merged[h.Chunk.ID] = f
		}
		f.ranks.Sparse = i + 1
	}

	w := query.HybridWeight
	ranked := make([]*fused, 0, len(merged))
	for _, f := range merged {
		var sparse float64
		if f.ranks.Sparse > 0 {
			sparse = 1 / float64(f.ranks.Sparse)
		}
		f.combined = f.dense*w + sparse*(1-w)
		// A chunk only the zero-weighted pass found carries no signal.
		if f.combined <= 0 {
			continue
		}
		ranked = append(ranked, f)
	}

	slices.SortFunc(ranked, compareFused)
	if len(ranked) > query.Limit {
		ranked = ranked[:query.Limit]
	}

	results := make([]core.ScoredResult, len(ranked))
	for i, f := range ranked {
		results[i] = core.ScoredResult{
			ChunkID:   f.chunk.ID,
			Chunk:     f.chunk,
			Score:     f.combined,
			Relevance: f.combined,
			Ranks:     f.ranks,
		}
	}
	return results, nil
}

// compareFused orders by combined score descending, then dense rank,
// then sparse rank, then insertion order. An absent rank sorts last.
func compareFused(a, b *fused) int {
	if c := cmp.Compare(b.combined, a.combined); c != 0 {
		return c
	}
	if c := compareRank(a.ranks.Dense, b.ranks.Dense); c != 0 {
		return c
	}
	if c := compareRank(a.ranks.Sparse, b.ranks.Sparse); c != 0 {
		return c
	}
	if c := cmp.Compare(a.chunk.Ordinal, b.chunk.Ordinal); c != 0 {
		return c
	}
	return cmp.Compare(a.chunk.ID, b.chunk.ID)
}

func compareRank(a, b int) int {
	switch {
	case a == b:
		return 0
	case a == 0:
		return 1
	case b == 0:
		return -1
	default:
		return cmp.Compare(a, b)
	}
}

func denseScore(distance float64) float64 {
	return 1 / (1 + distance)
}

func (r *Retriever) searchDense(ctx context.Context, text string, limit int, filter core.Filter) ([]index.DenseHit, error) {
	if r.dense == nil {
		return nil, core.ErrIndexUnavailable
	}
	return r.dense.Search(ctx, text, limit, filter)
}

func (r *Retriever) searchSparse(ctx context.Context, text string, limit int, filter core.Filter) ([]index.SparseHit, error) {
	if r.sparse == nil {
		return nil, core.ErrIndexUnavailable
	}
	return r.sparse.Search(ctx, text, limit, filter)
}

// absorb turns an unavailable index into an empty result and propagates anything else.
func (r *Retriever) absorb(pass string, err error) ([]core.ScoredResult, error) {
	if errors.Is(err, core.ErrIndexUnavailable) {
		r.logger.Info("index unavailable, returning no results", "pass", pass, "err", err)
		return []core.ScoredResult{}, nil
	}
	r.logger.Error("retrieval pass failed", "pass", pass, "err", err)
	return nil, err
}

func (r *Retriever) logPassFailure(pass string, err error) {
	if errors.Is(err, core.ErrIndexUnavailable) {
		r.logger.Info("index unavailable, pass contributes nothing", "pass", pass, "err", err)
		return
	}
	r.logger.Warn("retrieval pass failed, pass contributes nothing", "pass", pass, "err", err)
}
