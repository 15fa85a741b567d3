package index

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/storage"
)

// BM25 Okapi parameters.
const (
	k1      = 1.5
	b       = 0.75
	epsilon = 0.25
)

// SparseHit is one lexical match.
type SparseHit struct {
	Chunk *core.Chunk
	// Score is the native BM25 score.
	Score float64
}

type yearPosting struct {
	year int
	pos  uint32
}

// bm25Model is an immutable snapshot of the corpus statistics.
// Document positions follow corpus insertion order.
type bm25Model struct {
	docs    []*core.Chunk
	freqs   []map[string]int
	lengths []int
	avgdl   float64
	idf     map[string]float64

	sources map[string]*roaring.Bitmap
	years   []yearPosting // sorted by year, chunks without a year omitted
}

// Sparse is an in-memory BM25 index over the whole chunk corpus.
// It is built by Rebuild and never refreshed implicitly; readers share
// the current model while a rebuild swaps in a new one.
type Sparse struct {
	repo   storage.ChunkRepository
	logger *slog.Logger

	mu    sync.RWMutex
	model *bm25Model
}

// NewSparse creates an unbuilt sparse index over repo.
func NewSparse(repo storage.ChunkRepository, opts ...Option) (*Sparse, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	o, err := applyOptions("sparse-index", opts)
	if err != nil {
		return nil, err
	}
	return &Sparse{repo: repo, logger: o.logger}, nil
}

// Rebuild scans the corpus and replaces the current model.
// On error the previous model stays in place.
func (s *Sparse) Rebuild(ctx context.Context) error {
	var docs []*core.Chunk
	err := s.repo.ScanChunks(ctx, func(c *core.Chunk) error {
		docs = append(docs, c)
		return nil
	})
	if err != nil {
		s.logger.Error("error scanning corpus", "err", err)
		return err
	}

	m := buildModel(docs)

	s.mu.Lock()
	s.model = m
	s.mu.Unlock()

	s.logger.Info("sparse index rebuilt", "documents", len(docs), "terms", len(m.idf))
	return nil
}

// Built reports whether Rebuild has completed at least once.
func (s *Sparse) Built() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model != nil
}

// Size returns the number of indexed documents.
func (s *Sparse) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model == nil {
		return 0
	}
	return len(s.model.docs)
}

// Search scores every document against text and returns up to limit hits
// satisfying filter, best first. Equal scores keep
// insertion order. Filtered documents are skipped without using up the limit.
func (s *Sparse) Search(ctx context.Context, text string, limit int, filter core.Filter) ([]SparseHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	m := s.model
	s.mu.RUnlock()

	if m == nil {
		return nil, fmt.Errorf("%w: sparse index not built", core.ErrIndexUnavailable)
	}
	if len(m.docs) == 0 {
		return nil, fmt.Errorf("%w: sparse corpus is empty", core.ErrIndexUnavailable)
	}

	scored := m.score(Tokenize(text))
	allowed := m.allowed(filter)

	hits := make([]SparseHit, 0, min(limit, len(scored)))
	for _, c := range scored {
		if len(hits) >= limit {
			break
		}
		if allowed != nil && !allowed.Contains(c.pos) {
			continue
		}
		hits = append(hits, SparseHit{Chunk: m.docs[c.pos], Score: c.score})
	}
	s.logger.Debug("sparse search complete", "candidates", len(scored), "hits", len(hits))
	return hits, nil
}

type candidate struct {
	pos   uint32
	score float64
}

func buildModel(docs []*core.Chunk) *bm25Model {
	m := &bm25Model{
		docs:    docs,
		freqs:   make([]map[string]int, len(docs)),
		lengths: make([]int, len(docs)),
		idf:     make(map[string]float64),
		sources: make(map[string]*roaring.Bitmap),
	}

	docFreq := make(map[string]int)
	total := 0
	for i, doc := range docs {
		tokens := Tokenize(doc.Text)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		for t := range tf {
			docFreq[t]++
		}
		m.freqs[i] = tf
		m.lengths[i] = len(tokens)
		total += len(tokens)

		pos := uint32(i)
		if src := doc.Metadata.Source; src != "" {
			bm, ok := m.sources[src]
			if !ok {
				bm = roaring.New()
				m.sources[src] = bm
			}
			bm.Add(pos)
		}
		if doc.Metadata.Year != 0 {
			m.years = append(m.years, yearPosting{year: doc.Metadata.Year, pos: pos})
		}
	}
	slices.SortStableFunc(m.years, func(a, b yearPosting) int {
		return a.year - b.year
	})

	if len(docs) == 0 {
		return m
	}
	m.avgdl = float64(total) / float64(len(docs))

	// Okapi IDF; terms present in more than half the corpus go negative and
	// are floored at epsilon times the mean IDF.
	n := float64(len(docs))
	var idfSum float64
	var negative []string
	for term, df := range docFreq {
		idf := math.Log(n-float64(df)+0.5) - math.Log(float64(df)+0.5)
		m.idf[term] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, term)
		}
	}
	floor := epsilon * idfSum / float64(len(m.idf))
	for _, term := range negative {
		m.idf[term] = floor
	}
	return m
}

// score returns every document ordered by descending score, ties by position.
// Documents sharing no token with the query score zero.
func (m *bm25Model) score(query []string) []candidate {
	out := make([]candidate, len(m.freqs))
	for i, tf := range m.freqs {
		var score float64
		dl := float64(m.lengths[i])
		for _, q := range query {
			f, ok := tf[q]
			if !ok {
				continue
			}
			freq := float64(f)
			score += m.idf[q] * (freq * (k1 + 1)) / (freq + k1*(1-b+b*dl/m.avgdl))
		}
		out[i] = candidate{pos: uint32(i), score: score}
	}
	slices.SortStableFunc(out, func(a, b candidate) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})
	return out
}

// allowed returns the positions passing filter, or nil when the filter is empty.
func (m *bm25Model) allowed(filter core.Filter) *roaring.Bitmap {
	if filter.IsZero() {
		return nil
	}

	var result *roaring.Bitmap
	if filter.Source != "" {
		bm, ok := m.sources[filter.Source]
		if !ok {
			return roaring.New()
		}
		result = bm
	}

	if filter.MinYear != 0 {
		start := sort.Search(len(m.years), func(i int) bool {
			return m.years[i].year >= filter.MinYear
		})
		years := roaring.New()
		for _, yp := range m.years[start:] {
			years.Add(yp.pos)
		}
		if result == nil {
			result = years
		} else {
			result = roaring.And(result, years)
		}
	}
	return result
}
