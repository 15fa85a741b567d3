package core

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Digest is a content fingerprint for chunk text.
// Re-ingesting a chunk whose digest is unchanged does not require a new embedding.
type Digest uint64

// DigestOf computes a deterministic 64-bit BLAKE2b fingerprint of text.
func DigestOf(text string) Digest {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return Digest(binary.LittleEndian.Uint64(sum))
}

// Source tags for the collection a publication was harvested from.
const (
	SourceArxiv    = "arxiv"
	SourceOpenAlex = "openalex"
)

var baseIDReplacer = strings.NewReplacer("/", "_", ":", "_", ".", "_", " ", "_", "\t", "_", "\n", "_")

// SanitizeBaseID makes an external identifier (DOI, arXiv id) safe for use as a chunk id prefix.
func SanitizeBaseID(raw string) string {
	return baseIDReplacer.Replace(strings.TrimSpace(raw))
}

// BaseIDFor picks the identifier that groups all chunks of one document.
// The DOI wins, then the arXiv id, then the caller supplied fallback.
func BaseIDFor(doi, arxivID, fallback string) string {
	switch {
	case strings.TrimSpace(doi) != "":
		return SanitizeBaseID(doi)
	case strings.TrimSpace(arxivID) != "":
		return SanitizeBaseID(arxivID)
	default:
		return SanitizeBaseID(fallback)
	}
}

// ChunkID derives the stable id of the index-th chunk of a document.
// The same (baseID, index) pair always yields the same id, so re-ingestion upserts.
func ChunkID(baseID string, index int) string {
	return baseID + "_chunk_" + strconv.Itoa(index)
}

// ChunkMetadata describes where a chunk came from.
// A zero Year means the year is unknown.
type ChunkMetadata struct {
	Title       string
	Authors     string
	Year        int
	Source      string
	BaseID      string
	ChunkIndex  int
	TotalChunks int
	Journal     string
	DOI         string
	ArxivID     string
	Extra       map[string]string
}

// Chunk is the atomic retrievable unit of text.
type Chunk struct {
	ID         string
	Text       string
	Metadata   ChunkMetadata
	Vector     []float32 // Embedding vector (populated during ingestion)
	Digest     Digest    // Fingerprint of Text
	Ordinal    uint64    // Corpus insertion order, assigned by the store on first insert
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// Filter restricts retrieval by metadata. The zero value matches everything.
type Filter struct {
	// MinYear is an inclusive lower bound on publication year. 0 disables it.
	MinYear int
	// Source requires an exact source tag match when non-empty.
	Source string
}

// IsZero reports whether the filter accepts every chunk.
func (f Filter) IsZero() bool {
	return f.MinYear == 0 && f.Source == ""
}

// Matches reports whether metadata satisfies the filter.
// Chunks without a year never satisfy a year bound.
func (f Filter) Matches(m ChunkMetadata) bool {
	if f.MinYear != 0 && (m.Year == 0 || m.Year < f.MinYear) {
		return false
	}
	if f.Source != "" && m.Source != f.Source {
		return false
	}
	return true
}

// Strategy selects which index (or both) answers a query.
type Strategy string

const (
	StrategyDense  Strategy = "dense"
	StrategySparse Strategy = "sparse"
	StrategyHybrid Strategy = "hybrid"
)

// ParseStrategy converts a user supplied name into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyDense, StrategySparse, StrategyHybrid:
		return st, nil
	default:
		return "", NewConfigurationError(ErrInvalidStrategy, "strategy %q", s)
	}
}

// RetrievalQuery is the input to the fusion ranker.
type RetrievalQuery struct {
	Text         string
	Limit        int
	Strategy     Strategy
	MinYear      int
	Source       string
	HybridWeight float64 // Weight of the dense signal in [0,1]; hybrid only
}

// Filter returns the metadata filter carried by the query.
func (q RetrievalQuery) Filter() Filter {
	return Filter{MinYear: q.MinYear, Source: q.Source}
}

// SourceRanks records the 1-based rank a result held in each retrieval pass.
// A zero rank means the result was absent from that pass.
type SourceRanks struct {
	Dense  int
	Sparse int
}

// ScoredResult is one ranked hit.
type ScoredResult struct {
	ChunkID string
	Chunk   *Chunk
	// Score is strategy dependent: 1/(1+distance) for dense, native BM25 for
	// sparse, the weighted combination for hybrid.
	Score float64
	// Relevance is Score normalized to [0,1] for cross-strategy comparison.
	Relevance float64
	Ranks     SourceRanks
}

// Rubric criteria names.
const (
	CriterionComprehensiveness = "comprehensiveness"
	CriterionRelevance         = "relevance"
	CriterionOrganization      = "organization"
	CriterionCriticalAnalysis  = "critical_analysis"
	CriterionClarity           = "clarity"
	CriterionCitationQuality   = "citation_quality"
)

// Criteria lists the rubric criteria in presentation order.
var Criteria = []string{
	CriterionComprehensiveness,
	CriterionRelevance,
	CriterionOrganization,
	CriterionCriticalAnalysis,
	CriterionClarity,
	CriterionCitationQuality,
}

const (
	// MinScore and MaxScore bound every rubric value.
	MinScore = 0.0
	MaxScore = 10.0
)

// ClampScore limits v to [MinScore, MaxScore]. NaN maps to MinScore.
func ClampScore(v float64) float64 {
	if math.IsNaN(v) {
		return MinScore
	}
	return math.Min(MaxScore, math.Max(MinScore, v))
}

// QualityAssessment is the evaluator's verdict on one artifact.
type QualityAssessment struct {
	Score    float64
	Criteria map[string]float64
	Feedback string
	Passed   bool
	// Fallback is set when the score was synthesized because the scoring
	// response could not be used.
	Fallback bool
	// Raw is the unparsed scoring response.
	Raw string
}

// Decision is the outcome of one loop iteration as recorded in the audit log.
type Decision string

const (
	DecisionRevise          Decision = "revise"
	DecisionFinalizeSuccess Decision = "finalize_success"
	DecisionFinalizeBudget  Decision = "finalize_budget"
	DecisionProducerFailure Decision = "producer_failure"
)

// AuditRecord is one append-only entry per loop iteration.
type AuditRecord struct {
	RunID          string
	Topic          string
	Iteration      int
	Score          float64
	Passed         bool
	Fallback       bool
	Feedback       string
	Decision       Decision
	ArtifactLength int
	Error          string
	RecordedAt     time.Time
}
