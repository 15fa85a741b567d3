package search

import (
	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/index"
)

// RetrievalMonitor provides hooks to observe the retrieval process.
// Hooks run on the calling goroutine, after both passes have completed.
type RetrievalMonitor interface {
	Start(query core.RetrievalQuery)
	AfterDense(hits []index.DenseHit, err error)
	AfterSparse(hits []index.SparseHit, err error)
	Finish(results []core.ScoredResult)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ core.RetrievalQuery)             {}
func (n *noopMonitor) AfterDense(_ []index.DenseHit, _ error)   {}
func (n *noopMonitor) AfterSparse(_ []index.SparseHit, _ error) {}
func (n *noopMonitor) Finish(_ []core.ScoredResult)             {}
