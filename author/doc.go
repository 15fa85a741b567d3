// Package author produces the artifact the convergence loop refines: a
// Related Work chapter grounded in passages retrieved from the corpus.
package author
