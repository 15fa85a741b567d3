// Package index provides the two retrieval passes the fusion ranker combines.
//
// Dense embeds the query and asks the chunk store for its nearest vectors.
// Sparse holds an in-memory BM25 Okapi model built from the full corpus by
// an explicit Rebuild call; searches share the current model under a read
// lock while a rebuild swaps in a fresh one. Metadata filters are applied
// after scoring using roaring bitmaps of document positions.
//
// Both indexes return core.ErrIndexUnavailable when they have nothing to
// search.
package index
