// Package reembed recomputes the vector of every stored chunk, typically after
// switching embedding models. Chunks are visited in corpus insertion order in
// batches, embedding calls are retried with exponential backoff, and progress
// is written to a caller supplied writer.
//
// Chunk text does not change, so the sparse index stays valid and needs no rebuild.
package reembed
