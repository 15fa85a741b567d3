// Package ingestion turns publication lists into stored, embedded chunks.
//
// The Pipeline type manages the ingestion workflow, including:
//   - Splitting document text into overlapping chunks
//   - Deriving chunk ids from the document base id and chunk position
//   - Embedding new or changed chunks on a worker pool
//   - Removing chunks a shorter revision of a document no longer has
//   - Triggering a rebuild of the sparse index
//
// A Watcher feeds publication files dropped into a directory to the pipeline.
package ingestion
