// Package ingestion turns documents into searchable chunks.
//
// A Pipeline runs every call through the same stages:
//   - Load each input with a loader.Loader, concurrently on a worker pool
//   - Split each document with a chunking.Chunker
//   - Embed all chunks in batches
//   - Check the collection's embedding manifest
//   - Upsert every vector into the storage.VectorIndex in one batch
//   - Record documents and chunks in the storage.Catalog in one transaction
//
// A call is all-or-nothing. Nothing is embedded until every input has
// loaded, and a failed catalog write removes the vectors it had added.
// Chunks that a re-ingested document no longer produces are removed from
// the index once the catalog write has succeeded.
package ingestion
