package storage

import (
	"context"

	"github.com/poiesic/clauseguard/core"
)

// VectorIndex stores chunk vectors for one collection and answers
// nearest-neighbour queries. Implementations must be thread-safe.
type VectorIndex interface {
	// Upsert stores entries, replacing any entry with the same chunk ID.
	// The batch is all-or-nothing: on error none of the entries are visible.
	Upsert(ctx context.Context, entries []core.IndexEntry) error

	// Query returns up to k chunks ordered by descending similarity to vector.
	// An empty index yields an empty result, not an error.
	Query(ctx context.Context, vector []float32, k int) ([]core.ScoredChunk, error)

	// Delete removes entries by chunk ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids ...core.ID) error

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Reset removes every entry of the collection.
	Reset(ctx context.Context) error

	// Metric reports the similarity function used by Query.
	Metric() core.Metric

	// Close releases resources held by the index.
	Close() error
}

// Catalog is the durable record of what has been ingested into one
// collection: every document, the chunks derived from it, and the embedding
// manifest. Vectors are not kept here; the catalog is what a reindex
// re-embeds from. Implementations must be thread-safe.
type Catalog interface {
	// RecordIngestion stores docs and chunks in a single transaction.
	// Chunks previously recorded for any of the docs' sources are replaced.
	RecordIngestion(ctx context.Context, docs []*core.DocumentRecord, chunks []core.Chunk) error

	// ChunkIDs returns the IDs of the chunks recorded for source, in order.
	ChunkIDs(ctx context.Context, source string) ([]core.ID, error)

	// GetDocument returns the record for source.
	// Returns ErrNotFound if the document was never ingested.
	GetDocument(ctx context.Context, source string) (*core.DocumentRecord, error)

	// ListDocuments returns every document record ordered by source.
	ListDocuments(ctx context.Context) ([]*core.DocumentRecord, error)

	// ForEachChunk calls fn with successive batches of at most batchSize chunks.
	// Iteration stops on the first error from fn.
	ForEachChunk(ctx context.Context, batchSize int, fn func([]core.Chunk) error) error

	// CountChunks returns the number of recorded chunks.
	CountChunks(ctx context.Context) (int, error)

	// LoadManifest returns the manifest of collection.
	// Returns nil, nil if none has been saved yet.
	LoadManifest(ctx context.Context, collection string) (*core.Manifest, error)

	// SaveManifest creates or replaces the manifest of its collection.
	SaveManifest(ctx context.Context, manifest *core.Manifest) error

	// CreateManifest records the first manifest of its collection.
	// Returns ErrManifestExists if one was recorded before or concurrently.
	CreateManifest(ctx context.Context, manifest *core.Manifest) error

	// DeleteManifest removes the manifest of collection. Missing is not an error.
	DeleteManifest(ctx context.Context, collection string) error

	// Close closes the storage backend and releases resources.
	Close() error
}
