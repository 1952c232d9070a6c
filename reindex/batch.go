package reindex

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/clauseguard/ai"
	"github.com/poiesic/clauseguard/core"
	"github.com/poiesic/clauseguard/storage"
)

// BatchProcessor re-embeds one batch of chunks and writes it to the index.
type BatchProcessor struct {
	index          storage.VectorIndex
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	serviceTimeout time.Duration
	dimension      int
}

// NewBatchProcessor creates a processor writing to index.
func NewBatchProcessor(index storage.VectorIndex, embedder ai.Embedder, maxRetries int, retryBaseDelay, serviceTimeout time.Duration) *BatchProcessor {
	return &BatchProcessor{
		index:          index,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		serviceTimeout: serviceTimeout,
	}
}

// Dimension returns the vector size seen so far, or 0 before the first batch.
func (bp *BatchProcessor) Dimension() int {
	return bp.dimension
}

// Process embeds chunks, normalizes the vectors and upserts them.
// Every batch must produce vectors of the same dimension as the first one.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	// Generate embeddings with retry
	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, bp.serviceTimeout)
		defer cancel()
		var err error
		embeddings, err = bp.embedder.EmbedTexts(callCtx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return ai.EmbeddingError(fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err))
	}

	if len(embeddings) != len(chunks) {
		return ai.EmbeddingError(fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(embeddings)))
	}

	dim, err := core.UniformDimension(embeddings)
	if err != nil {
		return err
	}
	if bp.dimension == 0 {
		bp.dimension = dim
	} else if dim != bp.dimension {
		return fmt.Errorf("%w: batch has dimension %d, earlier batches %d", core.ErrEmbeddingMismatch, dim, bp.dimension)
	}

	entries := make([]core.IndexEntry, len(chunks))
	for i := range chunks {
		entries[i] = core.IndexEntry{Chunk: chunks[i], Vector: core.NormalizeVector(embeddings[i])}
	}

	upsertCtx, cancel := context.WithTimeout(ctx, bp.serviceTimeout)
	defer cancel()
	if err := bp.index.Upsert(upsertCtx, entries); err != nil {
		return core.StageError(core.ErrIndexWrite, err)
	}
	return nil
}
