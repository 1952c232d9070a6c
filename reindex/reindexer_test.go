package reindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/clauseguard/ai/mock"
	"github.com/poiesic/clauseguard/answer"
	"github.com/poiesic/clauseguard/core"
	"github.com/poiesic/clauseguard/ingestion"
	"github.com/poiesic/clauseguard/storage"
	"github.com/poiesic/clauseguard/storage/badger"
	"github.com/poiesic/clauseguard/storage/chromem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStores(t *testing.T) (storage.Catalog, storage.VectorIndex) {
	t.Helper()
	catalog, backend, err := badger.NewMemoryCatalog()
	require.NoError(t, err)
	index, err := chromem.NewIndex("", "test")
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		catalog.Close()
		backend.Close()
	})
	return catalog, index
}

// seed records n chunks of one document under the old model.
func seed(t *testing.T, catalog storage.Catalog, index storage.VectorIndex, n int) []core.Chunk {
	t.Helper()
	ctx := context.Background()

	chunks := make([]core.Chunk, n)
	entries := make([]core.IndexEntry, n)
	for i := range chunks {
		text := fmt.Sprintf("Article %d applies to refunds", i)
		chunks[i] = core.Chunk{Id: core.ChunkID("terms.pdf", i, text), Source: "terms.pdf", Seq: i, Start: i * 30, Text: text}
		entries[i] = core.IndexEntry{Chunk: chunks[i], Vector: core.NormalizeVector([]float32{1, float32(i), 0})}
	}
	require.NoError(t, index.Upsert(ctx, entries))
	require.NoError(t, catalog.RecordIngestion(ctx, []*core.DocumentRecord{{Source: "terms.pdf", Chunks: n}}, chunks))
	require.NoError(t, catalog.SaveManifest(ctx, &core.Manifest{
		Collection:     "test",
		EmbeddingModel: "old-model",
		Dimension:      3,
		Metric:         core.MetricCosine,
	}))
	return chunks
}

func testConfig() *Config {
	return &Config{
		Collection:     "test",
		BatchSize:      3,
		ReportInterval: 3,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
		ServiceTimeout: time.Second,
	}
}

func newEmbedder() *mock.MockEmbedder {
	embedder := mock.NewMockEmbedder()
	embedder.ModelName = "new-model"
	embedder.Dimension = 16
	return embedder
}

func TestNewReindexer_Validation(t *testing.T) {
	catalog, index := setupStores(t)
	embedder := newEmbedder()

	_, err := NewReindexer(nil, index, embedder, nil, nil)
	assert.ErrorIs(t, err, ErrCatalogRequired)
	_, err = NewReindexer(catalog, nil, embedder, nil, nil)
	assert.ErrorIs(t, err, ErrIndexRequired)
	_, err = NewReindexer(catalog, index, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	cfg := testConfig()
	cfg.BatchSize = 0
	_, err = NewReindexer(catalog, index, embedder, cfg, nil)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	r, err := NewReindexer(catalog, index, embedder, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), r.config)
}

func TestReindexer_Run(t *testing.T) {
	ctx := context.Background()
	catalog, index := setupStores(t)
	chunks := seed(t, catalog, index, 10)
	embedder := newEmbedder()

	var buf bytes.Buffer
	r, err := NewReindexer(catalog, index, embedder, testConfig(), &buf)
	require.NoError(t, err)

	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, result.Chunks)
	assert.Equal(t, 4, embedder.CallCount(), "10 chunks in batches of 3")

	manifest, err := catalog.LoadManifest(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, "new-model|16|cosine", manifest.Fingerprint())
	assert.Equal(t, manifest.Fingerprint(), result.Manifest.Fingerprint())

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	// The index now answers queries in the new embedding space.
	query := core.NormalizeVector(mock.BagOfWords(chunks[7].Text, 16))
	hits, err := index.Query(ctx, query, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "terms.pdf", hits[0].Chunk.Source)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-4)

	output := buf.String()
	assert.Contains(t, output, "Starting reindex of 10 chunks with new-model")
	assert.Contains(t, output, "10/10")
	assert.Contains(t, output, "Reindex complete")
}

func TestReindexer_Empty(t *testing.T) {
	catalog, index := setupStores(t)
	embedder := newEmbedder()

	var buf bytes.Buffer
	r, err := NewReindexer(catalog, index, embedder, testConfig(), &buf)
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Chunks)
	assert.Nil(t, result.Manifest)
	assert.Zero(t, embedder.CallCount())
	assert.Contains(t, buf.String(), "0 chunks")
}

// A first ingestion that failed after recording its manifest leaves a
// manifest with nothing behind it. Reindexing the empty catalog clears it so
// another embedder can be used.
func TestReindexer_EmptyCatalogReleasesManifest(t *testing.T) {
	ctx := context.Background()
	catalog, index := setupStores(t)
	require.NoError(t, catalog.SaveManifest(ctx, &core.Manifest{
		Collection:     "test",
		EmbeddingModel: "old-model",
		Dimension:      3,
		Metric:         core.MetricCosine,
	}))

	embedder := newEmbedder()
	pipeline, err := ingestion.NewPipeline(catalog, index, embedder, ingestion.WithCollection("test"))
	require.NoError(t, err)
	defer pipeline.Release()

	docs := []core.Document{{Source: "terms.pdf", Text: "Refunds are issued within 14 days."}}
	_, err = pipeline.IngestDocuments(ctx, docs)
	require.ErrorIs(t, err, core.ErrEmbeddingMismatch)

	r, err := NewReindexer(catalog, index, embedder, testConfig(), nil)
	require.NoError(t, err)
	_, err = r.Run(ctx)
	require.NoError(t, err)

	manifest, err := catalog.LoadManifest(ctx, "test")
	require.NoError(t, err)
	assert.Nil(t, manifest)

	result, err := pipeline.IngestDocuments(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Documents)

	manifest, err = catalog.LoadManifest(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, "new-model|16|cosine", manifest.Fingerprint())
}

func TestReindexer_FailureBlocksCollectionUntilRerun(t *testing.T) {
	ctx := context.Background()
	catalog, index := setupStores(t)
	seed(t, catalog, index, 10)

	embedder := newEmbedder()
	calls := 0
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("service unavailable")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.BagOfWords(text, 16)
		}
		return out, nil
	}

	r, err := NewReindexer(catalog, index, embedder, testConfig(), nil)
	require.NoError(t, err)

	_, err = r.Run(ctx)
	assert.ErrorIs(t, err, core.ErrEmbeddingService)
	assert.Equal(t, 1+testConfig().MaxRetries, calls)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "only the first batch was indexed")

	manifest, err := catalog.LoadManifest(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, "new-model", manifest.EmbeddingModel)
	assert.True(t, manifest.Reindexing)

	oldEmbedder := mock.NewMockEmbedder()
	oldEmbedder.ModelName = "old-model"
	oldEmbedder.Dimension = 3
	generator := mock.NewMockGenerator()

	// Neither embedding space may use the half-rebuilt index.
	for _, e := range []*mock.MockEmbedder{oldEmbedder, newEmbedder()} {
		answerer, err := answer.NewAnswerer(catalog, index, mock.NewMockProviderWithServices(e, generator),
			answer.WithCollection("test"))
		require.NoError(t, err)
		_, err = answerer.Answer(ctx, "Which article applies to refunds?")
		assert.ErrorIs(t, err, core.ErrEmbeddingMismatch, e.Model())

		pipeline, err := ingestion.NewPipeline(catalog, index, e, ingestion.WithCollection("test"))
		require.NoError(t, err)
		_, err = pipeline.IngestDocuments(ctx, []core.Document{{Source: "new.pdf", Text: "Article 11 applies to refunds"}})
		pipeline.Release()
		assert.ErrorIs(t, err, core.ErrEmbeddingMismatch, e.Model())
	}
	assert.Zero(t, generator.CallCount())

	// Running again completes the rebuild and lifts the mark.
	embedder.EmbedTextsFunc = nil
	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, result.Chunks)

	manifest, err = catalog.LoadManifest(ctx, "test")
	require.NoError(t, err)
	assert.False(t, manifest.Reindexing)
	assert.Equal(t, "new-model|16|cosine", manifest.Fingerprint())

	answerer, err := answer.NewAnswerer(catalog, index, mock.NewMockProviderWithServices(newEmbedder(), generator),
		answer.WithCollection("test"))
	require.NoError(t, err)
	res, err := answerer.Answer(ctx, "Which article applies to refunds?")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Chunks)
}

func TestBatchProcessor_Process(t *testing.T) {
	ctx := context.Background()
	_, index := setupStores(t)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{3, 4}
		}
		return out, nil
	}
	processor := NewBatchProcessor(index, embedder, 3, time.Millisecond, time.Second)

	require.NoError(t, processor.Process(ctx, nil), "empty batch should not error")
	assert.Zero(t, processor.Dimension())

	chunk := core.Chunk{Id: core.ChunkID("a", 0, "x"), Source: "a", Text: "x"}
	require.NoError(t, processor.Process(ctx, []core.Chunk{chunk}))
	assert.Equal(t, 2, processor.Dimension())

	hits, err := index.Query(ctx, []float32{0.6, 0.8}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-4)

	t.Run("dimension change between batches", func(t *testing.T) {
		embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 0, 0}}, nil
		}
		err := processor.Process(ctx, []core.Chunk{chunk})
		assert.ErrorIs(t, err, core.ErrEmbeddingMismatch)
	})

	t.Run("count mismatch", func(t *testing.T) {
		embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
			return nil, nil
		}
		err := processor.Process(ctx, []core.Chunk{chunk})
		assert.ErrorIs(t, err, core.ErrEmbeddingService)
	})

	t.Run("retries transient errors", func(t *testing.T) {
		attempts := 0
		embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
			attempts++
			if attempts < 2 {
				return nil, errors.New("temporary error")
			}
			return [][]float32{{0, 1}}, nil
		}
		require.NoError(t, processor.Process(ctx, []core.Chunk{chunk}))
		assert.Equal(t, 2, attempts)
	})
}
