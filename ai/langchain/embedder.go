package langchain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/clauseguard/ai"
	"github.com/tmc/langchaingo/embeddings"
)

// Embedder implements ai.Embedder on top of any langchaingo embedding client.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder wraps client. model is the identity recorded in collection
// manifests and must name the model client actually calls.
func NewEmbedder(client embeddings.EmbedderClient, model string, logger *slog.Logger) (*Embedder, error) {
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		embedder: embedder,
		model:    model,
		logger:   logger,
	}, nil
}

// Model returns the embedding model identifier.
func (e *Embedder) Model() string {
	return e.model
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, ai.EmbeddingError(err)
	}
	if len(vector) == 0 {
		return nil, ai.EmbeddingError(fmt.Errorf("model %s returned an empty vector", e.model))
	}
	return vector, nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, ai.EmbeddingError(err)
	}
	if len(vectors) != len(texts) {
		return nil, ai.EmbeddingError(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors)))
	}
	return vectors, nil
}
