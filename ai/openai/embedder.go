package openai

import (
	"log/slog"

	"github.com/poiesic/clauseguard/ai"
	"github.com/poiesic/clauseguard/ai/langchain"
	"github.com/tmc/langchaingo/llms/openai"
)

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*langchain.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.Token()),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	return langchain.NewEmbedder(client, config.EmbeddingModel,
		slog.Default().With("component", "openai-embedder"))
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}
