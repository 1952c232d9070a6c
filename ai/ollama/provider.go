// Package ollama provides AI service implementations using the native Ollama API.
//
// Importing the package registers it under ai.ProviderOllama. Hosts are used
// without the /v1 suffix of the OpenAI-compatible endpoint.
package ollama

import (
	"log/slog"

	"github.com/poiesic/clauseguard/ai"
	"github.com/poiesic/clauseguard/ai/langchain"
	"github.com/tmc/langchaingo/llms/ollama"
)

func init() {
	ai.Register(ai.ProviderOllama, NewProvider)
}

// Provider implements ai.AIProvider against an Ollama server.
type Provider struct {
	embedder  *langchain.Embedder
	generator *langchain.Generator
	logger    *slog.Logger
}

// NewProvider creates a new AI provider backed by Ollama.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	config.Provider = ai.ProviderOllama
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedClient, err := ollama.New(
		ollama.WithServerURL(config.EmbeddingHost),
		ollama.WithModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}
	embedder, err := langchain.NewEmbedder(embedClient, config.EmbeddingModel,
		slog.Default().With("component", "ollama-embedder"))
	if err != nil {
		return nil, err
	}

	genClient, err := ollama.New(
		ollama.WithServerURL(config.GenerationHost),
		ollama.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return &Provider{
		embedder: embedder,
		generator: langchain.NewGenerator(genClient, config.GenerationModel, config.Temperature,
			slog.Default().With("component", "ollama-generator")),
		logger: slog.Default().With("component", "ollama-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Generator returns the text generation service.
func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// Close is a no-op; the HTTP clients hold no resources.
func (p *Provider) Close() error {
	p.logger.Debug("closing Ollama provider")
	return nil
}
