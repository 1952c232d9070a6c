package openai

import (
	"log/slog"

	"github.com/poiesic/clauseguard/ai"
	"github.com/poiesic/clauseguard/ai/langchain"
	"github.com/tmc/langchaingo/llms/openai"
)

// newGenerator is an internal constructor that returns the concrete type.
func newGenerator(config *ai.Config) (*langchain.Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(config.Token()),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return langchain.NewGenerator(client, config.GenerationModel, config.Temperature,
		slog.Default().With("component", "openai-generator")), nil
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}
