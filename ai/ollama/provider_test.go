package ollama

import (
	"testing"

	"github.com/poiesic/clauseguard/ai"
	"github.com/poiesic/clauseguard/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	cfg := ai.NewConfig(
		ai.WithProvider(ai.ProviderOllama),
		ai.WithHost("http://localhost:11434/v1"),
		ai.WithEmbeddingModel("nomic-embed-text"),
		ai.WithGenerationModel("llama3"),
	)

	provider, err := ai.NewProvider(cfg)
	require.NoError(t, err)
	defer provider.Close()

	assert.Equal(t, "http://localhost:11434", cfg.EmbeddingHost)
	assert.Equal(t, "nomic-embed-text", provider.Embedder().Model())
	assert.Equal(t, "llama3", provider.Generator().Model())
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{EmbeddingHost: "http://localhost:11434"})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
