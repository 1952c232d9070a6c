package ai

import "github.com/poiesic/clauseguard/core"

// EmbeddingError wraps a failure of the embedding service.
func EmbeddingError(err error) error {
	return core.StageError(core.ErrEmbeddingService, err)
}

// GenerationError wraps a failure of the generation service.
func GenerationError(err error) error {
	return core.StageError(core.ErrGeneration, err)
}
