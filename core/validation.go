// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ValidateChunkParams validates chunk size and overlap.
//
// Validation rules:
//   - maxSize must be positive
//   - overlap must be non-negative and strictly smaller than maxSize
func ValidateChunkParams(maxSize, overlap int) error {
	if maxSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, maxSize)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: chunk overlap cannot be negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= maxSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", ErrInvalidConfig, overlap, maxSize)
	}
	return nil
}

// ValidateDocument validates a Document before chunking.
// Empty text is valid; it simply yields no chunks.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrLoad)
	}
	if strings.TrimSpace(doc.Source) == "" {
		return fmt.Errorf("%w: %w", ErrLoad, ErrEmptySource)
	}
	return nil
}

// ValidateManifest checks that vectors described by candidate may share a
// collection with the vectors described by stored.
// A nil stored manifest accepts anything.
func ValidateManifest(stored, candidate *Manifest) error {
	if stored == nil || candidate == nil {
		return nil
	}
	if stored.Reindexing {
		return fmt.Errorf("%w: collection %q is being reindexed with model %q; rerun reindex to finish it",
			ErrEmbeddingMismatch, stored.Collection, stored.EmbeddingModel)
	}
	if stored.EmbeddingModel != candidate.EmbeddingModel {
		return fmt.Errorf("%w: collection %q was built with model %q, got %q",
			ErrEmbeddingMismatch, stored.Collection, stored.EmbeddingModel, candidate.EmbeddingModel)
	}
	if stored.Metric != candidate.Metric {
		return fmt.Errorf("%w: collection %q uses metric %q, index uses %q",
			ErrEmbeddingMismatch, stored.Collection, stored.Metric, candidate.Metric)
	}
	if candidate.Dimension != 0 && stored.Dimension != candidate.Dimension {
		return fmt.Errorf("%w: collection %q has dimension %d, got %d",
			ErrEmbeddingMismatch, stored.Collection, stored.Dimension, candidate.Dimension)
	}
	return nil
}

// StageError attaches a pipeline stage sentinel to err.
// Deadline expiry additionally matches ErrTimeout. An err that already
// matches stage is not wrapped a second time.
func StageError(stage, err error) error {
	if err == nil {
		return nil
	}
	timeout := errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout)
	switch {
	case errors.Is(err, stage) && timeout:
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, stage):
		return err
	case timeout:
		return fmt.Errorf("%w: %w: %w", stage, ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", stage, err)
	}
}
