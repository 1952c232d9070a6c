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

import "errors"

// Configuration and validation errors
var (
	// ErrInvalidConfig indicates bad chunking or pipeline parameters.
	// It is raised at call time and never worth retrying.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrEmptySource indicates a Document without a source identifier.
	ErrEmptySource = errors.New("source cannot be empty")

	// ErrEmptyQuestion indicates an Answer call with a blank question.
	ErrEmptyQuestion = errors.New("question cannot be empty")
)

// Pipeline stage errors. Each wraps the underlying cause.
var (
	// ErrLoad indicates that text extraction for a document failed.
	ErrLoad = errors.New("document load failed")

	// ErrEmbeddingService indicates a failure of the embedding service.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrIndexWrite indicates that the vector index rejected an upsert.
	ErrIndexWrite = errors.New("index write failed")

	// ErrCatalog indicates a failure of the document catalog.
	ErrCatalog = errors.New("catalog error")

	// ErrRetrieval indicates that querying the vector index failed.
	ErrRetrieval = errors.New("retrieval error")

	// ErrGeneration indicates a failure of the text generation service.
	ErrGeneration = errors.New("generation error")

	// ErrEmbeddingMismatch indicates vectors from a different embedding model,
	// dimension or metric than the ones recorded for the collection.
	ErrEmbeddingMismatch = errors.New("embedding version mismatch")

	// ErrTimeout indicates that an external service call exceeded its deadline.
	ErrTimeout = errors.New("service call timed out")
)
