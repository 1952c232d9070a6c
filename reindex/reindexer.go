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

package reindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/clauseguard/ai"
	"github.com/poiesic/clauseguard/core"
	"github.com/poiesic/clauseguard/storage"
)

// Config holds configuration for the reindex operation.
type Config struct {
	// Collection is the collection whose manifest is rewritten
	Collection string

	// BatchSize is the number of chunks to embed in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// ServiceTimeout bounds each call to the embedder and index
	ServiceTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Collection:     "documents",
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		ServiceTimeout: 60 * time.Second,
	}
}

// Result summarizes a completed reindex run.
type Result struct {
	Chunks   int
	Manifest *core.Manifest
	Elapsed  time.Duration
}

// Reindexer rebuilds the vector index of a collection from the catalog.
type Reindexer struct {
	catalog  storage.Catalog
	index    storage.VectorIndex
	embedder ai.Embedder
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr), may be nil
func NewReindexer(catalog storage.Catalog, index storage.VectorIndex, embedder ai.Embedder, config *Config, progress io.Writer) (*Reindexer, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Collection == "" || config.BatchSize < 1 || config.MaxRetries < 1 || config.ServiceTimeout <= 0 {
		return nil, fmt.Errorf("%w: reindex needs a collection, positive batch size, retries and service timeout", core.ErrInvalidConfig)
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reindexer{
		catalog:  catalog,
		index:    index,
		embedder: embedder,
		config:   config,
		progress: progress,
		logger:   slog.Default().With("component", "reindex"),
	}, nil
}

// Run executes the reindex operation.
// Every catalogued chunk is re-embedded with the configured embedder.
// Before the index is reset the manifest is switched to the new model and
// marked as reindexing, which makes ingestion and answering refuse the
// collection until the run completes and the final manifest is saved. An
// interrupted run leaves the mark in place; running again finishes it.
//
// An empty catalog resets the index and removes the manifest, so the next
// ingestion records whichever embedder it uses.
func (r *Reindexer) Run(ctx context.Context) (*Result, error) {
	total, err := r.catalog.CountChunks(ctx)
	if err != nil {
		return nil, core.StageError(core.ErrCatalog, err)
	}
	if total == 0 {
		if err := r.index.Reset(ctx); err != nil {
			return nil, core.StageError(core.ErrIndexWrite, err)
		}
		if err := r.catalog.DeleteManifest(ctx, r.config.Collection); err != nil {
			return nil, core.StageError(core.ErrCatalog, err)
		}
		r.logger.Info("catalog is empty, cleared index and manifest", "collection", r.config.Collection)
		fmt.Fprintf(r.progress, "No chunks found in catalog (0 chunks); index and manifest cleared\n")
		return &Result{}, nil
	}

	r.logger.Info("reindexing collection",
		"collection", r.config.Collection,
		"chunks", total,
		"model", r.embedder.Model())
	fmt.Fprintf(r.progress, "Starting reindex of %d chunks with %s (batch size: %d)\n",
		total, r.embedder.Model(), r.config.BatchSize)

	pending := &core.Manifest{
		Collection:     r.config.Collection,
		EmbeddingModel: r.embedder.Model(),
		Metric:         r.index.Metric(),
		Reindexing:     true,
	}
	if err := r.catalog.SaveManifest(ctx, pending); err != nil {
		return nil, core.StageError(core.ErrCatalog, err)
	}

	if err := r.index.Reset(ctx); err != nil {
		return nil, core.StageError(core.ErrIndexWrite, err)
	}

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processor := NewBatchProcessor(r.index, r.embedder, r.config.MaxRetries, r.config.RetryDelay, r.config.ServiceTimeout)
	processed := 0
	err = r.catalog.ForEachChunk(ctx, r.config.BatchSize, func(chunks []core.Chunk) error {
		if err := processor.Process(ctx, chunks); err != nil {
			return fmt.Errorf("failed to process batch at chunk %d: %w", processed, err)
		}
		processed += len(chunks)
		tracker.Add(len(chunks))
		return nil
	})
	if err != nil {
		r.logger.Error("reindex aborted, index is incomplete; run reindex again",
			"processed", processed, "total", total, "err", err)
		return nil, err
	}

	manifest := &core.Manifest{
		Collection:     r.config.Collection,
		EmbeddingModel: r.embedder.Model(),
		Dimension:      processor.Dimension(),
		Metric:         r.index.Metric(),
	}
	if err := r.catalog.SaveManifest(ctx, manifest); err != nil {
		return nil, core.StageError(core.ErrCatalog, err)
	}

	tracker.Finish()
	elapsed := tracker.Snapshot().Elapsed
	fmt.Fprintf(r.progress, "Reindex complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		processed, elapsed.Round(time.Millisecond), float64(processed)/elapsed.Seconds())

	return &Result{Chunks: processed, Manifest: manifest, Elapsed: elapsed}, nil
}
