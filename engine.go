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

// Package clauseguard answers questions about legal documents by retrieving
// the relevant passages and handing them to a text generation model.
package clauseguard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/poiesic/clauseguard/ai"
	_ "github.com/poiesic/clauseguard/ai/ollama"
	_ "github.com/poiesic/clauseguard/ai/openai"
	"github.com/poiesic/clauseguard/answer"
	"github.com/poiesic/clauseguard/chunking"
	"github.com/poiesic/clauseguard/config"
	"github.com/poiesic/clauseguard/core"
	"github.com/poiesic/clauseguard/ingestion"
	"github.com/poiesic/clauseguard/reindex"
	"github.com/poiesic/clauseguard/storage"
	"github.com/poiesic/clauseguard/storage/badger"
	"github.com/poiesic/clauseguard/storage/chromem"
	"github.com/poiesic/clauseguard/storage/pgvector"
)

// Engine wires the catalog, the vector index and the AI provider described
// by a config, and hands out pipelines that share them.
type Engine struct {
	config   *config.Config
	backend  *badger.Backend
	catalog  storage.Catalog
	index    storage.VectorIndex
	provider ai.AIProvider
	chunker  *chunking.Chunker
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithProvider uses provider instead of building one from the ai config.
// The engine takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// Open validates cfg and opens every store it names.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	chunker, err := chunking.NewChunker(cfg.Chunking.MaxSize, cfg.Chunking.OverlapSize())
	if err != nil {
		return nil, err
	}

	// Open backend
	backend, err := badger.OpenBackend(cfg.CatalogPath(), cfg.InMemory)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	catalog, err := badger.NewCatalog(backend, badger.WithCollection(cfg.Collection))
	if err != nil {
		backend.Close()
		return nil, err
	}

	index, err := openIndex(ctx, cfg, options.logger)
	if err != nil {
		catalog.Close()
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = ai.NewProvider(cfg.AIConfig())
		if err != nil {
			index.Close()
			catalog.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Engine{
		config:   cfg,
		backend:  backend,
		catalog:  catalog,
		index:    index,
		provider: provider,
		chunker:  chunker,
		logger:   options.logger.With("component", "engine"),
	}, nil
}

func openIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.VectorIndex, error) {
	switch cfg.Index.Type {
	case config.IndexPgvector:
		pg := cfg.Index.Postgres
		pgCfg := pgvector.Config{DSN: pg.DSN, Driver: pg.Driver, Debug: pg.Debug}
		if pg.PasswordEnv != "" {
			pgCfg.Password = os.Getenv(pg.PasswordEnv)
		}
		return pgvector.NewIndex(ctx, pgCfg, cfg.Collection, pgvector.WithLogger(logger.With("component", "pgvector-index")))
	default:
		path := cfg.IndexPath()
		if cfg.InMemory {
			path = ""
		}
		return chromem.NewIndex(path, cfg.Collection, chromem.WithLogger(logger.With("component", "chromem-index")))
	}
}

// Close releases the provider and every store.
func (e *Engine) Close() error {
	// Close AI provider first
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}

	if err := e.index.Close(); err != nil {
		e.logger.Error("error closing vector index", "err", err)
		return err
	}
	if err := e.catalog.Close(); err != nil {
		e.logger.Error("error closing catalog", "err", err)
		return err
	}

	// Close backend
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (e *Engine) Config() *config.Config {
	return e.config
}

func (e *Engine) Catalog() storage.Catalog {
	return e.catalog
}

func (e *Engine) Index() storage.VectorIndex {
	return e.index
}

func (e *Engine) Provider() ai.AIProvider {
	return e.provider
}

// NewIngestionPipeline creates a pipeline configured from the engine's
// config. opts are applied last and may override it.
func (e *Engine) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithChunker(e.chunker),
		ingestion.WithCollection(e.config.Collection),
		ingestion.WithEmbedBatchSize(e.config.Ingestion.EmbedBatchSize),
		ingestion.WithServiceTimeout(e.config.ServiceTimeout.Duration()),
	}
	if e.config.Ingestion.Workers > 0 {
		base = append(base, ingestion.WithPoolSize(e.config.Ingestion.Workers))
	}
	return ingestion.NewPipeline(e.catalog, e.index, e.provider.Embedder(), append(base, opts...)...)
}

// NewAnswerer creates an answerer configured from the engine's config.
func (e *Engine) NewAnswerer(opts ...answer.Option) (*answer.Answerer, error) {
	base := []answer.Option{
		answer.WithCollection(e.config.Collection),
		answer.WithTopK(e.config.Answer.TopK),
		answer.WithServiceTimeout(e.config.ServiceTimeout.Duration()),
	}
	return answer.NewAnswerer(e.catalog, e.index, e.provider, append(base, opts...)...)
}

// NewReindexer creates a reindexer that rebuilds the index with the
// engine's embedder. Progress is written to progress, which may be nil.
func (e *Engine) NewReindexer(progress io.Writer) (*reindex.Reindexer, error) {
	cfg := &reindex.Config{
		Collection:     e.config.Collection,
		BatchSize:      e.config.Reindex.BatchSize,
		ReportInterval: e.config.Reindex.BatchSize,
		MaxRetries:     e.config.Reindex.MaxRetries,
		RetryDelay:     e.config.Reindex.RetryDelay.Duration(),
		ServiceTimeout: e.config.ServiceTimeout.Duration(),
	}
	return reindex.NewReindexer(e.catalog, e.index, e.provider.Embedder(), cfg, progress)
}

// Documents lists the ingested documents ordered by source.
func (e *Engine) Documents(ctx context.Context) ([]*core.DocumentRecord, error) {
	docs, err := e.catalog.ListDocuments(ctx)
	if err != nil {
		return nil, core.StageError(core.ErrCatalog, err)
	}
	return docs, nil
}

// Status describes the state of the engine's collection.
type Status struct {
	Collection string         `json:"collection"`
	Documents  int            `json:"documents"`
	Chunks     int            `json:"chunks"`
	Indexed    int            `json:"indexed"`
	Manifest   *core.Manifest `json:"manifest,omitempty"`
}

// Status reports document and chunk counts and the collection manifest.
// Chunks and Indexed differ only after an interrupted reindex.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	docs, err := e.Documents(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := e.catalog.CountChunks(ctx)
	if err != nil {
		return nil, core.StageError(core.ErrCatalog, err)
	}
	indexed, err := e.index.Count(ctx)
	if err != nil {
		return nil, core.StageError(core.ErrRetrieval, err)
	}
	manifest, err := e.catalog.LoadManifest(ctx, e.config.Collection)
	if err != nil {
		return nil, core.StageError(core.ErrCatalog, err)
	}
	return &Status{
		Collection: e.config.Collection,
		Documents:  len(docs),
		Chunks:     chunks,
		Indexed:    indexed,
		Manifest:   manifest,
	}, nil
}
