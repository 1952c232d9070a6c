package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/clauseguard/ai"
	"github.com/poiesic/clauseguard/chunking"
	"github.com/poiesic/clauseguard/core"
	"github.com/poiesic/clauseguard/loader"
	"github.com/poiesic/clauseguard/storage"
)

const (
	// DefaultCollection is the collection name used when none is configured.
	DefaultCollection = "documents"

	// DefaultEmbedBatchSize is the number of chunks sent per embedding request.
	DefaultEmbedBatchSize = 32

	// DefaultServiceTimeout bounds every call to an external service.
	DefaultServiceTimeout = 60 * time.Second
)

// Pipeline orchestrates loading, chunking, embedding and indexing of documents.
type Pipeline struct {
	catalog        storage.Catalog
	index          storage.VectorIndex
	embedder       ai.Embedder
	loader         loader.Loader
	chunker        *chunking.Chunker
	collection     string
	loadPool       *ants.Pool
	embedBatchSize int
	serviceTimeout time.Duration
	logger         *slog.Logger
}

// Result summarizes a successful ingestion.
type Result struct {
	Documents int      `json:"documents"`
	Chunks    int      `json:"chunks"`
	Sources   []string `json:"sources"`
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size used to load inputs.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.loadPool != nil {
			p.loadPool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.loadPool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingestion")
		return nil
	}
}

// WithLoader sets the loader used by Ingest.
// Default is loader.NewFileLoader().
func WithLoader(l loader.Loader) Option {
	return func(p *Pipeline) error {
		if l == nil {
			return fmt.Errorf("%w: loader cannot be nil", core.ErrInvalidConfig)
		}
		p.loader = l
		return nil
	}
}

// WithChunker sets the chunker.
// Default splits at chunking.DefaultMaxSize with chunking.DefaultOverlap.
func WithChunker(c *chunking.Chunker) Option {
	return func(p *Pipeline) error {
		if c == nil {
			return fmt.Errorf("%w: chunker cannot be nil", core.ErrInvalidConfig)
		}
		p.chunker = c
		return nil
	}
}

// WithCollection sets the collection whose manifest guards the index.
func WithCollection(name string) Option {
	return func(p *Pipeline) error {
		if name == "" {
			return fmt.Errorf("%w: collection name cannot be empty", core.ErrInvalidConfig)
		}
		p.collection = name
		return nil
	}
}

// WithEmbedBatchSize sets how many chunks are embedded per request.
func WithEmbedBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("%w: embed batch size must be positive, got %d", core.ErrInvalidConfig, size)
		}
		p.embedBatchSize = size
		return nil
	}
}

// WithServiceTimeout bounds each call to the loader, embedder and index.
func WithServiceTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d <= 0 {
			return fmt.Errorf("%w: service timeout must be positive, got %s", core.ErrInvalidConfig, d)
		}
		p.serviceTimeout = d
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	catalog storage.Catalog,
	index storage.VectorIndex,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		catalog:        catalog,
		index:          index,
		embedder:       embedder,
		collection:     DefaultCollection,
		loadPool:       pool,
		embedBatchSize: DefaultEmbedBatchSize,
		serviceTimeout: DefaultServiceTimeout,
		logger:         slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	if p.loader == nil {
		fl, err := loader.NewFileLoader()
		if err != nil {
			p.Release()
			return nil, err
		}
		p.loader = fl
	}
	if p.chunker == nil {
		c, err := chunking.NewChunker(chunking.DefaultMaxSize, chunking.DefaultOverlap)
		if err != nil {
			p.Release()
			return nil, err
		}
		p.chunker = c
	}

	return p, nil
}

// Ingest loads inputs and indexes them as one batch.
// If any input fails to load a *LoadError naming it is returned and nothing
// is embedded or written.
func (p *Pipeline) Ingest(ctx context.Context, inputs []loader.Input) (*Result, error) {
	docs, err := p.load(ctx, inputs)
	if err != nil {
		return nil, err
	}
	return p.IngestDocuments(ctx, docs)
}

// load extracts all inputs concurrently, keeping input order.
func (p *Pipeline) load(ctx context.Context, inputs []loader.Input) ([]core.Document, error) {
	docs := make([]core.Document, len(inputs))
	errs := make([]error, len(inputs))

	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		submitErr := p.loadPool.Submit(func() {
			defer wg.Done()
			loadCtx, cancel := context.WithTimeout(ctx, p.serviceTimeout)
			defer cancel()
			docs[i], errs[i] = p.loader.Load(loadCtx, in)
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			source := inputs[i].Source()
			p.logger.Error("error loading document", "source", source, "err", err)
			return nil, &LoadError{Source: source, Err: core.StageError(core.ErrLoad, err)}
		}
	}
	return docs, nil
}

// IngestDocuments indexes already-extracted documents as one batch.
// When a source appears more than once the last occurrence wins.
// Documents without text produce no chunks and are not recorded.
func (p *Pipeline) IngestDocuments(ctx context.Context, docs []core.Document) (*Result, error) {
	docs = p.dedupe(docs)

	var chunks []core.Chunk
	var records []*core.DocumentRecord
	for i := range docs {
		doc := docs[i]
		if err := core.ValidateDocument(&doc); err != nil {
			return nil, &LoadError{Source: doc.Source, Err: err}
		}
		docChunks, err := p.chunker.Chunk(doc)
		if err != nil {
			return nil, err
		}
		if len(docChunks) == 0 {
			p.logger.Warn("document has no text, skipping", "source", doc.Source)
			continue
		}
		chunks = append(chunks, docChunks...)
		records = append(records, &core.DocumentRecord{
			Source:     doc.Source,
			Chunks:     len(docChunks),
			Characters: len([]rune(doc.Text)),
		})
	}

	result := &Result{Sources: []string{}}
	if len(chunks) == 0 {
		return result, nil
	}

	p.logger.Info("ingesting documents", "documents", len(records), "chunks", len(chunks))

	vectors, err := p.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}

	if err := p.checkManifest(ctx, vectors); err != nil {
		return nil, err
	}

	entries := make([]core.IndexEntry, len(chunks))
	fresh := make(map[core.ID]struct{}, len(chunks))
	for i := range chunks {
		entries[i] = core.IndexEntry{Chunk: chunks[i], Vector: core.NormalizeVector(vectors[i])}
		fresh[chunks[i].Id] = struct{}{}
	}

	previous := make(map[core.ID]struct{})
	for _, rec := range records {
		ids, err := p.catalog.ChunkIDs(ctx, rec.Source)
		if err != nil {
			return nil, core.StageError(core.ErrCatalog, err)
		}
		for _, id := range ids {
			previous[id] = struct{}{}
		}
	}

	if err := p.upsert(ctx, entries); err != nil {
		return nil, err
	}

	if err := p.catalog.RecordIngestion(ctx, records, chunks); err != nil {
		p.logger.Error("error recording ingestion, removing indexed chunks", "err", err)
		p.compensate(ctx, chunks, previous)
		return nil, core.StageError(core.ErrCatalog, err)
	}

	var stale []core.ID
	for id := range previous {
		if _, ok := fresh[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := p.index.Delete(context.WithoutCancel(ctx), stale...); err != nil {
			p.logger.Error("error removing stale chunks", "chunks", len(stale), "err", err)
		}
	}

	result.Documents = len(records)
	result.Chunks = len(chunks)
	for _, rec := range records {
		result.Sources = append(result.Sources, rec.Source)
	}
	return result, nil
}

// dedupe keeps the last document of every source, in order of last appearance.
func (p *Pipeline) dedupe(docs []core.Document) []core.Document {
	last := make(map[string]int, len(docs))
	for i, doc := range docs {
		if _, ok := last[doc.Source]; ok {
			p.logger.Warn("duplicate source in batch, keeping the last one", "source", doc.Source)
		}
		last[doc.Source] = i
	}
	if len(last) == len(docs) {
		return docs
	}
	out := make([]core.Document, 0, len(last))
	for i, doc := range docs {
		if last[doc.Source] == i {
			out = append(out, doc)
		}
	}
	return out
}

// embed embeds the chunk texts in batches of embedBatchSize.
func (p *Pipeline) embed(ctx context.Context, chunks []core.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.embedBatchSize {
		end := min(start+p.embedBatchSize, len(chunks))
		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = chunks[start+i].Text
		}

		p.logger.Debug("generating embeddings", "from", start, "to", end)
		batch, err := p.embedBatch(ctx, texts)
		if err != nil {
			p.logger.Error("error generating embeddings", "err", err)
			return nil, ai.EmbeddingError(err)
		}
		if len(batch) != len(texts) {
			return nil, ai.EmbeddingError(fmt.Errorf("embedding result mismatch. expected %d, received %d", len(texts), len(batch)))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (p *Pipeline) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, p.serviceTimeout)
	defer cancel()
	return p.embedder.EmbedTexts(embedCtx, texts)
}

// checkManifest verifies that vectors belong to the collection's embedding
// space, creating the manifest on first ingestion.
func (p *Pipeline) checkManifest(ctx context.Context, vectors [][]float32) error {
	dim, err := core.UniformDimension(vectors)
	if err != nil {
		return err
	}
	candidate := &core.Manifest{
		Collection:     p.collection,
		EmbeddingModel: p.embedder.Model(),
		Dimension:      dim,
		Metric:         p.index.Metric(),
	}

	stored, err := p.catalog.LoadManifest(ctx, p.collection)
	if err != nil {
		return core.StageError(core.ErrCatalog, err)
	}
	if stored != nil {
		return core.ValidateManifest(stored, candidate)
	}

	// A manifest with no vectors behind it is harmless, so it is written
	// before the index.
	err = p.catalog.CreateManifest(ctx, candidate)
	switch {
	case errors.Is(err, storage.ErrManifestExists):
		// Another ingestion created it first; its embedder must match ours.
		stored, err = p.catalog.LoadManifest(ctx, p.collection)
		if err != nil {
			return core.StageError(core.ErrCatalog, err)
		}
		return core.ValidateManifest(stored, candidate)
	case err != nil:
		return core.StageError(core.ErrCatalog, err)
	}
	p.logger.Info("created embedding manifest", "collection", p.collection, "fingerprint", candidate.Fingerprint())
	return nil
}

func (p *Pipeline) upsert(ctx context.Context, entries []core.IndexEntry) error {
	upsertCtx, cancel := context.WithTimeout(ctx, p.serviceTimeout)
	defer cancel()
	if err := p.index.Upsert(upsertCtx, entries); err != nil {
		p.logger.Error("error writing index", "entries", len(entries), "err", err)
		return core.StageError(core.ErrIndexWrite, err)
	}
	return nil
}

// compensate removes the chunks added by a batch whose catalog write failed.
// Chunks that were already indexed before the batch are left in place; their
// IDs derive from their content, so the upsert did not change them.
func (p *Pipeline) compensate(ctx context.Context, chunks []core.Chunk, previous map[core.ID]struct{}) {
	var added []core.ID
	for _, c := range chunks {
		if _, ok := previous[c.Id]; !ok {
			added = append(added, c.Id)
		}
	}
	if len(added) == 0 {
		return
	}
	if err := p.index.Delete(context.WithoutCancel(ctx), added...); err != nil {
		p.logger.Error("error removing chunks of failed batch", "chunks", len(added), "err", err)
	}
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.loadPool != nil {
		p.loadPool.Release()
	}
}
