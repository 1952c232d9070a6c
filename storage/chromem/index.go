package chromem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/poiesic/clauseguard/core"
	"github.com/poiesic/clauseguard/storage"
)

// Metadata keys stored with every chromem document.
const (
	metaSource = "source"
	metaSeq    = "seq"
	metaStart  = "start"
)

// errNoEmbedding is returned by the collection's embedding function.
// Vectors are always supplied by the caller, so chromem must never embed.
var errNoEmbedding = errors.New("chromem index does not embed text")

// Option configures an Index.
type Option func(*Index) error

// WithLogger sets the logger used by the index.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) error {
		i.logger = logger
		return nil
	}
}

// WithConcurrency sets how many goroutines chromem uses to add documents.
func WithConcurrency(n int) Option {
	return func(i *Index) error {
		if n < 1 {
			return fmt.Errorf("%w: concurrency must be positive, got %d", core.ErrInvalidConfig, n)
		}
		i.concurrency = n
		return nil
	}
}

// Index implements storage.VectorIndex on a chromem-go collection.
type Index struct {
	mu          sync.RWMutex
	db          *chromem.DB
	name        string
	collection  *chromem.Collection
	concurrency int
	logger      *slog.Logger
	closed      bool
}

var _ storage.VectorIndex = (*Index)(nil)

// NewIndex opens the collection name of a chromem database.
// With an empty path the database lives in memory only; otherwise it is
// persisted under path.
func NewIndex(path, name string, opts ...Option) (storage.VectorIndex, error) {
	return newIndex(path, name, opts...)
}

func newIndex(path, name string, opts ...Option) (*Index, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: collection name required", core.ErrInvalidConfig)
	}

	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		d, err := chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("opening chromem database at %s: %w", path, err)
		}
		db = d
	}

	idx := &Index{
		db:          db,
		name:        name,
		concurrency: runtime.NumCPU(),
		logger:      slog.Default().With("component", "chromem-index"),
	}
	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}

	c, err := db.GetOrCreateCollection(name, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", name, err)
	}
	idx.collection = c
	return idx, nil
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

// Metric reports cosine similarity, the only metric chromem supports.
func (i *Index) Metric() core.Metric {
	return core.MetricCosine
}

// Upsert stores entries in one batch. If chromem fails part way the entries
// written so far are removed and any replaced documents are restored.
func (i *Index) Upsert(ctx context.Context, entries []core.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	vectors := make([][]float32, len(entries))
	for j, e := range entries {
		vectors[j] = e.Vector
	}
	if _, err := core.UniformDimension(vectors); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return storage.ErrStorageClosed
	}

	docs := make([]chromem.Document, len(entries))
	ids := make([]string, len(entries))
	var previous []chromem.Document
	for j, e := range entries {
		docs[j] = toDocument(e)
		ids[j] = docs[j].ID
		if old, err := i.collection.GetByID(ctx, ids[j]); err == nil {
			previous = append(previous, old)
		}
	}

	if err := i.collection.AddDocuments(ctx, docs, i.concurrency); err != nil {
		i.rollback(ctx, ids, previous)
		return err
	}
	return nil
}

// rollback undoes a failed AddDocuments call.
func (i *Index) rollback(ctx context.Context, ids []string, previous []chromem.Document) {
	// The caller's context may already be done; the rollback must still run.
	ctx = context.WithoutCancel(ctx)
	if err := i.collection.Delete(ctx, nil, nil, ids...); err != nil {
		i.logger.Error("rollback delete failed", "error", err, "count", len(ids))
		return
	}
	if len(previous) == 0 {
		return
	}
	if err := i.collection.AddDocuments(ctx, previous, i.concurrency); err != nil {
		i.logger.Error("rollback restore failed", "error", err, "count", len(previous))
	}
}

// Query returns up to k chunks most similar to vector.
func (i *Index) Query(ctx context.Context, vector []float32, k int) ([]core.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return nil, storage.ErrStorageClosed
	}

	count := i.collection.Count()
	if count == 0 {
		return []core.ScoredChunk{}, nil
	}
	if k > count {
		k = count
	}

	results, err := i.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, err
	}

	scored := make([]core.ScoredChunk, 0, len(results))
	for _, r := range results {
		chunk, err := fromResult(r)
		if err != nil {
			return nil, err
		}
		scored = append(scored, core.ScoredChunk{Chunk: chunk, Score: r.Similarity})
	}
	return scored, nil
}

// Delete removes entries by chunk ID.
func (i *Index) Delete(ctx context.Context, ids ...core.ID) error {
	if len(ids) == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return storage.ErrStorageClosed
	}

	keys := make([]string, len(ids))
	for j, id := range ids {
		keys[j] = id.String()
	}
	return i.collection.Delete(ctx, nil, nil, keys...)
}

// Count returns the number of stored entries.
func (i *Index) Count(ctx context.Context) (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return 0, storage.ErrStorageClosed
	}
	return i.collection.Count(), nil
}

// Reset drops the collection and recreates it empty.
func (i *Index) Reset(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return storage.ErrStorageClosed
	}

	if err := i.db.DeleteCollection(i.name); err != nil {
		return fmt.Errorf("dropping collection %s: %w", i.name, err)
	}
	c, err := i.db.CreateCollection(i.name, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("recreating collection %s: %w", i.name, err)
	}
	i.collection = c
	i.logger.Info("collection reset", "collection", i.name)
	return nil
}

// Close marks the index closed. A persistent database has already written
// every change to disk, so there is nothing to flush.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	return nil
}

func toDocument(e core.IndexEntry) chromem.Document {
	return chromem.Document{
		ID: e.Chunk.Id.String(),
		Metadata: map[string]string{
			metaSource: e.Chunk.Source,
			metaSeq:    strconv.Itoa(e.Chunk.Seq),
			metaStart:  strconv.Itoa(e.Chunk.Start),
		},
		Embedding: e.Vector,
		Content:   e.Chunk.Text,
	}
}

func fromResult(r chromem.Result) (core.Chunk, error) {
	id, err := core.ParseID(r.ID)
	if err != nil {
		return core.Chunk{}, fmt.Errorf("%w: document id %q: %w", storage.ErrSerializationFailed, r.ID, err)
	}
	seq, err := strconv.Atoi(r.Metadata[metaSeq])
	if err != nil {
		return core.Chunk{}, fmt.Errorf("%w: seq of %s: %w", storage.ErrSerializationFailed, r.ID, err)
	}
	start, err := strconv.Atoi(r.Metadata[metaStart])
	if err != nil {
		return core.Chunk{}, fmt.Errorf("%w: start of %s: %w", storage.ErrSerializationFailed, r.ID, err)
	}
	return core.Chunk{
		Id:     id,
		Source: r.Metadata[metaSource],
		Seq:    seq,
		Start:  start,
		Text:   r.Content,
	}, nil
}
