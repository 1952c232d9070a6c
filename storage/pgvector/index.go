package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/lib/pq"
	"github.com/poiesic/clauseguard/core"
	"github.com/poiesic/clauseguard/storage"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// Database drivers accepted by Config.Driver.
const (
	DriverPG = "pgdriver"
	DriverPQ = "pq"
)

// Config describes how to reach PostgreSQL.
type Config struct {
	DSN      string
	Password string // overrides the DSN password when set
	Driver   string // DriverPG (default) or DriverPQ
	Debug    bool   // log every query through bundebug
}

// chunkRow is one stored chunk vector. Rows of all collections share a table.
type chunkRow struct {
	bun.BaseModel `bun:"table:clauseguard_chunks,alias:c"`

	Collection string `bun:"collection,pk"`
	ID         string `bun:"id,pk"`
	Source     string `bun:"source,notnull"`
	Seq        int    `bun:"seq,notnull"`
	Start      int    `bun:"start,notnull"`
	Content    string `bun:"content,notnull"`
	Embedding  Vector `bun:"embedding,notnull,type:vector"`
}

// scoredRow is a query result row.
type scoredRow struct {
	bun.BaseModel `bun:"table:clauseguard_chunks,alias:c"`

	ID      string  `bun:"id"`
	Source  string  `bun:"source"`
	Seq     int     `bun:"seq"`
	Start   int     `bun:"start"`
	Content string  `bun:"content"`
	Score   float64 `bun:"score,scanonly"`
}

// Option configures an Index.
type Option func(*Index) error

// WithLogger sets the logger used by the index.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) error {
		i.logger = logger
		return nil
	}
}

// Index implements storage.VectorIndex on PostgreSQL with the pgvector extension.
type Index struct {
	db         *bun.DB
	collection string
	ownsDB     bool
	logger     *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ storage.VectorIndex = (*Index)(nil)

// Connect opens a bun database for cfg.
func Connect(cfg Config) (*bun.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: postgres dsn required", core.ErrInvalidConfig)
	}

	var sqldb *sql.DB
	switch cfg.Driver {
	case "", DriverPG:
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		sqldb = sql.OpenDB(pgdriver.NewConnector(opts...))
	case DriverPQ:
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, err
		}
		sqldb = db
	default:
		return nil, fmt.Errorf("%w: unknown postgres driver %q", core.ErrInvalidConfig, cfg.Driver)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}

// NewIndex connects to PostgreSQL, creates the schema if needed and returns
// the index of collection. The index owns the connection.
func NewIndex(ctx context.Context, cfg Config, collection string, opts ...Option) (storage.VectorIndex, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	idx, err := newIndex(db, collection, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	idx.ownsDB = true
	if err := idx.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// NewIndexFromDB returns the index of collection on an existing database.
// The caller keeps ownership of db and must have run the schema setup, for
// example by an earlier NewIndex.
func NewIndexFromDB(db *bun.DB, collection string, opts ...Option) (storage.VectorIndex, error) {
	return newIndex(db, collection, opts...)
}

func newIndex(db *bun.DB, collection string, opts ...Option) (*Index, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database required", core.ErrInvalidConfig)
	}
	if collection == "" {
		return nil, fmt.Errorf("%w: collection name required", core.ErrInvalidConfig)
	}
	idx := &Index{
		db:         db,
		collection: collection,
		logger:     slog.Default().With("component", "pgvector-index"),
	}
	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (i *Index) migrate(ctx context.Context) error {
	if _, err := i.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enabling pgvector: %w", err)
	}
	if _, err := i.db.NewCreateTable().Model((*chunkRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("creating chunk table: %w", err)
	}
	i.logger.Debug("schema ready", "collection", i.collection)
	return nil
}

// Metric reports cosine similarity; Query orders by pgvector's <=> operator.
func (i *Index) Metric() core.Metric {
	return core.MetricCosine
}

// Upsert writes entries in one transaction.
func (i *Index) Upsert(ctx context.Context, entries []core.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	vectors := make([][]float32, len(entries))
	rows := make([]chunkRow, len(entries))
	for j, e := range entries {
		vectors[j] = e.Vector
		rows[j] = chunkRow{
			Collection: i.collection,
			ID:         e.Chunk.Id.String(),
			Source:     e.Chunk.Source,
			Seq:        e.Chunk.Seq,
			Start:      e.Chunk.Start,
			Content:    e.Chunk.Text,
			Embedding:  Vector(e.Vector),
		}
	}
	if _, err := core.UniformDimension(vectors); err != nil {
		return err
	}

	return i.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := i.upsertQuery(tx.NewInsert(), &rows).Exec(ctx)
		return err
	})
}

func (i *Index) upsertQuery(q *bun.InsertQuery, rows *[]chunkRow) *bun.InsertQuery {
	return q.Model(rows).
		On("CONFLICT (collection, id) DO UPDATE").
		Set("source = EXCLUDED.source").
		Set("seq = EXCLUDED.seq").
		Set("start = EXCLUDED.start").
		Set("content = EXCLUDED.content").
		Set("embedding = EXCLUDED.embedding")
}

// Query returns up to k chunks ordered by descending cosine similarity.
func (i *Index) Query(ctx context.Context, vector []float32, k int) ([]core.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	var rows []scoredRow
	if err := i.selectQuery(&rows, vector, k).Scan(ctx); err != nil {
		return nil, err
	}

	scored := make([]core.ScoredChunk, 0, len(rows))
	for _, r := range rows {
		id, err := core.ParseID(r.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk id %q: %w", storage.ErrSerializationFailed, r.ID, err)
		}
		scored = append(scored, core.ScoredChunk{
			Chunk: core.Chunk{
				Id:     id,
				Source: r.Source,
				Seq:    r.Seq,
				Start:  r.Start,
				Text:   r.Content,
			},
			Score: float32(r.Score),
		})
	}
	return scored, nil
}

func (i *Index) selectQuery(rows *[]scoredRow, vector []float32, k int) *bun.SelectQuery {
	v := Vector(vector)
	return i.db.NewSelect().
		Model(rows).
		Column("id", "source", "seq", "start", "content").
		ColumnExpr("1 - (embedding <=> ?) AS score", v).
		Where("collection = ?", i.collection).
		OrderExpr("embedding <=> ?", v).
		Limit(k)
}

// Delete removes entries by chunk ID.
func (i *Index) Delete(ctx context.Context, ids ...core.ID) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for j, id := range ids {
		keys[j] = id.String()
	}
	_, err := i.db.NewDelete().
		Model((*chunkRow)(nil)).
		Where("collection = ?", i.collection).
		Where("id IN (?)", bun.In(keys)).
		Exec(ctx)
	return err
}

// Count returns the number of entries in the collection.
func (i *Index) Count(ctx context.Context) (int, error) {
	return i.db.NewSelect().
		Model((*chunkRow)(nil)).
		Where("collection = ?", i.collection).
		Count(ctx)
}

// Reset removes every entry of the collection.
func (i *Index) Reset(ctx context.Context) error {
	_, err := i.db.NewDelete().
		Model((*chunkRow)(nil)).
		Where("collection = ?", i.collection).
		Exec(ctx)
	if err == nil {
		i.logger.Info("collection reset", "collection", i.collection)
	}
	return err
}

// Close closes the database connection if the index owns it.
func (i *Index) Close() error {
	i.closeOnce.Do(func() {
		if i.ownsDB {
			i.closeErr = i.db.Close()
		}
	})
	return i.closeErr
}
