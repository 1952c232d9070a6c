package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/clauseguard/ai"
	"github.com/poiesic/clauseguard/core"
	"github.com/poiesic/clauseguard/storage"
	"github.com/tmc/langchaingo/prompts"
)

const (
	// DefaultTopK is the number of chunks retrieved per question.
	DefaultTopK = 5

	// DefaultCollection is the collection name used when none is configured.
	DefaultCollection = "documents"

	// DefaultServiceTimeout bounds every call to an external service.
	DefaultServiceTimeout = 60 * time.Second
)

// Answerer answers questions from the indexed documents.
type Answerer struct {
	catalog        storage.Catalog
	index          storage.VectorIndex
	embedder       ai.Embedder
	generator      ai.Generator
	collection     string
	topK           int
	serviceTimeout time.Duration
	prompt         prompts.PromptTemplate
	logger         *slog.Logger
}

// Option configures an Answerer.
type Option func(*Answerer) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Answerer) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger.With("component", "answer")
		return nil
	}
}

// WithTopK sets how many chunks are retrieved per question.
func WithTopK(k int) Option {
	return func(a *Answerer) error {
		if k < 1 {
			return fmt.Errorf("%w: top k must be positive, got %d", core.ErrInvalidConfig, k)
		}
		a.topK = k
		return nil
	}
}

// WithCollection sets the collection whose manifest guards the index.
func WithCollection(name string) Option {
	return func(a *Answerer) error {
		if name == "" {
			return fmt.Errorf("%w: collection name cannot be empty", core.ErrInvalidConfig)
		}
		a.collection = name
		return nil
	}
}

// WithServiceTimeout bounds each call to the embedder, index and generator.
func WithServiceTimeout(d time.Duration) Option {
	return func(a *Answerer) error {
		if d <= 0 {
			return fmt.Errorf("%w: service timeout must be positive, got %s", core.ErrInvalidConfig, d)
		}
		a.serviceTimeout = d
		return nil
	}
}

// WithPromptTemplate replaces PromptTemplate. The template must use the
// variables context and question.
func WithPromptTemplate(text string) Option {
	return func(a *Answerer) error {
		prompt := newPrompt(text)
		if _, err := prompt.Format(map[string]any{"context": "", "question": ""}); err != nil {
			return fmt.Errorf("%w: prompt template: %w", core.ErrInvalidConfig, err)
		}
		a.prompt = prompt
		return nil
	}
}

// NewAnswerer creates a new answerer.
func NewAnswerer(
	catalog storage.Catalog,
	index storage.VectorIndex,
	provider ai.AIProvider,
	opts ...Option,
) (*Answerer, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	a := &Answerer{
		catalog:        catalog,
		index:          index,
		embedder:       provider.Embedder(),
		generator:      provider.Generator(),
		collection:     DefaultCollection,
		topK:           DefaultTopK,
		serviceTimeout: DefaultServiceTimeout,
		prompt:         newPrompt(PromptTemplate),
		logger:         slog.Default().With("component", "answer"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Answer answers question from the indexed documents.
func (a *Answerer) Answer(ctx context.Context, question string) (*core.AnswerResult, error) {
	return a.AnswerWithMonitor(ctx, question, nil)
}

// AnswerWithMonitor answers question, reporting each stage to monitor.
func (a *Answerer) AnswerWithMonitor(ctx context.Context, question string, monitor AnswerMonitor) (*core.AnswerResult, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, core.ErrEmptyQuestion
	}
	monitor.Start(question)

	// 1. Embed the question
	vector, err := a.embed(ctx, question)
	if err != nil {
		a.logger.Error("error generating embedding for question", "err", err)
		return nil, err
	}

	// 2. Retrieve the closest chunks
	chunks, err := a.retrieve(ctx, vector)
	if err != nil {
		a.logger.Error("error retrieving chunks", "err", err)
		return nil, err
	}
	monitor.AfterRetrieval(chunks)

	// 3. Build the prompt
	prompt, err := a.prompt.Format(map[string]any{
		"context":  FormatContext(chunks),
		"question": question,
	})
	if err != nil {
		return nil, ai.GenerationError(fmt.Errorf("formatting prompt: %w", err))
	}
	monitor.BeforeGeneration(prompt)

	// 4. Generate
	text, err := a.generate(ctx, prompt)
	if err != nil {
		a.logger.Error("error generating answer", "err", err)
		return nil, err
	}

	result := &core.AnswerResult{
		Text:       text,
		Sources:    distinctSources(chunks),
		Chunks:     chunks,
		NoEvidence: len(chunks) == 0,
	}
	monitor.Finish(result)
	return result, nil
}

func (a *Answerer) embed(ctx context.Context, question string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, a.serviceTimeout)
	defer cancel()
	vector, err := a.embedder.EmbedText(embedCtx, question)
	if err != nil {
		return nil, ai.EmbeddingError(err)
	}
	if len(vector) == 0 {
		return nil, ai.EmbeddingError(errors.New("empty embedding"))
	}
	return core.NormalizeVector(vector), nil
}

// retrieve queries the index after checking that vector lives in the
// collection's embedding space. A collection without a manifest has never
// been ingested into and yields no chunks.
func (a *Answerer) retrieve(ctx context.Context, vector []float32) ([]core.ScoredChunk, error) {
	stored, err := a.catalog.LoadManifest(ctx, a.collection)
	if err != nil {
		return nil, core.StageError(core.ErrRetrieval, err)
	}
	if stored == nil {
		a.logger.Debug("collection has no manifest, nothing to retrieve", "collection", a.collection)
		return []core.ScoredChunk{}, nil
	}

	candidate := &core.Manifest{
		Collection:     a.collection,
		EmbeddingModel: a.embedder.Model(),
		Dimension:      len(vector),
		Metric:         a.index.Metric(),
	}
	if err := core.ValidateManifest(stored, candidate); err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, a.serviceTimeout)
	defer cancel()
	chunks, err := a.index.Query(queryCtx, vector, a.topK)
	if err != nil {
		return nil, core.StageError(core.ErrRetrieval, err)
	}
	return chunks, nil
}

func (a *Answerer) generate(ctx context.Context, prompt string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, a.serviceTimeout)
	defer cancel()
	text, err := a.generator.Generate(genCtx, prompt)
	if err != nil {
		return "", ai.GenerationError(err)
	}
	return text, nil
}
