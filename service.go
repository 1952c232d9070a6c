package clauseguard

import (
	"context"

	"github.com/poiesic/clauseguard/answer"
	"github.com/poiesic/clauseguard/core"
	"github.com/poiesic/clauseguard/ingestion"
	"github.com/poiesic/clauseguard/loader"
)

// Service is the question answering API exposed by the transports.
type Service interface {
	// Ingest loads, chunks and indexes inputs as one batch.
	Ingest(ctx context.Context, inputs []loader.Input) (*ingestion.Result, error)

	// Answer answers a question grounded on the indexed documents.
	Answer(ctx context.Context, question string) (*core.AnswerResult, error)

	// Documents lists the ingested documents.
	Documents(ctx context.Context) ([]*core.DocumentRecord, error)

	// Status reports the state of the collection.
	Status(ctx context.Context) (*Status, error)

	// Close releases the service and the engine it owns.
	Close() error
}

type ServiceMiddleware func(Service) Service

type service struct {
	engine   *Engine
	pipeline *ingestion.Pipeline
	answerer *answer.Answerer
}

// NewService builds a Service on top of engine and takes ownership of it.
func NewService(engine *Engine) (Service, error) {
	pipeline, err := engine.NewIngestionPipeline()
	if err != nil {
		return nil, err
	}

	answerer, err := engine.NewAnswerer()
	if err != nil {
		pipeline.Release()
		return nil, err
	}

	return &service{
		engine:   engine,
		pipeline: pipeline,
		answerer: answerer,
	}, nil
}

func (svc *service) Ingest(ctx context.Context, inputs []loader.Input) (*ingestion.Result, error) {
	return svc.pipeline.Ingest(ctx, inputs)
}

func (svc *service) Answer(ctx context.Context, question string) (*core.AnswerResult, error) {
	return svc.answerer.Answer(ctx, question)
}

func (svc *service) Documents(ctx context.Context) ([]*core.DocumentRecord, error) {
	return svc.engine.Documents(ctx)
}

func (svc *service) Status(ctx context.Context) (*Status, error) {
	return svc.engine.Status(ctx)
}

func (svc *service) Close() error {
	svc.pipeline.Release()
	return svc.engine.Close()
}
