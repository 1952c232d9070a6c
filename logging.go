package clauseguard

import (
	"context"
	"log/slog"

	"github.com/poiesic/clauseguard/core"
	"github.com/poiesic/clauseguard/ingestion"
	"github.com/poiesic/clauseguard/loader"
)

// LoggingMiddleware logs every Service call with its outcome.
func LoggingMiddleware(log *slog.Logger) ServiceMiddleware {
	log = log.With("service", "clauseguard")

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *slog.Logger
	next Service
}

func (mw *loggingMiddleware) Ingest(ctx context.Context, inputs []loader.Input) (*ingestion.Result, error) {
	log := mw.log.With(
		"action", "ingest",
		"inputs", len(inputs),
	)

	result, err := mw.next.Ingest(ctx, inputs)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("documents ingested",
		"documents", result.Documents,
		"chunks", result.Chunks,
	)
	return result, nil
}

func (mw *loggingMiddleware) Answer(ctx context.Context, question string) (*core.AnswerResult, error) {
	log := mw.log.With(
		"action", "answer",
		"question_length", len(question),
	)

	result, err := mw.next.Answer(ctx, question)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("question answered",
		"sources", len(result.Sources),
		"no_evidence", result.NoEvidence,
	)
	return result, nil
}

func (mw *loggingMiddleware) Documents(ctx context.Context) ([]*core.DocumentRecord, error) {
	log := mw.log.With("action", "documents")

	docs, err := mw.next.Documents(ctx)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Debug("documents listed", "count", len(docs))
	return docs, nil
}

func (mw *loggingMiddleware) Status(ctx context.Context) (*Status, error) {
	log := mw.log.With("action", "status")

	status, err := mw.next.Status(ctx)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Debug("status reported", "documents", status.Documents, "chunks", status.Chunks)
	return status, nil
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With("action", "close")

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("service closed")
	return nil
}
