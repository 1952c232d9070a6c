package clauseguard

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/poiesic/clauseguard/ai/mock"
	"github.com/poiesic/clauseguard/config"
	"github.com/poiesic/clauseguard/core"
	"github.com/poiesic/clauseguard/ingestion"
	"github.com/poiesic/clauseguard/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, logs *bytes.Buffer) Service {
	t.Helper()
	cfg := config.Default()
	cfg.InMemory = true

	engine, err := Open(context.Background(), cfg, WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)

	svc, err := NewService(engine)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc = LoggingMiddleware(logger)(svc)
	t.Cleanup(func() {
		svc.Close()
	})
	return svc
}

func TestService_Endpoints(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	endpoints := MakeEndpoints(newTestService(t, &logs))

	resp, err := endpoints.Ingest(ctx, IngestRequest{Inputs: []loader.Input{
		{Name: "terms.txt", Data: []byte("The agreement renews automatically every twelve months.")},
	}})
	require.NoError(t, err)
	result := resp.(*ingestion.Result)
	assert.Equal(t, 1, result.Documents)
	assert.Equal(t, []string{"terms.txt"}, result.Sources)

	resp, err = endpoints.Documents(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, resp.([]*core.DocumentRecord), 1)

	resp, err = endpoints.Answer(ctx, AnswerRequest{Question: "Does the agreement renew?"})
	require.NoError(t, err)
	assert.Equal(t, []string{"terms.txt"}, resp.(*core.AnswerResult).Sources)

	resp, err = endpoints.Status(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.(*Status).Documents)

	assert.Contains(t, logs.String(), "documents ingested")
	assert.Contains(t, logs.String(), "question answered")
}

func TestService_InvalidRequestType(t *testing.T) {
	var logs bytes.Buffer
	endpoints := MakeEndpoints(newTestService(t, &logs))

	_, err := endpoints.Ingest(context.Background(), "terms.txt")
	assert.EqualError(t, err, "invalid request type")

	_, err = endpoints.Answer(context.Background(), "question")
	assert.EqualError(t, err, "invalid request type")
}

func TestLoggingMiddleware_LogsErrors(t *testing.T) {
	var logs bytes.Buffer
	svc := newTestService(t, &logs)

	_, err := svc.Answer(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrEmptyQuestion)
	assert.Contains(t, logs.String(), "action=answer")
	assert.Contains(t, logs.String(), "level=ERROR")
}
