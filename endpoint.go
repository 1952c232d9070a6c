package clauseguard

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"

	"github.com/poiesic/clauseguard/loader"
)

type EndpointSet struct {
	Ingest    endpoint.Endpoint
	Answer    endpoint.Endpoint
	Documents endpoint.Endpoint
	Status    endpoint.Endpoint
}

func MakeEndpoints(svc Service) EndpointSet {
	return EndpointSet{
		Ingest:    IngestEndpoint(svc),
		Answer:    AnswerEndpoint(svc),
		Documents: DocumentsEndpoint(svc),
		Status:    StatusEndpoint(svc),
	}
}

type IngestRequest struct {
	Inputs []loader.Input
}

func IngestEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(IngestRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Ingest(ctx, req.Inputs)
	}
}

type AnswerRequest struct {
	Question string `json:"question"`
}

func AnswerEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(AnswerRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Answer(ctx, req.Question)
	}
}

func DocumentsEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.Documents(ctx)
	}
}

func StatusEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.Status(ctx)
	}
}
