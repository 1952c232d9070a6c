package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"

	"github.com/poiesic/clauseguard"
	"github.com/poiesic/clauseguard/core"
	"github.com/poiesic/clauseguard/ingestion"
	"github.com/poiesic/clauseguard/loader"
)

// FilesField is the multipart field carrying uploaded documents.
const FilesField = "files"

var ErrNoFiles = errors.New("no files uploaded")

// StatusCode maps a service error to an HTTP status.
func StatusCode(err error) int {
	var loadErr *ingestion.LoadError
	switch {
	case errors.As(err, &loadErr),
		errors.Is(err, core.ErrLoad),
		errors.Is(err, core.ErrEmptyQuestion),
		errors.Is(err, core.ErrEmptySource),
		errors.Is(err, core.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrEmbeddingMismatch):
		return http.StatusConflict
	case errors.Is(err, core.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrEmbeddingService),
		errors.Is(err, core.ErrRetrieval),
		errors.Is(err, core.ErrGeneration),
		errors.Is(err, core.ErrIndexWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func abort(c *gin.Context, status int, err error) {
	c.JSON(status, errorResponse{Error: err.Error()})
	c.Error(err)
	c.Abort()
}

// BodyLimit rejects request bodies larger than limit bytes.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

func IngestHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				abort(c, http.StatusRequestEntityTooLarge, err)
				return
			}
			abort(c, http.StatusBadRequest, err)
			return
		}

		files := form.File[FilesField]
		if len(files) == 0 {
			abort(c, http.StatusBadRequest, ErrNoFiles)
			return
		}

		inputs := make([]loader.Input, 0, len(files))
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				abort(c, http.StatusBadRequest, fmt.Errorf("reading %s: %w", fh.Filename, err))
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				abort(c, http.StatusBadRequest, fmt.Errorf("reading %s: %w", fh.Filename, err))
				return
			}
			inputs = append(inputs, loader.Input{Name: fh.Filename, Data: data})
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, clauseguard.IngestRequest{Inputs: inputs})
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func AnswerHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req clauseguard.AnswerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func DocumentsHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		resp, err := endpoint(ctx, nil)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func StatusHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		resp, err := endpoint(ctx, nil)
		if err != nil {
			abort(c, StatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}
