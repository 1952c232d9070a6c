package http

import (
	"github.com/gin-gonic/gin"

	"github.com/poiesic/clauseguard"
)

func AddRouters(r *gin.Engine, endpoints clauseguard.EndpointSet, maxUploadBytes int64) {
	api := r.Group("/api")
	{
		api.POST("/documents", BodyLimit(maxUploadBytes), IngestHandler(endpoints.Ingest))
		api.GET("/documents", DocumentsHandler(endpoints.Documents))
		api.GET("/status", StatusHandler(endpoints.Status))
		api.POST("/answer", AnswerHandler(endpoints.Answer))
	}
}
