package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fiscalia/docindex/api/handlers"
	"github.com/fiscalia/docindex/api/middleware"
)

func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	r.Use(middleware.CORS())

	v1 := r.Group("/api/v1")

	v1.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	docs := v1.Group("/documents")
	{
		docs.POST("", h.Document.Upload)
		docs.GET("", h.Document.List)
		docs.GET("/:id", h.Document.Get)
		docs.DELETE("/:id", h.Document.Delete)
		docs.POST("/:id/reindex", h.Document.Reindex)
	}

	pipeline := v1.Group("/pipeline")
	{
		pipeline.GET("/jobs", h.Pipeline.ListJobs)
		pipeline.GET("/jobs/:id", h.Pipeline.GetJob)
		pipeline.POST("/jobs/:id/rollback", h.Pipeline.Rollback)
		pipeline.GET("/jobs/:id/stream", h.Pipeline.Stream)
	}

	v1.GET("/search", h.Search.Search)
	v1.GET("/stats", h.Search.Stats)
}
