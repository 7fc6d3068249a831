package server

import (
	"github.com/gin-gonic/gin"
)

// InitRouter registers the API routes on engine.
func InitRouter(engine *gin.Engine, h *Handler) *gin.RouterGroup {
	api := engine.Group("/api/v1")

	recs := api.Group("/records")
	{
		recs.GET("", h.ListRecords)
		recs.DELETE("", h.ClearRecords)
		recs.DELETE("/:type/:id", h.DeleteRecord)
	}

	api.POST("/extract", h.Extract)
	api.PUT("/page", h.PushPage)
	api.GET("/export/:format", h.Export)
	api.GET("/notification", h.Notification)

	return api
}
