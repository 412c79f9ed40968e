package http

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/hertz-contrib/swagger"
	swaggerFiles "github.com/swaggo/files"
)

// Setup registers the intake adapter's routes on h.
func Setup(h *server.Hertz, handler *Handler) {
	h.GET("/swagger/*any", swagger.WrapHandler(swaggerFiles.Handler))
	h.GET("/ping", handler.Ping)

	v1 := h.Group("/v1")
	v1.POST("/submissions", handler.CreateSubmission)
}
