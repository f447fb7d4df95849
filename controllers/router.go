package controllers

import (
	"grid-keeper/internal/middleware"
	"grid-keeper/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// NewRouter wires every controller of the keeper API into a gin engine.
func NewRouter(server *services.Server, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.MetricsMiddleware())

	NewAPIController(server).RegisterRoutes(router, gatherer)
	NewServiceController(server.Services()).RegisterRoutes(router)
	return router
}
