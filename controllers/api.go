package controllers

import (
	"grid-keeper/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIController struct {
	server *services.Server
}

/**
 * Create new API controller instance
 * @param {*services.Server} server - Server state
 * @returns {*APIController} New API controller instance
 */
func NewAPIController(server *services.Server) *APIController {
	return &APIController{
		server: server,
	}
}

/**
 * Register system routes to Gin engine
 * @param {*gin.Engine} r - Gin router instance
 * @param {prometheus.Gatherer} gatherer - Source of the /metrics exposition
 * @description
 * - Registers routes for:
 *   - Readiness probe (/healthz)
 *   - Prometheus scrape endpoint (/metrics)
 */
func (a *APIController) RegisterRoutes(r *gin.Engine, gatherer prometheus.Gatherer) {
	r.GET("/healthz", a.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// @Summary Readiness probe
// @Description Returns version, start time, request counters and service counts
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func (a *APIController) Healthz(c *gin.Context) {
	c.JSON(200, a.server.GetHealthz())
}
