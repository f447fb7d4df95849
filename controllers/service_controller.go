package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"grid-keeper/internal/config"
	"grid-keeper/internal/models"
	"grid-keeper/services"

	"github.com/gin-gonic/gin"
)

type ServiceController struct {
	service *services.ServiceManager
}

/**
 * Create new Service controller instance
 * @param {*services.ServiceManager} service - Service manager answering the requests
 * @returns {*ServiceController} New Service controller instance
 * @example
 * controller := controllers.NewServiceController(manager)
 * controller.RegisterRoutes(router)
 */
func NewServiceController(service *services.ServiceManager) *ServiceController {
	return &ServiceController{
		service: service,
	}
}

/**
 * Register all service API routes to Gin engine
 * @param {*gin.Engine} r - Gin engine
 * @description
 * - Registers routes for:
 *   - Service status (list/get/logs)
 *   - Bootstrap and shutdown of the whole registry
 */
func (s *ServiceController) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/grid/api/v1")
	api.GET("/services", s.ListServices)
	api.GET("/services/:name", s.GetService)
	api.GET("/services/:name/logs", s.GetServiceLogs)
	api.POST("/bootstrap", s.Bootstrap)
	api.POST("/shutdown", s.Shutdown)
}

// ListServices lists all registered services
//
//	@Summary		List all services
//	@Description	Get port, tier, run state and install state of every registered service
//	@Tags			Services
//	@Produce		json
//	@Success		200	{array}		models.ServiceDetail	"List of services"
//	@Router			/grid/api/v1/services [get]
func (s *ServiceController) ListServices(c *gin.Context) {
	results := s.service.GetServices()
	if results == nil {
		results = []models.ServiceDetail{}
	}
	c.JSON(http.StatusOK, results)
}

// GetService gets a specific service by name
//
//	@Summary		Get service
//	@Description	Get detailed information of a specific service
//	@Tags			Services
//	@Produce		json
//	@Param			name	path		string					true	"Service name"
//	@Success		200		{object}	models.ServiceDetail	"Service detail"
//	@Failure		404		{object}	models.ErrorResponse	"Service not found error response"
//	@Router			/grid/api/v1/services/{name} [get]
func (s *ServiceController) GetService(c *gin.Context) {
	name := c.Param("name")
	detail, err := s.service.GetService(name)
	if err != nil {
		c.JSON(http.StatusNotFound, &models.ErrorResponse{
			Code:  "service.notexist",
			Error: fmt.Sprintf("service [%s] isn't exist", name),
		})
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetServiceLogs returns the end of a service log
//
//	@Summary		Get service logs
//	@Description	Get the trailing lines of the log file the service output is appended to
//	@Tags			Services
//	@Produce		json
//	@Param			name	path		string					true	"Service name"
//	@Param			lines	query		int						false	"Number of lines"
//	@Success		200		{object}	map[string]interface{}	"Log path and lines"
//	@Failure		404		{object}	models.ErrorResponse	"Service or log not found"
//	@Router			/grid/api/v1/services/{name}/logs [get]
func (s *ServiceController) GetServiceLogs(c *gin.Context) {
	name := c.Param("name")
	lines, _ := strconv.Atoi(c.DefaultQuery("lines", strconv.Itoa(services.DefaultTailLines)))
	path, tail, err := s.service.TailLog(name, lines)
	if err != nil {
		code := "service.logs_failed"
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrServiceNotFound) {
			code, status = "service.notexist", http.StatusNotFound
		} else if errors.Is(err, os.ErrNotExist) {
			code, status = "service.nologs", http.StatusNotFound
		}
		c.JSON(status, &models.ErrorResponse{Code: code, Error: err.Error()})
		return
	}
	if tail == nil {
		tail = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"path": path, "lines": tail})
}

// Bootstrap installs and starts all services
//
//	@Summary		Bootstrap
//	@Description	Install and start every registered service; blocks until done
//	@Tags			Services
//	@Produce		json
//	@Success		200	{object}	services.BootstrapReport	"All services up"
//	@Failure		409	{object}	models.ErrorResponse		"Another operation is running"
//	@Failure		500	{object}	services.BootstrapReport	"Infrastructure failure"
//	@Failure		502	{object}	services.BootstrapReport	"Application failures"
//	@Router			/grid/api/v1/bootstrap [post]
func (s *ServiceController) Bootstrap(c *gin.Context) {
	report, err := s.service.Bootstrap(c.Request.Context())
	if errors.Is(err, services.ErrBusy) {
		c.JSON(http.StatusConflict, &models.ErrorResponse{Code: "bootstrap.busy", Error: err.Error()})
		return
	}
	switch {
	case err != nil:
		c.JSON(http.StatusInternalServerError, report)
	case len(report.Failed()) > 0:
		c.JSON(http.StatusBadGateway, report)
	default:
		c.JSON(http.StatusOK, report)
	}
}

// Shutdown stops all running services
//
//	@Summary		Shutdown
//	@Description	Stop every running registered service, applications first
//	@Tags			Services
//	@Produce		json
//	@Success		200	{object}	services.ShutdownReport	"All running services stopped"
//	@Failure		409	{object}	models.ErrorResponse	"Another operation is running"
//	@Failure		500	{object}	services.ShutdownReport	"Some services could not be stopped"
//	@Router			/grid/api/v1/shutdown [post]
func (s *ServiceController) Shutdown(c *gin.Context) {
	report, err := s.service.Shutdown(c.Request.Context())
	if errors.Is(err, services.ErrBusy) {
		c.JSON(http.StatusConflict, &models.ErrorResponse{Code: "shutdown.busy", Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, report)
		return
	}
	c.JSON(http.StatusOK, report)
}
