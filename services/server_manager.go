package services

import (
	"context"
	"time"

	"grid-keeper/internal/config"
	"grid-keeper/internal/env"
	"grid-keeper/internal/logger"
	"grid-keeper/internal/models"
)

type Server struct {
	cfg       *config.AppConfig
	service   *ServiceManager
	startTime time.Time
}

/**
 * Create the state behind the HTTP server
 * @param {*config.AppConfig} cfg - Application configuration
 * @param {*ServiceManager} service - Manager serving bootstrap/shutdown requests
 * @returns {*Server} New server instance
 */
func NewServer(cfg *config.AppConfig, service *ServiceManager) *Server {
	return &Server{
		cfg:       cfg,
		service:   service,
		startTime: time.Now(),
	}
}

func (s *Server) Services() *ServiceManager {
	return s.service
}

/**
 * Bootstrap in the background, used with --bootstrap
 * @param {context.Context} ctx - Server lifetime context
 * @description
 * - Failures are logged; the HTTP API stays up to inspect and retry
 */
func (s *Server) BootstrapInBackground(ctx context.Context) {
	go func() {
		report, err := s.service.Bootstrap(ctx)
		if err != nil {
			logger.Errorf("Bootstrap failed: %v", err)
			return
		}
		if failed := report.Failed(); len(failed) > 0 {
			logger.Warnf("Bootstrap finished with %d failed service(s)", len(failed))
			return
		}
		logger.Info("Bootstrap completed")
	}()
}

/**
 * Build the health response
 * @returns {models.HealthResponse} Version, uptime, request counters and service counts
 * @description
 * - Probes every service port, so the cost grows with the registry
 */
func (s *Server) GetHealthz() models.HealthResponse {
	details := s.service.GetServices()
	running, installed := 0, 0
	for _, d := range details {
		if d.Status == models.StatusRunning {
			running++
		}
		if d.Install == models.InstallInstalled {
			installed++
		}
	}
	return models.HealthResponse{
		Version:   env.Version,
		StartTime: s.startTime.Format(time.RFC3339),
		Status:    "UP",
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Metrics: models.Metrics{
			TotalRequests:     GetTotalRequestCount(),
			ErrorRequests:     GetTotalErrorCount(),
			TotalServices:     len(details),
			RunningServices:   running,
			InstalledServices: installed,
		},
	}
}
