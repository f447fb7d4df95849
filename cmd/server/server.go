package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grid-keeper/cmd/root"
	"grid-keeper/controllers"
	"grid-keeper/internal/config"
	"grid-keeper/internal/logger"
	"grid-keeper/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	bootstrapOnStart bool
	shutdownOnExit   bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the HTTP API (status, bootstrap, shutdown, metrics)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		if err := startServer(ctx, config.Get()); err != nil {
			return &root.ExitError{Code: 1, Err: err}
		}
		return nil
	},
}

/**
 * Serve the keeper API until ctx is cancelled
 * @param {context.Context} ctx - Server lifetime
 * @param {*config.AppConfig} cfg - Configuration
 * @description
 * - Serves server.address and, when set, server.socket
 * - Children spawned by the server are stopped with --shutdown-on-exit only
 */
func startServer(ctx context.Context, cfg *config.AppConfig) error {
	manager, err := services.NewServiceManager(cfg)
	if err != nil {
		return err
	}
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	prometheus.MustRegister(services.NewServiceCollector(manager))
	svr := services.NewServer(cfg, manager)
	router := controllers.NewRouter(svr, prometheus.DefaultGatherer)

	addrs := []ListenAddr{{Network: "tcp", Address: cfg.Server.Address}}
	if cfg.Server.Socket != "" {
		addrs = append(addrs, ListenAddr{Network: "unix", Address: cfg.Server.Socket})
	}
	listeners, err := CreateListeners(addrs)
	if len(listeners) == 0 {
		return fmt.Errorf("no listener available: %w", err)
	}

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, len(listeners))
	for _, l := range listeners {
		go func(l net.Listener) {
			if err := httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(l)
	}

	if bootstrapOnStart {
		svr.BootstrapInBackground(ctx)
	}

	select {
	case <-ctx.Done():
		logger.Info("Server is shutting down")
	case err = <-errCh:
		logger.Errorf("Server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		logger.Warnf("HTTP shutdown: %v", serr)
	}
	if shutdownOnExit {
		if _, serr := manager.Shutdown(shutdownCtx); serr != nil {
			logger.Warnf("Stopping services: %v", serr)
		}
	}
	if cfg.Server.Socket != "" {
		os.Remove(cfg.Server.Socket)
	}
	return err
}

func init() {
	serverCmd.Flags().BoolVar(&bootstrapOnStart, "bootstrap", false, "Bootstrap all services once the server is listening")
	serverCmd.Flags().BoolVar(&shutdownOnExit, "shutdown-on-exit", false, "Stop all running services when the server exits")
	root.RootCmd.AddCommand(serverCmd)
	serverCmd.Example = `  grid-keeper server
  grid-keeper server --bootstrap --shutdown-on-exit`
}
