package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"grid-keeper/cmd/root"
	"grid-keeper/internal/config"
	"grid-keeper/internal/logger"
	"grid-keeper/services"

	"github.com/spf13/cobra"
)

// exit code when only application services failed
const exitAppFailure = 2

var bootstrapOutput string

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Install and start all configured services",
	Long: `Install and start all configured services.

Infrastructure services are installed, started and waited for one after another.
Application services are then started concurrently. Services whose port is
already open are left untouched.

Exit status: 0 on success, 1 if an infrastructure service failed,
2 if only application services failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		return runBootstrap(ctx)
	},
}

/**
 * Bootstrap all services and print the report
 * @param {context.Context} ctx - Cancelled on SIGINT/SIGTERM
 * @returns {error} *root.ExitError with the exit code on failure
 */
func runBootstrap(ctx context.Context) error {
	if remote {
		report, err := remoteBootstrap(ctx)
		if report == nil {
			return &root.ExitError{Code: 1, Err: err}
		}
		return finishBootstrap(report, err)
	}
	manager, err := newManager()
	if err != nil {
		return &root.ExitError{Code: 1, Err: err}
	}
	report, err := manager.Bootstrap(ctx)
	pushMetrics()
	return finishBootstrap(report, err)
}

// finishBootstrap prints the report and maps it to the exit code.
func finishBootstrap(report *services.BootstrapReport, err error) error {
	if report != nil {
		if printed, perr := printStructured(os.Stdout, bootstrapOutput, report); perr != nil {
			return &root.ExitError{Code: 1, Err: perr}
		} else if !printed {
			printBootstrapReport(os.Stdout, report)
		}
	}
	if err != nil {
		return &root.ExitError{Code: 1, Err: fmt.Errorf("bootstrap failed: %w", err)}
	}
	if failed := report.Failed(); len(failed) > 0 {
		var errs []error
		for _, o := range failed {
			if o.Err != nil {
				errs = append(errs, o.Err)
			} else {
				errs = append(errs, errors.New(o.Error))
			}
		}
		return &root.ExitError{Code: exitAppFailure, Err: fmt.Errorf("%d application service(s) failed: %w", len(failed), errors.Join(errs...))}
	}
	logger.Info("Bootstrap completed")
	return nil
}

// pushMetrics hands the counters of a one-shot command to the pushgateway, if any.
func pushMetrics() {
	cfg := config.Get()
	if cfg.Metrics.Pushgateway == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := services.PushMetrics(ctx, cfg.Metrics.Pushgateway, cfg.Metrics.Job); err != nil {
		logger.Warnf("%v", err)
	}
}

func init() {
	bootstrapCmd.Flags().BoolVar(&remote, "remote", false, "Ask the running keeper server to bootstrap")
	bootstrapCmd.Flags().StringVarP(&bootstrapOutput, "output", "o", outputTable, "Report format (table/json/yaml)")
	root.RootCmd.AddCommand(bootstrapCmd)
	bootstrapCmd.Example = `  grid-keeper bootstrap
  grid-keeper bootstrap --config ./grid-keeper.yaml --log-level debug
  grid-keeper bootstrap --remote -o json`
}
