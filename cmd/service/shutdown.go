package service

import (
	"context"
	"fmt"
	"os"

	"grid-keeper/cmd/root"
	"grid-keeper/internal/logger"
	"grid-keeper/services"

	"github.com/spf13/cobra"
)

var shutdownOutput string

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Stop all running configured services",
	Long: `Stop all running configured services, applications first.

The owning process of each open port is found through its pid file or the
operating system's socket table, then sent SIGTERM and, after the grace
period, SIGKILL.

Exit status: 0 when every running service was stopped, 1 otherwise.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		return runShutdown(ctx)
	},
}

func runShutdown(ctx context.Context) error {
	var report *services.ShutdownReport
	var err error
	if remote {
		report, err = remoteShutdown(ctx)
	} else {
		manager, merr := newManager()
		if merr != nil {
			return &root.ExitError{Code: 1, Err: merr}
		}
		report, err = manager.Shutdown(ctx)
		pushMetrics()
	}
	if report != nil {
		if printed, perr := printStructured(os.Stdout, shutdownOutput, report); perr != nil {
			return &root.ExitError{Code: 1, Err: perr}
		} else if !printed {
			printShutdownReport(os.Stdout, report)
		}
	}
	if err != nil {
		return &root.ExitError{Code: 1, Err: fmt.Errorf("shutdown incomplete: %w", err)}
	}
	logger.Info("Shutdown completed")
	return nil
}

func init() {
	shutdownCmd.Flags().BoolVar(&remote, "remote", false, "Ask the running keeper server to shut down its services")
	shutdownCmd.Flags().StringVarP(&shutdownOutput, "output", "o", outputTable, "Report format (table/json/yaml)")
	root.RootCmd.AddCommand(shutdownCmd)
	shutdownCmd.Example = `  grid-keeper shutdown
  grid-keeper shutdown --remote`
}
