package root

import (
	"fmt"
	"path/filepath"

	"grid-keeper/internal/config"
	"grid-keeper/internal/env"
	"grid-keeper/internal/logger"

	"github.com/spf13/cobra"
)

var (
	configFile string
	dataDir    string
	logLevel   string
)

var RootCmd = &cobra.Command{
	Use:   "grid-keeper",
	Short: "Local bootstrap of the grid services",
	Long: `grid-keeper installs, starts and stops the services of a local grid:
binary distributions such as the search index and the message broker,
and the grid applications that depend on them.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Config file (default: ./grid-keeper.yaml or ~/.grid-keeper/grid-keeper.yaml)")
	flags.StringVar(&dataDir, "data-dir", "", "Directory holding downloaded archives, installs and logs")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug/info/warn/error)")
}

/**
 * Load the configuration and set up logging before any command runs
 * @description
 * - Command line flags override the config file and environment
 * - The server command logs to stdout as well
 */
func loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	if dataDir != "" {
		if cfg.DataDir, err = filepath.Abs(dataDir); err != nil {
			return &ExitError{Code: 1, Err: err}
		}
		if err := cfg.Normalize(); err != nil {
			return &ExitError{Code: 1, Err: err}
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	env.Server = cmd.Name() == "server"
	config.Set(cfg)
	logger.InitLogger(&cfg.Log, env.Server)
	logger.Debugf("Configuration loaded, data dir '%s', %d services", cfg.DataDir, len(cfg.Services))
	return nil
}

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
