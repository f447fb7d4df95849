package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"grid-keeper/internal/env"
	"grid-keeper/internal/models"

	"github.com/spf13/viper"
)

const (
	configName = "grid-keeper"
	envPrefix  = "GRID_KEEPER"
)

/**
 * Server configuration parameters
 * @property {string} address - Server listening address (e.g. "127.0.0.1:8090")
 * @property {string} socket - Optional unix socket path served in addition to address
 * @property {string} mode - gin mode (debug/release/test)
 */
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Socket  string `mapstructure:"socket"`
	Mode    string `mapstructure:"mode"`
}

/**
 * Logging configuration
 * @property {string} level - Log level (debug/info/warn/error)
 * @property {string} path - Log file path, "console" logs to stderr only
 */
type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

/**
 * Metrics configuration
 * @property {string} pushgateway - Pushgateway address, empty disables pushing
 * @property {string} job - Job name used when pushing
 */
type MetricsConfig struct {
	Pushgateway string `mapstructure:"pushgateway"`
	Job         string `mapstructure:"job"`
}

type ProbeConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

/**
 * Readiness polling policy
 * @property {time.Duration} interval - First delay between two probes
 * @property {time.Duration} maxInterval - Upper bound of the delay
 * @property {float64} multiplier - Backoff factor, 1 means fixed interval
 * @property {time.Duration} timeout - Overall bound, 0 waits forever
 */
type ReadinessConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxInterval time.Duration `mapstructure:"max_interval"`
	Multiplier  float64       `mapstructure:"multiplier"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type DownloadConfig struct {
	Retries int           `mapstructure:"retries"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type BootstrapConfig struct {
	MaxParallel int `mapstructure:"max_parallel"`
}

type ShutdownConfig struct {
	Grace time.Duration `mapstructure:"grace"`
}

type AppConfig struct {
	DataDir   string               `mapstructure:"data_dir"`
	Server    ServerConfig         `mapstructure:"server"`
	Log       LogConfig            `mapstructure:"log"`
	Metrics   MetricsConfig        `mapstructure:"metrics"`
	Probe     ProbeConfig          `mapstructure:"probe"`
	Readiness ReadinessConfig      `mapstructure:"readiness"`
	Download  DownloadConfig       `mapstructure:"download"`
	Bootstrap BootstrapConfig      `mapstructure:"bootstrap"`
	Shutdown  ShutdownConfig       `mapstructure:"shutdown"`
	Services  []models.ServiceSpec `mapstructure:"services"`

	// directory of the loaded config file, base of relative paths
	BaseDir string `mapstructure:"-"`
}

// AppsDir is the artifact cache: archives and canonical install dirs.
func (cfg *AppConfig) AppsDir() string {
	return filepath.Join(cfg.DataDir, "apps")
}

func (cfg *AppConfig) LogsDir() string {
	return filepath.Join(cfg.DataDir, "logs")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", env.DefaultDataDir())
	v.SetDefault("server.address", "127.0.0.1:8090")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "console")
	v.SetDefault("metrics.job", "grid-keeper")
	v.SetDefault("probe.timeout", time.Second)
	v.SetDefault("readiness.interval", 3*time.Second)
	v.SetDefault("readiness.max_interval", 15*time.Second)
	v.SetDefault("readiness.multiplier", 1.0)
	v.SetDefault("readiness.timeout", 10*time.Minute)
	v.SetDefault("download.retries", 2)
	v.SetDefault("download.timeout", 30*time.Minute)
	v.SetDefault("bootstrap.max_parallel", 0)
	v.SetDefault("shutdown.grace", 5*time.Second)
}

/**
 * Load application configuration
 * @param {string} path - Explicit config file, empty searches "." and "~/.grid-keeper"
 * @returns {*AppConfig} Loaded and validated configuration
 * @description
 * - Applies defaults, then the YAML file, then GRID_KEEPER_* environment variables
 * - A missing file is only an error when the path was given explicitly
 * - Falls back to the built-in registry when no services are declared
 */
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		v.AddConfigPath(env.KeeperDir)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		cfg.BaseDir = filepath.Dir(used)
	} else if wd, err := os.Getwd(); err == nil {
		cfg.BaseDir = wd
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills defaults, makes paths absolute and validates the services.
func (cfg *AppConfig) Normalize() error {
	if len(cfg.Services) == 0 {
		cfg.Services = DefaultServices()
	}
	if cfg.DataDir == "" {
		cfg.DataDir = env.DefaultDataDir()
	}
	if !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(cfg.BaseDir, cfg.DataDir)
	}
	if cfg.Readiness.Multiplier < 1 {
		cfg.Readiness.Multiplier = 1
	}
	if cfg.Readiness.MaxInterval < cfg.Readiness.Interval {
		cfg.Readiness.MaxInterval = cfg.Readiness.Interval
	}
	for i := range cfg.Services {
		normalizeService(&cfg.Services[i])
	}
	return ValidateServices(cfg.Services)
}

var current *AppConfig

// Set installs cfg as the process-wide configuration.
func Set(cfg *AppConfig) {
	current = cfg
}

// Get returns the configuration installed by Set, or a default one.
func Get() *AppConfig {
	if current == nil {
		cfg := &AppConfig{}
		v := viper.New()
		setDefaults(v)
		if err := v.Unmarshal(cfg); err == nil {
			cfg.BaseDir, _ = os.Getwd()
			_ = cfg.Normalize()
		}
		current = cfg
	}
	return current
}
