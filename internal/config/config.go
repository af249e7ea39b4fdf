// Package config loads the service configuration from defaults, an optional
// config file, environment variables, and runtime overrides, in that order
// of precedence (later wins).
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "RFD2MCP"

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Procedures ProceduresConfig `mapstructure:"procedures"`
	Artifacts  ArtifactsConfig  `mapstructure:"artifacts"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type JobsConfig struct {
	// Timeout is the wall-clock bound for a single job.
	Timeout time.Duration `mapstructure:"timeout"`
	// CancelGrace is how long a cancelled process gets after SIGTERM
	// before it is killed.
	CancelGrace time.Duration `mapstructure:"cancel_grace"`
	// OutputRoot is where per-job output directories are created.
	OutputRoot string `mapstructure:"output_root"`
	// LogTail is the default number of lines returned by log queries.
	LogTail int `mapstructure:"log_tail"`
}

type ProceduresConfig struct {
	// ScriptsDir holds the wrapped design scripts.
	ScriptsDir string `mapstructure:"scripts_dir"`
	// CatalogPath optionally replaces the built-in procedure catalog.
	CatalogPath string `mapstructure:"catalog_path"`
	// RFDRepoDir is the RFdiffusion2 checkout used for dependency checks.
	RFDRepoDir string `mapstructure:"rfd_repo_dir"`
	// Python is the interpreter used for import probes.
	Python string `mapstructure:"python"`
}

type ArtifactsConfig struct {
	// S3 staging of finished job outputs. Disabled unless a bucket is set.
	S3Bucket       string `mapstructure:"s3_bucket"`
	S3Region       string `mapstructure:"s3_region"`
	S3Prefix       string `mapstructure:"s3_prefix"`
	S3Endpoint     string `mapstructure:"s3_endpoint"`
	S3Profile      string `mapstructure:"s3_profile"`
	ForcePathStyle bool   `mapstructure:"s3_force_path_style"`
}

var (
	configMu sync.RWMutex
	current  *Config
)

// Load builds the configuration and installs it as the process config.
// Overrides apply on top of file and environment values.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("rfd2mcp")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/rfd2mcp")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	for _, o := range overrides {
		if err := v.MergeConfigMap(o); err != nil {
			return nil, fmt.Errorf("apply overrides: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	current = &cfg
	configMu.Unlock()
	return &cfg, nil
}

// GetConfig returns the last loaded configuration, or nil before Load.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return current
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("jobs.timeout", time.Hour)
	v.SetDefault("jobs.cancel_grace", 5*time.Second)
	v.SetDefault("jobs.output_root", "results")
	v.SetDefault("jobs.log_tail", 200)

	v.SetDefault("procedures.scripts_dir", "scripts")
	v.SetDefault("procedures.python", "python3")
}

func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Jobs.Timeout <= 0 {
		return fmt.Errorf("jobs.timeout must be positive")
	}
	if c.Jobs.CancelGrace <= 0 {
		return fmt.Errorf("jobs.cancel_grace must be positive")
	}
	if c.Jobs.LogTail < 0 {
		return fmt.Errorf("jobs.log_tail must not be negative")
	}
	return nil
}
