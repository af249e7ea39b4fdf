// Package observability provides the process-wide logger and the job
// metrics exported on /metrics.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger for command-line output. It is a console logger
// without timestamps so diagnostic runs read like terminal output, not a
// log stream. InitCLILogger replaces it once flags are parsed.
var CLILogger = zap.NewNop()

// InitCLILogger builds the console logger at the given level and installs
// it as CLILogger.
func InitCLILogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = ""
	cfg.EncoderConfig.CallerKey = ""
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	CLILogger = logger
	return logger, nil
}

// NewServerLogger builds the structured logger used by the HTTP server and
// job workers. format is "json" or "console".
func NewServerLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
