package uptime

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig describes where and how the monitor writes its log lines.
type LogConfig struct {
	Console  *bool    // nil means on
	Files    []string // extra output paths
	Disabled bool
	Format   string // "console" (colored) or "json"
	Level    LogLevel
}

func defaultConsoleLogger() *zap.Logger {
	l, err := zap.NewProduction(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// NewLogger builds a zap logger from cfg. It never returns nil.
func NewLogger(cfg LogConfig) *zap.Logger {
	if cfg.Disabled || cfg.Level == LogNone {
		return zap.NewNop()
	}

	// Determine console default: true unless explicitly set to false
	console := true
	if cfg.Console != nil {
		console = *cfg.Console
	}

	var paths []string
	seen := map[string]struct{}{}
	if console {
		paths = append(paths, "stdout")
		seen["stdout"] = struct{}{}
	}
	for _, f := range cfg.Files {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		paths = append(paths, f)
	}

	if len(paths) == 0 {
		// No outputs selected: default to console
		return defaultConsoleLogger()
	}

	zc := zap.NewProductionConfig()
	zc.OutputPaths = paths
	// every status line matters, do not sample repeats away
	zc.Sampling = nil
	switch cfg.Level {
	case LogDebug:
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case LogError:
		zc.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}
	if cfg.Format == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04")
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		if console && len(paths) == 1 {
			zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}
	l, err := zc.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
