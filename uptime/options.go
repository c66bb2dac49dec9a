// Package uptime exposes configuration options for the Checker via a
// functional options API.
package uptime

import (
	"net/http"

	"go.uber.org/zap"
)

// ===== Options Pattern =====
type Option func(*Checker)

func WithLogLevel(level LogLevel) Option {
	return func(c *Checker) { c.logLevel = level }
}

func WithResultBuffer(size int) Option {
	return func(c *Checker) { c.results = make(chan Result, size) }
}

// enable/disable internal logs
func WithInternalLogs(enabled bool) Option {
	return func(c *Checker) { c.enableInternalLogs = enabled }
}

// WithNotifier sets where alerts go. Without it alerts are only logged.
func WithNotifier(n Notifier) Option {
	return func(c *Checker) { c.notifier = n }
}

// WithTransport sets the base transport the Prober clones for every request.
func WithTransport(t *http.Transport) Option {
	return func(c *Checker) { c.transport = t }
}

// WithZapLogger logs JSON to stdout and, when filePath is set, to that file too.
func WithZapLogger(filePath string) Option {
	return func(c *Checker) {
		on := true
		c.logCfg.Console = &on
		c.logCfg.Format = "json"
		if filePath != "" {
			c.logCfg.Files = append(c.logCfg.Files, filePath)
		}
	}
}

// WithLogger allows injecting a custom zap logger (useful in tests).
func WithLogger(l *zap.Logger) Option {
	return func(c *Checker) {
		c.logger = l
		c.loggerExplicit = true
	}
}

// LogConsole turns the stdout sink on or off.
func LogConsole(enabled bool) Option {
	return func(c *Checker) { c.logCfg.Console = &enabled }
}

// LogFile adds a file sink. Repeatable.
func LogFile(path string) Option {
	return func(c *Checker) { c.logCfg.Files = append(c.logCfg.Files, path) }
}

// DisableLogs drops all log output.
func DisableLogs() Option {
	return func(c *Checker) { c.logCfg.Disabled = true }
}

// WithLogFormat selects "console" (colored, human) or "json" output.
func WithLogFormat(format string) Option {
	return func(c *Checker) { c.logCfg.Format = format }
}
