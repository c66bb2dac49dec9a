// Package uptime defines core types for the site monitor.
package uptime

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

type LogLevel int

const (
	LogNone  LogLevel = iota // no logs
	LogError                 // only errors
	LogInfo                  // info + errors
	LogDebug                 // verbose, includes redirect hops
)

// ParseLogLevel maps a settings value onto a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	switch s {
	case "none":
		return LogNone, nil
	case "error":
		return LogError, nil
	case "", "info":
		return LogInfo, nil
	case "debug":
		return LogDebug, nil
	}
	return LogInfo, fmt.Errorf("unknown log level %q", s)
}

// Site is one monitored target. It is not modified after it is added to a Checker.
type Site struct {
	Name            string            `json:"name"`
	URL             string            `json:"url"`
	Headers         map[string]string `json:"headers,omitempty"`
	Search          string            `json:"search"`
	Timeout         time.Duration     `json:"timeout"`
	MaxRedirects    int               `json:"max_redirects"`
	IgnoreSSLErrors bool              `json:"ignore_ssl_errors"`
}

// Settings holds the monitor-wide parameters. Build it once and hand it to New.
type Settings struct {
	HistoryLength   int
	ChangeThreshold int
	FlapThreshold   int
	Interval        time.Duration
	NotifyTimeout   time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		HistoryLength:   5,
		ChangeThreshold: 3,
		FlapThreshold:   3,
		Interval:        60 * time.Second,
		NotifyTimeout:   10 * time.Second,
	}
}

// Validate rejects settings the decision engine cannot work with.
func (s Settings) Validate() error {
	var err error
	if s.HistoryLength < 1 {
		err = multierr.Append(err, fmt.Errorf("history length must be at least 1, got %d", s.HistoryLength))
	}
	if s.ChangeThreshold < 1 {
		err = multierr.Append(err, fmt.Errorf("change threshold must be at least 1, got %d", s.ChangeThreshold))
	}
	if s.FlapThreshold < 1 {
		err = multierr.Append(err, fmt.Errorf("flap threshold must be at least 1, got %d", s.FlapThreshold))
	}
	if s.HistoryLength < s.ChangeThreshold {
		err = multierr.Append(err, fmt.Errorf("history length (%d) must not be smaller than change threshold (%d)", s.HistoryLength, s.ChangeThreshold))
	}
	if s.Interval <= 0 {
		err = multierr.Append(err, fmt.Errorf("loop interval must be positive, got %v", s.Interval))
	}
	return err
}

// Status is the alerting state of a site.
type Status int

const (
	StatusUp Status = iota
	StatusDown
	StatusFlap
)

func (s Status) String() string {
	switch s {
	case StatusUp:
		return "up"
	case StatusDown:
		return "down"
	case StatusFlap:
		return "flap"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// AlertKind is the outcome of one Decide call.
type AlertKind int

const (
	BetweenState AlertKind = iota
	StillUp
	NewUp
	StillDown
	NewDown
	StillFlapping
	NewFlapping
)

func (k AlertKind) String() string {
	switch k {
	case BetweenState:
		return "between-state"
	case StillUp:
		return "still_up"
	case NewUp:
		return "new_up"
	case StillDown:
		return "still_down"
	case NewDown:
		return "new_down"
	case StillFlapping:
		return "still_flapping"
	case NewFlapping:
		return "new_flapping"
	}
	return fmt.Sprintf("AlertKind(%d)", int(k))
}

// Severity classifies a status line for logging and notification.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	}
	return "info"
}

// Result represents the outcome of checking one site in one sweep
type Result struct {
	Site      string        `json:"site"`
	CheckID   string        `json:"check_id"`
	Timestamp time.Time     `json:"timestamp"`
	Latency   time.Duration `json:"latency"`
	Up        bool          `json:"up"`
	Message   string        `json:"message"`
	History   History       `json:"history"`
	Decision  Decision      `json:"decision"`
	Severity  Severity      `json:"severity"`
	Line      string        `json:"line"`
}
