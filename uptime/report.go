package uptime

import (
	"context"
	"fmt"
)

// Notifier delivers alert text to an external channel. Implementations must
// honour ctx; the Checker bounds every call with Settings.NotifyTimeout.
type Notifier interface {
	Notify(ctx context.Context, severity Severity, message string) error
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ctx context.Context, severity Severity, message string) error

func (f NotifierFunc) Notify(ctx context.Context, severity Severity, message string) error {
	return f(ctx, severity, message)
}

// statusLine renders the operator-facing line for one check.
func statusLine(name string, res Result) (Severity, string) {
	ms := res.Latency.Milliseconds()
	reason := ""
	if !res.Up {
		reason = " Reason: " + res.Message
	}

	switch res.Decision.Kind {
	case StillDown:
		return SeverityError, fmt.Sprintf("'%s' is still flagged: OFFLINE (%d ms). %s%s", name, ms, res.History, reason)
	case NewDown:
		return SeverityError, fmt.Sprintf("'%s' is now flagged: OFFLINE (%d ms). %s%s", name, ms, res.History, reason)
	case StillFlapping:
		return SeverityError, fmt.Sprintf("'%s' is still flagged: FLAPPING/OFFLINE (%d ms). %s%s", name, ms, res.History, reason)
	case NewFlapping:
		return SeverityError, fmt.Sprintf("'%s' is now flagged: FLAPPING/OFFLINE (%d ms). %s%s", name, ms, res.History, reason)
	case StillUp:
		return SeveritySuccess, fmt.Sprintf("'%s' is still flagged: ONLINE (%d ms). %s", name, ms, res.History)
	case NewUp:
		return SeveritySuccess, fmt.Sprintf("'%s' is now flagged: ONLINE (%d ms). %s", name, ms, res.History)
	}

	// between states: report the raw outcome of this check
	if res.Up {
		return SeveritySuccess, fmt.Sprintf("'%s' is online (%d ms). %s", name, ms, res.History)
	}
	return SeverityError, fmt.Sprintf("'%s' is offline (%d ms). %s%s", name, ms, res.History, reason)
}
