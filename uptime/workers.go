package uptime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===== Sweep loop and internals =====

// Run sweeps all sites, sleeps for the configured interval and repeats
// until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	for {
		c.Sweep(ctx)

		timer := time.NewTimer(c.settings.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Sweep checks every registered site once, in registration order.
func (c *Checker) Sweep(ctx context.Context) []Result {
	sites := c.ListSites()
	c.ilog("Sweep of %d sites started", len(sites))

	results := make([]Result, 0, len(sites))
	for _, site := range sites {
		if ctx.Err() != nil {
			break
		}
		res, ok := c.checkSite(ctx, site)
		if !ok {
			break
		}
		results = append(results, res)

		select {
		case c.results <- res:
		default:
			c.ilog("Result buffer full, dropped result for %s", site.Name)
		}
	}
	return results
}

// checkSite checks one site and commits the outcome. It reports false, and
// leaves history and status alone, when ctx ended mid-request.
func (c *Checker) checkSite(ctx context.Context, site Site) (Result, bool) {
	res := Result{
		Site:      site.Name,
		CheckID:   uuid.NewString(),
		Timestamp: time.Now(),
	}

	c.logger.Debug("Testing site",
		zap.String("site", site.Name),
		zap.String("url", site.URL),
		zap.Any("headers", site.Headers))

	start := time.Now()
	res.Up, res.Message = c.prober.Probe(ctx, site)
	res.Latency = time.Since(start)

	if ctx.Err() != nil {
		// shutting down, not a site failure
		c.ilog("Check of %s abandoned: %v", site.Name, ctx.Err())
		return res, false
	}

	c.mu.Lock()
	st := c.state[site.Name]
	st.history = Record(st.history, res.Up, c.settings.HistoryLength)
	current := st.status
	decision, err := Decide(st.history, current, c.settings.ChangeThreshold, c.settings.FlapThreshold)
	st.status = decision.Status
	res.History = append(History(nil), st.history...)
	c.mu.Unlock()

	if err != nil {
		// Validate keeps this from happening; keep the status and carry on.
		c.logger.Error("alert decision failed", zap.String("site", site.Name), zap.Error(err))
	}
	res.Decision = decision
	res.Severity, res.Line = statusLine(site.Name, res)

	c.report(ctx, res)
	return res, true
}

// report writes the single status line for res and, when the decision asks
// for it, forwards the line to the notifier.
func (c *Checker) report(ctx context.Context, res Result) {
	c.log(res)
	if !res.Decision.Alert || c.notifier == nil {
		return
	}

	nctx, cancel := context.WithTimeout(ctx, c.settings.NotifyTimeout)
	defer cancel()
	if err := c.notifier.Notify(nctx, res.Severity, res.Line); err != nil {
		c.logger.Error("Failed to send alert",
			zap.String("site", res.Site),
			zap.String("check_id", res.CheckID),
			zap.Error(err))
		return
	}
	c.logger.Info("Sent alert", zap.String("site", res.Site), zap.String("kind", res.Decision.Kind.String()))
}

func (c *Checker) log(res Result) {
	fields := []zap.Field{
		zap.String("site", res.Site),
		zap.String("severity", res.Severity.String()),
		zap.String("state", res.Decision.Status.String()),
		zap.Duration("latency", res.Latency),
		zap.Stringer("history", res.History),
		zap.String("check_id", res.CheckID),
	}
	if !res.Up {
		fields = append(fields, zap.String("reason", res.Message))
	}

	switch c.logLevel {
	case LogNone:
		return
	case LogError:
		if res.Severity == SeverityError {
			c.logger.Error(res.Line, fields...)
		}
	default:
		switch res.Severity {
		case SeverityError:
			c.logger.Error(res.Line, fields...)
		case SeverityWarn:
			c.logger.Warn(res.Line, fields...)
		default:
			c.logger.Info(res.Line, fields...)
		}
	}
}
