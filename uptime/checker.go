// Package uptime implements the high-level Checker public API.
package uptime

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// siteState is owned by the sweep loop; one per site, never shared.
type siteState struct {
	history History
	status  Status
}

type Checker struct {
	settings  Settings
	prober    *Prober
	transport *http.Transport
	notifier  Notifier
	logLevel  LogLevel

	enableInternalLogs bool
	logger             *zap.Logger
	loggerExplicit     bool // set when WithLogger used

	// logging configuration accumulated by options
	logCfg LogConfig

	results chan Result
	wg      sync.WaitGroup

	mu     sync.Mutex
	sites  []Site
	state  map[string]*siteState
	cancel context.CancelFunc
}

// ===== Constructor =====
func New(settings Settings, opts ...Option) (*Checker, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if settings.NotifyTimeout <= 0 {
		settings.NotifyTimeout = DefaultSettings().NotifyTimeout
	}

	c := &Checker{
		settings: settings,
		logLevel: LogInfo,
		results:  make(chan Result, 1000),
		state:    make(map[string]*siteState),
		logger:   nil, // build after applying options
	}
	for _, opt := range opts {
		opt(c)
	}
	// Build logger after options applied unless explicitly provided
	if !c.loggerExplicit {
		cfg := c.logCfg
		cfg.Level = c.logLevel
		c.logger = NewLogger(cfg)
	}
	// Safety fallback
	if c.logger == nil {
		c.logger = defaultConsoleLogger()
	}
	c.prober = NewProber(c.transport, c.logger)
	return c, nil
}

// ===== Public API =====

// Start runs the sweep loop in the background until Stop is called.
// Calling it again while running is a no-op.
func (c *Checker) Start() {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Run(ctx)
	}()
	c.ilog("Scheduler started (interval %v)", c.settings.Interval)
}

func (c *Checker) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	c.ilog("Checker stopped")
}

// AddSite registers a site with a fresh all-up history.
func (c *Checker) AddSite(site Site) error {
	if site.Name == "" {
		return fmt.Errorf("site has no name (url %q)", site.URL)
	}
	if site.Timeout == 0 {
		site.Timeout = defaultTimeout
	}
	if site.MaxRedirects < 0 {
		site.MaxRedirects = 0
	}

	c.mu.Lock()
	if _, ok := c.state[site.Name]; ok {
		c.mu.Unlock()
		return fmt.Errorf("site %q already registered", site.Name)
	}
	c.sites = append(c.sites, site)
	c.state[site.Name] = &siteState{
		history: NewHistory(c.settings.HistoryLength),
		status:  StatusUp,
	}
	c.mu.Unlock()

	c.ilog("Registered site: %s (%s)", site.Name, site.URL)
	return nil
}

// AddSitesBulk registers every site it can and reports the ones it could not.
func (c *Checker) AddSitesBulk(sites []Site) error {
	var err error
	added := 0
	for _, s := range sites {
		if e := c.AddSite(s); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		added++
	}
	c.ilog("Registered %d sites", added)
	return err
}

// Results channel
func (c *Checker) Results() <-chan Result { return c.results }

// ListSites returns all registered sites
func (c *Checker) ListSites() []Site {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Site(nil), c.sites...)
}

// SiteState returns a copy of a site's history and its current status.
func (c *Checker) SiteState(name string) (History, Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.state[name]
	if !ok {
		return nil, StatusUp, false
	}
	return append(History(nil), st.history...), st.status, true
}

// Settings returns the settings the Checker was built with.
func (c *Checker) Settings() Settings { return c.settings }

// Logger exposes the logger so callers can log in the same format.
func (c *Checker) Logger() *zap.Logger { return c.logger }

// ===== Internal Logging Helper =====
func (c *Checker) ilog(format string, args ...interface{}) {
	if c.enableInternalLogs {
		c.logger.Info(fmt.Sprintf("[INTERNAL] "+format, args...))
	}
}
