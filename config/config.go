// Package config loads the monitor settings file and the per-site
// definitions from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/AndrewPaglusch/Simple-HTTP-Site-Monitor/uptime"
)

const (
	defaultSiteTimeout  = 10 // seconds
	defaultMaxRedirects = 5
)

// Settings mirrors settings.yml.
type Settings struct {
	HistoryLen      int      `yaml:"history_len"`
	ChangeThreshold int      `yaml:"change_threshold"`
	FlapThreshold   int      `yaml:"flap_threshold"`
	LoopTimer       int      `yaml:"looptimer"` // seconds
	NotifyTimeout   int      `yaml:"notify_timeout"`
	TelegramBotKey  string   `yaml:"telegram_botkey"`
	TelegramChatID  string   `yaml:"telegram_chatid"`
	LogLevel        string   `yaml:"log_level"`
	LogFormat       string   `yaml:"log_format"`
	LogFiles        []string `yaml:"log_files"`
}

func Defaults() *Settings {
	d := uptime.DefaultSettings()
	return &Settings{
		HistoryLen:      d.HistoryLength,
		ChangeThreshold: d.ChangeThreshold,
		FlapThreshold:   d.FlapThreshold,
		LoopTimer:       int(d.Interval / time.Second),
		NotifyTimeout:   int(d.NotifyTimeout / time.Second),
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// LoadSettings reads and validates the settings file. Any error here is
// meant to stop the process: monitoring with unknown thresholds is pointless.
func LoadSettings(path string) (*Settings, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate settings %s: %w", path, err)
	}
	return cfg, nil
}

func (s *Settings) Validate() error {
	err := s.Monitor().Validate()
	if _, lerr := uptime.ParseLogLevel(s.LogLevel); lerr != nil {
		err = multierr.Append(err, lerr)
	}
	switch s.LogFormat {
	case "", "console", "json":
	default:
		err = multierr.Append(err, fmt.Errorf("unknown log format %q", s.LogFormat))
	}
	if (s.TelegramBotKey == "") != (s.TelegramChatID == "") {
		err = multierr.Append(err, fmt.Errorf("telegram_botkey and telegram_chatid must be set together"))
	}
	return err
}

// Monitor converts the file values into the Checker's settings.
func (s *Settings) Monitor() uptime.Settings {
	return uptime.Settings{
		HistoryLength:   s.HistoryLen,
		ChangeThreshold: s.ChangeThreshold,
		FlapThreshold:   s.FlapThreshold,
		Interval:        time.Duration(s.LoopTimer) * time.Second,
		NotifyTimeout:   time.Duration(s.NotifyTimeout) * time.Second,
	}
}

// Logging converts the logging keys into a LogConfig.
func (s *Settings) Logging() uptime.LogConfig {
	level, _ := uptime.ParseLogLevel(s.LogLevel)
	return uptime.LogConfig{
		Files:  s.LogFiles,
		Format: s.LogFormat,
		Level:  level,
	}
}

// TelegramEnabled reports whether alerts should leave the process.
func (s *Settings) TelegramEnabled() bool {
	return s.TelegramBotKey != "" && s.TelegramChatID != ""
}

// siteDoc is one entry of a sites.d file.
type siteDoc struct {
	URL             string            `yaml:"url"`
	Search          string            `yaml:"search"`
	Timeout         *int              `yaml:"timeout"`
	MaxRedirect     *int              `yaml:"max_redirect"`
	IgnoreSSLErrors bool              `yaml:"ignore_ssl_errors"`
	HTTPHeaders     map[string]string `yaml:"http_headers"`
}

// LoadSites reads every *.yml and *.yaml file in dir. Broken files and
// entries are skipped; the returned error combines one error per skipped
// item and is non-nil even when some sites loaded fine.
func LoadSites(dir string, logger *zap.Logger) ([]uptime.Site, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Loading sites", zap.String("dir", dir))

	var files []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob sites: %w", err)
		}
		files = append(files, m...)
	}
	sort.Strings(files)

	var (
		sites []uptime.Site
		errs  error
		seen  = map[string]string{}
	)
	for _, f := range files {
		loaded, err := loadSiteFile(f, logger)
		errs = multierr.Append(errs, err)
		for _, s := range loaded {
			if prev, dup := seen[s.Name]; dup {
				errs = multierr.Append(errs, fmt.Errorf("%s: site %q already defined in %s", f, s.Name, prev))
				continue
			}
			seen[s.Name] = f
			sites = append(sites, s)
			logger.Info("Loaded site", zap.String("site", s.Name), zap.String("file", f))
		}
	}

	logger.Info("Finished loading all sites", zap.Int("count", len(sites)))
	return sites, errs
}

// loadSiteFile walks the document node by node so sites keep file order.
func loadSiteFile(path string, logger *zap.Logger) ([]uptime.Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil // empty file
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: expected a mapping of site name to settings", path)
	}

	var (
		sites []uptime.Site
		errs  error
	)
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		var sd siteDoc
		if err := root.Content[i+1].Decode(&sd); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: site %q: %w", path, name, err))
			continue
		}
		site, err := sd.site(name, logger)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		sites = append(sites, site)
	}
	return sites, errs
}

func (sd siteDoc) site(name string, logger *zap.Logger) (uptime.Site, error) {
	if name == "" {
		return uptime.Site{}, fmt.Errorf("site with empty name")
	}
	url := strings.TrimSpace(sd.URL)
	if url == "" {
		return uptime.Site{}, fmt.Errorf("site %q: missing url", name)
	}
	if !strings.Contains(url, "://") {
		logger.Warn("Site is missing 'http/https' prefix. Defaulting to 'http://' for this site",
			zap.String("site", name), zap.String("url", url))
		url = "http://" + url
	}

	timeout := defaultSiteTimeout
	if sd.Timeout != nil {
		timeout = *sd.Timeout
	}
	if timeout <= 0 {
		return uptime.Site{}, fmt.Errorf("site %q: timeout must be positive, got %d", name, timeout)
	}
	redirects := defaultMaxRedirects
	if sd.MaxRedirect != nil {
		redirects = *sd.MaxRedirect
	}
	if redirects < 0 {
		return uptime.Site{}, fmt.Errorf("site %q: max_redirect must not be negative, got %d", name, redirects)
	}

	return uptime.Site{
		Name:            name,
		URL:             url,
		Headers:         sd.HTTPHeaders,
		Search:          sd.Search,
		Timeout:         time.Duration(timeout) * time.Second,
		MaxRedirects:    redirects,
		IgnoreSSLErrors: sd.IgnoreSSLErrors,
	}, nil
}
