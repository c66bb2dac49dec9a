package uptime

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	maxBodyRead    = 8 << 20 // 8MB
	defaultTimeout = 10 * time.Second
)

// Prober runs single HTTP checks. Redirects are followed by hand so the
// static host header can be corrected on every hop.
type Prober struct {
	transport *http.Transport
	logger    *zap.Logger
}

// NewProber builds a Prober on top of base. A nil base uses a clone of
// http.DefaultTransport; a nil logger discards hop logs.
func NewProber(base *http.Transport, logger *zap.Logger) *Prober {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{transport: base, logger: logger}
}

// hop is what one request of a redirect chain produced.
type hop struct {
	code     int
	location string
	hasLoc   bool
	body     []byte
}

// Probe checks site once and reports whether it is up plus a diagnostic
// message. Failures never surface as errors; they are described in the message.
func (p *Prober) Probe(ctx context.Context, site Site) (bool, string) {
	target, err := normalizeURL(site.URL)
	if err != nil {
		return false, fmt.Sprintf("Connection timed out: %v", err)
	}

	// Each check owns its headers; a re-pinned host must not leak into the site.
	headers := make(http.Header, len(site.Headers))
	for k, v := range site.Headers {
		headers.Set(k, v)
	}

	return p.follow(ctx, site, target, headers, site.MaxRedirects)
}

func (p *Prober) follow(ctx context.Context, site Site, target *url.URL, headers http.Header, remaining int) (bool, string) {
	for {
		h, err := p.fetch(ctx, site, target, headers)
		if err != nil {
			if isTimeout(err) {
				return false, "Connection timed out"
			}
			return false, fmt.Sprintf("Connection timed out: %v", err)
		}

		switch h.code / 100 {
		case 2:
			if len(h.body) == 0 {
				return false, "Empty response body!"
			}
			if strings.Contains(string(h.body), site.Search) {
				return true, fmt.Sprintf("'%s' is online", site.Search)
			}
			return false, fmt.Sprintf("Search text '%s' not found", site.Search)
		case 3:
			// handled below
		default:
			return false, fmt.Sprintf("HTTP Error %d", h.code)
		}

		if remaining <= 0 {
			return false, "Hit max clients"
		}
		if !h.hasLoc {
			return false, fmt.Sprintf("Bad redirect. Empty location. Response code: %d", h.code)
		}

		next, err := p.resolveRedirect(target, h.location, headers)
		if err != nil {
			return false, fmt.Sprintf("Bad redirect. Invalid location '%s'", h.location)
		}

		p.logger.Debug("Following redirect",
			zap.String("site", site.Name),
			zap.String("location", next.String()),
			zap.String("host", headers.Get("Host")),
			zap.Int("remaining", remaining-1))

		target = next
		remaining--
	}
}

// resolveRedirect turns a Location header into the next request URL and
// updates the static host header when one is configured.
func (p *Prober) resolveRedirect(current *url.URL, location string, headers http.Header) (*url.URL, error) {
	loc, err := url.Parse(location)
	if err != nil {
		return nil, err
	}

	pinned := headers.Get("Host")
	switch {
	case loc.Host == "":
		// relative redirect, e.g. "/login"
		loc = current.ResolveReference(loc)
	case pinned != "" && !strings.EqualFold(loc.Hostname(), hostOnly(pinned)):
		p.logger.Info("Host header differs from redirect location's hostname. Correcting...",
			zap.String("host_header", pinned),
			zap.String("redirect_host", loc.Hostname()))
		headers.Set("Host", loc.Hostname())
	case pinned != "":
		// Probing an address with a logical host header: the redirect names
		// the logical host, keep hitting the original address instead.
		p.logger.Info("Redirect hostname matches configured host header. Replacing...",
			zap.String("host_header", pinned),
			zap.String("replacement", current.Hostname()))
		if port := loc.Port(); port != "" {
			loc.Host = net.JoinHostPort(current.Hostname(), port)
		} else {
			loc.Host = bracketIPv6(current.Hostname())
		}
	}

	if loc.Scheme == "" {
		loc.Scheme = current.Scheme
	}
	if loc.Path == "" {
		loc.Path = "/"
	}
	return loc, nil
}

// fetch issues one GET and reads the whole (bounded) body within the timeout.
func (p *Prober) fetch(ctx context.Context, site Site, target *url.URL, headers http.Header) (*hop, error) {
	timeout := site.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range headers {
		if k == "Host" {
			continue
		}
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if host := headers.Get("Host"); host != "" {
		req.Host = host
	}

	// RoundTrip, not Client.Do: the client would parse Location itself and
	// fail the whole hop on a malformed header.
	resp, err := p.transportFor(target, site.IgnoreSSLErrors).RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))
	if err != nil {
		return nil, err
	}

	loc, ok := resp.Header["Location"]
	h := &hop{code: resp.StatusCode, body: body}
	if ok && len(loc) > 0 && loc[0] != "" {
		h.location, h.hasLoc = loc[0], true
	}
	return h, nil
}

func (p *Prober) transportFor(target *url.URL, ignoreSSL bool) *http.Transport {
	tr := p.transport.Clone()
	tr.DisableKeepAlives = true
	if ignoreSSL && target.Scheme == "https" {
		cfg := &tls.Config{}
		if tr.TLSClientConfig != nil {
			cfg = tr.TLSClientConfig.Clone()
		}
		cfg.InsecureSkipVerify = true
		tr.TLSClientConfig = cfg
	}
	return tr
}

// normalizeURL defaults the scheme to http and the path to "/".
func normalizeURL(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in url %q", raw)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func hostOnly(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}

func bracketIPv6(host string) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}
