package uptime_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	up "github.com/AndrewPaglusch/Simple-HTTP-Site-Monitor/uptime"
)

type sentAlert struct {
	severity up.Severity
	message  string
}

// recordingNotifier keeps every alert it is asked to send.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentAlert
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, sev up.Severity, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentAlert{sev, msg})
	return n.err
}

func (n *recordingNotifier) alerts() []sentAlert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentAlert(nil), n.sent...)
}

// toggleServer answers 200 "ok" while healthy and 503 otherwise.
func toggleServer(t *testing.T) (*httptest.Server, *atomic.Bool) {
	t.Helper()
	var healthy atomic.Bool
	healthy.Store(true)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(ts.Close)
	return ts, &healthy
}

func testSettings(history, change, flap int) up.Settings {
	return up.Settings{
		HistoryLength:   history,
		ChangeThreshold: change,
		FlapThreshold:   flap,
		Interval:        time.Hour,
		NotifyTimeout:   time.Second,
	}
}

func TestNew_RejectsInvalidSettings(t *testing.T) {
	_, err := up.New(testSettings(2, 3, 3), up.DisableLogs())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "change threshold")

	_, err = up.New(up.Settings{}, up.DisableLogs())
	require.Error(t, err)
	assert.GreaterOrEqual(t, len(multierr.Errors(errors.Unwrap(err))), 4)
}

// Test that adding a site applies defaults and ListSites works as an external user would expect.
func TestAddSiteDefaultsAndListSites(t *testing.T) {
	c, err := up.New(testSettings(5, 3, 3), up.DisableLogs())
	require.NoError(t, err)

	require.NoError(t, c.AddSite(up.Site{Name: "Test", URL: "http://example", MaxRedirects: -2}))
	assert.Error(t, c.AddSite(up.Site{Name: "Test", URL: "http://other"}))
	assert.Error(t, c.AddSite(up.Site{URL: "http://nameless"}))

	sites := c.ListSites()
	require.Len(t, sites, 1)
	assert.NotZero(t, sites[0].Timeout)
	assert.Equal(t, 0, sites[0].MaxRedirects)

	history, status, ok := c.SiteState("Test")
	require.True(t, ok)
	assert.Equal(t, up.History{0, 0, 0, 0, 0}, history)
	assert.Equal(t, up.StatusUp, status)

	_, _, ok = c.SiteState("missing")
	assert.False(t, ok)
}

func TestAddSitesBulk_ReportsRejected(t *testing.T) {
	c, err := up.New(testSettings(5, 3, 3), up.DisableLogs())
	require.NoError(t, err)

	err = c.AddSitesBulk([]up.Site{
		{Name: "a", URL: "http://a"},
		{Name: "b", URL: "http://b"},
		{Name: "a", URL: "http://a2"},
	})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Len(t, c.ListSites(), 2)
}

func TestSweep_DownAndRecovery(t *testing.T) {
	ts, healthy := toggleServer(t)
	notifier := &recordingNotifier{}

	c, err := up.New(testSettings(4, 2, 3), up.DisableLogs(), up.WithNotifier(notifier))
	require.NoError(t, err)
	require.NoError(t, c.AddSite(up.Site{Name: "web", URL: ts.URL, Search: "ok", Timeout: time.Second}))

	steps := []struct {
		healthy bool
		kind    up.AlertKind
		status  up.Status
		line    string
	}{
		{true, up.StillUp, up.StatusUp, "'web' is still flagged: ONLINE"},
		{false, up.BetweenState, up.StatusUp, "'web' is offline"},
		{false, up.NewDown, up.StatusDown, "'web' is now flagged: OFFLINE"},
		{false, up.StillDown, up.StatusDown, "'web' is still flagged: OFFLINE"},
		{true, up.BetweenState, up.StatusDown, "'web' is online"},
		{true, up.NewUp, up.StatusUp, "'web' is now flagged: ONLINE"},
	}
	for i, step := range steps {
		healthy.Store(step.healthy)
		results := c.Sweep(context.Background())
		require.Len(t, results, 1)

		res := results[0]
		assert.Equal(t, step.kind, res.Decision.Kind, "step %d", i)
		assert.Equal(t, step.status, res.Decision.Status, "step %d", i)
		assert.True(t, strings.HasPrefix(res.Line, step.line), "step %d: %s", i, res.Line)
		assert.NotEmpty(t, res.CheckID)

		_, status, _ := c.SiteState("web")
		assert.Equal(t, step.status, status, "step %d", i)
	}

	alerts := notifier.alerts()
	require.Len(t, alerts, 2)
	assert.Equal(t, up.SeverityError, alerts[0].severity)
	assert.Contains(t, alerts[0].message, "is now flagged: OFFLINE")
	assert.Contains(t, alerts[0].message, "[1, 1, 0, 0] Reason: HTTP Error 503")
	assert.Equal(t, up.SeveritySuccess, alerts[1].severity)
	assert.Contains(t, alerts[1].message, "is now flagged: ONLINE")
	assert.Contains(t, alerts[1].message, "[0, 0, 1, 1]")
}

func TestSweep_Flapping(t *testing.T) {
	ts, healthy := toggleServer(t)
	notifier := &recordingNotifier{}

	c, err := up.New(testSettings(5, 3, 3), up.DisableLogs(), up.WithNotifier(notifier))
	require.NoError(t, err)
	require.NoError(t, c.AddSite(up.Site{Name: "flappy", URL: ts.URL, Search: "ok", Timeout: time.Second}))

	var kinds []up.AlertKind
	for _, h := range []bool{false, true, false, true} {
		healthy.Store(h)
		res := c.Sweep(context.Background())
		kinds = append(kinds, res[0].Decision.Kind)
	}
	assert.Equal(t, []up.AlertKind{up.BetweenState, up.BetweenState, up.NewFlapping, up.StillFlapping}, kinds)

	history, status, _ := c.SiteState("flappy")
	assert.Equal(t, up.History{0, 1, 0, 1, 0}, history)
	assert.Equal(t, up.StatusFlap, status)

	alerts := notifier.alerts()
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].message, "'flappy' is now flagged: FLAPPING/OFFLINE")
}

func TestSweep_NotifierFailureDoesNotStopSweep(t *testing.T) {
	ts, healthy := toggleServer(t)
	healthy.Store(false)

	core, logs := observer.New(zapcore.InfoLevel)
	notifier := &recordingNotifier{err: errors.New("telegram is down")}
	c, err := up.New(testSettings(1, 1, 3), up.WithLogger(zap.New(core)), up.WithNotifier(notifier))
	require.NoError(t, err)
	require.NoError(t, c.AddSitesBulk([]up.Site{
		{Name: "one", URL: ts.URL, Search: "ok", Timeout: time.Second},
		{Name: "two", URL: ts.URL, Search: "ok", Timeout: time.Second},
	}))

	results := c.Sweep(context.Background())
	require.Len(t, results, 2)
	assert.Len(t, notifier.alerts(), 2)
	assert.Equal(t, 2, logs.FilterMessage("Failed to send alert").Len())
}

func TestSweep_SlowNotifierIsBounded(t *testing.T) {
	ts, healthy := toggleServer(t)
	healthy.Store(false)

	settings := testSettings(1, 1, 3)
	settings.NotifyTimeout = 50 * time.Millisecond
	c, err := up.New(settings, up.DisableLogs(), up.WithNotifier(up.NotifierFunc(
		func(ctx context.Context, _ up.Severity, _ string) error {
			<-ctx.Done()
			return ctx.Err()
		})))
	require.NoError(t, err)
	require.NoError(t, c.AddSite(up.Site{Name: "down", URL: ts.URL, Search: "ok", Timeout: time.Second}))

	start := time.Now()
	results := c.Sweep(context.Background())
	require.Len(t, results, 1)
	assert.True(t, results[0].Decision.Alert)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSweep_OneStatusLinePerSite(t *testing.T) {
	ts, healthy := toggleServer(t)

	core, logs := observer.New(zapcore.InfoLevel)
	c, err := up.New(testSettings(3, 2, 3), up.WithLogger(zap.New(core)))
	require.NoError(t, err)
	require.NoError(t, c.AddSite(up.Site{Name: "a", URL: ts.URL, Search: "ok", Timeout: time.Second}))
	require.NoError(t, c.AddSite(up.Site{Name: "b", URL: ts.URL, Search: "missing", Timeout: time.Second}))

	healthy.Store(true)
	c.Sweep(context.Background())

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "a", entries[0].ContextMap()["site"])
	assert.Equal(t, "success", entries[0].ContextMap()["severity"])
	assert.Equal(t, "[0, 0, 0]", entries[0].ContextMap()["history"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "b", entries[1].ContextMap()["site"])
	assert.Equal(t, "Search text 'missing' not found", entries[1].ContextMap()["reason"])
	assert.Contains(t, entries[1].Message, "'b' is offline")
}

func TestLogLevelError_SkipsHealthyLines(t *testing.T) {
	ts, _ := toggleServer(t)

	core, logs := observer.New(zapcore.DebugLevel)
	c, err := up.New(testSettings(3, 2, 3), up.WithLogger(zap.New(core)), up.WithLogLevel(up.LogError))
	require.NoError(t, err)
	require.NoError(t, c.AddSite(up.Site{Name: "a", URL: ts.URL, Search: "ok", Timeout: time.Second}))

	c.Sweep(context.Background())
	assert.Equal(t, 0, logs.Len())
}

// End-to-end path using a real HTTP server and the public Start/Stop API.
func TestStartStop_DeliversResults(t *testing.T) {
	ts, _ := toggleServer(t)

	c, err := up.New(testSettings(3, 2, 3), up.DisableLogs(), up.WithResultBuffer(10))
	require.NoError(t, err)
	require.NoError(t, c.AddSite(up.Site{Name: "ok-site", URL: ts.URL, Search: "ok", Timeout: time.Second}))

	c.Start()
	defer c.Stop()

	select {
	case res := <-c.Results():
		assert.True(t, res.Up, res.Message)
		assert.Equal(t, "ok-site", res.Site)
		assert.Equal(t, "'ok' is online", res.Message)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for result")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ts, _ := toggleServer(t)

	c, err := up.New(testSettings(3, 2, 3), up.DisableLogs())
	require.NoError(t, err)
	require.NoError(t, c.AddSite(up.Site{Name: "a", URL: ts.URL, Search: "ok", Timeout: time.Second}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	<-c.Results()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

// Validate logging options: file-only, console off; file created and non-empty after a sweep.
func TestLogging_FileOnlyProducesOutput(t *testing.T) {
	ts, _ := toggleServer(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "uptime.log")

	c, err := up.New(testSettings(3, 2, 3),
		up.WithLogLevel(up.LogInfo),
		up.LogConsole(false),
		up.LogFile(path),
	)
	require.NoError(t, err)
	require.NoError(t, c.AddSite(up.Site{Name: "one", URL: ts.URL, Search: "ok", Timeout: time.Second}))

	c.Sweep(context.Background())
	_ = c.Logger().Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "'one' is still flagged: ONLINE")
}

func TestLogging_ZapLoggerWritesFile(t *testing.T) {
	ts, _ := toggleServer(t)

	path := filepath.Join(t.TempDir(), "uptime.json")
	c, err := up.New(testSettings(3, 2, 3), up.WithZapLogger(path))
	require.NoError(t, err)
	require.NoError(t, c.AddSite(up.Site{Name: "one", URL: ts.URL, Search: "ok", Timeout: time.Second}))

	c.Sweep(context.Background())
	_ = c.Logger().Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"site":"one"`)
	assert.Contains(t, string(data), "'one' is still flagged: ONLINE")
}

func TestNew_FillsNotifyTimeout(t *testing.T) {
	settings := testSettings(3, 2, 3)
	settings.NotifyTimeout = 0

	c, err := up.New(settings, up.DisableLogs())
	require.NoError(t, err)
	assert.Equal(t, up.DefaultSettings().NotifyTimeout, c.Settings().NotifyTimeout)
	assert.Equal(t, 3, c.Settings().HistoryLength)
}

// Stopping mid-check must not count as the site going down.
func TestStop_DuringCheckLeavesStateUntouched(t *testing.T) {
	started := make(chan struct{}, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	notifier := &recordingNotifier{}
	c, err := up.New(testSettings(1, 1, 3), up.DisableLogs(), up.WithNotifier(notifier))
	require.NoError(t, err)
	require.NoError(t, c.AddSite(up.Site{Name: "slow", URL: ts.URL, Search: "ok", Timeout: 2 * time.Second}))

	c.Start()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("check never reached the server")
	}
	time.Sleep(100 * time.Millisecond)
	c.Stop()

	history, status, ok := c.SiteState("slow")
	require.True(t, ok)
	assert.Equal(t, up.History{0}, history)
	assert.Equal(t, up.StatusUp, status)
	assert.Empty(t, notifier.alerts())

	select {
	case res := <-c.Results():
		t.Fatalf("unexpected result after stop: %+v", res)
	default:
	}
}

func TestStart_Twice(t *testing.T) {
	ts, _ := toggleServer(t)

	c, err := up.New(testSettings(3, 2, 3), up.DisableLogs(), up.WithResultBuffer(10))
	require.NoError(t, err)
	require.NoError(t, c.AddSite(up.Site{Name: "a", URL: ts.URL, Search: "ok", Timeout: time.Second}))

	c.Start()
	c.Start()
	<-c.Results()

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return after a second Start")
	}
}
