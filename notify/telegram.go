// Package notify delivers monitor alerts to external channels.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/AndrewPaglusch/Simple-HTTP-Site-Monitor/uptime"
)

const defaultTelegramAPI = "https://api.telegram.org"

// Telegram sends alerts through the Bot API sendMessage method.
type Telegram struct {
	BotKey string
	ChatID string

	// APIBase overrides the Bot API host, mostly for tests.
	APIBase string

	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// NewTelegram returns a sender limited to one message per second, the pace
// Telegram tolerates for a single chat.
func NewTelegram(botKey, chatID string) *Telegram {
	return &Telegram{
		BotKey:  botKey,
		ChatID:  chatID,
		APIBase: defaultTelegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		now:     time.Now,
	}
}

var _ uptime.Notifier = (*Telegram)(nil)

// Notify posts message, prefixed with the current time, to the configured chat.
func (t *Telegram) Notify(ctx context.Context, _ uptime.Severity, message string) error {
	if t.BotKey == "" || t.ChatID == "" {
		return fmt.Errorf("telegram bot key and chat id are required")
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit: %w", err)
	}

	form := url.Values{}
	form.Set("chat_id", t.ChatID)
	form.Set("disable_web_page_preview", "1")
	form.Set("text", t.now().Format("2006-01-02 15:04")+": "+message)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.APIBase, "/"), t.BotKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		// the bot key is part of the URL; keep it out of logs
		return fmt.Errorf("telegram request failed: %w", redact(err, t.BotKey))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redact(err error, secret string) error {
	if secret == "" {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), secret, "<redacted>"), err: err}
}
