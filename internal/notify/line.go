// Package notify delivers best-effort LINE Notify messages for received
// signals and executed orders.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const lineDefaultEndpoint = "https://notify-api.line.me/api/notify"

// Line posts messages to the LINE Notify API with a Bearer token.
type Line struct {
	endpoint string
	token    string
	http     *http.Client
	log      zerolog.Logger
}

func NewLine(token string, log zerolog.Logger) *Line {
	return &Line{
		endpoint: lineDefaultEndpoint,
		token:    token,
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// Notify sends msg with the configured token.
func (l *Line) Notify(ctx context.Context, msg string) error {
	return l.NotifyWithToken(ctx, msg, "")
}

// NotifyWithToken sends msg, overriding the configured token when the
// webhook supplied its own.
func (l *Line) NotifyWithToken(ctx context.Context, msg, token string) error {
	if token == "" {
		token = l.token
	}
	if token == "" {
		return fmt.Errorf("line notify: no token configured")
	}

	form := url.Values{}
	form.Set("message", msg)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("line notify: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := l.http.Do(req)
	if err != nil {
		return fmt.Errorf("line notify: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("line notify: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	l.log.Debug().Msg("line notification delivered")
	return nil
}
