// Package notify delivers alerts and reports to the grower.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Notifier is the notification sink used by the engine, the bot, and the
// report jobs.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Telegram sends messages through the Bot HTTP API.
type Telegram struct {
	token  string
	chatID string
	client *http.Client
	log    zerolog.Logger
}

// NewTelegram builds a Telegram notifier for a fixed chat.
func NewTelegram(token, chatID string, log zerolog.Logger) *Telegram {
	return &Telegram{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Send posts one message. Errors are returned, not retried; alert throttling
// upstream keeps the volume low enough that the next occurrence retries.
func (t *Telegram) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: text})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram send: status %d: %s", resp.StatusCode, payload)
	}
	return nil
}

// LogNotifier is the fallback sink when no Telegram credentials are
// configured; messages land in the log only.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, text string) error {
	n.log.Warn().Str("notification", text).Msg("no notifier configured")
	return nil
}
