// Package bot runs the Telegram command interface. It long-polls the Bot API
// and answers a small command set so the tent can be checked and driven from
// a phone without the web UI.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Is0cre/growtent/internal/db"
	"github.com/Is0cre/growtent/internal/hardware"
	"github.com/Is0cre/growtent/internal/models"

	"github.com/rs/zerolog"
)

// Engine is the slice of the control loop the bot drives.
type Engine interface {
	TurnDeviceOn(ctx context.Context, name string) error
	TurnDeviceOff(ctx context.Context, name string) error
	DeviceStates() map[string]bool
	CurrentReading(ctx context.Context) (*models.SensorReading, error)
	CaptureSnapshot(ctx context.Context) (string, error)
}

type Bot struct {
	token    string
	chatID   string
	engine   Engine
	database *db.DB
	client   *http.Client
	log      zerolog.Logger
	offset   int64
}

func New(token, chatID string, engine Engine, database *db.DB, log zerolog.Logger) *Bot {
	return &Bot{
		token:    token,
		chatID:   chatID,
		engine:   engine,
		database: database,
		client:   &http.Client{Timeout: 40 * time.Second},
		log:      log,
	}
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// Run polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	b.log.Info().Msg("telegram bot started")
	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("telegram bot stopped")
			return
		default:
		}

		updates, err := b.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.log.Warn().Err(err).Msg("polling updates")
			time.Sleep(5 * time.Second)
			continue
		}

		for _, u := range updates {
			b.offset = u.UpdateID + 1
			if u.Message == nil {
				continue
			}
			if b.chatID != "" && strconv.FormatInt(u.Message.Chat.ID, 10) != b.chatID {
				b.log.Warn().Int64("chat", u.Message.Chat.ID).Msg("ignoring message from unknown chat")
				continue
			}
			b.handleCommand(ctx, u.Message.Text)
		}
	}
}

func (b *Bot) getUpdates(ctx context.Context) ([]update, error) {
	q := url.Values{}
	q.Set("timeout", "30")
	q.Set("offset", strconv.FormatInt(b.offset, 10))
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/getUpdates?%s", b.token, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding updates: %w", err)
	}
	if !body.OK {
		return nil, fmt.Errorf("telegram returned not ok")
	}
	return body.Result, nil
}

func (b *Bot) handleCommand(ctx context.Context, text string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return
	}
	cmd := fields[0]
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}

	switch cmd {
	case "/status":
		b.reply(ctx, b.statusText(ctx))
	case "/devices":
		b.reply(ctx, b.devicesText())
	case "/on", "/off":
		if len(fields) < 2 {
			b.reply(ctx, fmt.Sprintf("Usage: %s <device>", cmd))
			return
		}
		b.switchDevice(ctx, fields[1], cmd == "/on")
	case "/alerts":
		b.reply(ctx, b.alertsText(ctx))
	case "/photo":
		path, err := b.engine.CaptureSnapshot(ctx)
		if err != nil {
			b.reply(ctx, fmt.Sprintf("Capture failed: %v", err))
			return
		}
		b.reply(ctx, fmt.Sprintf("📷 Snapshot saved: %s", path))
	case "/help", "/start":
		b.reply(ctx, "Commands: /status /devices /on <device> /off <device> /alerts /photo")
	}
}

func (b *Bot) statusText(ctx context.Context) string {
	reading, err := b.engine.CurrentReading(ctx)
	if err != nil || reading == nil {
		return "No recent sensor reading."
	}
	return fmt.Sprintf("🌡️ %.1f°C  💧 %.1f%%  ⏱ %s",
		reading.Temperature, reading.Humidity, reading.CapturedAt.Format("15:04:05"))
}

func (b *Bot) devicesText() string {
	states := b.engine.DeviceStates()
	var sb strings.Builder
	for _, name := range hardware.DeviceNames {
		mark := "⚫"
		if states[name] {
			mark = "🟢"
		}
		fmt.Fprintf(&sb, "%s %s\n", mark, name)
	}
	return sb.String()
}

func (b *Bot) switchDevice(ctx context.Context, name string, on bool) {
	var err error
	if on {
		err = b.engine.TurnDeviceOn(ctx, name)
	} else {
		err = b.engine.TurnDeviceOff(ctx, name)
	}
	if err != nil {
		b.reply(ctx, fmt.Sprintf("Failed: %v", err))
		return
	}
	state := "off"
	if on {
		state = "on"
	}
	b.reply(ctx, fmt.Sprintf("%s is now %s", name, state))
}

func (b *Bot) alertsText(ctx context.Context) string {
	s, err := b.database.GetAlertSettings(ctx)
	if err != nil {
		return "Failed to load alert settings."
	}
	if !s.Enabled {
		return "Alerts are disabled."
	}
	var sb strings.Builder
	sb.WriteString("Alerts enabled\n")
	if s.TempMin != nil && s.TempMax != nil {
		fmt.Fprintf(&sb, "🌡️ %.1f–%.1f°C\n", *s.TempMin, *s.TempMax)
	}
	if s.HumidityMin != nil && s.HumidityMax != nil {
		fmt.Fprintf(&sb, "💧 %.1f–%.1f%%\n", *s.HumidityMin, *s.HumidityMax)
	}
	fmt.Fprintf(&sb, "Every %ds at most", s.NotificationInterval)
	return sb.String()
}

func (b *Bot) reply(ctx context.Context, text string) {
	if b.chatID == "" {
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"chat_id": b.chatID,
		"text":    text,
	})
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", b.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Warn().Err(err).Msg("sending reply")
		return
	}
	resp.Body.Close()
}
