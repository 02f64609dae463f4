package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// mdv2Specials are the characters Telegram requires escaped in MarkdownV2
// text outside of entities.
const mdv2Specials = "_*[]()~`>#+-=|{}.!"

// TelegramNotifier delivers alerts to a chat through the Telegram Bot API.
// Signal alerts are rendered as a compact trade card; operational alerts fall
// back to title plus message.
type TelegramNotifier struct {
	token   string
	chatID  string
	apiBase string // overridable in tests
	client  *http.Client
}

// NewTelegramNotifier builds a notifier for the given bot token and target
// chat/channel id.
func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		apiBase: telegramAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	reqBody, err := json.Marshal(struct {
		ChatID    string `json:"chat_id"`
		Text      string `json:"text"`
		ParseMode string `json:"parse_mode"`
	}{
		ChatID:    t.chatID,
		Text:      renderTelegramText(alert),
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	// The Bot API reports failures both via HTTP status and an ok flag.
	var apiResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("telegram: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !apiResp.OK {
		return fmt.Errorf("telegram: api error (status %d): %s", resp.StatusCode, apiResp.Description)
	}

	log.Printf("[telegram] sent alert: %s", alert.Title)
	return nil
}

// renderTelegramText formats one alert as MarkdownV2. Signal alerts get a
// direction marker and the key trade numbers; everything else is title and
// message.
func renderTelegramText(alert Alert) string {
	var b strings.Builder

	sc := alert.Signal
	if sc == nil {
		b.WriteString(levelMarker(alert.Level))
		b.WriteString(" *")
		b.WriteString(escapeMarkdownV2(alert.Title))
		b.WriteString("*\n\n")
		b.WriteString(escapeMarkdownV2(alert.Message))
		return b.String()
	}

	marker := "🟢"
	if sc.Direction == "SELL" {
		marker = "🔴"
	}
	fmt.Fprintf(&b, "%s *%s*\n", marker, escapeMarkdownV2(alert.Title))
	fmt.Fprintf(&b, "Strategy: %s\n", escapeMarkdownV2(sc.Strategy))
	if sc.Timeframe != "" {
		fmt.Fprintf(&b, "Timeframe: %s\n", escapeMarkdownV2(sc.Timeframe))
	}
	fmt.Fprintf(&b, "Entry: %s", escapeMarkdownV2(fmt.Sprintf("%.5f", sc.Entry)))
	if sc.Event == "closed" {
		fmt.Fprintf(&b, "\nExit: %s", escapeMarkdownV2(fmt.Sprintf("%.5f", sc.Exit)))
		fmt.Fprintf(&b, "\nPnL: %s", escapeMarkdownV2(fmt.Sprintf("%+.2f%%", sc.PnLPercent)))
	}
	return b.String()
}

func levelMarker(level AlertLevel) string {
	switch level {
	case AlertWarning:
		return "⚠️"
	case AlertCritical:
		return "🚨"
	default:
		return "ℹ️"
	}
}

// escapeMarkdownV2 backslash-escapes MarkdownV2 special characters.
func escapeMarkdownV2(s string) string {
	if !strings.ContainsAny(s, mdv2Specials) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if strings.ContainsRune(mdv2Specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
