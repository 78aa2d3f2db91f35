package telegram

import (
	"botconsole/clients/notifier"
	"botconsole/config"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const telegramAPIURL = "https://api.telegram.org/bot%s/%s"

// TelegramClient announces trading mode changes to a Telegram chat.
// Implements notifier.Notifier interface.
type TelegramClient struct {
	logger   *zap.Logger
	botToken string
	chatID   string
	apiURL   string
	client   *http.Client
}

func NewTelegramClient(logger *zap.Logger, cfg *config.Config) *TelegramClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	token := cfg.Telegram.BotToken
	if token == "" {
		logger.Warn("TELEGRAM_BOT_KEY not set, Telegram mode notifications disabled")
		return &TelegramClient{
			logger: logger,
			chatID: cfg.Telegram.ChatID,
			apiURL: telegramAPIURL,
		}
	}

	logger.Info("telegram bot initialized", zap.String("chatID", cfg.Telegram.ChatID))

	return &TelegramClient{
		logger:   logger,
		botToken: token,
		chatID:   cfg.Telegram.ChatID,
		apiURL:   telegramAPIURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether the client has both a token and a chat.
func (tc *TelegramClient) Enabled() bool {
	return tc.botToken != "" && tc.chatID != ""
}

// SendModeChange posts a mode change message.
// Implements notifier.Notifier interface.
func (tc *TelegramClient) SendModeChange(change notifier.ModeChange) {
	if !tc.Enabled() {
		tc.logger.Debug("telegram not configured, skipping mode notification")
		return
	}

	if err := tc.sendMessage(buildModeMessage(change)); err != nil {
		tc.logger.Error("failed to send telegram message", zap.Error(err))
		return
	}

	tc.logger.Info("sent telegram mode notification",
		zap.String("attempt", change.AttemptID),
		zap.String("to", change.To),
	)
}

func buildModeMessage(change notifier.ModeChange) string {
	var sb strings.Builder

	icon := "🟡"
	if change.IsProduction() {
		icon = "🔴"
	}

	title := "Trading mode switched"
	if change.Kind == notifier.ChangeKindReset {
		title = "Trading mode reset"
	}
	sb.WriteString(fmt.Sprintf("%s *%s*\n\n", icon, escapeMarkdown(title)))

	if change.From != "" {
		sb.WriteString(fmt.Sprintf("*From:* %s\n", escapeMarkdown(change.From)))
	}
	sb.WriteString(fmt.Sprintf("*To:* %s\n", escapeMarkdown(change.To)))

	if change.Message != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", escapeMarkdown(change.Message)))
	}
	if change.Warning != "" {
		sb.WriteString(fmt.Sprintf("\n⚠️ *%s*\n", escapeMarkdown(change.Warning)))
	}

	ts := change.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	sb.WriteString(fmt.Sprintf("\n_%s_", ts.Format("2006-01-02 15:04:05 MST")))
	if change.AttemptID != "" {
		sb.WriteString(fmt.Sprintf(" `%s`", change.AttemptID))
	}

	return sb.String()
}

// apiResponse is the Bot API envelope. Description is set when ok is false.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (tc *TelegramClient) sendMessage(text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id":                  tc.chatID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := tc.client.Post(fmt.Sprintf(tc.apiURL, tc.botToken, "sendMessage"), "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	var ar apiResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&ar)
	if resp.StatusCode != http.StatusOK || (decodeErr == nil && !ar.OK) {
		if ar.Description != "" {
			return fmt.Errorf("telegram API status %d: %s", resp.StatusCode, ar.Description)
		}
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}

// Close cleans up resources. Implements notifier.Notifier interface.
func (tc *TelegramClient) Close() error {
	return nil
}

// escapeMarkdown escapes special characters for Telegram Markdown.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"`", "\\`",
	)
	return replacer.Replace(s)
}
