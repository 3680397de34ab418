package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"DataPaperIndex/internal/config"
	"DataPaperIndex/internal/ports"
)

const defaultBaseURL = "https://api.telegram.org"

// Notifier sends run summaries to a Telegram chat via the bot API.
type Notifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(cfg config.TelegramConfig) *Notifier {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Notifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled reports whether both token and chat are configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.botToken != "" && n.chatID != ""
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// PublishDigest posts a plain-text message to the chat.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if !n.Enabled() || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", digest)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	var body sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && !body.OK {
		return fmt.Errorf("telegram rejected message: %s", body.Description)
	}
	return nil
}
