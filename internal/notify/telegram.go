package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Transport is the opaque "send to recipient" capability of the external
// messaging service.
type Transport interface {
	Send(ctx context.Context, userID int64, text string, silent bool) error
}

// telegramResponse is the Bot API envelope.
type telegramResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// TelegramClient sends messages through the Telegram Bot API.
type TelegramClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewTelegramClient builds the client. apiBase defaults to the public Bot
// API host; tests point it at a local server.
func NewTelegramClient(apiBase, botToken string, logger *zap.Logger) *TelegramClient {
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	client := resty.New().
		SetBaseURL(fmt.Sprintf("%s/bot%s", apiBase, botToken)).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &TelegramClient{httpClient: client, logger: logger}
}

var _ Transport = (*TelegramClient)(nil)

// Send posts one sendMessage call. Per-call retries are left to the
// dispatcher/orchestrator layers; a non-ok API answer is an error.
func (c *TelegramClient) Send(ctx context.Context, userID int64, text string, silent bool) error {
	payload := map[string]any{
		"chat_id":              userID,
		"text":                 text,
		"parse_mode":           "HTML",
		"disable_notification": silent,
	}

	var result telegramResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		SetError(&result).
		Post("/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	if resp.IsError() || !result.OK {
		desc := result.Description
		if desc == "" {
			desc = resp.Status()
		}
		return fmt.Errorf("telegram sendMessage to %d: %s", userID, desc)
	}

	c.logger.Debug("message sent", zap.Int64("user_id", userID))
	return nil
}
