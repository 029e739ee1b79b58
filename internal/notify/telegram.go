package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TelegramSender отправляет уведомления администратору через Telegram Bot API.
type TelegramSender struct {
	token      string
	chatID     string
	httpClient *http.Client
}

func NewTelegramSender(token, chatID string, timeout time.Duration) *TelegramSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TelegramSender{
		token:  token,
		chatID: chatID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *TelegramSender) Name() string { return "telegram" }

func (s *TelegramSender) Send(ctx context.Context, text string) error {
	if s.token == "" || s.chatID == "" {
		return fmt.Errorf("telegram: не настроен (нет токена или chat id)")
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": s.chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: статус %d", resp.StatusCode)
	}
	return nil
}
