package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SMSSender отправляет короткие уведомления через SMS шлюз.
type SMSSender struct {
	gatewayURL string
	apiKey     string
	phone      string
	httpClient *http.Client
}

func NewSMSSender(gatewayURL, apiKey, phone string, timeout time.Duration) *SMSSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SMSSender{
		gatewayURL: gatewayURL,
		apiKey:     apiKey,
		phone:      phone,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *SMSSender) Name() string { return "sms" }

func (s *SMSSender) Send(ctx context.Context, text string) error {
	if s.gatewayURL == "" || s.apiKey == "" {
		return fmt.Errorf("sms: шлюз не настроен")
	}

	payload, err := json.Marshal(map[string]string{
		"to":   s.phone,
		"text": text,
	})
	if err != nil {
		return fmt.Errorf("sms: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("sms: статус %d", resp.StatusCode)
	}
	return nil
}
