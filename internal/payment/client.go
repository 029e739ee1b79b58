package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

// Provider — контракт платёжного провайдера, который нужен ядру: создание
// сессии оплаты при checkout и возврат средств (полный или частичный) при
// разрешении спора. Подтверждение оплаты приходит асинхронно через webhook.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	RefundPayment(ctx context.Context, sessionID string, amountMinor int64) error
}

// CheckoutParams — параметры создания сессии оплаты.
type CheckoutParams struct {
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	SuccessURL  string            `json:"success_url"`
	CancelURL   string            `json:"cancel_url"`
	Metadata    map[string]string `json:"metadata"`
}

// CheckoutSession — созданная сессия: идентификатор и URL для редиректа.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// WebhookEvent — событие провайдера о статусе оплаты.
type WebhookEvent struct {
	Type      string            `json:"type"`
	SessionID string            `json:"session_id"`
	Amount    int64             `json:"amount_total"`
	Metadata  map[string]string `json:"metadata"`
}

const EventCheckoutCompleted = "checkout.session.completed"

// Client — HTTP клиент платёжного API с ограниченным таймаутом. Ни один
// вызов не блокируется дольше настроенного времени.
type Client struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	httpClient    *http.Client
}

func NewClient(baseURL, secretKey, webhookSecret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:       baseURL,
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// CreateCheckoutSession создаёт сессию оплаты. Ошибка провайдера фатальна
// для checkout: заказ без действующей платёжной сессии не оформляется.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("payment: marshal params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("payment: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUpstream, "платёжный провайдер недоступен")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperror.Wrap(
			fmt.Errorf("payment: status %d: %s", resp.StatusCode, raw),
			apperror.ErrCodeUpstream, "ошибка создания сессии оплаты")
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUpstream, "некорректный ответ платёжного провайдера")
	}
	if session.ID == "" || session.URL == "" {
		return nil, apperror.New(apperror.ErrCodeUpstream, "платёжный провайдер вернул пустую сессию")
	}
	return &session, nil
}

// RefundPayment инициирует возврат средств по сессии. amountMinor меньше
// полной суммы означает частичный возврат.
func (c *Client) RefundPayment(ctx context.Context, sessionID string, amountMinor int64) error {
	payload := map[string]interface{}{
		"session_id": sessionID,
		"amount":     amountMinor,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("payment: marshal refund: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/refunds", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("payment: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeUpstream, "платёжный провайдер недоступен")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperror.Wrap(
			fmt.Errorf("payment: status %d: %s", resp.StatusCode, raw),
			apperror.ErrCodeUpstream, "ошибка возврата средств")
	}
	return nil
}

// VerifyWebhookSignature проверяет HMAC-SHA256 подпись тела webhook.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) error {
	if c.webhookSecret == "" {
		return apperror.New(apperror.ErrCodeInternal, "webhook secret не настроен")
	}
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return apperror.New(apperror.ErrCodeUnauthorized, "неверная подпись webhook")
	}
	return nil
}

// ParseWebhookEvent разбирает тело события провайдера.
func ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "некорректное тело webhook")
	}
	return &event, nil
}
