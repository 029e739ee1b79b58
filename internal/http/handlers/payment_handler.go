package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/marketplace-backend/internal/http/handlers/common"
	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/payment"
	"github.com/ignatzorin/marketplace-backend/internal/service"
)

// WebhookVerifier проверяет подпись входящего webhook.
type WebhookVerifier interface {
	VerifyWebhookSignature(payload []byte, signature string) error
}

// PaymentHandler принимает webhook платёжного провайдера.
type PaymentHandler struct {
	svc      *service.OrderService
	verifier WebhookVerifier
}

func NewPaymentHandler(s *service.OrderService, verifier WebhookVerifier) *PaymentHandler {
	return &PaymentHandler{svc: s, verifier: verifier}
}

// Webhook POST /payments/webhook
//
// Провайдер повторяет доставку при не-2xx ответе, поэтому дубликаты
// обрабатываются идемпотентно и отвечают 200.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		common.RespondBadRequest(c, "не удалось прочитать тело запроса")
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	if err := h.verifier.VerifyWebhookSignature(payload, signature); err != nil {
		logger.WithComponent("payment_handler").Warnf("webhook с неверной подписью: %v", err)
		common.RespondError(c, http.StatusUnauthorized, "неверная подпись")
		return
	}

	event, err := payment.ParseWebhookEvent(payload)
	if err != nil {
		common.RespondBadRequest(c, "некорректное тело события")
		return
	}

	if err := h.svc.ConfirmPayment(c.Request.Context(), event); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
