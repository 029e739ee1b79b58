package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type acceptVerifier struct{}

func (acceptVerifier) VerifyWebhookSignature(payload []byte, signature string) error { return nil }

type rejectVerifier struct{}

func (rejectVerifier) VerifyWebhookSignature(payload []byte, signature string) error {
	return errors.New("подпись не совпадает")
}

func TestPaymentHandler_Webhook_InvalidSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{svc: nil, verifier: rejectVerifier{}}
	r.POST("/payments/webhook", handler.Webhook)

	req, _ := http.NewRequest("POST", "/payments/webhook", strings.NewReader(`{"type":"checkout.session.completed"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentHandler_Webhook_MalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{svc: nil, verifier: acceptVerifier{}}
	r.POST("/payments/webhook", handler.Webhook)

	req, _ := http.NewRequest("POST", "/payments/webhook", strings.NewReader("not-json"))
	req.Header.Set("X-Webhook-Signature", "sig")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_Checkout_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &OrderHandler{svc: nil}
	r.POST("/orders/checkout", handler.Checkout)

	req, _ := http.NewRequest("POST", "/orders/checkout", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDisputeHandler_GetDispute_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &DisputeHandler{svc: nil}
	r.GET("/disputes/:id", func(c *gin.Context) {
		c.Set("userID", uuid.MustParse("11111111-1111-1111-1111-111111111111"))
		handler.GetDispute(c)
	})

	req, _ := http.NewRequest("GET", "/disputes/invalid-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
