package dto

import "github.com/ignatzorin/marketplace-backend/internal/models"

// ErrorResponse — единый формат ошибки.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse — единый формат успешного ответа с сообщением.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AuthResponse — пользователь и пара токенов.
type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

// CheckoutResponse — созданный заказ и URL для оплаты.
type CheckoutResponse struct {
	Order       *models.Order `json:"order"`
	CheckoutURL string        `json:"checkout_url"`
}

// ListResponse — страница результатов.
type ListResponse struct {
	Items  interface{} `json:"items"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}
