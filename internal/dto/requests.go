package dto

import "encoding/json"

// Запросы аутентификации.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CheckoutRequest — покупка одного варианта товара.
type CheckoutRequest struct {
	VariantID string `json:"variant_id" binding:"required"`
}

// SetOrderStatusRequest — перевод заказа администратором.
type SetOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// OpenDisputeRequest — открытие спора покупателем.
type OpenDisputeRequest struct {
	OrderID     string `json:"order_id" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
	Description string `json:"description" binding:"required"`
}

// ResolveDisputeRequest — решение администратора по спору. RefundAmount
// обязателен только для PARTIAL_REFUND.
type ResolveDisputeRequest struct {
	Action       string `json:"action" binding:"required"`
	Resolution   string `json:"resolution" binding:"required"`
	RefundAmount int64  `json:"refund_amount"`
}

// SellerApplyRequest — заявка на статус продавца.
type SellerApplyRequest struct {
	BusinessName string          `json:"business_name" binding:"required"`
	BusinessType string          `json:"business_type" binding:"required"`
	TaxID        *string         `json:"tax_id"`
	Phone        *string         `json:"phone"`
	Email        string          `json:"email" binding:"required"`
	Documents    json.RawMessage `json:"documents"`
}

// ReviewApplicationRequest — решение администратора по заявке продавца.
type ReviewApplicationRequest struct {
	RejectionReason string  `json:"rejection_reason"`
	ReviewNotes     *string `json:"review_notes"`
}

// SupportMessageRequest — обращение клиента в поддержку.
type SupportMessageRequest struct {
	Subject        string  `json:"subject"`
	Message        string  `json:"message" binding:"required"`
	Attachment     *string `json:"attachment"`
	AttachmentType *string `json:"attachment_type"`
}

// SupportReplyRequest — ответ администратора клиенту.
type SupportReplyRequest struct {
	ClientID string `json:"client_id" binding:"required"`
	Message  string `json:"message" binding:"required"`
}

// UpdateProfileRequest — изменение профиля.
type UpdateProfileRequest struct {
	Name  string  `json:"name" binding:"required"`
	Phone *string `json:"phone"`
}
