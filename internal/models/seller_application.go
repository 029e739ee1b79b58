package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ApplicationStatusPending  = "PENDING"
	ApplicationStatusApproved = "APPROVED"
	ApplicationStatusRejected = "REJECTED"
)

// Типы бизнеса заявителя.
const (
	BusinessTypeIndividual = "individual"
	BusinessTypeCompany    = "company"
)

// SellerApplication — заявка на статус продавца. Одна строка на каждую
// попытку подачи; история заявок пользователя сохраняется целиком.
// Статус заявки и sellerStatus пользователя меняются только вместе,
// в одной транзакции.
type SellerApplication struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	BusinessName    string          `db:"business_name" json:"business_name"`
	BusinessType    string          `db:"business_type" json:"business_type"`
	TaxID           *string         `db:"tax_id" json:"tax_id,omitempty"`
	Phone           *string         `db:"phone" json:"phone,omitempty"`
	Email           string          `db:"email" json:"email"`
	Documents       json.RawMessage `db:"documents" json:"documents,omitempty"`
	Status          string          `db:"status" json:"status"`
	ReviewedBy      *uuid.UUID      `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time      `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNotes     *string         `db:"review_notes" json:"review_notes,omitempty"`
	RejectionReason *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// ReapplicationEligibility — производный ответ на вопрос «можно ли подать
// заявку снова». Всегда вычисляется на лету, нигде не хранится.
type ReapplicationEligibility struct {
	CanReapply    bool       `json:"can_reapply"`
	Reason        string     `json:"reason,omitempty"`
	CooldownEndsAt *time.Time `json:"cooldown_ends_at,omitempty"`
}
