package models

import (
	"time"

	"github.com/google/uuid"
)

// Order — одна покупка. Сумма фиксируется при создании из цены варианта
// и никогда не пересчитывается. Заказы не удаляются, только меняют статус.
type Order struct {
	ID               uuid.UUID `db:"id" json:"id"`
	UserID           uuid.UUID `db:"user_id" json:"user_id"`
	ProductID        uuid.UUID `db:"product_id" json:"product_id"`
	VariantID        uuid.UUID `db:"variant_id" json:"variant_id"`
	Amount           int64     `db:"amount" json:"amount"`
	Status           string    `db:"status" json:"status"`
	PaymentSessionID *string   `db:"payment_session_id" json:"payment_session_id,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Статусы расчёта по транзакции.
const (
	TransactionStatusPending  = "PENDING"
	TransactionStatusPaid     = "PAID"
	TransactionStatusRefunded = "REFUNDED"
)

// Transaction — расчёт по заказу, создаётся при подтверждении оплаты (1:1 с
// заказом). Комиссия провайдера не хранится: она всегда выводима как
// totalAmount - platformFee - sellerAmount.
type Transaction struct {
	ID           uuid.UUID `db:"id" json:"id"`
	OrderID      uuid.UUID `db:"order_id" json:"order_id"`
	TotalAmount  int64     `db:"total_amount" json:"total_amount"`
	PlatformFee  int64     `db:"platform_fee" json:"platform_fee"`
	SellerAmount int64     `db:"seller_amount" json:"seller_amount"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ProcessorFee возвращает подразумеваемую комиссию платёжного провайдера.
func (t *Transaction) ProcessorFee() int64 {
	return t.TotalAmount - t.PlatformFee - t.SellerAmount
}
