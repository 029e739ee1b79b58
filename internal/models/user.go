package models

import (
	"time"

	"github.com/google/uuid"
)

// Роли пользователей.
const (
	RoleUser   = "USER"
	RoleSeller = "SELLER"
	RoleAdmin  = "ADMIN"
)

// Статусы продавца. Меняются строго синхронно со статусом заявки.
const (
	SellerStatusNone     = "NONE"
	SellerStatusPending  = "PENDING"
	SellerStatusApproved = "APPROVED"
	SellerStatusRejected = "REJECTED"
)

// User описывает покупателя, продавца или администратора площадки.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	Role         string    `db:"role" json:"role"`
	SellerStatus string    `db:"seller_status" json:"seller_status"`
	Banned       bool      `db:"banned" json:"banned"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
