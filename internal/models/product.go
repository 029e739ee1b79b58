package models

import (
	"time"

	"github.com/google/uuid"
)

// Product описывает товар продавца.
type Product struct {
	ID          uuid.UUID `db:"id" json:"id"`
	SellerID    uuid.UUID `db:"seller_id" json:"seller_id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ProductVariant — конкретный вариант товара с ценой в минорных единицах
// валюты (копейки). Денежные суммы никогда не хранятся как float.
type ProductVariant struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ProductID uuid.UUID `db:"product_id" json:"product_id"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// VariantWithProduct — вариант вместе с данными товара, используется при checkout.
type VariantWithProduct struct {
	ProductVariant
	ProductName        string  `db:"product_name" json:"product_name"`
	ProductDescription *string `db:"product_description" json:"product_description,omitempty"`
	ProductIsActive    bool    `db:"product_is_active" json:"product_is_active"`
	SellerID           uuid.UUID `db:"seller_id" json:"seller_id"`
}
