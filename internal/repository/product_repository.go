package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-backend/internal/models"
)

var ErrVariantNotFound = errors.New("product variant not found")

type ProductRepository struct {
	db *sqlx.DB
}

func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetVariantWithProduct возвращает вариант вместе с данными товара.
// Используется в checkout: цена заказа берётся отсюда и замораживается.
func (r *ProductRepository) GetVariantWithProduct(ctx context.Context, variantID uuid.UUID) (*models.VariantWithProduct, error) {
	var v models.VariantWithProduct
	query := `
		SELECT v.id, v.product_id, v.name, v.price, v.created_at,
		       p.name AS product_name, p.description AS product_description,
		       p.is_active AS product_is_active, p.seller_id
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1
	`
	err := r.db.GetContext(ctx, &v, query, variantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVariantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("product repository: get variant %w", err)
	}
	return &v, nil
}

// ListActive возвращает активные товары для витрины.
func (r *ProductRepository) ListActive(ctx context.Context, limit, offset int) ([]models.Product, error) {
	var products []models.Product
	err := r.db.SelectContext(ctx, &products, `
		SELECT * FROM products WHERE is_active = TRUE
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("product repository: list active %w", err)
	}
	return products, nil
}

// ListVariants возвращает варианты товара.
func (r *ProductRepository) ListVariants(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error) {
	var variants []models.ProductVariant
	err := r.db.SelectContext(ctx, &variants, `
		SELECT * FROM product_variants WHERE product_id = $1 ORDER BY price ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("product repository: list variants %w", err)
	}
	return variants, nil
}
