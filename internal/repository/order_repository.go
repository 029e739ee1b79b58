package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/models"
)

// Ошибки уровня репозитория.
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrStatusConflict      = errors.New("order status changed concurrently")
)

// OrderRepository отвечает за заказы и связанные с ними расчёты.
type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create создаёт заказ в статусе PENDING. Сумма фиксируется здесь и больше
// не пересчитывается.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, product_id, variant_id, amount, status, payment_session_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowContext(ctx, query,
		order.UserID, order.ProductID, order.VariantID, order.Amount, order.Status, order.PaymentSessionID).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
}

// GetByID возвращает заказ по идентификатору.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.GetContext(ctx, &order, `SELECT * FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order repository: get by id %w", err)
	}
	return &order, nil
}

// GetByPaymentSessionID возвращает заказ по идентификатору платёжной сессии.
func (r *OrderRepository) GetByPaymentSessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	err := r.db.GetContext(ctx, &order, `SELECT * FROM orders WHERE payment_session_id = $1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order repository: get by session %w", err)
	}
	return &order, nil
}

// GetTransactionByOrderID возвращает расчёт по заказу.
func (r *OrderRepository) GetTransactionByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.GetContext(ctx, &t, `SELECT * FROM transactions WHERE order_id = $1`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order repository: get transaction %w", err)
	}
	return &t, nil
}

// UpdateStatus переводит заказ из fromStatus в toStatus. Проверка и запись —
// одна атомарная операция: условие WHERE status = fromStatus отсекает
// конкурирующие обновления.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, fromStatus, toStatus valueobject.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, orderID, fromStatus, toStatus)
	if err != nil {
		return fmt.Errorf("order repository: update status %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("order repository: rows affected %w", err)
	}
	if affected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MarkPaid подтверждает оплату: переводит заказ PENDING -> PAID и создаёт
// строку расчёта с разделением комиссии. Обе записи фиксируются одной
// транзакцией — заказ не может оказаться оплаченным без расчёта.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID uuid.UUID, split valueobject.CommissionBreakdown) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, orderID, valueobject.OrderStatusPaid, valueobject.OrderStatusPending)
	if err != nil {
		return nil, fmt.Errorf("order repository: mark paid %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("order repository: rows affected %w", err)
	}
	if affected == 0 {
		return nil, ErrStatusConflict
	}

	var transaction models.Transaction
	err = tx.GetContext(ctx, &transaction, `
		INSERT INTO transactions (order_id, total_amount, platform_fee, seller_amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, orderID, split.TotalAmount, split.PlatformFee, split.SellerAmount, models.TransactionStatusPaid)
	if err != nil {
		return nil, fmt.Errorf("order repository: create transaction %w", err)
	}

	return &transaction, tx.Commit()
}

// ListByUser возвращает заказы покупателя.
func (r *OrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("order repository: list by user %w", err)
	}
	return orders, nil
}

// ListAll возвращает все заказы (для администратора).
func (r *OrderRepository) ListAll(ctx context.Context, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("order repository: list all %w", err)
	}
	return orders, nil
}
