package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/models"
)

var (
	ErrDisputeNotFound        = errors.New("dispute not found")
	ErrDisputeAlreadyExists   = errors.New("open dispute already exists for this order")
	ErrDisputeAlreadyResolved = errors.New("dispute already resolved")
)

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create создаёт спор и переводит заказ COMPLETED -> DISPUTED одной
// транзакцией. Частичный индекс по (order_id, status='OPEN') гарантирует
// не более одного открытого спора на заказ даже при гонке.
func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, d.OrderID, valueobject.OrderStatusDisputed, valueobject.OrderStatusCompleted)
	if err != nil {
		return fmt.Errorf("dispute repository: mark order disputed %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("dispute repository: rows affected %w", err)
	}
	if affected == 0 {
		return ErrStatusConflict
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO disputes (order_id, created_by_id, reason, description, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, d.OrderID, d.CreatedByID, d.Reason, d.Description, d.Status).
		Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDisputeAlreadyExists
		}
		return fmt.Errorf("dispute repository: create %w", err)
	}

	return tx.Commit()
}

func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `SELECT * FROM disputes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: get by id %w", err)
	}
	return &d, nil
}

// GetOpenByOrderID возвращает открытый спор по заказу, если он есть.
func (r *DisputeRepository) GetOpenByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		SELECT * FROM disputes WHERE order_id = $1 AND status = $2
	`, orderID, models.DisputeStatusOpen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: get open by order %w", err)
	}
	return &d, nil
}

// resolveTx помечает спор разрешённым внутри транзакции. Условие
// status = 'OPEN' делает проверку и запись одной атомарной операцией:
// из двух конкурирующих разрешений выигрывает ровно одно.
func resolveTx(ctx context.Context, tx *sqlx.Tx, disputeID, adminID uuid.UUID, resolution, action string, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE disputes
		SET status = $2, resolution = $3, action = $4, resolved_by = $5, resolved_at = $6
		WHERE id = $1 AND status = $7
	`, disputeID, models.DisputeStatusResolved, resolution, action, adminID, now, models.DisputeStatusOpen)
	if err != nil {
		return fmt.Errorf("dispute repository: resolve %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("dispute repository: rows affected %w", err)
	}
	if affected == 0 {
		return ErrDisputeAlreadyResolved
	}
	return nil
}

// ResolveRefund разрешает спор полным возвратом: спор RESOLVED, заказ
// REFUNDED, расчёт REFUNDED — все три записи одной транзакцией, промежуточное
// состояние не наблюдаемо.
func (r *DisputeRepository) ResolveRefund(ctx context.Context, disputeID, orderID, adminID uuid.UUID, resolution string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := resolveTx(ctx, tx, disputeID, adminID, resolution, models.DisputeActionRefund, time.Now()); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1
	`, orderID, valueobject.OrderStatusRefunded); err != nil {
		return fmt.Errorf("dispute repository: refund order %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE transactions SET status = $2, updated_at = NOW() WHERE order_id = $1
	`, orderID, models.TransactionStatusRefunded); err != nil {
		return fmt.Errorf("dispute repository: refund transaction %w", err)
	}

	return tx.Commit()
}

// ResolveReject отклоняет спор: спор RESOLVED, заказ возвращается в COMPLETED.
func (r *DisputeRepository) ResolveReject(ctx context.Context, disputeID, orderID, adminID uuid.UUID, resolution string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := resolveTx(ctx, tx, disputeID, adminID, resolution, models.DisputeActionReject, time.Now()); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1
	`, orderID, valueobject.OrderStatusCompleted); err != nil {
		return fmt.Errorf("dispute repository: restore order %w", err)
	}

	return tx.Commit()
}

// ResolvePartialRefund разрешает спор частичным возвратом: спор RESOLVED,
// заказ возвращается в COMPLETED, суммы расчёта уменьшаются на возврат.
func (r *DisputeRepository) ResolvePartialRefund(ctx context.Context, disputeID, orderID, adminID uuid.UUID, resolution string, newTotal, newPlatformFee, newSellerAmount int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := resolveTx(ctx, tx, disputeID, adminID, resolution, models.DisputeActionPartialRefund, time.Now()); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1
	`, orderID, valueobject.OrderStatusCompleted); err != nil {
		return fmt.Errorf("dispute repository: restore order %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET total_amount = $2, platform_fee = $3, seller_amount = $4, updated_at = NOW()
		WHERE order_id = $1
	`, orderID, newTotal, newPlatformFee, newSellerAmount); err != nil {
		return fmt.Errorf("dispute repository: adjust transaction %w", err)
	}

	return tx.Commit()
}

// ListByUser возвращает споры покупателя.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes WHERE created_by_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list by user %w", err)
	}
	return disputes, nil
}

// ListAll возвращает все споры (для администратора).
func (r *DisputeRepository) ListAll(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list all %w", err)
	}
	return disputes, nil
}
