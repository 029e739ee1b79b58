package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-backend/internal/models"
)

var (
	ErrApplicationNotFound        = errors.New("seller application not found")
	ErrApplicationAlreadyReviewed = errors.New("seller application already reviewed")
)

type SellerApplicationRepository struct {
	db *sqlx.DB
}

func NewSellerApplicationRepository(db *sqlx.DB) *SellerApplicationRepository {
	return &SellerApplicationRepository{db: db}
}

// Create создаёт заявку и переводит sellerStatus пользователя в PENDING
// одной транзакцией.
func (r *SellerApplicationRepository) Create(ctx context.Context, app *models.SellerApplication) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO seller_applications (user_id, business_name, business_type, tax_id, phone, email, documents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, app.UserID, app.BusinessName, app.BusinessType, app.TaxID, app.Phone, app.Email, app.Documents, app.Status).
		Scan(&app.ID, &app.CreatedAt)
	if err != nil {
		return fmt.Errorf("seller application repository: create %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET seller_status = $2, updated_at = NOW() WHERE id = $1
	`, app.UserID, models.SellerStatusPending); err != nil {
		return fmt.Errorf("seller application repository: update user status %w", err)
	}

	return tx.Commit()
}

func (r *SellerApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SellerApplication, error) {
	var app models.SellerApplication
	err := r.db.GetContext(ctx, &app, `SELECT * FROM seller_applications WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("seller application repository: get by id %w", err)
	}
	return &app, nil
}

// GetLatestByUserID возвращает последнюю по времени подачи заявку пользователя.
func (r *SellerApplicationRepository) GetLatestByUserID(ctx context.Context, userID uuid.UUID) (*models.SellerApplication, error) {
	var app models.SellerApplication
	err := r.db.GetContext(ctx, &app, `
		SELECT * FROM seller_applications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("seller application repository: get latest %w", err)
	}
	return &app, nil
}

// reviewTx помечает заявку рассмотренной. Условие status = 'PENDING' отсекает
// повторное рассмотрение при гонке двух администраторов.
func reviewTx(ctx context.Context, tx *sqlx.Tx, applicationID, adminID uuid.UUID, newStatus string, reviewNotes, rejectionReason *string, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE seller_applications
		SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5, rejection_reason = $6
		WHERE id = $1 AND status = $7
	`, applicationID, newStatus, adminID, now, reviewNotes, rejectionReason, models.ApplicationStatusPending)
	if err != nil {
		return fmt.Errorf("seller application repository: review %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("seller application repository: rows affected %w", err)
	}
	if affected == 0 {
		return ErrApplicationAlreadyReviewed
	}
	return nil
}

// Approve одобряет заявку: заявка APPROVED, пользователь получает
// sellerStatus APPROVED и роль SELLER. Обе записи фиксируются вместе или
// не фиксируются вовсе.
func (r *SellerApplicationRepository) Approve(ctx context.Context, applicationID, userID, adminID uuid.UUID, reviewNotes *string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := reviewTx(ctx, tx, applicationID, adminID, models.ApplicationStatusApproved, reviewNotes, nil, time.Now()); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET seller_status = $2, role = $3, updated_at = NOW() WHERE id = $1
	`, userID, models.SellerStatusApproved, models.RoleSeller); err != nil {
		return fmt.Errorf("seller application repository: promote user %w", err)
	}

	return tx.Commit()
}

// Reject отклоняет заявку: заявка REJECTED с причиной, sellerStatus
// пользователя REJECTED. Поля никогда не расходятся: одна транзакция.
func (r *SellerApplicationRepository) Reject(ctx context.Context, applicationID, userID, adminID uuid.UUID, rejectionReason string, reviewNotes *string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := reviewTx(ctx, tx, applicationID, adminID, models.ApplicationStatusRejected, reviewNotes, &rejectionReason, time.Now()); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET seller_status = $2, updated_at = NOW() WHERE id = $1
	`, userID, models.SellerStatusRejected); err != nil {
		return fmt.Errorf("seller application repository: demote user %w", err)
	}

	return tx.Commit()
}

// ListByStatus возвращает заявки в заданном статусе (для администратора).
func (r *SellerApplicationRepository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.SellerApplication, error) {
	var apps []models.SellerApplication
	err := r.db.SelectContext(ctx, &apps, `
		SELECT * FROM seller_applications WHERE status = $1
		ORDER BY created_at ASC LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("seller application repository: list by status %w", err)
	}
	return apps, nil
}
