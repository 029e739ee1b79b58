package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-backend/internal/models"
)

type SupportRepository struct {
	db *sqlx.DB
}

func NewSupportRepository(db *sqlx.DB) *SupportRepository {
	return &SupportRepository{db: db}
}

func (r *SupportRepository) Create(ctx context.Context, msg *models.SupportMessage) error {
	query := `
		INSERT INTO support_messages (client_id, sender_id, sender_role, subject, message, status, attachment, attachment_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		msg.ClientID, msg.SenderID, msg.SenderRole, msg.Subject, msg.Message, msg.Status, msg.Attachment, msg.AttachmentType).
		Scan(&msg.ID, &msg.CreatedAt)
}

// ListByClient возвращает весь диалог клиента в хронологическом порядке.
func (r *SupportRepository) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]models.SupportMessage, error) {
	var messages []models.SupportMessage
	err := r.db.SelectContext(ctx, &messages, `
		SELECT * FROM support_messages WHERE client_id = $1
		ORDER BY created_at ASC LIMIT $2 OFFSET $3
	`, clientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("support repository: list by client %w", err)
	}
	return messages, nil
}

// ListAll возвращает все сообщения поддержки (для администратора).
func (r *SupportRepository) ListAll(ctx context.Context, limit, offset int) ([]models.SupportMessage, error) {
	var messages []models.SupportMessage
	err := r.db.SelectContext(ctx, &messages, `
		SELECT * FROM support_messages ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("support repository: list all %w", err)
	}
	return messages, nil
}

// MarkClientMessagesRead помечает прочитанными все новые сообщения клиента.
func (r *SupportRepository) MarkClientMessagesRead(ctx context.Context, clientID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE support_messages SET status = $2
		WHERE client_id = $1 AND sender_role = $3 AND status = $4
	`, clientID, models.SupportStatusRead, models.SenderRoleClient, models.SupportStatusNew)
	if err != nil {
		return fmt.Errorf("support repository: mark read %w", err)
	}
	return nil
}

// CountUnread возвращает число непрочитанных сообщений клиента.
func (r *SupportRepository) CountUnread(ctx context.Context, clientID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM support_messages
		WHERE client_id = $1 AND sender_role = $2 AND status = $3
	`, clientID, models.SenderRoleAdmin, models.SupportStatusNew)
	if err != nil {
		return 0, fmt.Errorf("support repository: count unread %w", err)
	}
	return count, nil
}
