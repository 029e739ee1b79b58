package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

// NotificationRepo описывает хранилище персональных уведомлений.
type NotificationRepo interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// NotificationService — уведомления в приложении.
type NotificationService struct {
	notifications NotificationRepo
}

func NewNotificationService(notifications NotificationRepo) *NotificationService {
	return &NotificationService{notifications: notifications}
}

// Publish создаёт уведомление пользователю с произвольной полезной нагрузкой.
func (s *NotificationService) Publish(ctx context.Context, userID uuid.UUID, payload interface{}) (*models.Notification, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать уведомление")
	}

	n := &models.Notification{
		UserID:  userID,
		Payload: raw,
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать уведомление")
	}
	return n, nil
}

// List возвращает уведомления пользователя.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	limit, offset = normalizePage(limit, offset)
	notifications, err := s.notifications.List(ctx, userID, limit, offset, unreadOnly)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить уведомления")
	}
	return notifications, nil
}

// MarkAsRead помечает уведомление прочитанным.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.notifications.MarkAsRead(ctx, id, userID); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось отметить уведомление")
	}
	return nil
}

// CountUnread возвращает число непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось посчитать уведомления")
	}
	return count, nil
}
