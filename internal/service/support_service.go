package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/goroutine"
	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/notify"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/ratelimit"
	"github.com/ignatzorin/marketplace-backend/internal/validation"
)

// SupportRepo описывает операции с сообщениями поддержки.
type SupportRepo interface {
	Create(ctx context.Context, msg *models.SupportMessage) error
	ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]models.SupportMessage, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.SupportMessage, error)
	MarkClientMessagesRead(ctx context.Context, clientID uuid.UUID) error
	CountUnread(ctx context.Context, clientID uuid.UUID) (int, error)
}

// SupportService — двусторонний диалог клиента с поддержкой.
type SupportService struct {
	messages SupportRepo
	notifier notify.Dispatcher
	limiter  ratelimit.Limiter
}

func NewSupportService(messages SupportRepo, notifier notify.Dispatcher, limiter ratelimit.Limiter) *SupportService {
	return &SupportService{messages: messages, notifier: notifier, limiter: limiter}
}

// SendFromClient отправляет сообщение от клиента в поддержку.
func (s *SupportService) SendFromClient(ctx context.Context, clientID uuid.UUID, subject, message string, attachment, attachmentType *string) (*models.SupportMessage, error) {
	if err := s.limiter.Allow(ctx, clientID.String(), "support"); err != nil {
		return nil, err
	}
	if err := validation.ValidateMessageContent(message); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	msg := &models.SupportMessage{
		ClientID:       clientID,
		SenderID:       clientID,
		SenderRole:     models.SenderRoleClient,
		Subject:        strings.TrimSpace(subject),
		Message:        strings.TrimSpace(message),
		Status:         models.SupportStatusNew,
		Attachment:     attachment,
		AttachmentType: attachmentType,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось отправить сообщение")
	}

	text := fmt.Sprintf("Новое обращение в поддержку от %s", clientID)
	goroutine.SafeGo(func() {
		nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.notifier.NotifyMessage(nctx, text)
	})

	return msg, nil
}

// ReplyFromAdmin отправляет ответ поддержки в диалог клиента.
func (s *SupportService) ReplyFromAdmin(ctx context.Context, clientID, adminID uuid.UUID, message string) (*models.SupportMessage, error) {
	if err := validation.ValidateMessageContent(message); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	msg := &models.SupportMessage{
		ClientID:   clientID,
		SenderID:   adminID,
		SenderRole: models.SenderRoleAdmin,
		Message:    strings.TrimSpace(message),
		Status:     models.SupportStatusNew,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось отправить ответ")
	}

	// Входящие сообщения клиента считаются обработанными после ответа.
	if err := s.messages.MarkClientMessagesRead(ctx, clientID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось отметить сообщения прочитанными")
	}

	return msg, nil
}

// GetDialog возвращает диалог клиента в хронологическом порядке.
func (s *SupportService) GetDialog(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]models.SupportMessage, error) {
	limit, offset = normalizePage(limit, offset)
	messages, err := s.messages.ListByClient(ctx, clientID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить диалог")
	}
	return messages, nil
}

// ListAll возвращает все обращения (для администратора).
func (s *SupportService) ListAll(ctx context.Context, limit, offset int) ([]models.SupportMessage, error) {
	limit, offset = normalizePage(limit, offset)
	messages, err := s.messages.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить обращения")
	}
	return messages, nil
}

// CountUnread возвращает число непрочитанных клиентом ответов поддержки.
func (s *SupportService) CountUnread(ctx context.Context, clientID uuid.UUID) (int, error) {
	count, err := s.messages.CountUnread(ctx, clientID)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось посчитать непрочитанные")
	}
	return count, nil
}
