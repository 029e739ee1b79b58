package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/notify"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

type mockSupportRepo struct {
	mock.Mock
}

func (m *mockSupportRepo) Create(ctx context.Context, msg *models.SupportMessage) error {
	args := m.Called(ctx, msg)
	if args.Error(0) == nil {
		msg.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockSupportRepo) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]models.SupportMessage, error) {
	args := m.Called(ctx, clientID, limit, offset)
	return args.Get(0).([]models.SupportMessage), args.Error(1)
}

func (m *mockSupportRepo) ListAll(ctx context.Context, limit, offset int) ([]models.SupportMessage, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.SupportMessage), args.Error(1)
}

func (m *mockSupportRepo) MarkClientMessagesRead(ctx context.Context, clientID uuid.UUID) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

func (m *mockSupportRepo) CountUnread(ctx context.Context, clientID uuid.UUID) (int, error) {
	args := m.Called(ctx, clientID)
	return args.Int(0), args.Error(1)
}

func TestSupportService_SendFromClient_Success(t *testing.T) {
	messages := new(mockSupportRepo)
	svc := NewSupportService(messages, notify.NopDispatcher{}, allowLimiter{})
	ctx := context.Background()

	clientID := uuid.New()
	messages.On("Create", ctx, mock.AnythingOfType("*models.SupportMessage")).Return(nil)

	msg, err := svc.SendFromClient(ctx, clientID, "Вопрос по заказу", "Когда отправят заказ?", nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, models.SenderRoleClient, msg.SenderRole)
	assert.Equal(t, clientID, msg.ClientID)
	assert.Equal(t, clientID, msg.SenderID)
	assert.Equal(t, models.SupportStatusNew, msg.Status)
}

func TestSupportService_SendFromClient_RateLimited(t *testing.T) {
	messages := new(mockSupportRepo)
	svc := NewSupportService(messages, notify.NopDispatcher{}, denyLimiter{})

	_, err := svc.SendFromClient(context.Background(), uuid.New(), "Тема", "Сообщение", nil, nil)

	assert.Error(t, err)
	assert.True(t, apperror.IsRateLimited(err))
	messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSupportService_SendFromClient_EmptyMessage(t *testing.T) {
	messages := new(mockSupportRepo)
	svc := NewSupportService(messages, notify.NopDispatcher{}, allowLimiter{})

	_, err := svc.SendFromClient(context.Background(), uuid.New(), "Тема", "   ", nil, nil)

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestSupportService_ReplyFromAdmin_Success(t *testing.T) {
	messages := new(mockSupportRepo)
	svc := NewSupportService(messages, notify.NopDispatcher{}, allowLimiter{})
	ctx := context.Background()

	clientID := uuid.New()
	adminID := uuid.New()
	messages.On("Create", ctx, mock.AnythingOfType("*models.SupportMessage")).Return(nil)
	messages.On("MarkClientMessagesRead", ctx, clientID).Return(nil)

	msg, err := svc.ReplyFromAdmin(ctx, clientID, adminID, "Заказ отправлен сегодня")

	assert.NoError(t, err)
	// Авторство указывается явно: ответ администратора в диалоге клиента
	assert.Equal(t, models.SenderRoleAdmin, msg.SenderRole)
	assert.Equal(t, clientID, msg.ClientID)
	assert.Equal(t, adminID, msg.SenderID)
	messages.AssertExpectations(t)
}

func TestSupportService_CountUnread(t *testing.T) {
	messages := new(mockSupportRepo)
	svc := NewSupportService(messages, notify.NopDispatcher{}, allowLimiter{})
	ctx := context.Background()

	clientID := uuid.New()
	messages.On("CountUnread", ctx, clientID).Return(3, nil)

	count, err := svc.CountUnread(ctx, clientID)

	assert.NoError(t, err)
	assert.Equal(t, 3, count)
}
