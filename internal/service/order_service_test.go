package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/marketplace-backend/internal/audit"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/notify"
	"github.com/ignatzorin/marketplace-backend/internal/payment"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
)

type allowLimiter struct{}

func (allowLimiter) Allow(context.Context, string, string) error { return nil }

// recordingSink собирает события аудита для проверок в тестах.
type recordedEvent struct {
	name    string
	details map[string]interface{}
}

type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *recordingSink) LogEvent(event string, details map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{name: event, details: details})
}

func (s *recordingSink) has(event string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.name == event {
			return true
		}
	}
	return false
}

func (s *recordingSink) hasOutcome(event, outcome string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.name == event && e.details["outcome"] == outcome {
			return true
		}
	}
	return false
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, string) error { return apperror.ErrRateLimited }

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) Create(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)
	if args.Error(0) == nil {
		order.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) GetByPaymentSessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) GetTransactionByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, fromStatus, toStatus valueobject.OrderStatus) error {
	args := m.Called(ctx, orderID, fromStatus, toStatus)
	return args.Error(0)
}

func (m *mockOrderRepo) MarkPaid(ctx context.Context, orderID uuid.UUID, split valueobject.CommissionBreakdown) (*models.Transaction, error) {
	args := m.Called(ctx, orderID, split)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *mockOrderRepo) ListAll(ctx context.Context, limit, offset int) ([]models.Order, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.Order), args.Error(1)
}

type mockVariantProvider struct {
	mock.Mock
}

func (m *mockVariantProvider) GetVariantWithProduct(ctx context.Context, variantID uuid.UUID) (*models.VariantWithProduct, error) {
	args := m.Called(ctx, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VariantWithProduct), args.Error(1)
}

type mockPaymentProvider struct {
	mock.Mock
}

func (m *mockPaymentProvider) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CheckoutSession), args.Error(1)
}

func (m *mockPaymentProvider) RefundPayment(ctx context.Context, sessionID string, amountMinor int64) error {
	args := m.Called(ctx, sessionID, amountMinor)
	return args.Error(0)
}

func newOrderService(orders *mockOrderRepo, products *mockVariantProvider, payments *mockPaymentProvider) *OrderService {
	return NewOrderService(
		orders, products, payments,
		notify.NopDispatcher{}, audit.NopSink{}, allowLimiter{},
		0.15, valueobject.DefaultProcessorFees,
		"rub", "https://shop.example/success", "https://shop.example/cancel",
	)
}

func TestOrderService_Checkout_Success(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)
	ctx := context.Background()

	userID := uuid.New()
	variantID := uuid.New()
	productID := uuid.New()

	variant := &models.VariantWithProduct{
		ProductVariant: models.ProductVariant{
			ID:        variantID,
			ProductID: productID,
			Name:      "Стандарт",
			Price:     250000,
		},
		ProductName:     "Курс по программированию",
		ProductIsActive: true,
	}

	products.On("GetVariantWithProduct", ctx, variantID).Return(variant, nil)
	payments.On("CreateCheckoutSession", ctx, mock.MatchedBy(func(p payment.CheckoutParams) bool {
		return p.AmountMinor == 250000 && p.Currency == "rub"
	})).Return(&payment.CheckoutSession{ID: "cs_test_1", URL: "https://pay.example/cs_test_1"}, nil)
	orders.On("Create", ctx, mock.AnythingOfType("*models.Order")).Return(nil)

	result, err := svc.Checkout(ctx, userID, variantID)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, "https://pay.example/cs_test_1", result.CheckoutURL)
	assert.Equal(t, int64(250000), result.Order.Amount)
	assert.Equal(t, string(valueobject.OrderStatusPending), result.Order.Status)
	assert.Equal(t, "cs_test_1", *result.Order.PaymentSessionID)
}

func TestOrderService_Checkout_RateLimited(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := NewOrderService(
		orders, products, payments,
		notify.NopDispatcher{}, audit.NopSink{}, denyLimiter{},
		0.15, valueobject.DefaultProcessorFees, "rub", "", "",
	)

	_, err := svc.Checkout(context.Background(), uuid.New(), uuid.New())

	assert.Error(t, err)
	assert.True(t, apperror.IsRateLimited(err))
	products.AssertNotCalled(t, "GetVariantWithProduct", mock.Anything, mock.Anything)
}

func TestOrderService_Checkout_InactiveProduct(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)
	ctx := context.Background()

	variantID := uuid.New()
	variant := &models.VariantWithProduct{
		ProductVariant:  models.ProductVariant{ID: variantID, Price: 10000},
		ProductIsActive: false,
	}
	products.On("GetVariantWithProduct", ctx, variantID).Return(variant, nil)

	_, err := svc.Checkout(ctx, uuid.New(), variantID)

	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeConflict, apperror.Code(err))
	payments.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestOrderService_Checkout_VariantNotFound(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)
	ctx := context.Background()

	variantID := uuid.New()
	products.On("GetVariantWithProduct", ctx, variantID).Return(nil, repository.ErrVariantNotFound)

	_, err := svc.Checkout(ctx, uuid.New(), variantID)

	assert.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestOrderService_ConfirmPayment_Success(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)
	ctx := context.Background()

	orderID := uuid.New()
	sessionID := "cs_test_paid"
	order := &models.Order{
		ID:               orderID,
		UserID:           uuid.New(),
		Amount:           10000,
		Status:           string(valueobject.OrderStatusPending),
		PaymentSessionID: &sessionID,
	}

	orders.On("GetByPaymentSessionID", ctx, sessionID).Return(order, nil)
	orders.On("MarkPaid", ctx, orderID, mock.MatchedBy(func(split valueobject.CommissionBreakdown) bool {
		// 10000: комиссия провайдера 320, площадки 1452, продавцу 8228
		return split.ProcessorFee == 320 && split.PlatformFee == 1452 && split.SellerAmount == 8228
	})).Return(&models.Transaction{
		OrderID:      orderID,
		TotalAmount:  10000,
		PlatformFee:  1452,
		SellerAmount: 8228,
		Status:       models.TransactionStatusPaid,
	}, nil)

	err := svc.ConfirmPayment(ctx, &payment.WebhookEvent{
		Type:      payment.EventCheckoutCompleted,
		SessionID: sessionID,
		Amount:    10000,
	})

	assert.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestOrderService_ConfirmPayment_DuplicateWebhook(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)
	ctx := context.Background()

	sessionID := "cs_test_dup"
	order := &models.Order{
		ID:               uuid.New(),
		Amount:           10000,
		Status:           string(valueobject.OrderStatusPaid),
		PaymentSessionID: &sessionID,
	}

	orders.On("GetByPaymentSessionID", ctx, sessionID).Return(order, nil)
	orders.On("MarkPaid", ctx, order.ID, mock.Anything).Return(nil, repository.ErrStatusConflict)

	err := svc.ConfirmPayment(ctx, &payment.WebhookEvent{
		Type:      payment.EventCheckoutCompleted,
		SessionID: sessionID,
		Amount:    10000,
	})

	// Повторная доставка webhook не считается ошибкой
	assert.NoError(t, err)
}

func TestOrderService_ConfirmPayment_AmountMismatch(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)
	ctx := context.Background()

	sessionID := "cs_test_mismatch"
	order := &models.Order{
		ID:               uuid.New(),
		Amount:           10000,
		Status:           string(valueobject.OrderStatusPending),
		PaymentSessionID: &sessionID,
	}

	orders.On("GetByPaymentSessionID", ctx, sessionID).Return(order, nil)

	err := svc.ConfirmPayment(ctx, &payment.WebhookEvent{
		Type:      payment.EventCheckoutCompleted,
		SessionID: sessionID,
		Amount:    9999,
	})

	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeConflict, apperror.Code(err))
	orders.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_ConfirmPayment_IgnoresOtherEvents(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)

	err := svc.ConfirmPayment(context.Background(), &payment.WebhookEvent{
		Type:      "checkout.session.expired",
		SessionID: "cs_test_other",
	})

	assert.NoError(t, err)
	orders.AssertNotCalled(t, "GetByPaymentSessionID", mock.Anything, mock.Anything)
}

func TestOrderService_Checkout_AmountBelowProcessorFee(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)
	ctx := context.Background()

	variantID := uuid.New()
	variant := &models.VariantWithProduct{
		ProductVariant: models.ProductVariant{
			ID:        variantID,
			ProductID: uuid.New(),
			Name:      "Пробник",
			Price:     10,
		},
		ProductName:     "Стикер",
		ProductIsActive: true,
	}
	products.On("GetVariantWithProduct", ctx, variantID).Return(variant, nil)

	// 10 минорных единиц не покрывают даже фиксированную часть комиссии
	// провайдера: разделение ушло бы в минус.
	_, err := svc.Checkout(ctx, uuid.New(), variantID)

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	payments.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOrderService_ConfirmPayment_NegativeSplitRejected(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	sink := &recordingSink{}
	svc := NewOrderService(
		orders, products, payments,
		notify.NopDispatcher{}, sink, allowLimiter{},
		0.15, valueobject.DefaultProcessorFees,
		"rub", "https://shop.example/success", "https://shop.example/cancel",
	)
	ctx := context.Background()

	order := &models.Order{ID: uuid.New(), Amount: 10, Status: string(valueobject.OrderStatusPending)}
	orders.On("GetByPaymentSessionID", ctx, "cs_tiny").Return(order, nil)

	err := svc.ConfirmPayment(ctx, &payment.WebhookEvent{
		Type:      payment.EventCheckoutCompleted,
		SessionID: "cs_tiny",
		Amount:    10,
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.True(t, sink.has("commission_split_invalid"))
	orders.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_SetStatus_Success(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)
	ctx := context.Background()

	orderID := uuid.New()
	order := &models.Order{ID: orderID, Status: string(valueobject.OrderStatusPaid)}

	orders.On("GetByID", ctx, orderID).Return(order, nil)
	orders.On("UpdateStatus", ctx, orderID, valueobject.OrderStatusPaid, valueobject.OrderStatusProcessing).Return(nil)

	updated, err := svc.SetStatus(ctx, orderID, valueobject.OrderStatusProcessing, uuid.New())

	assert.NoError(t, err)
	assert.Equal(t, string(valueobject.OrderStatusProcessing), updated.Status)
}

func TestOrderService_SetStatus_InvalidTransition(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)
	ctx := context.Background()

	orderID := uuid.New()
	order := &models.Order{ID: orderID, Status: string(valueobject.OrderStatusCompleted)}
	orders.On("GetByID", ctx, orderID).Return(order, nil)

	_, err := svc.SetStatus(ctx, orderID, valueobject.OrderStatusProcessing, uuid.New())

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
	orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_SetStatus_PaidOnlyViaWebhook(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)
	ctx := context.Background()

	// PAID без создания расчёта оставил бы оплаченный заказ без разделения
	// комиссии, поэтому администратору этот статус недоступен.
	_, err := svc.SetStatus(ctx, uuid.New(), valueobject.OrderStatusPaid, uuid.New())

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	orders.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_SetStatus_RefundedOnlyViaDispute(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)
	ctx := context.Background()

	_, err := svc.SetStatus(ctx, uuid.New(), valueobject.OrderStatusRefunded, uuid.New())

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_SetStatus_TerminalStatus(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)
	ctx := context.Background()

	orderID := uuid.New()
	order := &models.Order{ID: orderID, Status: string(valueobject.OrderStatusRefunded)}
	orders.On("GetByID", ctx, orderID).Return(order, nil)

	_, err := svc.SetStatus(ctx, orderID, valueobject.OrderStatusCompleted, uuid.New())

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestOrderService_SetStatus_ConcurrentConflict(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)
	ctx := context.Background()

	orderID := uuid.New()
	order := &models.Order{ID: orderID, Status: string(valueobject.OrderStatusPaid)}
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	orders.On("UpdateStatus", ctx, orderID, valueobject.OrderStatusPaid, valueobject.OrderStatusProcessing).
		Return(repository.ErrStatusConflict)

	_, err := svc.SetStatus(ctx, orderID, valueobject.OrderStatusProcessing, uuid.New())

	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeConflict, apperror.Code(err))
}

func TestOrderService_Cancel_Success(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)
	ctx := context.Background()

	orderID := uuid.New()
	userID := uuid.New()
	order := &models.Order{ID: orderID, UserID: userID, Status: string(valueobject.OrderStatusPending)}

	orders.On("GetByID", ctx, orderID).Return(order, nil)
	orders.On("UpdateStatus", ctx, orderID, valueobject.OrderStatusPending, valueobject.OrderStatusCancelled).Return(nil)

	cancelled, err := svc.Cancel(ctx, orderID, userID)

	assert.NoError(t, err)
	assert.Equal(t, string(valueobject.OrderStatusCancelled), cancelled.Status)
}

func TestOrderService_Cancel_ForeignOrder(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)
	ctx := context.Background()

	orderID := uuid.New()
	order := &models.Order{ID: orderID, UserID: uuid.New(), Status: string(valueobject.OrderStatusPending)}
	orders.On("GetByID", ctx, orderID).Return(order, nil)

	_, err := svc.Cancel(ctx, orderID, uuid.New())

	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestOrderService_GetOrder_OwnerAndAdmin(t *testing.T) {
	orders := new(mockOrderRepo)
	products := new(mockVariantProvider)
	payments := new(mockPaymentProvider)
	svc := newOrderService(orders, products, payments)
	ctx := context.Background()

	orderID := uuid.New()
	ownerID := uuid.New()
	order := &models.Order{ID: orderID, UserID: ownerID, Status: string(valueobject.OrderStatusPaid)}
	orders.On("GetByID", ctx, orderID).Return(order, nil)

	got, err := svc.GetOrder(ctx, orderID, ownerID, models.RoleUser)
	assert.NoError(t, err)
	assert.Equal(t, orderID, got.ID)

	_, err = svc.GetOrder(ctx, orderID, uuid.New(), models.RoleUser)
	assert.True(t, apperror.IsForbidden(err))

	got, err = svc.GetOrder(ctx, orderID, uuid.New(), models.RoleAdmin)
	assert.NoError(t, err)
	assert.Equal(t, orderID, got.ID)
}
