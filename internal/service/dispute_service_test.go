package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/marketplace-backend/internal/audit"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/notify"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
)

type mockDisputeRepo struct {
	mock.Mock
}

func (m *mockDisputeRepo) Create(ctx context.Context, d *models.Dispute) error {
	args := m.Called(ctx, d)
	if args.Error(0) == nil {
		d.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) GetOpenByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ResolveRefund(ctx context.Context, disputeID, orderID, adminID uuid.UUID, resolution string) error {
	args := m.Called(ctx, disputeID, orderID, adminID, resolution)
	return args.Error(0)
}

func (m *mockDisputeRepo) ResolveReject(ctx context.Context, disputeID, orderID, adminID uuid.UUID, resolution string) error {
	args := m.Called(ctx, disputeID, orderID, adminID, resolution)
	return args.Error(0)
}

func (m *mockDisputeRepo) ResolvePartialRefund(ctx context.Context, disputeID, orderID, adminID uuid.UUID, resolution string, newTotal, newPlatformFee, newSellerAmount int64) error {
	args := m.Called(ctx, disputeID, orderID, adminID, resolution, newTotal, newPlatformFee, newSellerAmount)
	return args.Error(0)
}

func (m *mockDisputeRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListAll(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

type mockOrderRepoForDispute struct {
	mock.Mock
}

func (m *mockOrderRepoForDispute) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepoForDispute) GetTransactionByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func newDisputeService(disputes *mockDisputeRepo, orders *mockOrderRepoForDispute, payments *mockPaymentProvider) *DisputeService {
	return NewDisputeService(disputes, orders, payments, notify.NopDispatcher{}, audit.NopSink{}, allowLimiter{})
}

const disputeDescription = "Товар пришёл повреждённым, замена не предложена"

func TestDisputeService_Open_Success(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepoForDispute)
	payments := new(mockPaymentProvider)
	svc := newDisputeService(disputes, orders, payments)
	ctx := context.Background()

	orderID := uuid.New()
	userID := uuid.New()
	order := &models.Order{ID: orderID, UserID: userID, Status: string(valueobject.OrderStatusCompleted)}

	orders.On("GetByID", ctx, orderID).Return(order, nil)
	disputes.On("Create", ctx, mock.AnythingOfType("*models.Dispute")).Return(nil)

	dispute, err := svc.Open(ctx, orderID, userID, "Брак товара", disputeDescription)

	assert.NoError(t, err)
	assert.NotNil(t, dispute)
	assert.Equal(t, models.DisputeStatusOpen, dispute.Status)
	assert.Equal(t, orderID, dispute.OrderID)
}

func TestDisputeService_Open_OrderNotCompleted(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepoForDispute)
	payments := new(mockPaymentProvider)
	svc := newDisputeService(disputes, orders, payments)
	ctx := context.Background()

	orderID := uuid.New()
	userID := uuid.New()
	order := &models.Order{ID: orderID, UserID: userID, Status: string(valueobject.OrderStatusPaid)}
	orders.On("GetByID", ctx, orderID).Return(order, nil)

	_, err := svc.Open(ctx, orderID, userID, "Брак товара", disputeDescription)

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
	disputes.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDisputeService_Open_ForeignOrder(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepoForDispute)
	payments := new(mockPaymentProvider)
	svc := newDisputeService(disputes, orders, payments)
	ctx := context.Background()

	orderID := uuid.New()
	order := &models.Order{ID: orderID, UserID: uuid.New(), Status: string(valueobject.OrderStatusCompleted)}
	orders.On("GetByID", ctx, orderID).Return(order, nil)

	_, err := svc.Open(ctx, orderID, uuid.New(), "Брак товара", disputeDescription)

	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestDisputeService_Open_ShortDescription(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepoForDispute)
	payments := new(mockPaymentProvider)
	svc := newDisputeService(disputes, orders, payments)

	_, err := svc.Open(context.Background(), uuid.New(), uuid.New(), "Брак", "коротко")

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	orders.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestDisputeService_Open_AlreadyExists(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepoForDispute)
	payments := new(mockPaymentProvider)
	svc := newDisputeService(disputes, orders, payments)
	ctx := context.Background()

	orderID := uuid.New()
	userID := uuid.New()
	order := &models.Order{ID: orderID, UserID: userID, Status: string(valueobject.OrderStatusCompleted)}
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	disputes.On("Create", ctx, mock.Anything).Return(repository.ErrDisputeAlreadyExists)

	_, err := svc.Open(ctx, orderID, userID, "Брак товара", disputeDescription)

	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeConflict, apperror.Code(err))
}

func TestDisputeService_Open_RateLimited(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepoForDispute)
	payments := new(mockPaymentProvider)
	svc := NewDisputeService(disputes, orders, payments, notify.NopDispatcher{}, audit.NopSink{}, denyLimiter{})

	_, err := svc.Open(context.Background(), uuid.New(), uuid.New(), "Брак товара", disputeDescription)

	assert.Error(t, err)
	assert.True(t, apperror.IsRateLimited(err))
}

func TestDisputeService_Resolve_Refund(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepoForDispute)
	payments := new(mockPaymentProvider)
	svc := newDisputeService(disputes, orders, payments)
	ctx := context.Background()

	disputeID := uuid.New()
	orderID := uuid.New()
	adminID := uuid.New()
	sessionID := "cs_refund"

	dispute := &models.Dispute{ID: disputeID, OrderID: orderID, Status: models.DisputeStatusOpen}
	order := &models.Order{ID: orderID, Status: string(valueobject.OrderStatusDisputed), PaymentSessionID: &sessionID}
	transaction := &models.Transaction{OrderID: orderID, TotalAmount: 10000, PlatformFee: 1452, SellerAmount: 8228}

	disputes.On("GetByID", ctx, disputeID).Return(dispute, nil)
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	orders.On("GetTransactionByOrderID", ctx, orderID).Return(transaction, nil)
	disputes.On("ResolveRefund", ctx, disputeID, orderID, adminID, "возврат одобрен").Return(nil)
	payments.On("RefundPayment", mock.Anything, sessionID, int64(10000)).Return(nil).Maybe()

	resolved, err := svc.Resolve(ctx, disputeID, adminID, models.DisputeActionRefund, "возврат одобрен", 0)

	assert.NoError(t, err)
	assert.NotNil(t, resolved)
	disputes.AssertExpectations(t)
}

func TestDisputeService_Resolve_Reject(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepoForDispute)
	payments := new(mockPaymentProvider)
	svc := newDisputeService(disputes, orders, payments)
	ctx := context.Background()

	disputeID := uuid.New()
	orderID := uuid.New()
	adminID := uuid.New()

	dispute := &models.Dispute{ID: disputeID, OrderID: orderID, Status: models.DisputeStatusOpen}
	order := &models.Order{ID: orderID, Status: string(valueobject.OrderStatusDisputed)}
	transaction := &models.Transaction{OrderID: orderID, TotalAmount: 10000, PlatformFee: 1452, SellerAmount: 8228}

	disputes.On("GetByID", ctx, disputeID).Return(dispute, nil)
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	orders.On("GetTransactionByOrderID", ctx, orderID).Return(transaction, nil)
	disputes.On("ResolveReject", ctx, disputeID, orderID, adminID, "претензия не подтвердилась").Return(nil)

	_, err := svc.Resolve(ctx, disputeID, adminID, models.DisputeActionReject, "претензия не подтвердилась", 0)

	assert.NoError(t, err)
	payments.AssertNotCalled(t, "RefundPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestDisputeService_Resolve_RepositoryFailureAudited(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepoForDispute)
	payments := new(mockPaymentProvider)
	sink := &recordingSink{}
	svc := NewDisputeService(disputes, orders, payments, notify.NopDispatcher{}, sink, allowLimiter{})
	ctx := context.Background()

	disputeID := uuid.New()
	orderID := uuid.New()
	adminID := uuid.New()

	dispute := &models.Dispute{ID: disputeID, OrderID: orderID, Status: models.DisputeStatusOpen}
	order := &models.Order{ID: orderID, Status: string(valueobject.OrderStatusDisputed)}
	transaction := &models.Transaction{OrderID: orderID, TotalAmount: 10000, PlatformFee: 1452, SellerAmount: 8228}

	disputes.On("GetByID", ctx, disputeID).Return(dispute, nil)
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	orders.On("GetTransactionByOrderID", ctx, orderID).Return(transaction, nil)
	disputes.On("ResolveRefund", ctx, disputeID, orderID, adminID, "возврат покупателю").
		Return(errors.New("база недоступна"))

	_, err := svc.Resolve(ctx, disputeID, adminID, models.DisputeActionRefund, "возврат покупателю", 0)

	// Попытка, оборвавшаяся на записи, всё равно попадает в аудит.
	assert.Error(t, err)
	assert.True(t, sink.hasOutcome("dispute_resolve", "failed"))
}

func TestDisputeService_Resolve_TransactionFetchFailureAudited(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepoForDispute)
	payments := new(mockPaymentProvider)
	sink := &recordingSink{}
	svc := NewDisputeService(disputes, orders, payments, notify.NopDispatcher{}, sink, allowLimiter{})
	ctx := context.Background()

	disputeID := uuid.New()
	orderID := uuid.New()

	dispute := &models.Dispute{ID: disputeID, OrderID: orderID, Status: models.DisputeStatusOpen}
	order := &models.Order{ID: orderID, Status: string(valueobject.OrderStatusDisputed)}

	disputes.On("GetByID", ctx, disputeID).Return(dispute, nil)
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	orders.On("GetTransactionByOrderID", ctx, orderID).Return(nil, errors.New("база недоступна"))

	_, err := svc.Resolve(ctx, disputeID, uuid.New(), models.DisputeActionRefund, "возврат покупателю", 0)

	assert.Error(t, err)
	assert.True(t, sink.hasOutcome("dispute_resolve", "failed"))
}

func TestDisputeService_Resolve_PartialRefund_FromSellerShare(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepoForDispute)
	payments := new(mockPaymentProvider)
	svc := newDisputeService(disputes, orders, payments)
	ctx := context.Background()

	disputeID := uuid.New()
	orderID := uuid.New()
	adminID := uuid.New()
	sessionID := "cs_partial"

	dispute := &models.Dispute{ID: disputeID, OrderID: orderID, Status: models.DisputeStatusOpen}
	order := &models.Order{ID: orderID, Status: string(valueobject.OrderStatusDisputed), PaymentSessionID: &sessionID}
	transaction := &models.Transaction{OrderID: orderID, TotalAmount: 10000, PlatformFee: 1452, SellerAmount: 8228}

	disputes.On("GetByID", ctx, disputeID).Return(dispute, nil)
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	orders.On("GetTransactionByOrderID", ctx, orderID).Return(transaction, nil)
	// Возврат 3000 целиком покрывается долей продавца
	disputes.On("ResolvePartialRefund", ctx, disputeID, orderID, adminID, "частичный возврат",
		int64(7000), int64(1452), int64(5228)).Return(nil)
	payments.On("RefundPayment", mock.Anything, sessionID, int64(3000)).Return(nil).Maybe()

	_, err := svc.Resolve(ctx, disputeID, adminID, models.DisputeActionPartialRefund, "частичный возврат", 3000)

	assert.NoError(t, err)
	disputes.AssertExpectations(t)
}

func TestDisputeService_Resolve_PartialRefund_ClawbackFromPlatformFee(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepoForDispute)
	payments := new(mockPaymentProvider)
	svc := newDisputeService(disputes, orders, payments)
	ctx := context.Background()

	disputeID := uuid.New()
	orderID := uuid.New()
	adminID := uuid.New()

	dispute := &models.Dispute{ID: disputeID, OrderID: orderID, Status: models.DisputeStatusOpen}
	order := &models.Order{ID: orderID, Status: string(valueobject.OrderStatusDisputed)}
	transaction := &models.Transaction{OrderID: orderID, TotalAmount: 10000, PlatformFee: 1452, SellerAmount: 8228}

	disputes.On("GetByID", ctx, disputeID).Return(dispute, nil)
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	orders.On("GetTransactionByOrderID", ctx, orderID).Return(transaction, nil)
	// Возврат 9000 превышает долю продавца: остаток 772 покрывает комиссия площадки
	disputes.On("ResolvePartialRefund", ctx, disputeID, orderID, adminID, "частичный возврат",
		int64(1000), int64(680), int64(0)).Return(nil)

	_, err := svc.Resolve(ctx, disputeID, adminID, models.DisputeActionPartialRefund, "частичный возврат", 9000)

	assert.NoError(t, err)
	disputes.AssertExpectations(t)
}

func TestDisputeService_Resolve_PartialRefund_InvalidAmount(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepoForDispute)
	payments := new(mockPaymentProvider)
	svc := newDisputeService(disputes, orders, payments)
	ctx := context.Background()

	disputeID := uuid.New()
	orderID := uuid.New()

	dispute := &models.Dispute{ID: disputeID, OrderID: orderID, Status: models.DisputeStatusOpen}
	order := &models.Order{ID: orderID, Status: string(valueobject.OrderStatusDisputed)}
	transaction := &models.Transaction{OrderID: orderID, TotalAmount: 10000, PlatformFee: 1452, SellerAmount: 8228}

	disputes.On("GetByID", ctx, disputeID).Return(dispute, nil)
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	orders.On("GetTransactionByOrderID", ctx, orderID).Return(transaction, nil)

	_, err := svc.Resolve(ctx, disputeID, uuid.New(), models.DisputeActionPartialRefund, "частичный возврат", 0)
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Resolve(ctx, disputeID, uuid.New(), models.DisputeActionPartialRefund, "частичный возврат", 10000)
	assert.True(t, apperror.IsValidation(err))

	disputes.AssertNotCalled(t, "ResolvePartialRefund",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything)
}

func TestDisputeService_Resolve_AlreadyResolved(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepoForDispute)
	payments := new(mockPaymentProvider)
	svc := newDisputeService(disputes, orders, payments)
	ctx := context.Background()

	disputeID := uuid.New()
	dispute := &models.Dispute{ID: disputeID, OrderID: uuid.New(), Status: models.DisputeStatusResolved}
	disputes.On("GetByID", ctx, disputeID).Return(dispute, nil)

	_, err := svc.Resolve(ctx, disputeID, uuid.New(), models.DisputeActionReject, "повторное решение", 0)

	assert.Error(t, err)
	assert.True(t, apperror.IsAlreadyResolved(err))
}

func TestDisputeService_Resolve_ConcurrentLoser(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepoForDispute)
	payments := new(mockPaymentProvider)
	svc := newDisputeService(disputes, orders, payments)
	ctx := context.Background()

	disputeID := uuid.New()
	orderID := uuid.New()
	adminID := uuid.New()

	dispute := &models.Dispute{ID: disputeID, OrderID: orderID, Status: models.DisputeStatusOpen}
	order := &models.Order{ID: orderID, Status: string(valueobject.OrderStatusDisputed)}
	transaction := &models.Transaction{OrderID: orderID, TotalAmount: 10000, PlatformFee: 1452, SellerAmount: 8228}

	disputes.On("GetByID", ctx, disputeID).Return(dispute, nil)
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	orders.On("GetTransactionByOrderID", ctx, orderID).Return(transaction, nil)
	// Между чтением и записью спор успел разрешить другой администратор
	disputes.On("ResolveReject", ctx, disputeID, orderID, adminID, "решение").
		Return(repository.ErrDisputeAlreadyResolved)

	_, err := svc.Resolve(ctx, disputeID, adminID, models.DisputeActionReject, "решение", 0)

	assert.Error(t, err)
	assert.True(t, apperror.IsAlreadyResolved(err))
}

func TestDisputeService_Resolve_InvalidAction(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepoForDispute)
	payments := new(mockPaymentProvider)
	svc := newDisputeService(disputes, orders, payments)

	_, err := svc.Resolve(context.Background(), uuid.New(), uuid.New(), "ESCALATE", "решение", 0)

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	disputes.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}
