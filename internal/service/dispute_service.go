package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/audit"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/goroutine"
	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/notify"
	"github.com/ignatzorin/marketplace-backend/internal/payment"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/ratelimit"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
	"github.com/ignatzorin/marketplace-backend/internal/validation"
)

// DisputeRepo описывает операции со спорами, которые нужны сервису.
type DisputeRepo interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetOpenByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	ResolveRefund(ctx context.Context, disputeID, orderID, adminID uuid.UUID, resolution string) error
	ResolveReject(ctx context.Context, disputeID, orderID, adminID uuid.UUID, resolution string) error
	ResolvePartialRefund(ctx context.Context, disputeID, orderID, adminID uuid.UUID, resolution string, newTotal, newPlatformFee, newSellerAmount int64) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Dispute, error)
}

// DisputeOrderRepo — доступ к заказам и расчётам со стороны споров.
type DisputeOrderRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetTransactionByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error)
}

// DisputeService реализует открытие и разрешение споров. Разрешение
// необратимо: повторная попытка по уже закрытому спору отклоняется.
type DisputeService struct {
	disputes DisputeRepo
	orders   DisputeOrderRepo
	payments payment.Provider
	notifier notify.Dispatcher
	audit    audit.Sink
	limiter  ratelimit.Limiter
}

func NewDisputeService(
	disputes DisputeRepo,
	orders DisputeOrderRepo,
	payments payment.Provider,
	notifier notify.Dispatcher,
	auditSink audit.Sink,
	limiter ratelimit.Limiter,
) *DisputeService {
	return &DisputeService{
		disputes: disputes,
		orders:   orders,
		payments: payments,
		notifier: notifier,
		audit:    auditSink,
		limiter:  limiter,
	}
}

// Open открывает спор по завершённому заказу. Заказ переводится в DISPUTED,
// открытый спор по заказу может быть только один.
func (s *DisputeService) Open(ctx context.Context, orderID, userID uuid.UUID, reason, description string) (*models.Dispute, error) {
	if err := s.limiter.Allow(ctx, userID.String(), "create_dispute"); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "причина спора обязательна")
	}
	if err := validation.ValidateDisputeDescription(description); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заказ")
	}
	if order.UserID != userID {
		return nil, apperror.ErrForbidden
	}
	if valueobject.OrderStatus(order.Status) != valueobject.OrderStatusCompleted {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition,
			"спор можно открыть только по завершённому заказу")
	}

	dispute := &models.Dispute{
		OrderID:     orderID,
		CreatedByID: userID,
		Reason:      reason,
		Description: strings.TrimSpace(description),
		Status:      models.DisputeStatusOpen,
	}
	if err := s.disputes.Create(ctx, dispute); err != nil {
		switch {
		case errors.Is(err, repository.ErrDisputeAlreadyExists):
			return nil, apperror.New(apperror.ErrCodeConflict, "по заказу уже открыт спор")
		case errors.Is(err, repository.ErrStatusConflict):
			return nil, apperror.New(apperror.ErrCodeConflict, "статус заказа изменился, повторите операцию")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать спор")
	}

	s.audit.LogEvent("dispute_opened", map[string]interface{}{
		"dispute_id": dispute.ID,
		"order_id":   orderID,
		"user_id":    userID,
		"reason":     reason,
	})

	s.notifyOrder(order, string(valueobject.OrderStatusDisputed))
	return dispute, nil
}

// Resolve разрешает спор действием администратора: REFUND, REJECT или
// PARTIAL_REFUND. Каждая попытка, включая отклонённые, попадает в аудит.
// При гонке двух администраторов выигрывает ровно один, второй получает
// ошибку AlreadyResolved.
func (s *DisputeService) Resolve(ctx context.Context, disputeID, adminID uuid.UUID, action, resolution string, refundAmount int64) (*models.Dispute, error) {
	logResolve := func(outcome string, extra map[string]interface{}) {
		details := map[string]interface{}{
			"dispute_id": disputeID,
			"admin_id":   adminID,
			"action":     action,
			"outcome":    outcome,
		}
		for k, v := range extra {
			details[k] = v
		}
		s.audit.LogEvent("dispute_resolve", details)
	}

	if !models.IsValidDisputeAction(action) {
		logResolve("rejected_invalid_action", nil)
		return nil, apperror.New(apperror.ErrCodeValidation, "недопустимое действие по спору")
	}
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		logResolve("rejected_empty_resolution", nil)
		return nil, apperror.New(apperror.ErrCodeValidation, "комментарий к решению обязателен")
	}

	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			logResolve("rejected_not_found", nil)
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить спор")
	}
	if dispute.Status != models.DisputeStatusOpen {
		logResolve("rejected_already_resolved", nil)
		return nil, apperror.ErrAlreadyResolved
	}

	order, err := s.orders.GetByID(ctx, dispute.OrderID)
	if err != nil {
		logResolve("failed", map[string]interface{}{"order_id": dispute.OrderID, "error": err.Error()})
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заказ спора")
	}
	transaction, err := s.orders.GetTransactionByOrderID(ctx, dispute.OrderID)
	if err != nil {
		logResolve("failed", map[string]interface{}{"order_id": dispute.OrderID, "error": err.Error()})
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить расчёт по заказу")
	}

	switch action {
	case models.DisputeActionRefund:
		err = s.disputes.ResolveRefund(ctx, disputeID, dispute.OrderID, adminID, resolution)
	case models.DisputeActionReject:
		err = s.disputes.ResolveReject(ctx, disputeID, dispute.OrderID, adminID, resolution)
	case models.DisputeActionPartialRefund:
		newTotal, newPlatform, newSeller, splitErr := partialRefundSplit(transaction, refundAmount)
		if splitErr != nil {
			logResolve("rejected_invalid_amount", map[string]interface{}{"refund_amount": refundAmount})
			return nil, splitErr
		}
		err = s.disputes.ResolvePartialRefund(ctx, disputeID, dispute.OrderID, adminID, resolution,
			newTotal, newPlatform, newSeller)
	}
	if err != nil {
		if errors.Is(err, repository.ErrDisputeAlreadyResolved) {
			logResolve("rejected_already_resolved", nil)
			return nil, apperror.ErrAlreadyResolved
		}
		logResolve("failed", map[string]interface{}{"order_id": dispute.OrderID, "error": err.Error()})
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось разрешить спор")
	}

	logResolve("resolved", map[string]interface{}{
		"order_id":      dispute.OrderID,
		"refund_amount": refundAmount,
	})

	// Возврат средств у провайдера — после фиксации решения в базе.
	// Неудача возврата не откатывает решение: она логируется и попадает
	// в аудит для ручной обработки.
	s.requestRefund(order, action, transaction, refundAmount)

	finalStatus := valueobject.OrderStatusCompleted
	if action == models.DisputeActionRefund {
		finalStatus = valueobject.OrderStatusRefunded
	}
	s.notifyOrder(order, string(finalStatus))

	return s.disputes.GetByID(ctx, disputeID)
}

// partialRefundSplit вычисляет новые суммы расчёта при частичном возврате.
// Возврат покрывается в первую очередь долей продавца, остаток — комиссией
// площадки. Комиссия провайдера не меняется: totalAmount уменьшается ровно
// на сумму возврата, и тождество сумм сохраняется.
func partialRefundSplit(t *models.Transaction, refundAmount int64) (newTotal, newPlatform, newSeller int64, err error) {
	if refundAmount <= 0 {
		return 0, 0, 0, apperror.New(apperror.ErrCodeValidation, "сумма частичного возврата должна быть положительной")
	}
	if refundAmount >= t.TotalAmount {
		return 0, 0, 0, apperror.New(apperror.ErrCodeValidation,
			"сумма частичного возврата должна быть меньше суммы заказа")
	}

	newTotal = t.TotalAmount - refundAmount
	newSeller = t.SellerAmount - refundAmount
	newPlatform = t.PlatformFee
	if newSeller < 0 {
		newPlatform += newSeller
		newSeller = 0
	}
	if newPlatform < 0 {
		return 0, 0, 0, apperror.New(apperror.ErrCodeValidation,
			"сумма возврата превышает распределяемую часть расчёта")
	}
	return newTotal, newPlatform, newSeller, nil
}

// requestRefund инициирует возврат у платёжного провайдера в фоне.
func (s *DisputeService) requestRefund(order *models.Order, action string, t *models.Transaction, refundAmount int64) {
	if order.PaymentSessionID == nil {
		return
	}

	var amount int64
	switch action {
	case models.DisputeActionRefund:
		amount = t.TotalAmount
	case models.DisputeActionPartialRefund:
		amount = refundAmount
	default:
		return
	}

	sessionID := *order.PaymentSessionID
	orderID := order.ID
	goroutine.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.payments.RefundPayment(ctx, sessionID, amount); err != nil {
			logger.WithComponent("dispute_service").
				Errorf("не удалось выполнить возврат по заказу %s: %v", orderID, err)
			s.audit.LogEvent("refund_failed", map[string]interface{}{
				"order_id": orderID,
				"amount":   amount,
				"error":    err.Error(),
			})
		}
	})
}

// Get возвращает спор. Создатель видит свои споры, администратор — любые.
func (s *DisputeService) Get(ctx context.Context, disputeID, actorID uuid.UUID, actorRole string) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить спор")
	}
	if dispute.CreatedByID != actorID && actorRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	return dispute, nil
}

// ListMy возвращает споры пользователя.
func (s *DisputeService) ListMy(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	limit, offset = normalizePage(limit, offset)
	disputes, err := s.disputes.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить споры")
	}
	return disputes, nil
}

// ListAll возвращает все споры (для администратора).
func (s *DisputeService) ListAll(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	limit, offset = normalizePage(limit, offset)
	disputes, err := s.disputes.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить споры")
	}
	return disputes, nil
}

func (s *DisputeService) notifyOrder(order *models.Order, newStatus string) {
	orderCopy := *order
	goroutine.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.notifier.NotifyOrderStatus(ctx, &orderCopy, newStatus)
	})
}
