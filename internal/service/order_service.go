package service

import (
	"context"
	"errors"
	"fmt"
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
)

// OrderRepo описывает операции с заказами, которые нужны сервису.
type OrderRepo interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByPaymentSessionID(ctx context.Context, sessionID string) (*models.Order, error)
	GetTransactionByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, fromStatus, toStatus valueobject.OrderStatus) error
	MarkPaid(ctx context.Context, orderID uuid.UUID, split valueobject.CommissionBreakdown) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Order, error)
}

// VariantProvider отдаёт вариант товара с ценой для checkout.
type VariantProvider interface {
	GetVariantWithProduct(ctx context.Context, variantID uuid.UUID) (*models.VariantWithProduct, error)
}

// OrderService реализует жизненный цикл заказа: от checkout через оплату
// до завершения. Все денежные величины — минорные единицы валюты.
type OrderService struct {
	orders   OrderRepo
	products VariantProvider
	payments payment.Provider
	notifier notify.Dispatcher
	audit    audit.Sink
	limiter  ratelimit.Limiter

	commissionRate float64
	fees           valueobject.ProcessorFees
	currency       string
	successURL     string
	cancelURL      string
}

func NewOrderService(
	orders OrderRepo,
	products VariantProvider,
	payments payment.Provider,
	notifier notify.Dispatcher,
	auditSink audit.Sink,
	limiter ratelimit.Limiter,
	commissionRate float64,
	fees valueobject.ProcessorFees,
	currency, successURL, cancelURL string,
) *OrderService {
	return &OrderService{
		orders:         orders,
		products:       products,
		payments:       payments,
		notifier:       notifier,
		audit:          auditSink,
		limiter:        limiter,
		commissionRate: commissionRate,
		fees:           fees,
		currency:       currency,
		successURL:     successURL,
		cancelURL:      cancelURL,
	}
}

// CheckoutResult — созданный заказ и URL платёжной сессии для редиректа.
type CheckoutResult struct {
	Order       *models.Order `json:"order"`
	CheckoutURL string        `json:"checkout_url"`
}

// Checkout создаёт заказ в статусе PENDING и платёжную сессию у провайдера.
// Цена замораживается из варианта товара в момент вызова: дальнейшие
// изменения цены на заказ не влияют.
func (s *OrderService) Checkout(ctx context.Context, userID, variantID uuid.UUID) (*CheckoutResult, error) {
	if err := s.limiter.Allow(ctx, userID.String(), "checkout"); err != nil {
		return nil, err
	}

	variant, err := s.products.GetVariantWithProduct(ctx, variantID)
	if err != nil {
		if errors.Is(err, repository.ErrVariantNotFound) {
			return nil, apperror.ErrVariantNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить вариант товара")
	}
	if !variant.ProductIsActive {
		return nil, apperror.New(apperror.ErrCodeConflict, "товар недоступен для покупки")
	}
	if variant.Price <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "у варианта не задана цена")
	}

	// Сумма должна покрывать комиссию провайдера, иначе расчёт при оплате
	// не сойдётся в неотрицательных компонентах.
	split, err := valueobject.ComputeSplit(variant.Price, s.commissionRate, s.fees)
	if err != nil {
		return nil, err
	}
	if err := split.Validate(); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation,
			"сумма заказа слишком мала и не покрывает комиссию провайдера")
	}

	session, err := s.payments.CreateCheckoutSession(ctx, payment.CheckoutParams{
		AmountMinor: variant.Price,
		Currency:    s.currency,
		Description: fmt.Sprintf("%s — %s", variant.ProductName, variant.Name),
		SuccessURL:  s.successURL,
		CancelURL:   s.cancelURL,
		Metadata: map[string]string{
			"user_id":    userID.String(),
			"variant_id": variantID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:           userID,
		ProductID:        variant.ProductID,
		VariantID:        variant.ID,
		Amount:           variant.Price,
		Status:           string(valueobject.OrderStatusPending),
		PaymentSessionID: &session.ID,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать заказ")
	}

	s.audit.LogEvent("order_checkout", map[string]interface{}{
		"order_id":   order.ID,
		"user_id":    userID,
		"variant_id": variantID,
		"amount":     order.Amount,
		"session_id": session.ID,
	})

	return &CheckoutResult{Order: order, CheckoutURL: session.URL}, nil
}

// ConfirmPayment обрабатывает событие оплаты от провайдера: переводит заказ
// PENDING -> PAID и фиксирует разделение комиссии одной транзакцией.
// Повторная доставка события — не ошибка: если заказ уже оплачен,
// обработчик молча выходит.
func (s *OrderService) ConfirmPayment(ctx context.Context, event *payment.WebhookEvent) error {
	if event.Type != payment.EventCheckoutCompleted {
		logger.WithComponent("order_service").Debugf("пропускаем событие %s", event.Type)
		return nil
	}

	order, err := s.orders.GetByPaymentSessionID(ctx, event.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return apperror.ErrOrderNotFound
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось найти заказ по платёжной сессии")
	}

	if event.Amount != 0 && event.Amount != order.Amount {
		s.audit.LogEvent("payment_amount_mismatch", map[string]interface{}{
			"order_id":       order.ID,
			"order_amount":   order.Amount,
			"webhook_amount": event.Amount,
		})
		return apperror.New(apperror.ErrCodeConflict, "сумма оплаты не совпадает с суммой заказа")
	}

	split, err := valueobject.ComputeSplit(order.Amount, s.commissionRate, s.fees)
	if err != nil {
		return err
	}
	if err := split.Validate(); err != nil {
		s.audit.LogEvent("commission_split_invalid", map[string]interface{}{
			"order_id":      order.ID,
			"total_amount":  split.TotalAmount,
			"processor_fee": split.ProcessorFee,
			"platform_fee":  split.PlatformFee,
			"seller_amount": split.SellerAmount,
		})
		return err
	}

	transaction, err := s.orders.MarkPaid(ctx, order.ID, split)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// Дубликат webhook: заказ уже не в PENDING.
			logger.WithComponent("order_service").Infof("повторное событие оплаты для заказа %s", order.ID)
			return nil
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось подтвердить оплату")
	}

	s.audit.LogEvent("order_paid", map[string]interface{}{
		"order_id":      order.ID,
		"total_amount":  transaction.TotalAmount,
		"platform_fee":  transaction.PlatformFee,
		"seller_amount": transaction.SellerAmount,
		"processor_fee": transaction.ProcessorFee(),
	})

	s.notifyStatus(order, valueobject.OrderStatusPaid)
	return nil
}

// SetStatus переводит заказ в новый статус от имени администратора. Переход
// проверяется по таблице, запись защищена от гонок условием на текущий статус.
// Расчётные статусы здесь недоступны: PAID выставляет только webhook оплаты
// (вместе с созданием расчёта), REFUNDED — только разрешение спора (вместе с
// обновлением расчёта). Иначе заказ и расчёт разошлись бы.
func (s *OrderService) SetStatus(ctx context.Context, orderID uuid.UUID, newStatus valueobject.OrderStatus, actorID uuid.UUID) (*models.Order, error) {
	if newStatus == valueobject.OrderStatusPaid || newStatus == valueobject.OrderStatusRefunded {
		s.audit.LogEvent("order_status_rejected", map[string]interface{}{
			"order_id": orderID,
			"to":       newStatus,
			"actor_id": actorID,
			"reason":   "settlement_status",
		})
		return nil, apperror.New(apperror.ErrCodeValidation,
			"статус PAID выставляется подтверждением оплаты, REFUNDED — разрешением спора")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заказ")
	}

	current := valueobject.OrderStatus(order.Status)
	if err := current.ValidateTransition(newStatus); err != nil {
		s.audit.LogEvent("order_status_rejected", map[string]interface{}{
			"order_id": orderID,
			"from":     current,
			"to":       newStatus,
			"actor_id": actorID,
		})
		return nil, err
	}

	if err := s.orders.UpdateStatus(ctx, orderID, current, newStatus); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, apperror.New(apperror.ErrCodeConflict, "статус заказа изменился, повторите операцию")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить статус заказа")
	}

	order.Status = string(newStatus)

	s.audit.LogEvent("order_status_changed", map[string]interface{}{
		"order_id": orderID,
		"from":     current,
		"to":       newStatus,
		"actor_id": actorID,
	})

	s.notifyStatus(order, newStatus)
	return order, nil
}

// Cancel отменяет заказ по инициативе покупателя. Допустимость отмены
// определяется таблицей переходов текущего статуса.
func (s *OrderService) Cancel(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
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

	current := valueobject.OrderStatus(order.Status)
	if err := current.ValidateTransition(valueobject.OrderStatusCancelled); err != nil {
		return nil, err
	}

	if err := s.orders.UpdateStatus(ctx, orderID, current, valueobject.OrderStatusCancelled); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, apperror.New(apperror.ErrCodeConflict, "статус заказа изменился, повторите операцию")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось отменить заказ")
	}

	order.Status = string(valueobject.OrderStatusCancelled)

	s.audit.LogEvent("order_cancelled", map[string]interface{}{
		"order_id": orderID,
		"user_id":  userID,
		"from":     current,
	})

	s.notifyStatus(order, valueobject.OrderStatusCancelled)
	return order, nil
}

// GetOrder возвращает заказ. Покупатель видит только свои заказы,
// администратор — любые.
func (s *OrderService) GetOrder(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заказ")
	}
	if order.UserID != actorID && actorRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	return order, nil
}

// GetTransaction возвращает расчёт по заказу (доступен администратору).
func (s *OrderService) GetTransaction(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error) {
	transaction, err := s.orders.GetTransactionByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "расчёт по заказу не найден")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить расчёт")
	}
	return transaction, nil
}

// ListMyOrders возвращает заказы пользователя.
func (s *OrderService) ListMyOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	limit, offset = normalizePage(limit, offset)
	orders, err := s.orders.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заказы")
	}
	return orders, nil
}

// ListAllOrders возвращает все заказы (для администратора).
func (s *OrderService) ListAllOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	limit, offset = normalizePage(limit, offset)
	orders, err := s.orders.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заказы")
	}
	return orders, nil
}

// notifyStatus отправляет уведомление о смене статуса в фоне. Доставка
// best-effort: ошибки логируются внутри диспетчера и не влияют на операцию.
func (s *OrderService) notifyStatus(order *models.Order, newStatus valueobject.OrderStatus) {
	orderCopy := *order
	goroutine.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.notifier.NotifyOrderStatus(ctx, &orderCopy, string(newStatus))
	})
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
