package valueobject

import (
	"fmt"

	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusDisputed   OrderStatus = "DISPUTED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

// orderTransitions — таблица допустимых переходов. Всё, чего здесь нет,
// запрещено. CANCELLED и REFUNDED терминальны.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:  {OrderStatusDisputed},
	OrderStatusDisputed:   {OrderStatusCompleted, OrderStatusRefunded},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// IsTerminal сообщает, возможны ли дальнейшие переходы из статуса.
func (s OrderStatus) IsTerminal() bool {
	allowed, ok := orderTransitions[s]
	return ok && len(allowed) == 0
}

func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	allowed, ok := orderTransitions[s]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

// ValidateTransition возвращает типизированную ошибку, если переход запрещён.
func (s OrderStatus) ValidateTransition(newStatus OrderStatus) error {
	if !newStatus.IsValid() {
		return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("некорректный статус заказа: %s", newStatus))
	}
	if !s.CanTransitionTo(newStatus) {
		return apperror.New(apperror.ErrCodeInvalidTransition,
			fmt.Sprintf("переход заказа из %s в %s запрещён", s, newStatus))
	}
	return nil
}

// AllStatuses возвращает список всех статусов заказа.
func AllStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusDisputed,
		OrderStatusRefunded,
	}
}

func NewOrderStatus(status string) (OrderStatus, error) {
	s := OrderStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус заказа")
	}
	return s, nil
}
