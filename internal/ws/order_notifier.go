package ws

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/models"
)

// OrderNotifier доставляет события о заказах покупателю через WebSocket.
// Реализует notify.Dispatcher; широковещательные сообщения для персонала
// через WebSocket не идут.
type OrderNotifier struct {
	hub *Hub
}

func NewOrderNotifier(hub *Hub) *OrderNotifier {
	return &OrderNotifier{hub: hub}
}

func (n *OrderNotifier) NotifyOrderStatus(ctx context.Context, order *models.Order, newStatus string) {
	err := n.hub.BroadcastToUser(order.UserID, "order_status", map[string]interface{}{
		"order_id": order.ID,
		"status":   newStatus,
	})
	if err != nil {
		logger.WithComponent("ws").Errorf("не удалось отправить событие заказа %s: %v", order.ID, err)
	}
}

func (n *OrderNotifier) NotifyMessage(ctx context.Context, text string) {}

// NotificationServiceAdapter адаптирует NotificationService к интерфейсу
// NotificationSaver хаба.
type NotificationServiceAdapter struct {
	service interface {
		Publish(ctx context.Context, userID uuid.UUID, payload interface{}) (*models.Notification, error)
	}
}

func NewNotificationServiceAdapter(service interface {
	Publish(ctx context.Context, userID uuid.UUID, payload interface{}) (*models.Notification, error)
}) *NotificationServiceAdapter {
	return &NotificationServiceAdapter{service: service}
}

func (a *NotificationServiceAdapter) SaveNotification(ctx context.Context, userID uuid.UUID, event string, data interface{}) error {
	_, err := a.service.Publish(ctx, userID, map[string]interface{}{
		"event": event,
		"data":  data,
	})
	return err
}
