package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/models"
)

// Dispatcher — best-effort доставка уведомлений. Ошибки логируются и
// проглатываются: падение уведомления никогда не откатывает родительскую
// операцию и не возвращается вызывающему.
type Dispatcher interface {
	NotifyOrderStatus(ctx context.Context, order *models.Order, newStatus string)
	NotifyMessage(ctx context.Context, text string)
}

// Sender — один канал доставки (Telegram, SMS).
type Sender interface {
	Send(ctx context.Context, text string) error
	Name() string
}

// MultiDispatcher рассылает во все настроенные каналы с ограниченным
// таймаутом на каждый.
type MultiDispatcher struct {
	senders []Sender
	timeout time.Duration
}

func NewMultiDispatcher(timeout time.Duration, senders ...Sender) *MultiDispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MultiDispatcher{senders: senders, timeout: timeout}
}

func (d *MultiDispatcher) NotifyOrderStatus(ctx context.Context, order *models.Order, newStatus string) {
	text := fmt.Sprintf("Заказ #%s: статус изменён на %s, сумма %.2f ₽",
		order.ID, newStatus, float64(order.Amount)/100)
	d.NotifyMessage(ctx, text)
}

func (d *MultiDispatcher) NotifyMessage(ctx context.Context, text string) {
	for _, sender := range d.senders {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		if err := sender.Send(sendCtx, text); err != nil {
			logger.WithComponent("notify").WithField("channel", sender.Name()).
				Warnf("не удалось отправить уведомление: %v", err)
		}
		cancel()
	}
}

// CompositeDispatcher объединяет несколько диспетчеров: внешние каналы и
// WebSocket доставку пользователю.
type CompositeDispatcher struct {
	dispatchers []Dispatcher
}

func NewCompositeDispatcher(dispatchers ...Dispatcher) *CompositeDispatcher {
	return &CompositeDispatcher{dispatchers: dispatchers}
}

func (d *CompositeDispatcher) NotifyOrderStatus(ctx context.Context, order *models.Order, newStatus string) {
	for _, dispatcher := range d.dispatchers {
		dispatcher.NotifyOrderStatus(ctx, order, newStatus)
	}
}

func (d *CompositeDispatcher) NotifyMessage(ctx context.Context, text string) {
	for _, dispatcher := range d.dispatchers {
		dispatcher.NotifyMessage(ctx, text)
	}
}

// NopDispatcher используется в тестах и когда каналы не настроены.
type NopDispatcher struct{}

func (NopDispatcher) NotifyOrderStatus(context.Context, *models.Order, string) {}
func (NopDispatcher) NotifyMessage(context.Context, string)                    {}
