package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

func TestOrderStatus_AllowedTransitions(t *testing.T) {
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusPaid))
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusCancelled))
	assert.True(t, OrderStatusPaid.CanTransitionTo(OrderStatusProcessing))
	assert.True(t, OrderStatusPaid.CanTransitionTo(OrderStatusCancelled))
	assert.True(t, OrderStatusProcessing.CanTransitionTo(OrderStatusCompleted))
	assert.True(t, OrderStatusProcessing.CanTransitionTo(OrderStatusCancelled))
	assert.True(t, OrderStatusCompleted.CanTransitionTo(OrderStatusDisputed))
	assert.True(t, OrderStatusDisputed.CanTransitionTo(OrderStatusCompleted))
	assert.True(t, OrderStatusDisputed.CanTransitionTo(OrderStatusRefunded))
}

func TestOrderStatus_TableIsExhaustive(t *testing.T) {
	// Всё, что не разрешено явно, должно быть запрещено.
	allowed := map[OrderStatus]map[OrderStatus]bool{
		OrderStatusPending:    {OrderStatusPaid: true, OrderStatusCancelled: true},
		OrderStatusPaid:       {OrderStatusProcessing: true, OrderStatusCancelled: true},
		OrderStatusProcessing: {OrderStatusCompleted: true, OrderStatusCancelled: true},
		OrderStatusCompleted:  {OrderStatusDisputed: true},
		OrderStatusDisputed:   {OrderStatusCompleted: true, OrderStatusRefunded: true},
		OrderStatusCancelled:  {},
		OrderStatusRefunded:   {},
	}

	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			got := from.CanTransitionTo(to)
			assert.Equal(t, allowed[from][to], got, "%s -> %s", from, to)

			err := from.ValidateTransition(to)
			if allowed[from][to] {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.Error(t, err, "%s -> %s", from, to)
				assert.True(t, apperror.IsInvalidTransition(err), "%s -> %s", from, to)
			}
		}
	}
}

func TestOrderStatus_TerminalStates(t *testing.T) {
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusRefunded.IsTerminal())
	assert.False(t, OrderStatusCompleted.IsTerminal())
	assert.False(t, OrderStatusDisputed.IsTerminal())

	assert.False(t, OrderStatusCancelled.CanTransitionTo(OrderStatusPaid))
	assert.False(t, OrderStatusRefunded.CanTransitionTo(OrderStatusPending))
}

func TestNewOrderStatus(t *testing.T) {
	s, err := NewOrderStatus("PAID")
	assert.NoError(t, err)
	assert.Equal(t, OrderStatusPaid, s)

	_, err = NewOrderStatus("SHIPPED")
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}
