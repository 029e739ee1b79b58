package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DisputeStatusOpen     = "OPEN"
	DisputeStatusResolved = "RESOLVED"
)

// Действия администратора при разрешении спора.
const (
	DisputeActionRefund        = "REFUND"
	DisputeActionReject        = "REJECT"
	DisputeActionPartialRefund = "PARTIAL_REFUND"
)

// Dispute — спор по заказу. На заказ может существовать не более одного
// открытого спора. Споры создаёт покупатель, разрешает администратор;
// записи никогда не удаляются.
type Dispute struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	OrderID     uuid.UUID  `db:"order_id" json:"order_id"`
	CreatedByID uuid.UUID  `db:"created_by_id" json:"created_by_id"`
	Reason      string     `db:"reason" json:"reason"`
	Description string     `db:"description" json:"description"`
	Status      string     `db:"status" json:"status"`
	Resolution  *string    `db:"resolution" json:"resolution,omitempty"`
	Action      *string    `db:"action" json:"action,omitempty"`
	ResolvedBy  *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// IsValidDisputeAction проверяет действие разрешения спора.
func IsValidDisputeAction(action string) bool {
	switch action {
	case DisputeActionRefund, DisputeActionReject, DisputeActionPartialRefund:
		return true
	}
	return false
}
