package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы сообщений поддержки.
const (
	SupportStatusNew     = "NEW"
	SupportStatusRead    = "READ"
	SupportStatusReplied = "REPLIED"
)

// Роль автора сообщения в диалоге поддержки.
const (
	SenderRoleClient = "CLIENT"
	SenderRoleAdmin  = "ADMIN"
)

// SupportMessage — сообщение в диалоге поддержки. Диалог двусторонний и
// привязан к клиенту через ClientID; авторство указывается явно через
// SenderID и SenderRole, а не выводится из того, кто записал строку.
type SupportMessage struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ClientID       uuid.UUID `db:"client_id" json:"client_id"`
	SenderID       uuid.UUID `db:"sender_id" json:"sender_id"`
	SenderRole     string    `db:"sender_role" json:"sender_role"`
	Subject        string    `db:"subject" json:"subject"`
	Message        string    `db:"message" json:"message"`
	Status         string    `db:"status" json:"status"`
	Attachment     *string   `db:"attachment" json:"attachment,omitempty"`
	AttachmentType *string   `db:"attachment_type" json:"attachment_type,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
