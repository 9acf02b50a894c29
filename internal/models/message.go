package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageFailed    MessageStatus = "failed"
)

type Message struct {
	ID         uuid.UUID     `json:"id" db:"id"`
	TenantID   uuid.UUID     `json:"tenant_id" db:"tenant_id"`
	DeviceID   uuid.UUID     `json:"device_id" db:"device_id"`
	SenderID   uuid.UUID     `json:"sender_id" db:"sender_id"`
	Recipient  string        `json:"recipient" db:"recipient"`
	MsgType    string        `json:"msg_type" db:"msg_type"`
	Content    string        `json:"content" db:"content"`
	Status     MessageStatus `json:"status" db:"status"`
	ExternalID string        `json:"external_id,omitempty" db:"external_id"`
	IsDeleted  bool          `json:"-" db:"is_deleted"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" db:"updated_at"`
}
