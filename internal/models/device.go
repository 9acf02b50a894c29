package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceStatus tracks the gateway session lifecycle. Transitions are
// driven by QR issuance, gateway status polls, and inbound webhook
// events; the guard lives in the device package.
type DeviceStatus string

const (
	DeviceDisconnected DeviceStatus = "disconnected"
	DeviceConnecting   DeviceStatus = "connecting"
	DeviceConnected    DeviceStatus = "connected"
)

func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceDisconnected, DeviceConnecting, DeviceConnected:
		return true
	}
	return false
}

type Device struct {
	ID            uuid.UUID    `json:"id" db:"id"`
	TenantID      uuid.UUID    `json:"tenant_id" db:"tenant_id"`
	OwnerID       uuid.UUID    `json:"owner_id" db:"owner_id"`
	SessionID     string       `json:"session_id" db:"session_id"`
	DisplayName   string       `json:"display_name" db:"display_name"`
	Status        DeviceStatus `json:"status" db:"status"`
	SentCount     int64        `json:"sent_count" db:"sent_count"`
	ReceivedCount int64        `json:"received_count" db:"received_count"`
	IsActive      bool         `json:"is_active" db:"is_active"`
	IsDeleted     bool         `json:"-" db:"is_deleted"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}
