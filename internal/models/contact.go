package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Contact struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	TenantID  uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	Name      string          `json:"name" db:"name"`
	Phone     string          `json:"phone" db:"phone"`
	Metadata  json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	IsActive  bool            `json:"is_active" db:"is_active"`
	IsDeleted bool            `json:"-" db:"is_deleted"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
