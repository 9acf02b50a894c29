package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Tenant struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Settings  json.RawMessage `json:"settings" db:"settings"`
	IsActive  bool            `json:"is_active" db:"is_active"`
	IsDeleted bool            `json:"-" db:"is_deleted"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// GroupType is the fixed role enumeration. Default capabilities per
// type live in the auth package; a group may override individual
// capabilities through its Overrides map.
type GroupType string

const (
	GroupTypeAdmin    GroupType = "admin"
	GroupTypeOperator GroupType = "operator"
	GroupTypeViewer   GroupType = "viewer"
)

func (t GroupType) Valid() bool {
	switch t {
	case GroupTypeAdmin, GroupTypeOperator, GroupTypeViewer:
		return true
	}
	return false
}

type UserGroup struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	TenantID  uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	Name      string          `json:"name" db:"name"`
	GroupType GroupType       `json:"group_type" db:"group_type"`
	Overrides json.RawMessage `json:"permission_overrides" db:"permission_overrides"`
	IsActive  bool            `json:"is_active" db:"is_active"`
	IsDeleted bool            `json:"-" db:"is_deleted"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
