package group

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waconsole/waconsole/internal/apperr"
	"github.com/waconsole/waconsole/internal/models"
	"github.com/waconsole/waconsole/internal/tenant"
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

const groupColumns = `id, tenant_id, name, group_type, permission_overrides,
	is_active, is_deleted, created_at, updated_at`

func scanGroup(row pgx.Row) (*models.UserGroup, error) {
	var g models.UserGroup
	err := row.Scan(&g.ID, &g.TenantID, &g.Name, &g.GroupType, &g.Overrides,
		&g.IsActive, &g.IsDeleted, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.UserGroup, error) {
	tenantID := tenant.IDFromContext(ctx)
	g, err := scanGroup(s.db.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM user_groups
		 WHERE id = $1 AND tenant_id = $2 AND is_deleted = false`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "group not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.UserGroup, error) {
	tenantID := tenant.IDFromContext(ctx)
	rows, err := s.db.Query(ctx,
		`SELECT `+groupColumns+` FROM user_groups
		 WHERE tenant_id = $1 AND is_deleted = false
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []models.UserGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	return groups, nil
}

type CreateRequest struct {
	Name      string           `json:"name"`
	GroupType models.GroupType `json:"group_type"`
	Overrides map[string]bool  `json:"permission_overrides,omitempty"`
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.UserGroup, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperr.New(apperr.KindInvalid, "name required")
	}
	if !req.GroupType.Valid() {
		return nil, apperr.Newf(apperr.KindInvalid, "unknown group type %q", req.GroupType)
	}

	tenantID := tenant.IDFromContext(ctx)
	overrides, _ := json.Marshal(req.Overrides)
	if req.Overrides == nil {
		overrides = []byte("{}")
	}

	g, err := scanGroup(s.db.QueryRow(ctx,
		`INSERT INTO user_groups (tenant_id, name, group_type, permission_overrides)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+groupColumns,
		tenantID, req.Name, req.GroupType, overrides))
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	return g, nil
}

type UpdateRequest struct {
	Name      *string          `json:"name,omitempty"`
	Overrides *map[string]bool `json:"permission_overrides,omitempty"`
	IsActive  *bool            `json:"is_active,omitempty"`
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*models.UserGroup, error) {
	g, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		g.Name = *req.Name
	}
	if req.Overrides != nil {
		g.Overrides, _ = json.Marshal(*req.Overrides)
	}
	if req.IsActive != nil {
		g.IsActive = *req.IsActive
	}

	g, err = scanGroup(s.db.QueryRow(ctx,
		`UPDATE user_groups SET name = $1, permission_overrides = $2, is_active = $3, updated_at = now()
		 WHERE id = $4 AND tenant_id = $5
		 RETURNING `+groupColumns,
		g.Name, g.Overrides, g.IsActive, id, g.TenantID))
	if err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	return g, nil
}

// Delete soft-deletes a group. Groups that still have members are kept
// to avoid stranding their users.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID := tenant.IDFromContext(ctx)

	var members int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE group_id = $1 AND tenant_id = $2 AND is_deleted = false`,
		id, tenantID,
	).Scan(&members)
	if err != nil {
		return fmt.Errorf("count group members: %w", err)
	}
	if members > 0 {
		return apperr.New(apperr.KindConflict, "group still has members")
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE user_groups SET is_deleted = true, is_active = false, updated_at = now()
		 WHERE id = $1 AND tenant_id = $2 AND is_deleted = false`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "group not found")
	}
	return nil
}
