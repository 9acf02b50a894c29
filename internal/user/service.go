package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waconsole/waconsole/internal/apperr"
	"github.com/waconsole/waconsole/internal/auth"
	"github.com/waconsole/waconsole/internal/models"
	"github.com/waconsole/waconsole/internal/tenant"
)

type Service struct {
	db      *pgxpool.Pool
	tenants *tenant.Service
}

func NewService(db *pgxpool.Pool, tenants *tenant.Service) *Service {
	return &Service{db: db, tenants: tenants}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	tenantID := tenant.IDFromContext(ctx)
	u, err := tenant.ScanUser(s.db.QueryRow(ctx,
		`SELECT `+tenant.UserColumns()+` FROM users
		 WHERE id = $1 AND tenant_id = $2 AND is_deleted = false`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	tenantID := tenant.IDFromContext(ctx)
	rows, err := s.db.Query(ctx,
		`SELECT `+tenant.UserColumns()+` FROM users
		 WHERE tenant_id = $1 AND is_deleted = false
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := tenant.ScanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, nil
}

type CreateRequest struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	FullName string    `json:"full_name"`
	GroupID  uuid.UUID `json:"group_id"`
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.User, error) {
	tenantID := tenant.IDFromContext(ctx)

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.New(apperr.KindInvalid, "invalid email address")
	}

	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	group, err := s.tenants.GetGroupByID(ctx, req.GroupID)
	if err != nil {
		return nil, apperr.New(apperr.KindInvalid, "unknown group")
	}
	// A user's group must live in the user's tenant.
	if group.TenantID != tenantID {
		return nil, apperr.New(apperr.KindInvalid, "group belongs to another tenant")
	}

	var taken bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE tenant_id = $1 AND email = $2 AND is_deleted = false)`,
		tenantID, email,
	).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, apperr.New(apperr.KindConflict, "email already registered")
	}

	u, err := tenant.ScanUser(s.db.QueryRow(ctx,
		`INSERT INTO users (tenant_id, group_id, email, password_hash, full_name)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+tenant.UserColumns(),
		tenantID, group.ID, email, hash, req.FullName))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

type UpdateRequest struct {
	FullName *string    `json:"full_name,omitempty"`
	GroupID  *uuid.UUID `json:"group_id,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*models.User, error) {
	tenantID := tenant.IDFromContext(ctx)

	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		u.FullName = *req.FullName
	}
	if req.GroupID != nil {
		group, err := s.tenants.GetGroupByID(ctx, *req.GroupID)
		if err != nil {
			return nil, apperr.New(apperr.KindInvalid, "unknown group")
		}
		if group.TenantID != tenantID {
			return nil, apperr.New(apperr.KindInvalid, "group belongs to another tenant")
		}
		u.GroupID = group.ID
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}

	u, err = tenant.ScanUser(s.db.QueryRow(ctx,
		`UPDATE users SET full_name = $1, group_id = $2, is_active = $3, updated_at = now()
		 WHERE id = $4 AND tenant_id = $5
		 RETURNING `+tenant.UserColumns(),
		u.FullName, u.GroupID, u.IsActive, id, tenantID))
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// Delete soft-deletes: the row stays, every read path filters it out.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID := tenant.IDFromContext(ctx)
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET is_deleted = true, is_active = false, updated_at = now()
		 WHERE id = $1 AND tenant_id = $2 AND is_deleted = false`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "user not found")
	}
	return nil
}
