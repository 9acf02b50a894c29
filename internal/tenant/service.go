package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waconsole/waconsole/internal/apperr"
	"github.com/waconsole/waconsole/internal/models"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx so the
// resolve-or-create helpers can run inside the registration transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

const tenantColumns = "id, name, settings, is_active, is_deleted, created_at, updated_at"

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Settings, &t.IsActive, &t.IsDeleted, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	t, err := scanTenant(s.db.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE id = $1 AND is_deleted = false", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "tenant not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

// ResolveOrCreateTenant returns the first active tenant, creating one
// with a placeholder name when none exists yet. Registration runs this
// inside its transaction so a failed user insert leaves no orphan.
func (s *Service) ResolveOrCreateTenant(ctx context.Context, q Querier, name string) (*models.Tenant, error) {
	t, err := scanTenant(q.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants
		 WHERE is_active = true AND is_deleted = false
		 ORDER BY created_at LIMIT 1`))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("resolve tenant: %w", err)
	}

	if name == "" {
		name = "Default Tenant"
	}
	t, err = scanTenant(q.QueryRow(ctx,
		`INSERT INTO tenants (name, settings) VALUES ($1, '{}')
		 RETURNING `+tenantColumns, name))
	if err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return t, nil
}

const groupColumns = "id, tenant_id, name, group_type, permission_overrides, is_active, is_deleted, created_at, updated_at"

func scanGroup(row pgx.Row) (*models.UserGroup, error) {
	var g models.UserGroup
	err := row.Scan(&g.ID, &g.TenantID, &g.Name, &g.GroupType, &g.Overrides,
		&g.IsActive, &g.IsDeleted, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Service) GetGroupByID(ctx context.Context, id uuid.UUID) (*models.UserGroup, error) {
	g, err := scanGroup(s.db.QueryRow(ctx,
		"SELECT "+groupColumns+" FROM user_groups WHERE id = $1 AND is_deleted = false", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "group not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// ResolveOrCreateGroup returns the first active group in the tenant,
// creating a default admin group when the tenant has none. The first
// registered user must be able to administer the tenant.
func (s *Service) ResolveOrCreateGroup(ctx context.Context, q Querier, tenantID uuid.UUID) (*models.UserGroup, error) {
	g, err := scanGroup(q.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM user_groups
		 WHERE tenant_id = $1 AND is_active = true AND is_deleted = false
		 ORDER BY created_at LIMIT 1`, tenantID))
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("resolve group: %w", err)
	}

	g, err = scanGroup(q.QueryRow(ctx,
		`INSERT INTO user_groups (tenant_id, name, group_type, permission_overrides)
		 VALUES ($1, 'Administrators', $2, '{}')
		 RETURNING `+groupColumns, tenantID, models.GroupTypeAdmin))
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return g, nil
}

const userColumns = `id, tenant_id, group_id, email, password_hash, full_name,
	is_active, is_deleted, last_login_at, last_seen_at, created_at, updated_at`

func ScanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.TenantID, &u.GroupID, &u.Email, &u.PasswordHash, &u.FullName,
		&u.IsActive, &u.IsDeleted, &u.LastLoginAt, &u.LastSeenAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := ScanUser(s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1 AND is_deleted = false", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// FindUsersByEmail returns every live user carrying the email, oldest
// first. Email uniqueness is per tenant, so several rows can match.
func (s *Service) FindUsersByEmail(ctx context.Context, email string) ([]models.User, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE email = $1 AND is_deleted = false
		 ORDER BY created_at`, email)
	if err != nil {
		return nil, fmt.Errorf("find users by email: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := ScanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, nil
}

// RecordLogin stamps a successful credential check.
func (s *Service) RecordLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := s.db.Exec(ctx,
		"UPDATE users SET last_login_at = $1 WHERE id = $2", at, userID)
	return err
}

// TouchLastSeen records user activity outside the validation path.
func (s *Service) TouchLastSeen(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		"UPDATE users SET last_seen_at = $1 WHERE id = $2", time.Now(), userID)
	return err
}

// UserColumns exposes the canonical users column list for services that
// select user rows with their own filters.
func UserColumns() string { return userColumns }
