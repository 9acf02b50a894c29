package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waconsole/waconsole/internal/apperr"
	"github.com/waconsole/waconsole/internal/cache"
	"github.com/waconsole/waconsole/internal/models"
	"github.com/waconsole/waconsole/internal/tenant"
)

const denylistPrefix = "auth:denylist:"

// Directory is the identity surface the credential flows need. The
// tenant service implements it in production.
type Directory interface {
	ResolveOrCreateTenant(ctx context.Context, q tenant.Querier, name string) (*models.Tenant, error)
	ResolveOrCreateGroup(ctx context.Context, q tenant.Querier, tenantID uuid.UUID) (*models.UserGroup, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetGroupByID(ctx context.Context, id uuid.UUID) (*models.UserGroup, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUsersByEmail(ctx context.Context, email string) ([]models.User, error)
	RecordLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// Service implements the credential flows: register, login, refresh,
// logout, and the profile/password mutations behind /auth.
type Service struct {
	db      *pgxpool.Pool
	tenants Directory
	tokens  *TokenManager
	cache   *cache.Cache
}

func NewService(db *pgxpool.Pool, tenants Directory, tokens *TokenManager, c *cache.Cache) *Service {
	return &Service{db: db, tenants: tenants, tokens: tokens, cache: c}
}

type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"full_name"`
	TenantName string `json:"tenant_name,omitempty"`
}

// Register creates tenant, group, and user atomically. Resolving the
// tenant lazily means the first registration bootstraps the instance
// without pre-provisioning.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, *TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, apperr.New(apperr.KindInvalid, "invalid email address")
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := s.tenants.ResolveOrCreateTenant(ctx, tx, req.TenantName)
	if err != nil {
		return nil, nil, err
	}

	group, err := s.tenants.ResolveOrCreateGroup(ctx, tx, t.ID)
	if err != nil {
		return nil, nil, err
	}

	var taken bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE tenant_id = $1 AND email = $2 AND is_deleted = false)`,
		t.ID, email,
	).Scan(&taken)
	if err != nil {
		return nil, nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, nil, apperr.New(apperr.KindConflict, "email already registered")
	}

	user, err := tenant.ScanUser(tx.QueryRow(ctx,
		`INSERT INTO users (tenant_id, group_id, email, password_hash, full_name)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+tenant.UserColumns(),
		t.ID, group.ID, email, hash, req.FullName))
	if err != nil {
		return nil, nil, fmt.Errorf("insert user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user registered", "user_id", user.ID, "tenant_id", t.ID)
	return user, pair, nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates an email/password pair. Emails are unique per
// tenant, not globally, so every candidate row is checked in creation
// order and the password picks the account.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*models.User, *TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	candidates, err := s.tenants.FindUsersByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("find user: %w", err)
	}

	var user *models.User
	for i := range candidates {
		c := &candidates[i]
		if c.IsActive && CheckPassword(c.PasswordHash, req.Password) {
			user = c
			break
		}
	}
	if user == nil {
		return nil, nil, apperr.New(apperr.KindUnauthorized, "invalid credentials")
	}

	t, err := s.tenants.GetByID(ctx, user.TenantID)
	if err != nil || !t.IsActive {
		return nil, nil, apperr.New(apperr.KindUnauthorized, "tenant disabled")
	}

	group, err := s.tenants.GetGroupByID(ctx, user.GroupID)
	if err != nil || !group.IsActive {
		return nil, nil, apperr.New(apperr.KindUnauthorized, "group disabled")
	}

	now := time.Now()
	if err := s.tenants.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, nil, fmt.Errorf("record login time: %w", err)
	}
	user.LastLoginAt = &now

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh rotates a token pair. The refresh token must verify, must not
// be denylisted, and its user must still exist and be active.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken, TokenRefresh)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		revoked, err := s.cache.Exists(ctx, denylistPrefix+claims.ID)
		if err != nil {
			slog.Warn("denylist check failed", "error", err)
		} else if revoked {
			return nil, apperr.New(apperr.KindUnauthorized, "token revoked")
		}
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperr.New(apperr.KindUnauthorized, "invalid token")
	}

	user, err := s.tenants.GetUserByID(ctx, userID)
	if err != nil {
		return nil, apperr.New(apperr.KindUnauthorized, "invalid token")
	}
	if !user.IsActive {
		return nil, apperr.New(apperr.KindUnauthorized, "user disabled")
	}

	return s.tokens.IssuePair(user)
}

// Logout denylists the refresh token for its remaining lifetime. Access
// tokens simply age out.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.Parse(refreshToken, TokenRefresh)
	if err != nil {
		return err
	}
	if s.cache == nil || claims.ExpiresAt == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return s.cache.Set(ctx, denylistPrefix+claims.ID, true, ttl)
}

type UpdateProfileRequest struct {
	FullName string `json:"full_name"`
}

func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*models.User, error) {
	user, err := tenant.ScanUser(s.db.QueryRow(ctx,
		`UPDATE users SET full_name = $1, updated_at = now()
		 WHERE id = $2 AND is_deleted = false
		 RETURNING `+tenant.UserColumns(),
		req.FullName, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error {
	if err := ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	user, err := s.tenants.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return apperr.New(apperr.KindUnauthorized, "current password is incorrect")
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		"UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2", hash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
