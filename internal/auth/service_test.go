package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/waconsole/waconsole/internal/apperr"
	"github.com/waconsole/waconsole/internal/models"
	"github.com/waconsole/waconsole/internal/tenant"
)

type fakeDirectory struct {
	users   []models.User
	tenants map[uuid.UUID]*models.Tenant
	groups  map[uuid.UUID]*models.UserGroup
	logins  []uuid.UUID
}

func (f *fakeDirectory) ResolveOrCreateTenant(ctx context.Context, q tenant.Querier, name string) (*models.Tenant, error) {
	return nil, apperr.New(apperr.KindInternal, "not supported")
}

func (f *fakeDirectory) ResolveOrCreateGroup(ctx context.Context, q tenant.Querier, tenantID uuid.UUID) (*models.UserGroup, error) {
	return nil, apperr.New(apperr.KindInternal, "not supported")
}

func (f *fakeDirectory) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if t, ok := f.tenants[id]; ok {
		return t, nil
	}
	return nil, apperr.New(apperr.KindNotFound, "tenant not found")
}

func (f *fakeDirectory) GetGroupByID(ctx context.Context, id uuid.UUID) (*models.UserGroup, error) {
	if g, ok := f.groups[id]; ok {
		return g, nil
	}
	return nil, apperr.New(apperr.KindNotFound, "group not found")
}

func (f *fakeDirectory) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for i := range f.users {
		if f.users[i].ID == id && !f.users[i].IsDeleted {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, apperr.New(apperr.KindNotFound, "user not found")
}

func (f *fakeDirectory) FindUsersByEmail(ctx context.Context, email string) ([]models.User, error) {
	var out []models.User
	for _, u := range f.users {
		if u.Email == email && !u.IsDeleted {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeDirectory) RecordLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	f.logins = append(f.logins, userID)
	return nil
}

func (f *fakeDirectory) addIdentity(t *testing.T, email, password string) models.User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	tenantID, groupID := uuid.New(), uuid.New()
	u := models.User{
		ID:           uuid.New(),
		TenantID:     tenantID,
		GroupID:      groupID,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	f.users = append(f.users, u)
	f.tenants[tenantID] = &models.Tenant{ID: tenantID, Name: "t", IsActive: true}
	f.groups[groupID] = &models.UserGroup{
		ID: groupID, TenantID: tenantID, GroupType: models.GroupTypeAdmin, IsActive: true,
	}
	return u
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		tenants: map[uuid.UUID]*models.Tenant{},
		groups:  map[uuid.UUID]*models.UserGroup{},
	}
}

func newTestService(dir Directory) *Service {
	tokens := NewTokenManager("test-secret", 15*time.Minute, time.Hour)
	return NewService(nil, dir, tokens, nil)
}

func TestLoginIssuesPair(t *testing.T) {
	dir := newFakeDirectory()
	u := dir.addIdentity(t, "ops@example.com", "sup3r-secret")
	svc := newTestService(dir)

	user, pair, err := svc.Login(context.Background(), LoginRequest{
		Email:    "  Ops@Example.COM ",
		Password: "sup3r-secret",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != u.ID {
		t.Errorf("logged in as %s, want %s", user.ID, u.ID)
	}
	if user.LastLoginAt == nil {
		t.Error("LastLoginAt not set")
	}
	if len(dir.logins) != 1 || dir.logins[0] != u.ID {
		t.Errorf("recorded logins = %v, want [%s]", dir.logins, u.ID)
	}

	claims, err := svc.tokens.Parse(pair.AccessToken, TokenAccess)
	if err != nil {
		t.Fatalf("parse issued access token: %v", err)
	}
	if claims.Subject != u.ID.String() {
		t.Errorf("token subject = %q, want %q", claims.Subject, u.ID)
	}
	if claims.TenantID != u.TenantID.String() {
		t.Errorf("token tenant = %q, want %q", claims.TenantID, u.TenantID)
	}
	if _, err := svc.tokens.Parse(pair.RefreshToken, TokenRefresh); err != nil {
		t.Errorf("parse issued refresh token: %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "ops@example.com", "not-the-password"},
		{"unknown email", "nobody@example.com", "sup3r-secret"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := newFakeDirectory()
			dir.addIdentity(t, "ops@example.com", "sup3r-secret")
			svc := newTestService(dir)

			_, pair, err := svc.Login(context.Background(), LoginRequest{Email: tc.email, Password: tc.password})
			if err == nil {
				t.Fatal("Login succeeded, want error")
			}
			if apperr.KindOf(err) != apperr.KindUnauthorized {
				t.Errorf("error kind = %v, want KindUnauthorized", apperr.KindOf(err))
			}
			if pair != nil {
				t.Error("token pair issued for bad credentials")
			}
			if len(dir.logins) != 0 {
				t.Error("login recorded for bad credentials")
			}
		})
	}
}

func TestLoginRejectsDisabledIdentity(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(dir *fakeDirectory, u models.User)
	}{
		{"inactive user", func(dir *fakeDirectory, u models.User) {
			dir.users[0].IsActive = false
		}},
		{"disabled tenant", func(dir *fakeDirectory, u models.User) {
			dir.tenants[u.TenantID].IsActive = false
		}},
		{"disabled group", func(dir *fakeDirectory, u models.User) {
			dir.groups[u.GroupID].IsActive = false
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := newFakeDirectory()
			u := dir.addIdentity(t, "ops@example.com", "sup3r-secret")
			tc.mutate(dir, u)
			svc := newTestService(dir)

			_, pair, err := svc.Login(context.Background(), LoginRequest{
				Email:    "ops@example.com",
				Password: "sup3r-secret",
			})
			if err == nil {
				t.Fatal("Login succeeded, want error")
			}
			if apperr.KindOf(err) != apperr.KindUnauthorized {
				t.Errorf("error kind = %v, want KindUnauthorized", apperr.KindOf(err))
			}
			if pair != nil {
				t.Error("token pair issued for disabled identity")
			}
		})
	}
}

// The same email can exist once per tenant; the password decides which
// account logs in.
func TestLoginResolvesEmailAcrossTenants(t *testing.T) {
	dir := newFakeDirectory()
	first := dir.addIdentity(t, "ops@example.com", "first-password")
	second := dir.addIdentity(t, "ops@example.com", "second-password")

	svc := newTestService(dir)

	user, _, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ops@example.com",
		Password: "second-password",
	})
	if err != nil {
		t.Fatalf("Login for second tenant's user: %v", err)
	}
	if user.ID != second.ID {
		t.Errorf("logged in as %s, want %s", user.ID, second.ID)
	}

	user, _, err = svc.Login(context.Background(), LoginRequest{
		Email:    "ops@example.com",
		Password: "first-password",
	})
	if err != nil {
		t.Fatalf("Login for first tenant's user: %v", err)
	}
	if user.ID != first.ID {
		t.Errorf("logged in as %s, want %s", user.ID, first.ID)
	}
}

func TestRefreshRotatesPair(t *testing.T) {
	dir := newFakeDirectory()
	u := dir.addIdentity(t, "ops@example.com", "sup3r-secret")
	svc := newTestService(dir)

	pair, err := svc.tokens.IssuePair(&u)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	fresh, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := svc.tokens.Parse(fresh.AccessToken, TokenAccess); err != nil {
		t.Errorf("parse rotated access token: %v", err)
	}

	if _, err := svc.Refresh(context.Background(), pair.AccessToken); err == nil {
		t.Error("Refresh accepted an access token")
	}
}

func TestRefreshRejectsDisabledUser(t *testing.T) {
	dir := newFakeDirectory()
	u := dir.addIdentity(t, "ops@example.com", "sup3r-secret")
	svc := newTestService(dir)

	pair, err := svc.tokens.IssuePair(&u)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	dir.users[0].IsActive = false
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); err == nil {
		t.Error("Refresh succeeded for disabled user")
	}
}
