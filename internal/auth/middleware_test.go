package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/waconsole/waconsole/internal/apperr"
	"github.com/waconsole/waconsole/internal/models"
	"github.com/waconsole/waconsole/internal/tenant"
)

type fakeStore struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*models.User
	tenants map[uuid.UUID]*models.Tenant
	groups  map[uuid.UUID]*models.UserGroup
	touched []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[uuid.UUID]*models.User{},
		tenants: map[uuid.UUID]*models.Tenant{},
		groups:  map[uuid.UUID]*models.UserGroup{},
	}
}

func (f *fakeStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, apperr.New(apperr.KindNotFound, "user not found")
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	if t, ok := f.tenants[id]; ok {
		return t, nil
	}
	return nil, apperr.New(apperr.KindNotFound, "tenant not found")
}

func (f *fakeStore) GetGroupByID(_ context.Context, id uuid.UUID) (*models.UserGroup, error) {
	if g, ok := f.groups[id]; ok {
		return g, nil
	}
	return nil, apperr.New(apperr.KindNotFound, "group not found")
}

func (f *fakeStore) TouchLastSeen(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, userID)
	return nil
}

func (f *fakeStore) touchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.touched)
}

func seedIdentity(store *fakeStore) *models.User {
	tenantID := uuid.New()
	groupID := uuid.New()
	u := &models.User{
		ID:       uuid.New(),
		TenantID: tenantID,
		GroupID:  groupID,
		Email:    "ops@example.com",
		IsActive: true,
	}
	store.users[u.ID] = u
	store.tenants[tenantID] = &models.Tenant{ID: tenantID, Name: "acme", IsActive: true}
	store.groups[groupID] = &models.UserGroup{
		ID: groupID, TenantID: tenantID, GroupType: models.GroupTypeAdmin, IsActive: true,
	}
	return u
}

func authRequest(t *testing.T, mw *JWTMiddleware, token string) (*httptest.ResponseRecorder, context.Context) {
	t.Helper()

	var seen context.Context
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context()
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func TestAuthenticateValidToken(t *testing.T) {
	store := newFakeStore()
	u := seedIdentity(store)
	tokens := NewTokenManager("test-secret", 15*time.Minute, time.Hour)
	mw := NewJWTMiddleware(tokens, store)

	pair, err := tokens.IssuePair(u)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	rec, ctx := authRequest(t, mw, pair.AccessToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if got := tenant.UserFromContext(ctx); got == nil || got.ID != u.ID {
		t.Error("user missing from context")
	}
	if got := tenant.FromContext(ctx); got == nil || got.ID != u.TenantID {
		t.Error("tenant missing from context")
	}
	if got := tenant.GroupFromContext(ctx); got == nil || got.ID != u.GroupID {
		t.Error("group missing from context")
	}
	if claims := ClaimsFromContext(ctx); claims == nil || claims.Subject != u.ID.String() {
		t.Error("claims missing from context")
	}

	// Last-seen touch runs on its own goroutine.
	deadline := time.Now().Add(time.Second)
	for store.touchCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.touchCount() == 0 {
		t.Error("last-seen never touched")
	}
}

func TestAuthenticateMissingToken(t *testing.T) {
	store := newFakeStore()
	seedIdentity(store)
	mw := NewJWTMiddleware(NewTokenManager("test-secret", 15*time.Minute, time.Hour), store)

	rec, _ := authRequest(t, mw, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticateRejectsRefreshToken(t *testing.T) {
	store := newFakeStore()
	u := seedIdentity(store)
	tokens := NewTokenManager("test-secret", 15*time.Minute, time.Hour)
	mw := NewJWTMiddleware(tokens, store)

	pair, err := tokens.IssuePair(u)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	rec, _ := authRequest(t, mw, pair.RefreshToken)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticateRejectsDisabledIdentities(t *testing.T) {
	tokens := NewTokenManager("test-secret", 15*time.Minute, time.Hour)

	cases := []struct {
		name   string
		mutate func(*fakeStore, *models.User)
	}{
		{"inactive user", func(s *fakeStore, u *models.User) { u.IsActive = false }},
		{"deleted user", func(s *fakeStore, u *models.User) { u.IsDeleted = true }},
		{"inactive tenant", func(s *fakeStore, u *models.User) { s.tenants[u.TenantID].IsActive = false }},
		{"deleted tenant", func(s *fakeStore, u *models.User) { s.tenants[u.TenantID].IsDeleted = true }},
		{"inactive group", func(s *fakeStore, u *models.User) { s.groups[u.GroupID].IsActive = false }},
		{"missing user", func(s *fakeStore, u *models.User) { delete(s.users, u.ID) }},
		{"group from another tenant", func(s *fakeStore, u *models.User) {
			s.groups[u.GroupID].TenantID = uuid.New()
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			u := seedIdentity(store)
			pair, err := tokens.IssuePair(u)
			if err != nil {
				t.Fatalf("IssuePair: %v", err)
			}

			tc.mutate(store, u)

			mw := NewJWTMiddleware(tokens, store)
			rec, _ := authRequest(t, mw, pair.AccessToken)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRequireCapability(t *testing.T) {
	handler := RequireCapability(CapUsersCreate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// No group in context.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/users", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("no group: status = %d, want 403", rec.Code)
	}

	// Viewer lacks the capability.
	viewer := &models.UserGroup{GroupType: models.GroupTypeViewer}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", nil)
	req = req.WithContext(tenant.WithGroup(req.Context(), viewer))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer: status = %d, want 403", rec.Code)
	}

	// Admin passes.
	admin := &models.UserGroup{GroupType: models.GroupTypeAdmin}
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users", nil)
	req = req.WithContext(tenant.WithGroup(req.Context(), admin))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin: status = %d, want 200", rec.Code)
	}
}
