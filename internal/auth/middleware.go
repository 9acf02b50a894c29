package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/waconsole/waconsole/internal/models"
	"github.com/waconsole/waconsole/internal/tenant"
)

// IdentityStore is the slice of tenant.Service the middleware needs to
// re-resolve the identities named by a token.
type IdentityStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetGroupByID(ctx context.Context, id uuid.UUID) (*models.UserGroup, error)
	TouchLastSeen(ctx context.Context, userID uuid.UUID) error
}

type JWTMiddleware struct {
	tokens *TokenManager
	store  IdentityStore
}

func NewJWTMiddleware(tokens *TokenManager, store IdentityStore) *JWTMiddleware {
	return &JWTMiddleware{tokens: tokens, store: store}
}

// Authenticate validates the bearer token and reloads user, tenant, and
// group from storage. Only the ids embedded in the token are trusted;
// anything missing, inactive, or soft-deleted rejects the request.
func (m *JWTMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := m.tokens.Parse(tokenStr, TokenAccess)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid user ID in token")
			return
		}

		ctx := r.Context()

		user, err := m.store.GetUserByID(ctx, userID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "user not found")
			return
		}
		if !user.IsActive || user.IsDeleted {
			writeError(w, http.StatusUnauthorized, "user disabled")
			return
		}

		t, err := m.store.GetByID(ctx, user.TenantID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "tenant not found")
			return
		}
		if !t.IsActive || t.IsDeleted {
			writeError(w, http.StatusUnauthorized, "tenant disabled")
			return
		}

		group, err := m.store.GetGroupByID(ctx, user.GroupID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "group not found")
			return
		}
		if !group.IsActive || group.IsDeleted || group.TenantID != user.TenantID {
			writeError(w, http.StatusUnauthorized, "group disabled")
			return
		}

		// Activity tracking is fire-and-forget: the token check itself
		// never mutates state, and a failed touch never fails a request.
		go func(id uuid.UUID) {
			touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.store.TouchLastSeen(touchCtx, id); err != nil {
				slog.Debug("last-seen touch failed", "user_id", id, "error", err)
			}
		}(user.ID)

		ctx = tenant.WithTenant(ctx, t)
		ctx = tenant.WithUser(ctx, user)
		ctx = tenant.WithGroup(ctx, group)
		ctx = context.WithValue(ctx, claimsKey, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type ctxKey string

const claimsKey ctxKey = "claims"

func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
