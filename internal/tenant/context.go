package tenant

import (
	"context"

	"github.com/google/uuid"

	"github.com/waconsole/waconsole/internal/models"
)

type contextKey string

const (
	tenantKey contextKey = "tenant"
	userKey   contextKey = "user"
	groupKey  contextKey = "group"
)

func WithTenant(ctx context.Context, t *models.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

func FromContext(ctx context.Context) *models.Tenant {
	t, _ := ctx.Value(tenantKey).(*models.Tenant)
	return t
}

func IDFromContext(ctx context.Context) uuid.UUID {
	if t := FromContext(ctx); t != nil {
		return t.ID
	}
	return uuid.Nil
}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

func WithGroup(ctx context.Context, g *models.UserGroup) context.Context {
	return context.WithValue(ctx, groupKey, g)
}

func GroupFromContext(ctx context.Context) *models.UserGroup {
	g, _ := ctx.Value(groupKey).(*models.UserGroup)
	return g
}
