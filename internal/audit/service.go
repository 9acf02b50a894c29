// Package audit provides append-only action logging. Entries are
// best-effort: a failed insert is logged and never fails the request
// that triggered it.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waconsole/waconsole/internal/models"
	"github.com/waconsole/waconsole/internal/tenant"
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

type LogEntry struct {
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]interface{}
	IPAddress    string

	// TenantID/UserID override the context values for flows (login,
	// gateway callbacks) that run before or outside authentication.
	TenantID *uuid.UUID
	UserID   *uuid.UUID
}

func (s *Service) Log(ctx context.Context, entry LogEntry) error {
	tenantID := tenant.IDFromContext(ctx)
	if entry.TenantID != nil {
		tenantID = *entry.TenantID
	}

	userID := entry.UserID
	if userID == nil {
		if user := tenant.UserFromContext(ctx); user != nil {
			userID = &user.ID
		}
	}

	details, _ := json.Marshal(entry.Details)

	var ip *netip.Addr
	if entry.IPAddress != "" {
		parsed, err := netip.ParseAddr(entry.IPAddress)
		if err == nil {
			ip = &parsed
		}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_logs (tenant_id, user_id, action, resource_type, resource_id, details, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tenantID, userID, entry.Action, entry.ResourceType, entry.ResourceID, details, ip,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Record is Log with the failure swallowed, for call sites where audit
// must never affect the outcome.
func (s *Service) Record(ctx context.Context, entry LogEntry) {
	if err := s.Log(ctx, entry); err != nil {
		slog.Error("audit log failed", "action", entry.Action, "error", err)
	}
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	tenantID := tenant.IDFromContext(ctx)

	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, user_id, action, resource_type, resource_id, details, ip_address, created_at
		 FROM audit_logs WHERE tenant_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.TenantID, &l.UserID, &l.Action, &l.ResourceType,
			&l.ResourceID, &l.Details, &l.IPAddress, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}
