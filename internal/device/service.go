package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waconsole/waconsole/internal/apperr"
	"github.com/waconsole/waconsole/internal/cache"
	"github.com/waconsole/waconsole/internal/models"
	"github.com/waconsole/waconsole/internal/queue"
	"github.com/waconsole/waconsole/internal/tenant"
	"github.com/waconsole/waconsole/internal/waha"
	"github.com/waconsole/waconsole/internal/webhook"
)

const (
	qrCacheTTL    = 45 * time.Second
	syncFirstPoll = 10 * time.Second
)

type Service struct {
	db       *pgxpool.Pool
	gateway  *waha.Client
	cache    *cache.Cache
	jobs     *queue.Client
	webhooks *webhook.Service
}

func NewService(db *pgxpool.Pool, gateway *waha.Client, c *cache.Cache, jobs *queue.Client, webhooks *webhook.Service) *Service {
	return &Service{db: db, gateway: gateway, cache: c, jobs: jobs, webhooks: webhooks}
}

const deviceColumns = `id, tenant_id, owner_id, session_id, display_name, status,
	sent_count, received_count, is_active, is_deleted, created_at, updated_at`

func scanDevice(row pgx.Row) (*models.Device, error) {
	var d models.Device
	err := row.Scan(&d.ID, &d.TenantID, &d.OwnerID, &d.SessionID, &d.DisplayName, &d.Status,
		&d.SentCount, &d.ReceivedCount, &d.IsActive, &d.IsDeleted, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

type CreateRequest struct {
	DisplayName string `json:"display_name"`
}

// Create allocates a gateway session and persists the device in
// disconnected state; pairing happens later through the QR flow.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Device, error) {
	if strings.TrimSpace(req.DisplayName) == "" {
		return nil, apperr.New(apperr.KindInvalid, "display_name required")
	}

	tenantID := tenant.IDFromContext(ctx)
	user := tenant.UserFromContext(ctx)
	if user == nil {
		return nil, apperr.New(apperr.KindUnauthorized, "no user in context")
	}

	sessionName := "wa_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	session, err := s.gateway.CreateSession(ctx, sessionName)
	if err != nil {
		return nil, err
	}

	d, err := scanDevice(s.db.QueryRow(ctx,
		`INSERT INTO devices (tenant_id, owner_id, session_id, display_name, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+deviceColumns,
		tenantID, user.ID, session.Name, req.DisplayName, models.DeviceDisconnected))
	if err != nil {
		return nil, fmt.Errorf("insert device: %w", err)
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	tenantID := tenant.IDFromContext(ctx)
	d, err := scanDevice(s.db.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices
		 WHERE id = $1 AND tenant_id = $2 AND is_deleted = false`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "device not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Device, error) {
	tenantID := tenant.IDFromContext(ctx)
	rows, err := s.db.Query(ctx,
		`SELECT `+deviceColumns+` FROM devices
		 WHERE tenant_id = $1 AND is_deleted = false
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, nil
}

type QRResponse struct {
	Mimetype  string `json:"mimetype"`
	Data      string `json:"data"`
	ExpiresIn int64  `json:"expires_in"`
}

// QRCode fetches a pairing code from the gateway, caches it for its
// validity window, moves the device to connecting, and schedules the
// status-sync poll that will observe the scan.
func (s *Service) QRCode(ctx context.Context, id uuid.UUID) (*QRResponse, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.IsActive {
		return nil, apperr.New(apperr.KindInvalid, "device is not active")
	}
	if d.Status == models.DeviceConnected {
		return nil, apperr.New(apperr.KindInvalid, "device already connected")
	}

	cacheKey := "device:qr:" + d.ID.String()
	if s.cache != nil {
		var cached QRResponse
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	qr, err := s.gateway.QRCode(ctx, d.SessionID)
	if err != nil {
		return nil, err
	}

	resp := &QRResponse{
		Mimetype:  qr.Mimetype,
		Data:      qr.Data,
		ExpiresIn: int64(qrCacheTTL.Seconds()),
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, resp, qrCacheTTL); err != nil {
			slog.Warn("qr cache write failed", "device_id", d.ID, "error", err)
		}
	}

	if _, err := s.applyStatus(ctx, d, models.DeviceConnecting); err != nil {
		return nil, err
	}

	if s.jobs != nil {
		err := s.jobs.EnqueueDeviceSync(queue.DeviceSyncPayload{
			DeviceID: d.ID.String(),
			TenantID: d.TenantID.String(),
			Attempt:  1,
		}, syncFirstPoll)
		if err != nil {
			slog.Warn("device sync enqueue failed", "device_id", d.ID, "error", err)
		}
	}

	return resp, nil
}

// SyncStatus asks the gateway for the session state and persists the
// resulting transition. It backs the client-side status poll, so a
// report the guard refuses yields the current row rather than an error.
func (s *Service) SyncStatus(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.SessionStatus(ctx, d.SessionID)
	if err != nil {
		return nil, err
	}

	return s.applyStatus(ctx, d, observedStatus(d.Status, MapGatewayStatus(session.Status)))
}

// GetByTenant serves worker and inbound-webhook paths, which carry
// explicit tenant ids instead of request context.
func (s *Service) GetByTenant(ctx context.Context, tenantID, deviceID uuid.UUID) (*models.Device, error) {
	d, err := scanDevice(s.db.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices
		 WHERE id = $1 AND tenant_id = $2 AND is_deleted = false`, deviceID, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "device not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

// GetBySession resolves a device from the gateway session name. Only
// the inbound gateway-webhook path uses it; the caller authenticates
// with the shared gateway secret, not a tenant token.
func (s *Service) GetBySession(ctx context.Context, sessionID string) (*models.Device, error) {
	d, err := scanDevice(s.db.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices
		 WHERE session_id = $1 AND is_deleted = false`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "device not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get device by session: %w", err)
	}
	return d, nil
}

func (s *Service) ApplyStatusByID(ctx context.Context, tenantID, deviceID uuid.UUID, status models.DeviceStatus) (*models.Device, error) {
	d, err := s.GetByTenant(ctx, tenantID, deviceID)
	if err != nil {
		return nil, err
	}
	return s.applyStatus(ctx, d, status)
}

// SessionStatus exposes the raw gateway state for the sync worker.
func (s *Service) SessionStatus(ctx context.Context, d *models.Device) (models.DeviceStatus, error) {
	session, err := s.gateway.SessionStatus(ctx, d.SessionID)
	if err != nil {
		return "", err
	}
	return MapGatewayStatus(session.Status), nil
}

func (s *Service) applyStatus(ctx context.Context, d *models.Device, to models.DeviceStatus) (*models.Device, error) {
	if d.Status == to {
		return d, nil
	}
	if !CanTransition(d.Status, to) {
		return nil, apperr.Newf(apperr.KindInvalid, "cannot move device from %s to %s", d.Status, to)
	}

	updated, err := scanDevice(s.db.QueryRow(ctx,
		`UPDATE devices SET status = $1, updated_at = now()
		 WHERE id = $2 RETURNING `+deviceColumns,
		to, d.ID))
	if err != nil {
		return nil, fmt.Errorf("update device status: %w", err)
	}

	if s.webhooks != nil {
		switch to {
		case models.DeviceConnected:
			s.dispatch(ctx, updated, webhook.EventDeviceConnected)
		case models.DeviceDisconnected:
			s.dispatch(ctx, updated, webhook.EventDeviceDisconnected)
		}
	}

	slog.Info("device status changed", "device_id", d.ID, "from", d.Status, "to", to)
	return updated, nil
}

func (s *Service) dispatch(ctx context.Context, d *models.Device, event string) {
	if err := s.webhooks.Dispatch(ctx, d.TenantID, event, d); err != nil {
		slog.Warn("webhook dispatch failed", "event", event, "device_id", d.ID, "error", err)
	}
}

// Disconnect logs the session out at the gateway and marks the device
// disconnected.
func (s *Service) Disconnect(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.gateway.LogoutSession(ctx, d.SessionID); err != nil {
		return nil, err
	}
	return s.applyStatus(ctx, d, models.DeviceDisconnected)
}

// Delete soft-deletes the device. Session teardown at the gateway is
// best-effort; the row flip is what removes the device from the tenant.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.gateway.DeleteSession(ctx, d.SessionID); err != nil {
		slog.Warn("gateway session delete failed", "device_id", d.ID, "error", err)
	}

	_, err = s.db.Exec(ctx,
		`UPDATE devices SET is_deleted = true, is_active = false, status = $1, updated_at = now()
		 WHERE id = $2`, models.DeviceDisconnected, d.ID)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}

// IncrementSent bumps the sent counter after a successful gateway send.
func (s *Service) IncrementSent(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		"UPDATE devices SET sent_count = sent_count + 1, updated_at = now() WHERE id = $1", id)
	return err
}

// IncrementReceived records an inbound message observed via webhook.
func (s *Service) IncrementReceived(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		"UPDATE devices SET received_count = received_count + 1, updated_at = now() WHERE id = $1", id)
	return err
}
