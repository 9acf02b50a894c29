package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waconsole/waconsole/internal/apperr"
	"github.com/waconsole/waconsole/internal/models"
	"github.com/waconsole/waconsole/internal/tenant"
	"github.com/waconsole/waconsole/internal/waha"
	"github.com/waconsole/waconsole/internal/webhook"
)

// DeviceDirectory is the slice of the device service Send depends on.
type DeviceDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Device, error)
	IncrementSent(ctx context.Context, id uuid.UUID) error
}

// Gateway is the outbound surface of the WAHA client used here.
type Gateway interface {
	SendText(ctx context.Context, session, chatID, text string) (*waha.SendResult, error)
}

type Service struct {
	db       *pgxpool.Pool
	gateway  Gateway
	devices  DeviceDirectory
	webhooks *webhook.Service
}

func NewService(db *pgxpool.Pool, gateway Gateway, devices DeviceDirectory, webhooks *webhook.Service) *Service {
	return &Service{db: db, gateway: gateway, devices: devices, webhooks: webhooks}
}

const messageColumns = `id, tenant_id, device_id, sender_id, recipient, msg_type, content,
	status, external_id, is_deleted, created_at, updated_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.TenantID, &m.DeviceID, &m.SenderID, &m.Recipient, &m.MsgType,
		&m.Content, &m.Status, &m.ExternalID, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type SendRequest struct {
	DeviceID  uuid.UUID `json:"device_id"`
	Recipient string    `json:"recipient"`
	Content   string    `json:"content"`
}

// Send validates the device entirely before touching the gateway: a
// missing device is not-found, an inactive or unconnected one is a
// validation error, and only then is the single best-effort gateway
// call made. The row is persisted with whatever status resulted.
func (s *Service) Send(ctx context.Context, req SendRequest) (*models.Message, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperr.New(apperr.KindInvalid, "content required")
	}
	chatID, err := ChatID(req.Recipient)
	if err != nil {
		return nil, err
	}

	d, err := s.devices.Get(ctx, req.DeviceID)
	if err != nil {
		return nil, err
	}
	if !d.IsActive {
		return nil, apperr.New(apperr.KindInvalid, "device is not active")
	}
	if d.Status != models.DeviceConnected {
		return nil, apperr.New(apperr.KindInvalid, "device is not connected")
	}

	user := tenant.UserFromContext(ctx)
	if user == nil {
		return nil, apperr.New(apperr.KindUnauthorized, "no user in context")
	}

	m, err := scanMessage(s.db.QueryRow(ctx,
		`INSERT INTO messages (tenant_id, device_id, sender_id, recipient, msg_type, content, status)
		 VALUES ($1, $2, $3, $4, 'text', $5, $6)
		 RETURNING `+messageColumns,
		d.TenantID, d.ID, user.ID, req.Recipient, req.Content, models.MessagePending))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	result, sendErr := s.gateway.SendText(ctx, d.SessionID, chatID, req.Content)
	if sendErr != nil {
		failed, err := s.finalize(ctx, m.ID, models.MessageFailed, "")
		if err != nil {
			slog.Error("failed to mark message failed", "message_id", m.ID, "error", err)
		} else {
			m = failed
		}
		s.dispatch(ctx, m, webhook.EventMessageFailed)
		return m, sendErr
	}

	m, err = s.finalize(ctx, m.ID, models.MessageSent, result.ID)
	if err != nil {
		return nil, err
	}

	if err := s.devices.IncrementSent(ctx, d.ID); err != nil {
		slog.Warn("sent counter update failed", "device_id", d.ID, "error", err)
	}
	s.dispatch(ctx, m, webhook.EventMessageSent)

	return m, nil
}

func (s *Service) finalize(ctx context.Context, id uuid.UUID, status models.MessageStatus, externalID string) (*models.Message, error) {
	m, err := scanMessage(s.db.QueryRow(ctx,
		`UPDATE messages SET status = $1, external_id = $2, updated_at = now()
		 WHERE id = $3 RETURNING `+messageColumns,
		status, externalID, id))
	if err != nil {
		return nil, fmt.Errorf("update message status: %w", err)
	}
	return m, nil
}

func (s *Service) dispatch(ctx context.Context, m *models.Message, event string) {
	if s.webhooks == nil || m == nil {
		return
	}
	if err := s.webhooks.Dispatch(ctx, m.TenantID, event, m); err != nil {
		slog.Warn("webhook dispatch failed", "event", event, "message_id", m.ID, "error", err)
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	tenantID := tenant.IDFromContext(ctx)
	m, err := scanMessage(s.db.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE id = $1 AND tenant_id = $2 AND is_deleted = false`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "message not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

type ListFilter struct {
	DeviceID *uuid.UUID
	Status   models.MessageStatus
	Limit    int
	Offset   int
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]models.Message, error) {
	tenantID := tenant.IDFromContext(ctx)

	query := `SELECT ` + messageColumns + ` FROM messages
		 WHERE tenant_id = $1 AND is_deleted = false`
	args := []any{tenantID}

	if f.DeviceID != nil {
		args = append(args, *f.DeviceID)
		query += fmt.Sprintf(" AND device_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	return messages, nil
}

// UpdateStatusByExternalID applies a delivery ack reported by the
// gateway webhook.
func (s *Service) UpdateStatusByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string, status models.MessageStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE messages SET status = $1, updated_at = now()
		 WHERE tenant_id = $2 AND external_id = $3 AND is_deleted = false`,
		status, tenantID, externalID)
	if err != nil {
		return fmt.Errorf("update message by external id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "message not found")
	}
	return nil
}

// ChatID normalizes a recipient phone number into the gateway chat id
// format: digits only, 8-15 of them, suffixed with "@c.us".
func ChatID(phone string) (string, error) {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		} else if r != '+' && r != ' ' && r != '-' && r != '(' && r != ')' {
			return "", apperr.New(apperr.KindInvalid, "invalid recipient phone number")
		}
	}
	n := digits.Len()
	if n < 8 || n > 15 {
		return "", apperr.New(apperr.KindInvalid, "invalid recipient phone number")
	}
	return digits.String() + "@c.us", nil
}
