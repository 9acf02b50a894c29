package contact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waconsole/waconsole/internal/apperr"
	"github.com/waconsole/waconsole/internal/models"
	"github.com/waconsole/waconsole/internal/tenant"
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

const contactColumns = `id, tenant_id, name, phone, metadata, is_active, is_deleted, created_at, updated_at`

func scanContact(row pgx.Row) (*models.Contact, error) {
	var c models.Contact
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Phone, &c.Metadata,
		&c.IsActive, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	tenantID := tenant.IDFromContext(ctx)
	c, err := scanContact(s.db.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE id = $1 AND tenant_id = $2 AND is_deleted = false`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "contact not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]models.Contact, error) {
	tenantID := tenant.IDFromContext(ctx)

	query := `SELECT ` + contactColumns + ` FROM contacts
		 WHERE tenant_id = $1 AND is_deleted = false`
	args := []any{tenantID}

	if search != "" {
		args = append(args, "%"+search+"%")
		query += fmt.Sprintf(" AND (name ILIKE $%d OR phone ILIKE $%d)", len(args), len(args))
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY name LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, *c)
	}
	return contacts, nil
}

type CreateRequest struct {
	Name     string         `json:"name"`
	Phone    string         `json:"phone"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Contact, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperr.New(apperr.KindInvalid, "name required")
	}
	if strings.TrimSpace(req.Phone) == "" {
		return nil, apperr.New(apperr.KindInvalid, "phone required")
	}

	tenantID := tenant.IDFromContext(ctx)
	metadata := marshalMetadata(req.Metadata)

	c, err := scanContact(s.db.QueryRow(ctx,
		`INSERT INTO contacts (tenant_id, name, phone, metadata)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+contactColumns,
		tenantID, req.Name, req.Phone, metadata))
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	return c, nil
}

type UpdateRequest struct {
	Name     *string         `json:"name,omitempty"`
	Phone    *string         `json:"phone,omitempty"`
	Metadata *map[string]any `json:"metadata,omitempty"`
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*models.Contact, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Phone != nil {
		c.Phone = *req.Phone
	}
	if req.Metadata != nil {
		c.Metadata = marshalMetadata(*req.Metadata)
	}

	c, err = scanContact(s.db.QueryRow(ctx,
		`UPDATE contacts SET name = $1, phone = $2, metadata = $3, updated_at = now()
		 WHERE id = $4 AND tenant_id = $5
		 RETURNING `+contactColumns,
		c.Name, c.Phone, c.Metadata, id, c.TenantID))
	if err != nil {
		return nil, fmt.Errorf("update contact: %w", err)
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID := tenant.IDFromContext(ctx)
	tag, err := s.db.Exec(ctx,
		`UPDATE contacts SET is_deleted = true, is_active = false, updated_at = now()
		 WHERE id = $1 AND tenant_id = $2 AND is_deleted = false`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "contact not found")
	}
	return nil
}

func marshalMetadata(m map[string]any) []byte {
	if m == nil {
		return []byte("{}")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return data
}
