package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository provides parameterized CRUD over the core entities. It holds
// no state beyond the pool and is safe for concurrent use.
type Repository struct {
	db *DB
}

// NewRepository builds a Repository over db.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// GetTenant loads a Tenant by id.
func (r *Repository) GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, slug FROM tenants WHERE id = $1`, id)
	t := &Tenant{}
	if err := row.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
		return nil, fmt.Errorf("db: get tenant: %w", err)
	}
	return t, nil
}

// GetTenantBySlug loads a Tenant by its unique slug.
func (r *Repository) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, slug FROM tenants WHERE slug = $1`, slug)
	t := &Tenant{}
	if err := row.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
		return nil, fmt.Errorf("db: get tenant by slug: %w", err)
	}
	return t, nil
}

// GetProject loads a Project by id.
func (r *Repository) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, name, slug, created_at, updated_at
		FROM projects WHERE id = $1`, id)
	p := &Project{}
	if err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Slug, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("db: get project: %w", err)
	}
	return p, nil
}

// GetEndpoint loads an Endpoint by id.
func (r *Repository) GetEndpoint(ctx context.Context, id uuid.UUID) (*Endpoint, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, project_id, name, slug, fields, settings, created_at, updated_at
		FROM endpoints WHERE id = $1`, id)
	return scanEndpoint(row)
}

// GetEndpointBySlug loads an Endpoint scoped to a project + endpoint slug
// pair. The public ingest route does not use it; it looks endpoints up by
// id via GetEndpoint.
func (r *Repository) GetEndpointBySlug(ctx context.Context, projectSlug, endpointSlug string) (*Endpoint, error) {
	row := r.db.QueryRow(ctx, `
		SELECT e.id, e.project_id, e.name, e.slug, e.fields, e.settings, e.created_at, e.updated_at
		FROM endpoints e
		JOIN projects p ON p.id = e.project_id
		WHERE p.slug = $1 AND e.slug = $2`, projectSlug, endpointSlug)
	return scanEndpoint(row)
}

func scanEndpoint(row pgx.Row) (*Endpoint, error) {
	e := &Endpoint{}
	var fieldsRaw, settingsRaw []byte
	if err := row.Scan(&e.ID, &e.ProjectID, &e.Name, &e.Slug, &fieldsRaw, &settingsRaw, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, fmt.Errorf("db: get endpoint: %w", err)
	}
	if len(fieldsRaw) > 0 {
		if err := json.Unmarshal(fieldsRaw, &e.Fields); err != nil {
			return nil, fmt.Errorf("db: decode endpoint fields: %w", err)
		}
	}
	if len(settingsRaw) > 0 {
		var settings EndpointSettings
		if err := json.Unmarshal(settingsRaw, &settings); err != nil {
			return nil, fmt.Errorf("db: decode endpoint settings: %w", err)
		}
		e.Settings = &settings
	}
	return e, nil
}

// ListActionsForEndpoint returns an endpoint's enabled actions ordered by
// position (ties broken by id).
func (r *Repository) ListActionsForEndpoint(ctx context.Context, endpointID uuid.UUID) ([]*Action, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, endpoint_id, action_type, config, position, enabled, created_at
		FROM actions
		WHERE endpoint_id = $1 AND enabled = true
		ORDER BY position ASC, id ASC`, endpointID)
	if err != nil {
		return nil, fmt.Errorf("db: list actions: %w", err)
	}
	defer rows.Close()

	var actions []*Action
	for rows.Next() {
		a := &Action{}
		if err := rows.Scan(&a.ID, &a.EndpointID, &a.ActionType, &a.Config, &a.Position, &a.Enabled, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("db: scan action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// GetAction loads an Action by id.
func (r *Repository) GetAction(ctx context.Context, id uuid.UUID) (*Action, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, endpoint_id, action_type, config, position, enabled, created_at
		FROM actions WHERE id = $1`, id)
	a := &Action{}
	if err := row.Scan(&a.ID, &a.EndpointID, &a.ActionType, &a.Config, &a.Position, &a.Enabled, &a.CreatedAt); err != nil {
		return nil, fmt.Errorf("db: get action: %w", err)
	}
	return a, nil
}

// CreateSubmission persists an immutable Submission row.
func (r *Repository) CreateSubmission(ctx context.Context, s *Submission) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO submissions (endpoint_id, data, extras, raw, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`, s.EndpointID, s.Data, s.Extras, s.Raw, s.Metadata)
	return row.Scan(&s.ID, &s.CreatedAt)
}

// GetSubmission loads a Submission by id.
func (r *Repository) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, endpoint_id, data, extras, raw, metadata, created_at
		FROM submissions WHERE id = $1`, id)
	s := &Submission{}
	if err := row.Scan(&s.ID, &s.EndpointID, &s.Data, &s.Extras, &s.Raw, &s.Metadata, &s.CreatedAt); err != nil {
		return nil, fmt.Errorf("db: get submission: %w", err)
	}
	return s, nil
}

// AppendActionLog inserts an append-only audit trail row.
func (r *Repository) AppendActionLog(ctx context.Context, log *ActionLog) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO action_logs (action_id, submission_id, status, response)
		VALUES ($1, $2, $3, $4)
		RETURNING id, executed_at`, log.ActionID, log.SubmissionID, log.Status, log.Response)
	return row.Scan(&log.ID, &log.ExecutedAt)
}

// GetTenantSmtpConfig loads the single SMTP config row for a tenant, if any.
func (r *Repository) GetTenantSmtpConfig(ctx context.Context, tenantID uuid.UUID) (*TenantSmtpConfig, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, host, port, username_enc, password_enc,
		       from_address, COALESCE(from_name, ''), tls_mode, created_at, updated_at
		FROM tenant_smtp_configs WHERE tenant_id = $1`, tenantID)
	c := &TenantSmtpConfig{}
	if err := row.Scan(&c.ID, &c.TenantID, &c.Host, &c.Port, &c.UsernameEnc, &c.PasswordEnc,
		&c.FromAddress, &c.FromName, &c.TLSMode, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("db: get tenant smtp config: %w", err)
	}
	return c, nil
}
