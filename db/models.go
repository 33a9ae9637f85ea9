// Package db is formrelayd's PostgreSQL access layer: entity structs, a
// pgxpool wrapper, parameterized CRUD, and the action queue's atomic
// claim/backoff statements.
package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Tenant is the top-level isolation boundary.
type Tenant struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// Project is owned by a Tenant.
type Project struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EndpointField describes one expected form field.
type EndpointField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Label    string `json:"label,omitempty"`
}

// EndpointSettings holds the recognized per-endpoint options.
type EndpointSettings struct {
	RateLimit           int      `json:"rate_limit,omitempty"`
	RateLimitWindowSecs int      `json:"rate_limit_window_secs,omitempty"`
	HoneypotField       string   `json:"honeypot_field,omitempty"`
	RedirectURL         string   `json:"redirect_url,omitempty"`
	CORSOrigins         []string `json:"cors_origins,omitempty"`
}

// Endpoint is owned by a Project; it defines the expected schema and
// behavior for one public submission URL.
type Endpoint struct {
	ID        uuid.UUID         `json:"id"`
	ProjectID uuid.UUID         `json:"project_id"`
	Name      string            `json:"name"`
	Slug      string            `json:"slug"`
	Fields    []EndpointField   `json:"fields,omitempty"`
	Settings  *EndpointSettings `json:"settings,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SubmissionMetadata is derived request context captured by the ingestion
// pipeline, never supplied by the client directly.
type SubmissionMetadata struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Referer   string `json:"referer,omitempty"`
}

// Submission is immutable once created.
type Submission struct {
	ID         uuid.UUID       `json:"id"`
	EndpointID uuid.UUID       `json:"endpoint_id"`
	Data       json.RawMessage `json:"data"`
	Extras     json.RawMessage `json:"extras"`
	Raw        json.RawMessage `json:"raw"`
	Metadata   json.RawMessage `json:"metadata"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Action is one step in an endpoint's dispatch chain.
type Action struct {
	ID         uuid.UUID       `json:"id"`
	EndpointID uuid.UUID       `json:"endpoint_id"`
	ActionType string          `json:"action_type"`
	Config     json.RawMessage `json:"config"`
	Position   int             `json:"position"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Queue item statuses.
const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusFailed     = "failed"
	QueueStatusCompleted  = "completed"
)

// ActionQueueItem tracks dispatch of one Action against one Submission.
type ActionQueueItem struct {
	ID           uuid.UUID  `json:"id"`
	SubmissionID uuid.UUID  `json:"submission_id"`
	ActionID     uuid.UUID  `json:"action_id"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	MaxAttempts  int        `json:"max_attempts"`
	LastError    *string    `json:"last_error,omitempty"`
	NextRetryAt  time.Time  `json:"next_retry_at"`
	CreatedAt    time.Time  `json:"created_at"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// ActionLog status values.
const (
	LogStatusSuccess = "success"
	LogStatusFailed  = "failed"
	LogStatusSkipped = "skipped"
)

// ActionLog is an append-only audit trail entry for one dispatch attempt.
type ActionLog struct {
	ID           uuid.UUID       `json:"id"`
	ActionID     uuid.UUID       `json:"action_id"`
	SubmissionID uuid.UUID       `json:"submission_id"`
	Status       string          `json:"status"`
	Response     json.RawMessage `json:"response,omitempty"`
	ExecutedAt   time.Time       `json:"executed_at"`
}

// TLS transport modes for TenantSmtpConfig.
const (
	TLSModeTLS      = "tls"
	TLSModeSTARTTLS = "starttls"
	TLSModeNone     = "none"
)

// TenantSmtpConfig holds a tenant's outbound SMTP credentials, encrypted at
// rest via crypto.Helper. Never serialized out with plaintext credentials.
type TenantSmtpConfig struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	Host         string    `json:"host"`
	Port         int       `json:"port"`
	UsernameEnc  []byte    `json:"-"`
	PasswordEnc  []byte    `json:"-"`
	FromAddress  string    `json:"from_address"`
	FromName     string    `json:"from_name,omitempty"`
	TLSMode      string    `json:"tls_mode"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
