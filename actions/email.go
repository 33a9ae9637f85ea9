package actions

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"formrelay.dev/crypto"
	"formrelay.dev/db"
)

const emailDialTimeout = 30 * time.Second

// EmailModule loads a tenant's SMTP configuration, decrypts its stored
// credentials, renders the recipient/subject/body against the submission
// context, and delivers via the tenant's configured transport mode.
type EmailModule struct {
	repo   *db.Repository
	crypto *crypto.Helper
}

// NewEmailModule builds an EmailModule backed by repo for tenant SMTP
// lookups and crypto for decrypting stored credentials.
func NewEmailModule(repo *db.Repository, cryptoHelper *crypto.Helper) *EmailModule {
	return &EmailModule{repo: repo, crypto: cryptoHelper}
}

func (m *EmailModule) ID() string   { return "email" }
func (m *EmailModule) Name() string { return "Email" }

func (m *EmailModule) ConfigSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"to": {"type": "string", "description": "Recipient email (templateable)"},
			"subject": {"type": "string", "description": "Email subject (templateable)"},
			"body": {"type": "string", "description": "Email body (templateable)"},
			"html": {"type": "boolean", "default": false, "description": "Send as text/html"}
		},
		"required": ["to", "subject", "body"]
	}`)
}

func (m *EmailModule) ValidateConfig(cfg map[string]any) error {
	for _, field := range []string{"to", "subject", "body"} {
		v, _ := cfg[field].(string)
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", field)
		}
	}
	return nil
}

func (m *EmailModule) Execute(ctx context.Context, actx *ActionContext, cfg map[string]any) (Result, error) {
	smtpRow, err := m.repo.GetTenantSmtpConfig(ctx, actx.Tenant.ID)
	if err != nil {
		return Result{
			Status:   StatusFailed,
			Response: mustJSON(map[string]any{"error": "Tenant SMTP not configured"}),
		}, nil
	}

	username, err := m.crypto.Open(smtpRow.UsernameEnc)
	if err != nil {
		return Result{}, fmt.Errorf("decrypt smtp username: %w", err)
	}
	password, err := m.crypto.Open(smtpRow.PasswordEnc)
	if err != nil {
		return Result{}, fmt.Errorf("decrypt smtp password: %w", err)
	}

	toRaw, _ := cfg["to"].(string)
	subjectRaw, _ := cfg["subject"].(string)
	bodyRaw, _ := cfg["body"].(string)
	html, _ := cfg["html"].(bool)

	to := RenderTemplate(toRaw, actx)
	subject := RenderTemplate(subjectRaw, actx)
	body := RenderTemplate(bodyRaw, actx)

	toAddr, err := mail.ParseAddress(to)
	if err != nil {
		return Result{
			Status:   StatusFailed,
			Response: mustJSON(map[string]any{"error": fmt.Sprintf("invalid recipient address: %v", err)}),
		}, nil
	}

	from := smtpRow.FromAddress
	if smtpRow.FromName != "" {
		from = fmt.Sprintf("%s <%s>", smtpRow.FromName, smtpRow.FromAddress)
	}
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return Result{
			Status:   StatusFailed,
			Response: mustJSON(map[string]any{"error": fmt.Sprintf("invalid from address: %v", err)}),
		}, nil
	}

	contentType := "text/plain"
	if html {
		contentType = "text/html"
	}

	msg := buildMessage(fromAddr.String(), toAddr.String(), subject, body, contentType)

	if err := deliver(ctx, smtpRow, username, password, fromAddr.Address, []string{toAddr.Address}, msg); err != nil {
		return Result{
			Status:   StatusFailed,
			Response: mustJSON(map[string]any{"error": err.Error()}),
		}, nil
	}

	return Result{
		Status:   StatusSuccess,
		Response: mustJSON(map[string]any{"message": "Email sent successfully"}),
	}, nil
}

func buildMessage(from, to, subject, body, contentType string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Content-Type: %s; charset=utf-8\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// deliver dials the tenant's configured SMTP host and sends msg, choosing
// the transport by tls_mode: implicit TLS, STARTTLS (the default), or
// cleartext.
func deliver(ctx context.Context, cfgRow *db.TenantSmtpConfig, username, password, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(cfgRow.Host, strconv.Itoa(cfgRow.Port))
	auth := smtp.PlainAuth("", username, password, cfgRow.Host)

	dialer := &net.Dialer{Timeout: emailDialTimeout}

	var client *smtp.Client
	var err error

	switch cfgRow.TLSMode {
	case db.TLSModeTLS:
		conn, dialErr := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: cfgRow.Host})
		if dialErr != nil {
			return fmt.Errorf("smtp tls dial: %w", dialErr)
		}
		client, err = smtp.NewClient(conn, cfgRow.Host)
	case db.TLSModeNone:
		conn, dialErr := dialer.DialContext(ctx, "tcp", addr)
		if dialErr != nil {
			return fmt.Errorf("smtp dial: %w", dialErr)
		}
		client, err = smtp.NewClient(conn, cfgRow.Host)
	default: // starttls
		conn, dialErr := dialer.DialContext(ctx, "tcp", addr)
		if dialErr != nil {
			return fmt.Errorf("smtp dial: %w", dialErr)
		}
		client, err = smtp.NewClient(conn, cfgRow.Host)
		if err == nil {
			if ok, _ := client.Extension("STARTTLS"); !ok {
				client.Close()
				return fmt.Errorf("smtp starttls: server does not offer STARTTLS")
			}
			if tlsErr := client.StartTLS(&tls.Config{ServerName: cfgRow.Host}); tlsErr != nil {
				client.Close()
				return fmt.Errorf("smtp starttls: %w", tlsErr)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("AUTH"); ok {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}

	return client.Quit()
}
