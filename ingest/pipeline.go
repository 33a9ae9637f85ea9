package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"formrelay.dev/db"
	"formrelay.dev/internal/errkind"
	"formrelay.dev/internal/obs"
	"formrelay.dev/ratelimit"
)

// DefaultSubmissionLimit and DefaultSubmissionWindowSecs apply when neither
// the endpoint's settings nor the process configuration override them.
const (
	DefaultSubmissionLimit      = 10
	DefaultSubmissionWindowSecs = 60
	DefaultQueueMaxAttempts     = 5
)

// Limits is the process-wide fallback submission rate policy, applied to
// endpoints whose settings don't set their own. Zero fields fall back to the
// package defaults.
type Limits struct {
	Limit      int
	WindowSecs int
}

// DefaultLimits returns the package-default fallback policy.
func DefaultLimits() Limits {
	return Limits{Limit: DefaultSubmissionLimit, WindowSecs: DefaultSubmissionWindowSecs}
}

// Result is what the pipeline reports back to the HTTP handler so it can
// shape the response.
type Result struct {
	SubmissionID uuid.UUID
	RedirectURL  string
	Spam         bool
}

// Pipeline orchestrates one ingest request end to end: rate check, body
// parsing, honeypot detection, field sorting, best-effort validation,
// metadata capture, persistence, and action enqueue.
type Pipeline struct {
	repo           *db.Repository
	queue          *db.Queue
	limiter        *ratelimit.SubmissionLimiter
	limits         Limits
	trustedProxies []*net.IPNet
	log            *obs.ContextLogger
}

// NewPipeline builds a Pipeline over the given repository, queue, and
// submission rate limiter. limits is the fallback rate policy for endpoints
// without their own; zero fields take the package defaults.
func NewPipeline(repo *db.Repository, queue *db.Queue, limiter *ratelimit.SubmissionLimiter, limits Limits, trustedProxies []*net.IPNet, log *obs.ContextLogger) *Pipeline {
	if limits.Limit <= 0 {
		limits.Limit = DefaultSubmissionLimit
	}
	if limits.WindowSecs <= 0 {
		limits.WindowSecs = DefaultSubmissionWindowSecs
	}
	return &Pipeline{
		repo:           repo,
		queue:          queue,
		limiter:        limiter,
		limits:         limits,
		trustedProxies: trustedProxies,
		log:            log,
	}
}

// Request bundles everything the pipeline needs from one inbound HTTP
// request.
type Request struct {
	ContentType string
	Headers     http.Header
	PeerIP      string
	Body        []byte
}

// Run executes the full pipeline for one submission to endpoint.
func (p *Pipeline) Run(ctx context.Context, endpoint *db.Endpoint, req Request) (*Result, error) {
	settings := endpoint.Settings
	if settings == nil {
		settings = &db.EndpointSettings{}
	}

	limit := settings.RateLimit
	if limit <= 0 {
		limit = p.limits.Limit
	}
	window := settings.RateLimitWindowSecs
	if window <= 0 {
		window = p.limits.WindowSecs
	}

	if ok, retryAfter := p.limiter.Check(endpoint.ID.String(), req.PeerIP, limit, window); !ok {
		return nil, errkind.New(errkind.RateLimited, fmt.Sprintf("Rate limited. Retry after %ds", retryAfter))
	}

	payload, err := p.parse(req)
	if err != nil {
		return nil, errkind.Wrap(errkind.BadRequest, err.Error(), err)
	}

	if IsSpam(payload, settings.HoneypotField) {
		return &Result{Spam: true, RedirectURL: settings.RedirectURL}, nil
	}

	data, extras := SortFields(payload, endpoint.Fields)

	if warnings := ValidateFields(data, endpoint.Fields); len(warnings) > 0 && p.log != nil {
		p.log.WithField("endpoint_id", endpoint.ID).WithField("warnings", warnings).Warn("submission validation warnings")
	}

	meta := ExtractMetadata(req.Headers, req.PeerIP, p.trustedProxies)

	rawJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "failed to encode raw payload", err)
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "failed to encode data", err)
	}
	extrasJSON, err := json.Marshal(extras)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "failed to encode extras", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "failed to encode metadata", err)
	}

	submission := &db.Submission{
		EndpointID: endpoint.ID,
		Data:       dataJSON,
		Extras:     extrasJSON,
		Raw:        rawJSON,
		Metadata:   metaJSON,
	}
	if err := p.repo.CreateSubmission(ctx, submission); err != nil {
		return nil, errkind.Wrap(errkind.Internal, "failed to store submission", err)
	}

	actions, err := p.repo.ListActionsForEndpoint(ctx, endpoint.ID)
	if err != nil {
		if p.log != nil {
			p.log.WithError(err).WithField("endpoint_id", endpoint.ID).Error("failed to load actions for enqueue")
		}
		actions = nil
	}

	for _, action := range actions {
		if _, err := p.queue.Enqueue(ctx, submission.ID, action.ID, DefaultQueueMaxAttempts); err != nil && p.log != nil {
			p.log.WithError(err).WithField("action_id", action.ID).Error("failed to enqueue action")
		}
	}

	return &Result{
		SubmissionID: submission.ID,
		RedirectURL:  settings.RedirectURL,
	}, nil
}

func (p *Pipeline) parse(req Request) (map[string]any, error) {
	if isMultipart(req.ContentType) {
		return ParseMultipart(req.ContentType, req.Body)
	}
	return ParseBody(req.ContentType, req.Body)
}

func isMultipart(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), contentTypeMultipart)
}
