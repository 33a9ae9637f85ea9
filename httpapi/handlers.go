package httpapi

import (
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"formrelay.dev/db"
	"formrelay.dev/ingest"
	"formrelay.dev/internal/errkind"
	"formrelay.dev/internal/obs"
)

// Handlers wires the ingest pipeline to Echo's request/response model.
type Handlers struct {
	repo     *db.Repository
	pipeline *ingest.Pipeline
	log      *obs.ContextLogger
}

// NewHandlers builds a Handlers over the given repository and pipeline.
func NewHandlers(repo *db.Repository, pipeline *ingest.Pipeline, log *obs.ContextLogger) *Handlers {
	return &Handlers{repo: repo, pipeline: pipeline, log: log}
}

// Health answers a liveness probe.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// Ingest implements POST /v1/e/:endpoint_id.
func (h *Handlers) Ingest(c echo.Context) error {
	ctx := c.Request().Context()

	endpointID, err := uuid.Parse(c.Param("endpoint_id"))
	if err != nil {
		return errkind.New(errkind.NotFound, "Endpoint not found")
	}

	endpoint, err := h.repo.GetEndpoint(ctx, endpointID)
	if err != nil {
		return errkind.New(errkind.NotFound, "Endpoint not found")
	}

	applyCORSHeaders(c, endpoint.Settings)

	defer c.Request().Body.Close()
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errkind.Wrap(errkind.BadRequest, "Failed to read request body", err)
	}

	result, err := h.pipeline.Run(ctx, endpoint, ingest.Request{
		ContentType: c.Request().Header.Get(echo.HeaderContentType),
		Headers:     c.Request().Header,
		PeerIP:      socketPeerIP(c.Request().RemoteAddr),
		Body:        body,
	})
	if err != nil {
		return err
	}

	isForm := ingest.IsFormContentType(c.Request().Header.Get(echo.HeaderContentType))

	if result.Spam {
		// A spam submission answers exactly like an accepted one.
		if result.RedirectURL != "" && isForm {
			return c.Redirect(http.StatusSeeOther, result.RedirectURL)
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}

	if result.RedirectURL != "" && isForm {
		return c.Redirect(http.StatusSeeOther, result.RedirectURL)
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"status":        "created",
		"submission_id": result.SubmissionID.String(),
	})
}

// Preflight implements OPTIONS /v1/e/:endpoint_id.
func (h *Handlers) Preflight(c echo.Context) error {
	ctx := c.Request().Context()

	endpointID, err := uuid.Parse(c.Param("endpoint_id"))
	if err != nil {
		return c.NoContent(http.StatusNoContent)
	}

	endpoint, err := h.repo.GetEndpoint(ctx, endpointID)
	var settings *db.EndpointSettings
	if err == nil {
		settings = endpoint.Settings
	}

	applyCORSHeaders(c, settings)
	c.Response().Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	c.Response().Header().Set("Access-Control-Allow-Headers", "Content-Type")
	c.Response().Header().Set("Access-Control-Max-Age", "86400")
	return c.NoContent(http.StatusNoContent)
}

// socketPeerIP returns the bare IP of a net/http RemoteAddr ("host:port"),
// deliberately ignoring any client-supplied forwarding headers — those are
// trusted only inside ingest.ResolveClientIP, and only for addresses that
// are themselves trusted proxies.
func socketPeerIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func applyCORSHeaders(c echo.Context, settings *db.EndpointSettings) {
	origin := "*"
	if settings != nil && len(settings.CORSOrigins) > 0 {
		origin = strings.Join(settings.CORSOrigins, ",")
	}
	c.Response().Header().Set("Access-Control-Allow-Origin", origin)
}

