// Package httpapi exposes the public submission endpoint over Echo: route
// setup, middleware stack, and request/response shaping for the ingestion
// pipeline.
package httpapi

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"formrelay.dev/internal/obs"
)

// ServerConfig holds the tunables for the public ingest server.
type ServerConfig struct {
	Host            string
	Port            int
	Debug           bool
	MaxBodyBytes    int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// RateLimit caps requests per second per client IP at the connection
	// layer, ahead of (not instead of) the per-endpoint submission limiter.
	RateLimit float64
}

// DefaultServerConfig returns sensible defaults for the public server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		MaxBodyBytes:    1 << 20,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RateLimit:       0,
	}
}

// NewServer builds an Echo instance with the ingest route, CORS preflight
// handling, and the standard middleware stack wired in.
func NewServer(config ServerConfig, h *Handlers, log *obs.ContextLogger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = config.Debug

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dB", config.MaxBodyBytes)))

	if config.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(config.RateLimit),
		)))
	}

	e.HTTPErrorHandler = ErrorHandler(log)

	e.POST("/v1/e/:endpoint_id", h.Ingest)
	e.OPTIONS("/v1/e/:endpoint_id", h.Preflight)
	e.GET("/healthz", h.Health)

	return e
}

// StartServer runs e until ctx is cancelled, then shuts it down within
// config.ShutdownTimeout.
func StartServer(ctx context.Context, e *echo.Echo, config ServerConfig) error {
	errCh := make(chan error, 1)
	go func() {
		addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
		if err := e.Start(addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// ParseTrustedProxies converts CIDR strings into net.IPNet values, skipping
// entries that fail to parse rather than refusing to start.
func ParseTrustedProxies(cidrs []string, log *obs.ContextLogger) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			if log != nil {
				log.WithField("cidr", cidr).Warn("ignoring invalid trusted proxy CIDR")
			}
			continue
		}
		nets = append(nets, ipnet)
	}
	return nets
}
