// Command formrelayd runs the public ingestion server and its action
// dispatch worker pool in a single process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"formrelay.dev/actions"
	"formrelay.dev/crypto"
	"formrelay.dev/db"
	"formrelay.dev/httpapi"
	"formrelay.dev/ingest"
	"formrelay.dev/internal/config"
	"formrelay.dev/internal/obs"
	"formrelay.dev/netsafe"
	"formrelay.dev/ratelimit"
	"formrelay.dev/version"
	"formrelay.dev/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load("FORMRELAY")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := obs.NewContextLogger(obs.NewLogger(obs.LoggerConfig{
		Level:   obs.LogLevel(cfg.LogLevel),
		Format:  cfg.LogFormat,
		Service: "formrelayd",
		Version: version.GetModuleVersion(),
	}), map[string]interface{}{
		"service": "formrelayd",
		"version": version.GetModuleVersion(),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	cryptoHelper, err := crypto.New(cfg.MasterKey)
	if err != nil {
		return fmt.Errorf("init crypto helper: %w", err)
	}

	ssrfPolicy, err := netsafe.NewPolicy(cfg.SSRFMode, cfg.SSRFAllowCIDRs)
	if err != nil {
		return fmt.Errorf("init SSRF policy: %w", err)
	}

	repo := db.NewRepository(database)
	queue := db.NewQueue(database)

	registry := actions.NewRegistry()
	if err := registry.Register(actions.NewWebhookModule(ssrfPolicy)); err != nil {
		return fmt.Errorf("register webhook module: %w", err)
	}
	if err := registry.Register(actions.NewEmailModule(repo, cryptoHelper)); err != nil {
		return fmt.Errorf("register email module: %w", err)
	}

	trustedProxies := httpapi.ParseTrustedProxies(cfg.TrustedProxies, log)
	submissionLimiter := ratelimit.NewSubmissionLimiter()
	go runLimiterSweep(ctx, submissionLimiter)
	pipeline := ingest.NewPipeline(repo, queue, submissionLimiter, ingest.Limits{
		Limit:      cfg.SubmissionLimit,
		WindowSecs: int(cfg.SubmissionWindow.Seconds()),
	}, trustedProxies, log)

	pool := worker.NewPool(queue, repo, registry, worker.PoolConfig{
		Workers:        cfg.WorkerCount,
		ExecuteTimeout: cfg.ActionTimeout,
		PollInterval:   cfg.WorkerPollInterval,
	}, log)
	pool.Start(ctx)
	defer pool.Stop()

	if cfg.OrphanSweepEnabled {
		go runOrphanSweep(ctx, queue, cfg.OrphanSweepAfter, log)
	}

	handlers := httpapi.NewHandlers(repo, pipeline, log)
	serverConfig := httpapi.DefaultServerConfig()
	serverConfig.Host = cfg.BindHost
	serverConfig.Port = cfg.BindPort
	serverConfig.MaxBodyBytes = cfg.MaxBodyBytes
	server := httpapi.NewServer(serverConfig, handlers, log)

	build := version.GetBuildInfo()
	log.WithFields(map[string]interface{}{
		"base_url":   cfg.BaseURL,
		"bind":       fmt.Sprintf("%s:%d", cfg.BindHost, cfg.BindPort),
		"workers":    cfg.WorkerCount,
		"go_version": build.GoVersion,
		"deps":       len(build.Dependencies),
	}).Info("formrelayd starting")

	return httpapi.StartServer(ctx, server, serverConfig)
}

// runLimiterSweep periodically drops rate-limit entries whose window expired
// long ago, bounding the limiter's memory under churny traffic.
func runLimiterSweep(ctx context.Context, limiter *ratelimit.SubmissionLimiter) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep(time.Hour)
		}
	}
}

// runOrphanSweep periodically resets queue items stuck in 'processing' for
// longer than after back to pending, recovering from a worker that died
// mid-execution. Disabled by default; operators opt in via configuration.
func runOrphanSweep(ctx context.Context, queue *db.Queue, after time.Duration, log *obs.ContextLogger) {
	ticker := time.NewTicker(after / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := queue.SweepOrphans(ctx, int(after.Seconds()))
			if err != nil {
				log.WithError(err).Error("orphan sweep failed")
				continue
			}
			if n > 0 {
				log.WithField("reclaimed", n).Info("swept orphaned queue items")
			}
		}
	}
}
