// Package worker runs the action dispatch pool: N concurrent workers that
// poll the action queue, load the execution context for each claimed item,
// dispatch it through the action module registry, and record the outcome.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"formrelay.dev/actions"
	"formrelay.dev/db"
	"formrelay.dev/internal/obs"
)

const (
	// DefaultExecuteTimeout bounds how long a single module execution may run.
	DefaultExecuteTimeout = 30 * time.Second
	// DefaultPollInterval is how long an idle worker waits before polling again.
	DefaultPollInterval = time.Second
)

// PoolConfig holds the pool's tunables. Zero fields take the package
// defaults.
type PoolConfig struct {
	Workers        int
	ExecuteTimeout time.Duration
	PollInterval   time.Duration
}

// Pool runs a fixed number of workers against a shared queue and registry.
type Pool struct {
	queue          *db.Queue
	repo           *db.Repository
	registry       *actions.Registry
	count          int
	executeTimeout time.Duration
	pollInterval   time.Duration
	log            *obs.ContextLogger

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewPool builds a Pool with config.Workers workers, backed by queue for
// claim/mark operations, repo for loading dependent rows, and registry for
// module dispatch.
func NewPool(queue *db.Queue, repo *db.Repository, registry *actions.Registry, config PoolConfig, log *obs.ContextLogger) *Pool {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.ExecuteTimeout <= 0 {
		config.ExecuteTimeout = DefaultExecuteTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &Pool{
		queue:          queue,
		repo:           repo,
		registry:       registry,
		count:          config.Workers,
		executeTimeout: config.ExecuteTimeout,
		pollInterval:   config.PollInterval,
		log:            log,
		stop:           make(chan struct{}),
	}
}

// Start launches count workers; each runs until Stop is called.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}
}

// Stop signals every worker to finish its current item (or poll-sleep) and
// blocks until all have exited.
func (p *Pool) Stop() {
	close(p.stop)
	p.wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stop:
			return
		default:
		}

		processed, err := p.processNext(ctx)
		if err != nil && p.log != nil {
			p.log.WithError(err).WithField("worker_id", id).Error("worker error")
		}
		if processed {
			continue
		}

		select {
		case <-p.stop:
			return
		case <-time.After(p.pollInterval):
		}
	}
}

// processNext claims and fully processes at most one queue item. It
// reports whether an item was claimed so the caller can skip its
// poll-sleep and immediately try for more work.
func (p *Pool) processNext(ctx context.Context) (bool, error) {
	item, err := p.queue.ClaimNext(ctx)
	if err != nil {
		return false, fmt.Errorf("claim next: %w", err)
	}
	if item == nil {
		return false, nil
	}

	action, err := p.repo.GetAction(ctx, item.ActionID)
	if err != nil {
		p.failAndLog(ctx, item, fmt.Sprintf("action %s not found", item.ActionID))
		return true, nil
	}

	submission, err := p.repo.GetSubmission(ctx, item.SubmissionID)
	if err != nil {
		p.failAndLog(ctx, item, fmt.Sprintf("submission %s not found", item.SubmissionID))
		return true, nil
	}

	actx, err := p.loadContext(ctx, action, submission)
	if err != nil {
		p.failAndLog(ctx, item, err.Error())
		return true, nil
	}

	module, ok := p.registry.Get(action.ActionType)
	if !ok {
		p.failAndLog(ctx, item, fmt.Sprintf("Unknown module: %s", action.ActionType))
		return true, nil
	}

	var cfg map[string]any
	if len(action.Config) > 0 {
		if err := json.Unmarshal(action.Config, &cfg); err != nil {
			p.failAndLog(ctx, item, fmt.Sprintf("invalid action config: %v", err))
			return true, nil
		}
	}

	status, response := p.execute(ctx, module, actx, cfg)

	_ = p.repo.AppendActionLog(ctx, &db.ActionLog{
		ActionID:     action.ID,
		SubmissionID: submission.ID,
		Status:       string(status),
		Response:     response,
	})

	if status == actions.StatusSuccess {
		if err := p.queue.MarkCompleted(ctx, item.ID); err != nil && p.log != nil {
			p.log.WithError(err).Error("failed to mark queue item completed")
		}
		return true, nil
	}

	errMsg := extractErrorMessage(response)
	if err := p.queue.MarkFailed(ctx, item.ID, item.Attempts, item.MaxAttempts, errMsg); err != nil && p.log != nil {
		p.log.WithError(err).Error("failed to mark queue item failed")
	}
	return true, nil
}

// execute runs module.Execute under the pool's execute timeout, translating
// a timeout or module error into a failed Result with the matching error
// text.
func (p *Pool) execute(ctx context.Context, module actions.Module, actx *actions.ActionContext, cfg map[string]any) (actions.Status, json.RawMessage) {
	execCtx, cancel := context.WithTimeout(ctx, p.executeTimeout)
	defer cancel()

	type outcome struct {
		result actions.Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := module.Execute(execCtx, actx, cfg)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return actions.StatusFailed, errorResponse(o.err.Error())
		}
		return o.result.Status, o.result.Response
	case <-execCtx.Done():
		return actions.StatusFailed, errorResponse(fmt.Sprintf("Action timed out after %ds", int(p.executeTimeout.Seconds())))
	}
}

func (p *Pool) loadContext(ctx context.Context, action *db.Action, submission *db.Submission) (*actions.ActionContext, error) {
	endpoint, err := p.repo.GetEndpoint(ctx, action.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("failed to load action context: endpoint missing")
	}
	project, err := p.repo.GetProject(ctx, endpoint.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load action context: project missing")
	}
	tenant, err := p.repo.GetTenant(ctx, project.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load action context: tenant missing")
	}

	return &actions.ActionContext{
		Submission: *submission,
		Endpoint:   *endpoint,
		Project:    *project,
		Tenant:     *tenant,
	}, nil
}

func (p *Pool) failAndLog(ctx context.Context, item *db.ActionQueueItem, errMsg string) {
	if err := p.queue.MarkFailed(ctx, item.ID, item.Attempts, item.MaxAttempts, errMsg); err != nil && p.log != nil {
		p.log.WithError(err).Error("failed to mark queue item failed")
	}
	_ = p.repo.AppendActionLog(ctx, &db.ActionLog{
		ActionID:     item.ActionID,
		SubmissionID: item.SubmissionID,
		Status:       string(actions.StatusFailed),
		Response:     errorResponse(errMsg),
	})
}

func errorResponse(msg string) json.RawMessage {
	b, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

func extractErrorMessage(response json.RawMessage) string {
	if len(response) == 0 {
		return "Unknown error"
	}
	var decoded struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(response, &decoded); err != nil || decoded.Error == "" {
		return "Unknown error"
	}
	return decoded.Error
}
