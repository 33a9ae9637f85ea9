package db

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Queue exposes the action queue's enqueue/claim/complete/fail operations.
// Claim uses a single SELECT ... FOR UPDATE SKIP LOCKED statement so
// multiple worker processes can poll the same table without double-claiming
// a row.
type Queue struct {
	db *DB
}

// NewQueue builds a Queue over db.
func NewQueue(db *DB) *Queue {
	return &Queue{db: db}
}

// DefaultMaxAttempts is used when a caller doesn't override it.
const DefaultMaxAttempts = 5

// Enqueue inserts a new pending queue item for (submissionID, actionID).
func (q *Queue) Enqueue(ctx context.Context, submissionID, actionID uuid.UUID, maxAttempts int) (*ActionQueueItem, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	row := q.db.QueryRow(ctx, `
		INSERT INTO action_queue (submission_id, action_id, max_attempts)
		VALUES ($1, $2, $3)
		RETURNING id, submission_id, action_id, status, attempts, max_attempts,
		          last_error, next_retry_at, created_at, claimed_at, completed_at`,
		submissionID, actionID, maxAttempts)

	return scanQueueItem(row)
}

// ClaimNext atomically claims the oldest ready item (status pending, or
// failed with retry budget left and a due next_retry_at), marking it
// processing and incrementing attempts in the same statement. Terminally
// failed items (attempts at max_attempts) never match. Returns nil, nil if
// nothing is ready.
func (q *Queue) ClaimNext(ctx context.Context) (*ActionQueueItem, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE action_queue
		SET status = 'processing', attempts = attempts + 1, claimed_at = now()
		WHERE id = (
			SELECT id FROM action_queue
			WHERE status IN ('pending', 'failed')
			  AND attempts < max_attempts
			  AND next_retry_at <= now()
			ORDER BY next_retry_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, submission_id, action_id, status, attempts, max_attempts,
		          last_error, next_retry_at, created_at, claimed_at, completed_at`)

	item, err := scanQueueItem(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

// MarkCompleted marks a claimed item completed.
func (q *Queue) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE action_queue SET status = 'completed', completed_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db: mark completed: %w", err)
	}
	return nil
}

// MarkFailed records a failure. If attempts has reached maxAttempts the
// item becomes terminally failed; otherwise it's scheduled for retry with
// exponential backoff (1s after the first failure, then 2s, 4s, ...).
// attempts is the post-claim counter, i.e. it includes the attempt that
// just failed.
func (q *Queue) MarkFailed(ctx context.Context, id uuid.UUID, attempts, maxAttempts int, errMsg string) error {
	if attempts >= maxAttempts {
		_, err := q.db.Exec(ctx, `
			UPDATE action_queue
			SET status = 'failed', last_error = $2, completed_at = now()
			WHERE id = $1`, id, errMsg)
		if err != nil {
			return fmt.Errorf("db: mark terminally failed: %w", err)
		}
		return nil
	}

	if attempts < 1 {
		attempts = 1
	}
	backoffSecs := math.Pow(2, float64(attempts-1))
	_, err := q.db.Exec(ctx, `
		UPDATE action_queue
		SET status = 'failed',
		    last_error = $2,
		    next_retry_at = now() + make_interval(secs => $3::double precision)
		WHERE id = $1`, id, errMsg, backoffSecs)
	if err != nil {
		return fmt.Errorf("db: mark failed with backoff: %w", err)
	}
	return nil
}

// SweepOrphans resets items stuck in 'processing' for longer than olderThan
// seconds back to 'pending' so a worker can reclaim them. Disabled by
// default; only meant for recovering from a process that died mid-execution
// without a chance to mark its claimed item failed.
func (q *Queue) SweepOrphans(ctx context.Context, olderThanSeconds int) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE action_queue
		SET status = 'pending'
		WHERE status = 'processing'
		  AND claimed_at < now() - make_interval(secs => $1::double precision)`,
		float64(olderThanSeconds))
	if err != nil {
		return 0, fmt.Errorf("db: sweep orphans: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanQueueItem(row interface {
	Scan(dest ...interface{}) error
}) (*ActionQueueItem, error) {
	item := &ActionQueueItem{}
	err := row.Scan(&item.ID, &item.SubmissionID, &item.ActionID, &item.Status,
		&item.Attempts, &item.MaxAttempts, &item.LastError, &item.NextRetryAt,
		&item.CreatedAt, &item.ClaimedAt, &item.CompletedAt)
	if err != nil {
		return nil, err
	}
	return item, nil
}
