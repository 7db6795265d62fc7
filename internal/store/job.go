package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"opscord.app/pipeline/core/db"
	"opscord.app/pipeline/internal/model"
)

type jobStore struct {
	q db.Querier
}

func newJobStore(q db.Querier) JobStore {
	return &jobStore{q: q}
}

const jobColumns = `id, user_id, repo_id, job_type, job_data, status, priority, retry_count, max_retries, error_message, created_at, started_at, completed_at, available_at`

func (s *jobStore) Enqueue(ctx context.Context, job *model.Job) (*model.Job, error) {
	maxRetries := job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = model.DefaultMaxRetries
	}

	row := s.q.QueryRow(ctx, `
		INSERT INTO job_queue (id, user_id, repo_id, job_type, job_data, status, priority, max_retries)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7)
		RETURNING `+jobColumns,
		job.ID, job.UserID, job.RepoID, job.Kind, job.Payload, job.Priority, maxRetries,
	)

	return scanJob(row)
}

// ClaimBatch is the queue's single mutual-exclusion point. The inner select
// locks eligible rows with SKIP LOCKED so concurrent workers partition the
// batch instead of double-claiming; ordering is priority descending then
// strict FIFO within a priority band.
func (s *jobStore) ClaimBatch(ctx context.Context, limit int) ([]model.Job, error) {
	rows, err := s.q.Query(ctx, `
		UPDATE job_queue AS j
		SET status = 'processing', started_at = now()
		FROM (
			SELECT id FROM job_queue
			WHERE status = 'pending'
			  AND retry_count <= max_retries
			  AND available_at <= now()
			ORDER BY priority DESC, created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		) AS eligible
		WHERE j.id = eligible.id
		RETURNING `+prefixedJobColumns("j"),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claiming jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *jobStore) Complete(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE job_queue
		SET status = 'completed', completed_at = now(), error_message = NULL
		WHERE id = $1 AND status = 'processing'`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Fail resolves one failed attempt in a single statement. A job that has
// already used max_retries retries becomes terminally failed; otherwise the
// retry count goes up and the job returns to pending, eligible again only
// after an exponential backoff of 2^retry_count seconds.
func (s *jobStore) Fail(ctx context.Context, id int64, errMsg string) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE job_queue
		SET status        = CASE WHEN retry_count >= max_retries THEN 'failed' ELSE 'pending' END,
		    retry_count   = CASE WHEN retry_count >= max_retries THEN retry_count ELSE retry_count + 1 END,
		    available_at  = CASE WHEN retry_count >= max_retries THEN available_at
		                         ELSE now() + make_interval(secs => power(2, retry_count + 1)) END,
		    error_message = $2
		WHERE id = $1 AND status = 'processing'`,
		id, errMsg,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FailTerminal marks a job failed regardless of remaining retries, used for
// non-retryable errors where another attempt cannot succeed.
func (s *jobStore) FailTerminal(ctx context.Context, id int64, errMsg string) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE job_queue
		SET status = 'failed', error_message = $2
		WHERE id = $1 AND status = 'processing'`,
		id, errMsg,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *jobStore) GetByID(ctx context.Context, id int64) (*model.Job, error) {
	row := s.q.QueryRow(ctx, `SELECT `+jobColumns+` FROM job_queue WHERE id = $1`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (s *jobStore) Retry(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE job_queue
		SET status = 'pending', retry_count = 0, error_message = NULL,
		    started_at = NULL, available_at = now()
		WHERE id = $1 AND status = 'failed'`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *jobStore) StatsByUser(ctx context.Context, userID int64) (map[model.JobStatus]int, error) {
	rows, err := s.q.Query(ctx, `
		SELECT status, count(*) FROM job_queue
		WHERE user_id = $1
		GROUP BY status`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[model.JobStatus]int{
		model.JobStatusPending:    0,
		model.JobStatusProcessing: 0,
		model.JobStatusCompleted:  0,
		model.JobStatusFailed:     0,
	}
	for rows.Next() {
		var status model.JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// ReclaimStuck frees jobs whose worker died mid-flight. The attempt is not
// charged against retry_count: the job never finished, so it never failed.
func (s *jobStore) ReclaimStuck(ctx context.Context, lease time.Duration) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE job_queue
		SET status = 'pending', started_at = NULL
		WHERE status = 'processing' AND started_at < now() - make_interval(secs => $1)`,
		lease.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaiming stuck jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	if err := row.Scan(
		&j.ID, &j.UserID, &j.RepoID, &j.Kind, &j.Payload, &j.Status,
		&j.Priority, &j.RetryCount, &j.MaxRetries, &j.ErrorMessage,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.AvailableAt,
	); err != nil {
		return nil, err
	}
	return &j, nil
}

func prefixedJobColumns(alias string) string {
	return alias + ".id, " + alias + ".user_id, " + alias + ".repo_id, " +
		alias + ".job_type, " + alias + ".job_data, " + alias + ".status, " +
		alias + ".priority, " + alias + ".retry_count, " + alias + ".max_retries, " +
		alias + ".error_message, " + alias + ".created_at, " + alias + ".started_at, " +
		alias + ".completed_at, " + alias + ".available_at"
}
