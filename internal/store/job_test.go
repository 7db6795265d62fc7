package store_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"opscord.app/pipeline/internal/model"
	"opscord.app/pipeline/internal/store"
)

var _ = Describe("JobStore", func() {
	var (
		q    *fakeQuerier
		jobs store.JobStore
	)

	BeforeEach(func() {
		q = &fakeQuerier{}
		jobs = store.NewStores(q).Jobs()
	})

	Describe("Enqueue", func() {
		It("inserts a pending row and applies the default retry budget", func() {
			q.queryRowFn = func(_ string, args []any) pgx.Row {
				return &fakeRow{scanFn: scanJobInto(model.Job{
					ID:         1001,
					UserID:     9001,
					Kind:       model.JobKindSummarizePR,
					Payload:    json.RawMessage(`{}`),
					Status:     model.JobStatusPending,
					MaxRetries: model.DefaultMaxRetries,
				})}
			}

			job, err := jobs.Enqueue(context.Background(), &model.Job{
				ID:      1001,
				UserID:  9001,
				Kind:    model.JobKindSummarizePR,
				Payload: json.RawMessage(`{}`),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(model.JobStatusPending))

			Expect(q.rowCalls).To(HaveLen(1))
			Expect(q.rowCalls[0].sql).To(ContainSubstring("'pending'"))
			// Last insert argument is max_retries, defaulted when unset.
			args := q.rowCalls[0].args
			Expect(args[len(args)-1]).To(Equal(model.DefaultMaxRetries))
		})
	})

	Describe("ClaimBatch", func() {
		It("claims only eligible pending rows, oldest-first within priority, under SKIP LOCKED", func() {
			repoID := int64(501)
			q.queryFn = func(_ string, _ []any) (pgx.Rows, error) {
				return &fakeRows{scans: []func(dest ...any) error{
					scanJobInto(model.Job{ID: 1, UserID: 9001, RepoID: &repoID, Kind: model.JobKindSummarizePR, Payload: json.RawMessage(`{}`), Status: model.JobStatusProcessing}),
					scanJobInto(model.Job{ID: 2, UserID: 9001, Kind: model.JobKindPushProcessed, Payload: json.RawMessage(`{}`), Status: model.JobStatusProcessing}),
				}}, nil
			}

			claimed, err := jobs.ClaimBatch(context.Background(), 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(claimed).To(HaveLen(2))
			Expect(claimed[0].ID).To(Equal(int64(1)))
			Expect(*claimed[0].RepoID).To(Equal(int64(501)))
			Expect(claimed[1].Kind).To(Equal(model.JobKindPushProcessed))

			Expect(q.queries).To(HaveLen(1))
			sql := q.queries[0].sql
			Expect(q.queries[0].args).To(Equal([]any{5}))

			// Eligibility: pending, retry budget not overdrawn, and the
			// backoff window elapsed.
			Expect(sql).To(ContainSubstring(`status = 'pending'`))
			Expect(sql).To(ContainSubstring(`retry_count <= max_retries`))
			Expect(sql).To(ContainSubstring(`available_at <= now()`))

			// Ordering and claim atomicity.
			Expect(sql).To(ContainSubstring(`ORDER BY priority DESC, created_at ASC`))
			Expect(sql).To(ContainSubstring(`FOR UPDATE SKIP LOCKED`))
			Expect(sql).To(ContainSubstring(`SET status = 'processing', started_at = now()`))
		})

		It("returns an empty batch when nothing is eligible", func() {
			claimed, err := jobs.ClaimBatch(context.Background(), 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(claimed).To(BeEmpty())
		})
	})

	Describe("Fail", func() {
		It("increments and reschedules with backoff until retries are spent, then fails terminally", func() {
			Expect(jobs.Fail(context.Background(), 77, "upstream timeout")).To(Succeed())

			Expect(q.execs).To(HaveLen(1))
			sql := q.execs[0].sql
			Expect(q.execs[0].args).To(Equal([]any{int64(77), "upstream timeout"}))

			// One statement resolves both outcomes: a job still holding
			// retries goes back to pending with retry_count + 1 and an
			// exponential available_at; an exhausted one flips to failed
			// with its count untouched.
			Expect(sql).To(ContainSubstring(`CASE WHEN retry_count >= max_retries THEN 'failed' ELSE 'pending' END`))
			Expect(sql).To(ContainSubstring(`retry_count + 1`))
			Expect(sql).To(ContainSubstring(`make_interval(secs => power(2, retry_count + 1))`))

			// Only a claimed job can fail.
			Expect(sql).To(ContainSubstring(`WHERE id = $1 AND status = 'processing'`))
		})

		It("reports ErrNotFound when the job is not processing", func() {
			q.execFn = func(_ string, _ []any) (pgconn.CommandTag, error) {
				return pgconn.NewCommandTag("UPDATE 0"), nil
			}
			Expect(jobs.Fail(context.Background(), 77, "boom")).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("FailTerminal", func() {
		It("parks the job as failed without touching the retry budget", func() {
			Expect(jobs.FailTerminal(context.Background(), 77, "unknown job type")).To(Succeed())

			Expect(q.execs).To(HaveLen(1))
			sql := q.execs[0].sql
			Expect(sql).To(ContainSubstring(`SET status = 'failed'`))
			Expect(sql).To(ContainSubstring(`WHERE id = $1 AND status = 'processing'`))
			Expect(sql).NotTo(ContainSubstring(`retry_count`))
		})

		It("reports ErrNotFound when the job is not processing", func() {
			q.execFn = func(_ string, _ []any) (pgconn.CommandTag, error) {
				return pgconn.NewCommandTag("UPDATE 0"), nil
			}
			Expect(jobs.FailTerminal(context.Background(), 77, "boom")).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("Complete", func() {
		It("moves a processing job to completed", func() {
			Expect(jobs.Complete(context.Background(), 77)).To(Succeed())

			sql := q.execs[0].sql
			Expect(sql).To(ContainSubstring(`SET status = 'completed', completed_at = now()`))
			Expect(sql).To(ContainSubstring(`WHERE id = $1 AND status = 'processing'`))
		})

		It("reports ErrNotFound when the job is not processing", func() {
			q.execFn = func(_ string, _ []any) (pgconn.CommandTag, error) {
				return pgconn.NewCommandTag("UPDATE 0"), nil
			}
			Expect(jobs.Complete(context.Background(), 77)).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("Retry", func() {
		It("resets a failed job to pending with a clean retry count", func() {
			Expect(jobs.Retry(context.Background(), 77)).To(Succeed())

			sql := q.execs[0].sql
			Expect(sql).To(ContainSubstring(`retry_count = 0`))
			Expect(sql).To(ContainSubstring(`available_at = now()`))
			Expect(sql).To(ContainSubstring(`status = 'failed'`))
		})

		It("reports ErrNotFound for jobs that are not failed", func() {
			q.execFn = func(_ string, _ []any) (pgconn.CommandTag, error) {
				return pgconn.NewCommandTag("UPDATE 0"), nil
			}
			Expect(jobs.Retry(context.Background(), 77)).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("ReclaimStuck", func() {
		It("frees expired processing jobs without charging a retry", func() {
			q.execFn = func(_ string, _ []any) (pgconn.CommandTag, error) {
				return pgconn.NewCommandTag("UPDATE 3"), nil
			}

			reclaimed, err := jobs.ReclaimStuck(context.Background(), 10*time.Minute)
			Expect(err).NotTo(HaveOccurred())
			Expect(reclaimed).To(Equal(int64(3)))

			sql := q.execs[0].sql
			Expect(q.execs[0].args).To(Equal([]any{float64(600)}))
			Expect(sql).To(ContainSubstring(`SET status = 'pending', started_at = NULL`))
			Expect(sql).NotTo(ContainSubstring(`retry_count`))
		})
	})

	Describe("GetByID", func() {
		It("maps a missing row to ErrNotFound", func() {
			_, err := jobs.GetByID(context.Background(), 404)
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("StatsByUser", func() {
		It("zero-fills statuses absent from the result", func() {
			q.queryFn = func(_ string, args []any) (pgx.Rows, error) {
				Expect(args).To(Equal([]any{int64(9001)}))
				return &fakeRows{scans: []func(dest ...any) error{
					func(dest ...any) error {
						*dest[0].(*model.JobStatus) = model.JobStatusCompleted
						*dest[1].(*int) = 4
						return nil
					},
				}}, nil
			}

			stats, err := jobs.StatsByUser(context.Background(), 9001)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats[model.JobStatusCompleted]).To(Equal(4))
			Expect(stats).To(HaveKeyWithValue(model.JobStatusPending, 0))
			Expect(stats).To(HaveKeyWithValue(model.JobStatusProcessing, 0))
			Expect(stats).To(HaveKeyWithValue(model.JobStatusFailed, 0))
		})
	})
})
