package service_test

import (
	"context"
	"encoding/json"
	"time"

	"opscord.app/pipeline/internal/discord"
	"opscord.app/pipeline/internal/model"
	"opscord.app/pipeline/internal/service"
	"opscord.app/pipeline/internal/store"
)

type mockEventStore struct {
	upsertFn          func(ctx context.Context, event *model.Event) (*model.Event, bool, error)
	getByNaturalKeyFn func(ctx context.Context, repoID int64, kind model.EventKind, number int64) (*model.Event, error)
	setAISummaryFn    func(ctx context.Context, repoID int64, kind model.EventKind, number int64, summary json.RawMessage) error
}

func (m *mockEventStore) Upsert(ctx context.Context, event *model.Event) (*model.Event, bool, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, event)
	}
	return event, true, nil
}

func (m *mockEventStore) GetByNaturalKey(ctx context.Context, repoID int64, kind model.EventKind, number int64) (*model.Event, error) {
	if m.getByNaturalKeyFn != nil {
		return m.getByNaturalKeyFn(ctx, repoID, kind, number)
	}
	return nil, store.ErrNotFound
}

func (m *mockEventStore) SetAISummary(ctx context.Context, repoID int64, kind model.EventKind, number int64, summary json.RawMessage) error {
	if m.setAISummaryFn != nil {
		return m.setAISummaryFn(ctx, repoID, kind, number, summary)
	}
	return nil
}

type mockJobStore struct {
	enqueueFn      func(ctx context.Context, job *model.Job) (*model.Job, error)
	claimBatchFn   func(ctx context.Context, limit int) ([]model.Job, error)
	completeFn     func(ctx context.Context, id int64) error
	failFn         func(ctx context.Context, id int64, errMsg string) error
	failTerminalFn func(ctx context.Context, id int64, errMsg string) error
	getByIDFn      func(ctx context.Context, id int64) (*model.Job, error)
	retryFn        func(ctx context.Context, id int64) error
	statsByUserFn  func(ctx context.Context, userID int64) (map[model.JobStatus]int, error)
	enqueueCalls   int
}

func (m *mockJobStore) Enqueue(ctx context.Context, job *model.Job) (*model.Job, error) {
	m.enqueueCalls++
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, job)
	}
	return job, nil
}

func (m *mockJobStore) ClaimBatch(ctx context.Context, limit int) ([]model.Job, error) {
	if m.claimBatchFn != nil {
		return m.claimBatchFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockJobStore) Complete(ctx context.Context, id int64) error {
	if m.completeFn != nil {
		return m.completeFn(ctx, id)
	}
	return nil
}

func (m *mockJobStore) Fail(ctx context.Context, id int64, errMsg string) error {
	if m.failFn != nil {
		return m.failFn(ctx, id, errMsg)
	}
	return nil
}

func (m *mockJobStore) FailTerminal(ctx context.Context, id int64, errMsg string) error {
	if m.failTerminalFn != nil {
		return m.failTerminalFn(ctx, id, errMsg)
	}
	return nil
}

func (m *mockJobStore) GetByID(ctx context.Context, id int64) (*model.Job, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockJobStore) Retry(ctx context.Context, id int64) error {
	if m.retryFn != nil {
		return m.retryFn(ctx, id)
	}
	return nil
}

func (m *mockJobStore) StatsByUser(ctx context.Context, userID int64) (map[model.JobStatus]int, error) {
	if m.statsByUserFn != nil {
		return m.statsByUserFn(ctx, userID)
	}
	return map[model.JobStatus]int{}, nil
}

func (m *mockJobStore) ReclaimStuck(ctx context.Context, lease time.Duration) (int64, error) {
	return 0, nil
}

type mockRepoStore struct {
	getByFullNameFn func(ctx context.Context, fullName string) (*model.Repository, error)
	getByIDFn       func(ctx context.Context, id int64) (*model.Repository, error)
}

func (m *mockRepoStore) GetByFullName(ctx context.Context, fullName string) (*model.Repository, error) {
	if m.getByFullNameFn != nil {
		return m.getByFullNameFn(ctx, fullName)
	}
	return nil, store.ErrNotFound
}

func (m *mockRepoStore) GetByID(ctx context.Context, id int64) (*model.Repository, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

type mockChannelStore struct {
	listByRepoAndKindFn func(ctx context.Context, repoID int64, kind model.ChannelKind) ([]model.ChannelBinding, error)
}

func (m *mockChannelStore) ListByRepoAndKind(ctx context.Context, repoID int64, kind model.ChannelKind) ([]model.ChannelBinding, error) {
	if m.listByRepoAndKindFn != nil {
		return m.listByRepoAndKindFn(ctx, repoID, kind)
	}
	return nil, nil
}

// mockStoreProvider backs the tx runner mock with the same store mocks used
// outside transactions.
type mockStoreProvider struct {
	events *mockEventStore
	jobs   *mockJobStore
}

func (m *mockStoreProvider) Events() store.EventStore { return m.events }
func (m *mockStoreProvider) Jobs() store.JobStore     { return m.jobs }

type mockTxRunner struct {
	provider *mockStoreProvider
	err      error
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(stores service.StoreProvider) error) error {
	if m.err != nil {
		return m.err
	}
	return fn(m.provider)
}

type mockSender struct {
	sendFn func(ctx context.Context, channelID, botToken string, msg discord.Message) (string, error)
	calls  []string
}

func (m *mockSender) SendMessage(ctx context.Context, channelID, botToken string, msg discord.Message) (string, error) {
	m.calls = append(m.calls, channelID)
	if m.sendFn != nil {
		return m.sendFn(ctx, channelID, botToken, msg)
	}
	return "mid-1", nil
}
