package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"opscord.app/pipeline/core/db"
	"opscord.app/pipeline/internal/model"
)

type repoStore struct {
	q db.Querier
}

func newRepoStore(q db.Querier) RepoStore {
	return &repoStore{q: q}
}

const repoColumns = `id, user_id, full_name, webhook_secret, auto_summarize, auto_categorize, created_at`

func (s *repoStore) GetByFullName(ctx context.Context, fullName string) (*model.Repository, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+repoColumns+` FROM repositories WHERE full_name = $1`,
		fullName,
	)
	return scanRepo(row)
}

func (s *repoStore) GetByID(ctx context.Context, id int64) (*model.Repository, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+repoColumns+` FROM repositories WHERE id = $1`,
		id,
	)
	return scanRepo(row)
}

func scanRepo(row pgx.Row) (*model.Repository, error) {
	var r model.Repository
	if err := row.Scan(
		&r.ID, &r.UserID, &r.FullName, &r.WebhookSecret,
		&r.AutoSummarize, &r.AutoCategorize, &r.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}
