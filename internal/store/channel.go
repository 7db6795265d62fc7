package store

import (
	"context"

	"opscord.app/pipeline/core/db"
	"opscord.app/pipeline/internal/model"
)

type channelStore struct {
	q db.Querier
}

func newChannelStore(q db.Querier) ChannelStore {
	return &channelStore{q: q}
}

func (s *channelStore) ListByRepoAndKind(ctx context.Context, repoID int64, kind model.ChannelKind) ([]model.ChannelBinding, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, repo_id, kind, channel_id, bot_token, created_at
		FROM discord_channels
		WHERE repo_id = $1 AND kind = $2
		ORDER BY created_at ASC`,
		repoID, kind,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []model.ChannelBinding
	for rows.Next() {
		var b model.ChannelBinding
		if err := rows.Scan(&b.ID, &b.RepoID, &b.Kind, &b.ChannelID, &b.BotToken, &b.CreatedAt); err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}
