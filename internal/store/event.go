package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"opscord.app/pipeline/core/db"
	"opscord.app/pipeline/internal/model"
)

type eventStore struct {
	q db.Querier
}

func newEventStore(q db.Querier) EventStore {
	return &eventStore{q: q}
}

const eventColumns = `id, repo_id, kind, number, action, title, state, body, author, payload, ai_summary, created_at, updated_at`

func (s *eventStore) Upsert(ctx context.Context, event *model.Event) (*model.Event, bool, error) {
	row := s.q.QueryRow(ctx, `
		INSERT INTO events (id, repo_id, kind, number, action, title, state, body, author, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (repo_id, kind, number) DO UPDATE SET
			action     = EXCLUDED.action,
			title      = COALESCE(EXCLUDED.title, events.title),
			state      = COALESCE(EXCLUDED.state, events.state),
			body       = COALESCE(EXCLUDED.body, events.body),
			author     = COALESCE(EXCLUDED.author, events.author),
			payload    = EXCLUDED.payload,
			updated_at = now()
		RETURNING `+eventColumns,
		event.ID, event.RepoID, event.Kind, event.Number, event.Action,
		event.Title, event.State, event.Body, event.Author, event.Payload,
	)

	stored, err := scanEvent(row)
	if err != nil {
		return nil, false, err
	}

	// On conflict the pre-existing row keeps its original ID, so a match
	// with the ID we generated means this delivery created the row.
	created := stored.ID == event.ID
	return stored, created, nil
}

func (s *eventStore) GetByNaturalKey(ctx context.Context, repoID int64, kind model.EventKind, number int64) (*model.Event, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE repo_id = $1 AND kind = $2 AND number = $3`,
		repoID, kind, number,
	)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return event, nil
}

func (s *eventStore) SetAISummary(ctx context.Context, repoID int64, kind model.EventKind, number int64, summary json.RawMessage) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE events SET ai_summary = $4, updated_at = now()
		WHERE repo_id = $1 AND kind = $2 AND number = $3`,
		repoID, kind, number, summary,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	if err := row.Scan(
		&e.ID, &e.RepoID, &e.Kind, &e.Number, &e.Action,
		&e.Title, &e.State, &e.Body, &e.Author, &e.Payload,
		&e.AISummary, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}
