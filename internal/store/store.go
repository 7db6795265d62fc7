package store

import "opscord.app/pipeline/core/db"

// Stores bundles the typed store implementations over one Querier. Built
// from either the pool or a transaction, so the same accessors work in both
// scopes.
type Stores struct {
	events   EventStore
	jobs     JobStore
	repos    RepoStore
	channels ChannelStore
}

func NewStores(q db.Querier) *Stores {
	return &Stores{
		events:   newEventStore(q),
		jobs:     newJobStore(q),
		repos:    newRepoStore(q),
		channels: newChannelStore(q),
	}
}

func (s *Stores) Events() EventStore     { return s.events }
func (s *Stores) Jobs() JobStore         { return s.jobs }
func (s *Stores) Repos() RepoStore       { return s.repos }
func (s *Stores) Channels() ChannelStore { return s.channels }
