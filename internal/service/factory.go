package service

import (
	"log/slog"

	"opscord.app/pipeline/internal/store"
)

type Services struct {
	stores   *store.Stores
	txRunner TxRunner
	sender   MessageSender
	logger   *slog.Logger
}

func NewServices(stores *store.Stores, txRunner TxRunner, sender MessageSender, logger *slog.Logger) *Services {
	return &Services{
		stores:   stores,
		txRunner: txRunner,
		sender:   sender,
		logger:   logger,
	}
}

func (s *Services) EventIngest() EventIngestService {
	return NewEventIngestService(s.stores.Repos(), s.stores.Jobs(), s.txRunner, s.logger)
}

func (s *Services) Queue() QueueService {
	return NewQueueService(s.stores.Jobs())
}

func (s *Services) Notify() NotifyService {
	return NewNotifyService(s.stores.Channels(), s.sender, s.logger)
}
