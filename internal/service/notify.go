package service

import (
	"context"
	"log/slog"

	"opscord.app/pipeline/internal/discord"
	"opscord.app/pipeline/internal/model"
	"opscord.app/pipeline/internal/store"
)

// MessageSender is the slice of the Discord client fan-out needs.
type MessageSender interface {
	SendMessage(ctx context.Context, channelID, botToken string, msg discord.Message) (string, error)
}

type NotifyResult struct {
	ChannelCount int `json:"channelCount"`
	SentCount    int `json:"sentCount"`
}

// NotifyService delivers one embed to every channel bound to a repository
// for a notification kind.
type NotifyService interface {
	Notify(ctx context.Context, repoID int64, kind model.ChannelKind, embed discord.Embed) (*NotifyResult, error)
}

type notifyService struct {
	channels store.ChannelStore
	sender   MessageSender
	logger   *slog.Logger
}

func NewNotifyService(channels store.ChannelStore, sender MessageSender, logger *slog.Logger) NotifyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &notifyService{
		channels: channels,
		sender:   sender,
		logger:   logger,
	}
}

// Notify fans out to each binding independently: one channel failing, or
// zero channels being bound, never fails the caller. Errors are reflected
// in SentCount only.
func (s *notifyService) Notify(ctx context.Context, repoID int64, kind model.ChannelKind, embed discord.Embed) (*NotifyResult, error) {
	bindings, err := s.channels.ListByRepoAndKind(ctx, repoID, kind)
	if err != nil {
		return nil, err
	}

	result := &NotifyResult{ChannelCount: len(bindings)}
	for _, binding := range bindings {
		messageID, err := s.sender.SendMessage(ctx, binding.ChannelID, binding.BotToken, discord.Message{
			Embeds: []discord.Embed{embed},
		})
		if err != nil {
			s.logger.WarnContext(ctx, "channel delivery failed",
				"error", err, "repo_id", repoID, "channel_id", binding.ChannelID, "kind", kind)
			continue
		}
		s.logger.DebugContext(ctx, "channel delivery sent",
			"repo_id", repoID, "channel_id", binding.ChannelID, "message_id", messageID)
		result.SentCount++
	}

	return result, nil
}
