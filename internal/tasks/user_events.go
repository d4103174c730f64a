package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/simdev/taskhub/pkg/core/logger"
	"github.com/simdev/taskhub/pkg/existence"
	"github.com/simdev/taskhub/pkg/messaging/event"
	"github.com/simdev/taskhub/pkg/messaging/inbox"
	"github.com/simdev/taskhub/pkg/messaging/kafka/consumer"
	"go.uber.org/zap"
)

type cascader interface {
	DeleteByUser(ctx context.Context, userID int64) (int, error)
}

type evicter interface {
	Evict(id int64)
	EvictAll()
}

// userEventsHandler applies user lifecycle events: a deleted user loses its
// tasks, and any change drops the user's existence entry.
type userEventsHandler struct {
	tasks  cascader
	cache  evicter
	legacy bool
	now    func() time.Time
}

func (h *userEventsHandler) Process(ctx context.Context, msg *consumer.Message) error {
	e, err := event.DecodeUserEvent(msg.Value, h.now)
	if err != nil {
		if !h.legacy {
			return fmt.Errorf("%w: %w", consumer.ErrPermanent, err)
		}
		logger.Get(ctx).Warn("user event is not a JSON envelope, scanning legacy format", zap.Error(err))
		return h.processLegacy(ctx, string(msg.Value))
	}

	category, err := event.ParseCategory(string(e.EventType))
	if err != nil {
		logger.Get(ctx).Warn("ignoring user event with unknown type",
			zap.String("event_type", string(e.EventType)), zap.Int64("user_id", e.UserID))
		return nil
	}

	switch category {
	case event.Deleted:
		return h.userDeleted(ctx, e.UserID)
	default:
		h.cache.Evict(e.UserID)
		logger.Get(ctx).Info("user changed, existence entry evicted",
			zap.String("event_type", string(category)), zap.Int64("user_id", e.UserID))
		return nil
	}
}

func (h *userEventsHandler) processLegacy(ctx context.Context, payload string) error {
	action, userID, err := event.ScanLegacy(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", consumer.ErrPermanent, err)
	}
	switch action {
	case event.LegacyDeleteUser:
		return h.userDeleted(ctx, userID)
	case event.LegacyEvictAll:
		h.cache.EvictAll()
		logger.Get(ctx).Info("legacy user event, existence cache flushed")
	default:
		logger.Get(ctx).Warn("ignoring unrecognized legacy user event", zap.String("payload", payload))
	}
	return nil
}

func (h *userEventsHandler) userDeleted(ctx context.Context, userID int64) error {
	n, err := h.tasks.DeleteByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete tasks of user %d: %w", userID, err)
	}
	h.cache.Evict(userID)
	logger.Get(ctx).Info("user deleted, tasks removed", zap.Int64("user_id", userID), zap.Int("tasks", n))
	return nil
}

type userEventsConsumer struct {
	consumer.Handler
}

func newUserEventsConsumer(guard *inbox.Guard, s *Service, cache *existence.Cache) *userEventsConsumer {
	return &userEventsConsumer{Handler: guard.Wrap(&userEventsHandler{
		tasks:  s,
		cache:  cache,
		legacy: guard.LegacyFallback(),
		now:    time.Now,
	})}
}
