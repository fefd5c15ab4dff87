package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/kinokawa/feedsync"
)

// NotifyService fans events out through redis pub/sub. Each user has
// one channel; the engine publishes, realtime sessions subscribe.
type NotifyService struct {
	rdb *redis.Client
}

func NewNotifyService(redisClient *redis.Client) *NotifyService {
	return &NotifyService{
		rdb: redisClient,
	}
}

func channelFor(userID string) string {
	return "events:" + userID
}

func (s *NotifyService) Publish(ctx context.Context, event feedsync.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, channelFor(event.UserID), jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Realtime relays events for one websocket session. input carries the
// user ids the session wants to follow; decoded events go to output.
// The relay owns its sends on output: callers must never close output,
// they end the session by closing input or canceling ctx.
func (s *NotifyService) Realtime(ctx context.Context, input chan []string, output chan feedsync.Event) {

	pubsub := s.rdb.Subscribe(ctx)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case userIDs, ok := <-input:
			if !ok {
				return
			}
			channels := make([]string, 0, len(userIDs))
			for _, id := range userIDs {
				channels = append(channels, channelFor(id))
			}
			if err := pubsub.Unsubscribe(ctx); err != nil {
				slog.ErrorContext(
					ctx, "Failed to unsubscribe",
					slog.String("error", err.Error()),
					slog.String("module", "notify"),
				)
			}
			if err := pubsub.Subscribe(ctx, channels...); err != nil {
				slog.ErrorContext(
					ctx, "Failed to subscribe",
					slog.String("error", err.Error()),
					slog.String("module", "notify"),
				)
			}
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event feedsync.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.ErrorContext(
					ctx, "Failed to decode event",
					slog.String("error", err.Error()),
					slog.String("module", "notify"),
				)
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
