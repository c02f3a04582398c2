// Package statepublisher publishes the controller's sessions to Redis, so other applications (e.g. a UI) can
// follow the state of the greenhouse.
package statepublisher

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/clambin/greenhouse-controller/internal/controller"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"time"
)

const (
	// KeyPrefix is the prefix of the key holding a domain's latest session.
	KeyPrefix = "greenhouse:session:"
	// Channel receives every session update.
	Channel = "greenhouse:sessions"
)

type Publisher interface {
	Subscribe() <-chan controller.Update
	Unsubscribe(<-chan controller.Update)
}

// RedisClient is the subset of redis.Cmdable used by StatePublisher.
type RedisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

var _ RedisClient = &redis.Client{}

// StatePublisher writes each domain's session to Redis.
type StatePublisher struct {
	Publisher Publisher
	Client    RedisClient
	Logger    *slog.Logger
	// Expiration of the session keys. Zero means the keys don't expire.
	Expiration time.Duration
}

func (s *StatePublisher) Run(ctx context.Context) error {
	s.Logger.Debug("started")
	defer s.Logger.Debug("stopped")

	ch := s.Publisher.Subscribe()
	defer s.Publisher.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			if err := s.publish(ctx, update); err != nil {
				s.Logger.Warn("failed to publish session", "err", err, "session", update.Session)
			}
		}
	}
}

func (s *StatePublisher) publish(ctx context.Context, update controller.Update) error {
	payload, err := json.Marshal(update.Session)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err = s.Client.Set(ctx, KeyPrefix+update.Session.Domain, payload, s.Expiration).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	if err = s.Client.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
