package statepublisher

import (
	"context"
	"errors"
	"github.com/clambin/greenhouse-controller/internal/automation"
	"github.com/clambin/greenhouse-controller/internal/controller"
	"github.com/clambin/greenhouse-controller/pkg/pubsub"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func TestStatePublisher_Run(t *testing.T) {
	p := pubsub.New[controller.Update](slog.New(slog.DiscardHandler))
	var c fakeRedis
	s := StatePublisher{Publisher: p, Client: &c, Logger: slog.New(slog.DiscardHandler), Expiration: time.Hour}

	errCh := make(chan error)
	ctx, cancel := context.WithCancel(t.Context())
	go func() { errCh <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return p.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	p.Publish(controller.Update{Session: automation.Session{Domain: "climate", Status: automation.Running, ActiveRuleID: "high-temp", Timer: time.Minute}})

	assert.Eventually(t, func() bool { return len(c.messages()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	assert.NoError(t, <-errCh)

	value, ok := c.get(KeyPrefix + "climate")
	require.True(t, ok)
	var session automation.Session
	require.NoError(t, session.UnmarshalJSON(value))
	assert.Equal(t, "high-temp", session.ActiveRuleID)
	assert.Equal(t, time.Minute, session.Timer)
	assert.Equal(t, string(value), c.messages()[0])
	assert.Equal(t, time.Hour, c.expiration)
}

func TestStatePublisher_publish_Failure(t *testing.T) {
	c := fakeRedis{err: errors.New("connection refused")}
	s := StatePublisher{Client: &c, Logger: slog.New(slog.DiscardHandler)}

	err := s.publish(t.Context(), controller.Update{Session: automation.Session{Domain: "climate"}})
	assert.ErrorContains(t, err, "set: connection refused")
	assert.Empty(t, c.messages())
}

var _ RedisClient = &fakeRedis{}

type fakeRedis struct {
	values     map[string][]byte
	published  []string
	expiration time.Duration
	err        error
	lock       sync.Mutex
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.lock.Lock()
	defer f.lock.Unlock()
	cmd := redis.NewStatusCmd(ctx, "set", key, value)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	if f.values == nil {
		f.values = make(map[string][]byte)
	}
	f.values[key] = value.([]byte)
	f.expiration = expiration
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.lock.Lock()
	defer f.lock.Unlock()
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.published = append(f.published, string(message.([]byte)))
	cmd.SetVal(1)
	return cmd
}

func (f *fakeRedis) get(key string) ([]byte, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeRedis) messages() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.published...)
}
