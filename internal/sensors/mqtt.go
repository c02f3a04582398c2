package sensors

import (
	"context"
	"encoding/json"
	"fmt"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// MQTTClient is the subset of mqtt.Client used by Subscriber.
type MQTTClient interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// Subscriber receives sensor readings from an MQTT broker and adds them to a Store.
//
// The payload is a JSON-encoded Reading. If the payload does not carry a sensor ID, the last element of the topic is used.
//
// A broker drops the subscriptions of a clean session when the connection is lost. Register OnConnect as the client's
// mqtt.OnConnectHandler to subscribe again after the client reconnects.
type Subscriber struct {
	Client  MQTTClient
	Store   *Store
	Topic   string
	Logger  *slog.Logger
	Timeout time.Duration
	running atomic.Bool
}

func (s *Subscriber) Run(ctx context.Context) error {
	s.Logger.Debug("started", slog.String("topic", s.Topic))
	defer s.Logger.Debug("stopped")

	if err := s.subscribe(); err != nil {
		return fmt.Errorf("mqtt subscribe: %w", err)
	}
	s.running.Store(true)
	<-ctx.Done()
	s.running.Store(false)
	if err := s.wait(s.Client.Unsubscribe(s.Topic)); err != nil {
		s.Logger.Warn("failed to unsubscribe", "err", err)
	}
	return nil
}

// OnConnect subscribes to the sensor topic again once the client has (re)connected to the broker.
// Before Run has subscribed, or after it returned, OnConnect does nothing.
func (s *Subscriber) OnConnect(_ mqtt.Client) {
	if !s.running.Load() {
		return
	}
	if err := s.subscribe(); err != nil {
		s.Logger.Error("failed to subscribe after reconnect. no sensor readings will be received", "topic", s.Topic, "err", err)
		return
	}
	s.Logger.Info("subscribed after reconnect", "topic", s.Topic)
}

func (s *Subscriber) subscribe() error {
	return s.wait(s.Client.Subscribe(s.Topic, 1, s.onMessage))
}

func (s *Subscriber) wait(token mqtt.Token) error {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timeout after %s", timeout)
	}
	return token.Error()
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var r Reading
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		s.Logger.Warn("invalid sensor reading dropped", "topic", msg.Topic(), "err", err)
		return
	}
	if r.SensorID == "" {
		if i := strings.LastIndex(msg.Topic(), "/"); i >= 0 && i < len(msg.Topic())-1 {
			r.SensorID = msg.Topic()[i+1:]
		}
	}
	if r.SensorID == "" {
		s.Logger.Warn("sensor reading without sensor ID dropped", "topic", msg.Topic())
		return
	}
	s.Store.Add(r)
}
