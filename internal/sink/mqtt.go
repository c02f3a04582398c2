package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/clambin/greenhouse-controller/internal/automation"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"strings"
)

// MQTTPublisher is the subset of mqtt.Client used by MQTTSink.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

var _ Sink = &MQTTSink{}

// MQTTSink publishes commands to an MQTT broker. Each device group has its own topic: TopicTemplate with
// "<group>" replaced by the device group's name, e.g. "greenhouse/devices/<group>/set".
type MQTTSink struct {
	Client        MQTTPublisher
	TopicTemplate string
}

const DefaultCommandTopic = "greenhouse/devices/<group>/set"

func (s *MQTTSink) Apply(ctx context.Context, command automation.Command) error {
	payload, err := json.Marshal(command)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	topic := s.TopicTemplate
	if topic == "" {
		topic = DefaultCommandTopic
	}
	topic = strings.ReplaceAll(topic, "<group>", command.Group)

	// retained, so a reconnecting device receives its latest desired state
	token := s.Client.Publish(topic, 1, true, payload)
	select {
	case <-token.Done():
		if err = token.Error(); err != nil {
			return fmt.Errorf("mqtt publish: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish: %w", ctx.Err())
	}
}
