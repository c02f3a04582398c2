// Package testutil contains fakes shared between tests.
package testutil

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"sync"
	"time"
)

var _ mqtt.Token = Token{}

// Token is a completed mqtt.Token.
type Token struct {
	Err error
}

func (t Token) Wait() bool                     { return true }
func (t Token) WaitTimeout(time.Duration) bool { return true }
func (t Token) Error() error                   { return t.Err }
func (t Token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

var _ mqtt.Message = Message{}

// Message is an mqtt.Message with a fixed topic and payload.
type Message struct {
	TopicName string
	Body      []byte
}

func (m Message) Duplicate() bool   { return false }
func (m Message) Qos() byte         { return 1 }
func (m Message) Retained() bool    { return false }
func (m Message) Topic() string     { return m.TopicName }
func (m Message) MessageID() uint16 { return 1 }
func (m Message) Payload() []byte   { return m.Body }
func (m Message) Ack()              {}

// Published is a message recorded by MQTTClient.
type Published struct {
	Topic   string
	Payload []byte
}

// MQTTClient records subscriptions and published messages.
type MQTTClient struct {
	Handlers  map[string]mqtt.MessageHandler
	Published []Published
	Err       error
	lock      sync.Mutex
}

func (c *MQTTClient) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.Handlers == nil {
		c.Handlers = make(map[string]mqtt.MessageHandler)
	}
	c.Handlers[topic] = callback
	return Token{Err: c.Err}
}

func (c *MQTTClient) Unsubscribe(topics ...string) mqtt.Token {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, topic := range topics {
		delete(c.Handlers, topic)
	}
	return Token{}
}

func (c *MQTTClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.lock.Lock()
	defer c.lock.Unlock()
	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = p
	case string:
		body = []byte(p)
	}
	c.Published = append(c.Published, Published{Topic: topic, Payload: body})
	return Token{Err: c.Err}
}

// DropSubscriptions drops all subscriptions, as the broker does for a clean session when the connection is lost.
func (c *MQTTClient) DropSubscriptions() {
	c.lock.Lock()
	defer c.lock.Unlock()
	clear(c.Handlers)
}

// Deliver sends a message to the handler registered for topic.
func (c *MQTTClient) Deliver(topic string, msg Message) bool {
	c.lock.Lock()
	h, ok := c.Handlers[topic]
	c.lock.Unlock()
	if ok {
		h(nil, msg)
	}
	return ok
}

// Messages returns a copy of all published messages.
func (c *MQTTClient) Messages() []Published {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]Published(nil), c.Published...)
}
