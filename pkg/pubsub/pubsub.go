// Package pubsub provides a basic Publish/Subscribe implementation.
//
// Each subscriber has a bounded buffer: a subscriber that falls behind loses the oldest values, but never blocks
// the publisher.
package pubsub

import (
	"log/slog"
	"sync"
)

// Publisher allows clients to subscribe and sends them the information provided by Publish.
type Publisher[T any] struct {
	clients map[<-chan T]chan T
	logger  *slog.Logger
	size    int
	lock    sync.RWMutex
}

// New returns a new Publisher. Subscribers only receive the latest published value.
func New[T any](logger *slog.Logger) *Publisher[T] {
	return NewBuffered[T](1, logger)
}

// NewBuffered returns a new Publisher that buffers up to size values per subscriber.
func NewBuffered[T any](size int, logger *slog.Logger) *Publisher[T] {
	return &Publisher[T]{
		clients: make(map[<-chan T]chan T),
		logger:  logger,
		size:    max(1, size),
	}
}

// Subscribe registers the caller and returns a new channel on which it will publish updates.
func (p *Publisher[T]) Subscribe() <-chan T {
	p.lock.Lock()
	defer p.lock.Unlock()
	ch := make(chan T, p.size)
	p.clients[ch] = ch
	p.logger.Debug("subscriber added", slog.Int("subscribers", len(p.clients)))
	return ch
}

// Unsubscribe removes the registered client/channel.
func (p *Publisher[T]) Unsubscribe(ch <-chan T) {
	p.lock.Lock()
	defer p.lock.Unlock()
	delete(p.clients, ch)
	p.logger.Debug("subscriber removed", slog.Int("subscribers", len(p.clients)))
}

// Publish sends info to all registered clients. If a client's buffer is full, its oldest value is dropped.
func (p *Publisher[T]) Publish(info T) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	for _, ch := range p.clients {
		select {
		case ch <- info:
			continue
		default:
		}
		// slow subscriber: drop the oldest value
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- info:
		default:
			p.logger.Debug("subscriber busy. update dropped")
		}
	}
}

// Subscribers returns the current number of subscribers
func (p *Publisher[T]) Subscribers() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return len(p.clients)
}
