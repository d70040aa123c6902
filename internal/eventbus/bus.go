// Package eventbus delivers scheduler notifications to subscribers on a
// bounded worker pool, so a slow view never stalls the store. Each
// subscriber is pinned to one worker and sees its events in publish order.
package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Topic identifies a kind of notification.
type Topic string

const (
	TopicStateChanged Topic = "state_changed"
	TopicSyncFinished Topic = "sync_finished"
)

// Default configuration
const (
	DefaultWorkerCount = 2
	DefaultQueueSize   = 64
)

// Event is a single notification. Payload is owned by the receiver.
type Event struct {
	Topic   Topic
	Payload any
}

// Handler receives events for a topic.
type Handler func(Event)

type delivery struct {
	event   Event
	handler Handler
}

type subscription struct {
	id      int
	handler Handler
}

// Bus routes events to subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]subscription
	nextID   int

	// one FIFO queue per worker
	queues []chan delivery
	wg     sync.WaitGroup

	// closing is closed before the queues so Publish never sends on a closed channel
	closing   chan struct{}
	closeOnce sync.Once
	sendMu    sync.RWMutex
}

// New creates a bus with default settings.
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates a bus with a custom worker count and queue size.
func NewWithConfig(workers, queueSize int) *Bus {
	if workers <= 0 {
		workers = DefaultWorkerCount
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	b := &Bus{
		handlers: make(map[Topic][]subscription),
		queues:   make([]chan delivery, workers),
		closing:  make(chan struct{}),
	}
	for i := range b.queues {
		b.queues[i] = make(chan delivery, queueSize)
		b.wg.Add(1)
		go b.worker(i, b.queues[i])
	}

	log.Debug().Int("workers", workers).Int("queue_size", queueSize).Msg("Event bus started")
	return b
}

func (b *Bus) worker(id int, queue <-chan delivery) {
	defer b.wg.Done()

	for d := range queue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("topic", string(d.event.Topic)).
						Int("worker", id).
						Msg("Event handler panicked")
				}
			}()
			d.handler(d.event)
		}()
	}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic Topic, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[topic] = append(b.handlers[topic], subscription{id: b.nextID, handler: handler})
	b.nextID++
}

// Publish queues the event for every subscriber of its topic. It never
// blocks: events are dropped when the queue is full or the bus is closed.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Topic]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	b.sendMu.RLock()
	defer b.sendMu.RUnlock()

	for _, sub := range handlers {
		select {
		case <-b.closing:
			log.Debug().Str("topic", string(event.Topic)).Msg("Event bus closed, dropping event")
			return
		default:
		}

		select {
		case b.queues[sub.id%len(b.queues)] <- delivery{event: event, handler: sub.handler}:
		default:
			log.Warn().Str("topic", string(event.Topic)).Msg("Event bus queue full, dropping event")
		}
	}
}

// Close stops accepting events and waits for queued deliveries until ctx
// expires.
func (b *Bus) Close(ctx context.Context) {
	b.closeOnce.Do(func() {
		close(b.closing)

		// wait for in-flight Publish calls before closing the queues
		b.sendMu.Lock()
		for _, q := range b.queues {
			close(q)
		}
		b.sendMu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Msg("Event bus stopped")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, some events may be lost")
	}
}
