// Package eventbus routes host broadcast events (state and config
// changes) to subscribers through a bounded worker pool.
package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// EventType represents the type of event.
type EventType string

const (
	// EventTypeStateChange fires when the shared light state changes with
	// a notifying call mode.
	EventTypeStateChange EventType = "state_change"

	// EventTypeConfigChange fires when the persisted config document is
	// rewritten.
	EventTypeConfigChange EventType = "config_change"
)

const (
	DefaultWorkerCount = 2
	DefaultQueueSize   = 64
)

// Event is a broadcast payload.
type Event struct {
	Type EventType
	Data map[string]any
}

// Handler handles events.
type Handler func(Event)

type work struct {
	event   Event
	handler Handler
}

// Bus fans events out to subscribers. Publishing never blocks: when the
// queue is full or the bus is closing, events are dropped with a warning.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler

	workQueue chan work
	wg        sync.WaitGroup

	closing   chan struct{}
	closeOnce sync.Once
}

// New creates an event bus with default worker count and queue size.
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates an event bus with a custom worker pool.
func NewWithConfig(workerCount, queueSize int) *Bus {
	b := &Bus{
		handlers:  make(map[EventType][]Handler),
		workQueue: make(chan work, queueSize),
		closing:   make(chan struct{}),
	}
	for i := 0; i < workerCount; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for w := range b.workQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("event_type", string(w.event.Type)).
						Msg("Event handler panicked")
				}
			}()
			w.handler(w.event)
		}()
	}
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish sends an event to all subscribed handlers.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	for _, handler := range handlers {
		select {
		case <-b.closing:
			log.Warn().Str("event_type", string(event.Type)).Msg("Event bus closing, dropping event")
			return
		case b.workQueue <- work{event: event, handler: handler}:
		default:
			log.Warn().Str("event_type", string(event.Type)).Msg("Event bus queue full, dropping event")
		}
	}
}

// Close shuts the worker pool down, waiting up to the context deadline
// for in-flight handlers.
func (b *Bus) Close(ctx context.Context) {
	b.closeOnce.Do(func() {
		close(b.closing)
		close(b.workQueue)
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("Timed out waiting for event bus workers")
	}
}
