// Package events is the in-process dispatcher that decouples the
// finish-match transaction from its slower cascades (bracket crediting,
// phase gating, promotion, live broadcast). Events carry identifiers only;
// every handler re-reads authoritative state before acting, which keeps the
// at-least-once delivery safe.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rafacaro85/polla-mundialista-core/models"
)

type EventType string

const (
	EventMatchFinished  EventType = "match_finished"
	EventPhaseCompleted EventType = "phase_completed"
)

// Event identifies a domain fact. Consumers must not trust any field beyond
// the identifiers.
type Event struct {
	Type         EventType
	TournamentID int
	MatchID      int
	Phase        models.Phase

	attempts int
}

type Handler func(ctx context.Context, event Event) error

const (
	maxAttempts  = 3
	retryBackoff = 2 * time.Second
)

type Dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[EventType][]Handler

	queue chan Event
	wg    sync.WaitGroup
}

func NewDispatcher(logger *slog.Logger, queueSize int) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		handlers: make(map[EventType][]Handler),
		queue:    make(chan Event, queueSize),
	}
}

// Subscribe registers a handler. All handlers of an event type run for every
// delivery, in registration order.
func (d *Dispatcher) Subscribe(eventType EventType, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Publish enqueues the event. Publish never blocks the caller's request
// path: when the queue is full the event is dropped with an error log, and a
// later forced sweep converges the state.
func (d *Dispatcher) Publish(event Event) {
	select {
	case d.queue <- event:
	default:
		d.logger.Error("event queue full, dropping event",
			slog.String("type", string(event.Type)),
			slog.Int("tournament_id", event.TournamentID),
			slog.Int("match_id", event.MatchID))
	}
}

// Run starts the worker pool and blocks until ctx is cancelled and the
// in-flight events are drained.
func (d *Dispatcher) Run(ctx context.Context, workers int) {
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.queue:
			d.deliver(ctx, event)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	d.mu.RLock()
	handlers := d.handlers[event.Type]
	d.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			event.attempts++
			logger := d.logger.With(
				slog.String("type", string(event.Type)),
				slog.Int("tournament_id", event.TournamentID),
				slog.Int("match_id", event.MatchID),
				slog.Int("attempt", event.attempts),
			)
			if event.attempts >= maxAttempts {
				logger.Error("event handler failed, giving up", slog.Any("error", err))
				return
			}
			logger.Warn("event handler failed, requeueing", slog.Any("error", err))
			go func(e Event) {
				select {
				case <-ctx.Done():
				case <-time.After(retryBackoff):
					d.Publish(e)
				}
			}(event)
			return
		}
	}
}
