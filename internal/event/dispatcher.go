// Package event hands committed domain events to in-process subscribers.
package event

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Gopher0727/ChatCore/internal/domain"
	"github.com/Gopher0727/ChatCore/internal/metrics"
	logger "github.com/Gopher0727/ChatCore/middleware/log"
)

// Handler reacts to one event. A returned error is logged; it never reaches the
// code that published the event.
type Handler func(ctx context.Context, e domain.Event) error

// Publisher is what the unit of work needs from the dispatcher.
type Publisher interface {
	Publish(ctx context.Context, events []domain.Event)
}

// Dispatcher delivers events sequentially, in the order given, to the handlers
// subscribed to their type and then to the catch-all handlers. Delivery is
// at-most-once: nothing is retried or persisted.
type Dispatcher struct {
	mu     sync.RWMutex
	byType map[string][]Handler
	all    []Handler
	log    *zap.Logger
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		byType: make(map[string][]Handler),
		log:    log.Named("dispatcher"),
	}
}

func (d *Dispatcher) Subscribe(eventType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byType[eventType] = append(d.byType[eventType], h)
}

func (d *Dispatcher) SubscribeAll(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.all = append(d.all, h)
}

func (d *Dispatcher) Publish(ctx context.Context, events []domain.Event) {
	for _, e := range events {
		handlers := d.handlersFor(e.EventType())
		for _, h := range handlers {
			d.deliver(ctx, h, e)
		}
		metrics.EventsPublished.WithLabelValues(e.EventType()).Inc()
	}
}

func (d *Dispatcher) handlersFor(eventType string) []Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Handler, 0, len(d.byType[eventType])+len(d.all))
	out = append(out, d.byType[eventType]...)
	return append(out, d.all...)
}

func (d *Dispatcher) deliver(ctx context.Context, h Handler, e domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SubscriberFailures.WithLabelValues(e.EventType(), "panic").Inc()
			logger.WithContext(d.log, ctx).Error("subscriber panicked",
				zap.String("event_type", e.EventType()),
				zap.String("event_id", e.EventID()),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	if err := h(ctx, e); err != nil {
		metrics.SubscriberFailures.WithLabelValues(e.EventType(), "error").Inc()
		logger.WithContext(d.log, ctx).Warn("subscriber failed",
			zap.String("event_type", e.EventType()),
			zap.String("event_id", e.EventID()),
			zap.Error(err),
		)
	}
}
