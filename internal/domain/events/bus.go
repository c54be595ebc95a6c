// Package events dispatches status-change notifications to registered handlers.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"factoryledger/pkg/logger"
)

var tracer = otel.Tracer("factoryledger/events")

// Name identifies an event stream.
type Name string

const (
	ProductionOrderStatusChange Name = "production-order-status-change"
	PackagingOrderStatusChange  Name = "packaging-order-status-change"
	InvoiceStatusChange         Name = "invoice-status-change"
	ReturnStatusChange          Name = "return-status-change"
	FinancialDataChange         Name = "financial-data-change"
)

// Event is the payload broadcast on the bus.
type Event struct {
	Name           Name      `json:"name"`
	EntityID       string    `json:"entityId"`
	Status         string    `json:"status,omitempty"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Handler reacts to one event.
type Handler func(ctx context.Context, ev Event) error

type subscription struct {
	name    string
	handler Handler
}

// Bus is an in-process dispatcher. Handlers run synchronously in registration order.
type Bus struct {
	mu   sync.RWMutex
	subs map[Name][]subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Name][]subscription)}
}

// Subscribe registers handler under a descriptive name used in logs and spans.
func (b *Bus) Subscribe(event Name, handlerName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[event] = append(b.subs[event], subscription{name: handlerName, handler: handler})
}

// Handlers returns the registered handler names for event.
func (b *Bus) Handlers(event Name) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.subs[event]))
	for _, s := range b.subs[event] {
		names = append(names, s.name)
	}
	return names
}

// Publish delivers ev to every handler. A failing handler does not stop the others;
// all failures are joined into the returned error.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[ev.Name]...)
	b.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := b.dispatch(ctx, s, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) dispatch(ctx context.Context, s subscription, ev Event) (err error) {
	ctx, span := tracer.Start(ctx, "event "+string(ev.Name))
	span.SetAttributes(
		attribute.String("event.handler", s.name),
		attribute.String("event.entity_id", ev.EntityID),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error(ctx, "event handler failed",
				"event", ev.Name, "handler", s.name, "entity_id", ev.EntityID, "error", err)
		}
	}()

	return s.handler(ctx, ev)
}
