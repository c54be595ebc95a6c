package events

import (
	"context"
	"time"
)

// FinancialPublisher announces balance changes on a Bus.
type FinancialPublisher struct {
	Bus *Bus
}

// PublishFinancialChange broadcasts FinancialDataChange. Listener errors are
// already logged by the bus and never reach the balance writer.
func (p FinancialPublisher) PublishFinancialChange(ctx context.Context, reason string) {
	if p.Bus == nil {
		return
	}
	_ = p.Bus.Publish(ctx, Event{
		Name:       FinancialDataChange,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	})
}
