package posting

import (
	"context"
	"fmt"

	"factoryledger/internal/core/notify"
	"factoryledger/internal/domain/events"
)

// Register subscribes the translator to the four status-change streams.
func (t *Translator) Register(bus *events.Bus) {
	bus.Subscribe(events.ProductionOrderStatusChange, "posting.production_order", t.handler(t.ProductionOrderChanged))
	bus.Subscribe(events.PackagingOrderStatusChange, "posting.packaging_order", t.handler(t.PackagingOrderChanged))
	bus.Subscribe(events.InvoiceStatusChange, "posting.invoice", t.handler(t.InvoiceChanged))
	bus.Subscribe(events.ReturnStatusChange, "posting.return", t.handler(t.ReturnChanged))
}

type transitionFunc func(ctx context.Context, id, prev, cur string) (Report, error)

func (t *Translator) handler(fn transitionFunc) events.Handler {
	return func(ctx context.Context, ev events.Event) error {
		report, err := fn(ctx, ev.EntityID, ev.PreviousStatus, ev.Status)
		if err != nil {
			return err
		}
		for _, p := range report.Problems() {
			notify.Warning(ctx, t.notifier, "Stock movement skipped",
				fmt.Sprintf("%s %s for %s %s: %s", p.ItemType, p.ItemID, report.ReferenceType, report.ReferenceID, p.Error))
		}
		return nil
	}
}
