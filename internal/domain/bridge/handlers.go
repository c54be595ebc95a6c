package bridge

import (
	"context"

	"factoryledger/internal/core/entity"
	"factoryledger/internal/domain/events"
	"factoryledger/pkg/logger"
)

// Register books invoices and returns as their status changes.
func (s *Service) Register(bus *events.Bus, docs Documents) {
	bus.Subscribe(events.InvoiceStatusChange, "bridge.invoice", func(ctx context.Context, ev events.Event) error {
		return s.invoiceChanged(ctx, docs, ev)
	})
	bus.Subscribe(events.ReturnStatusChange, "bridge.return", func(ctx context.Context, ev events.Event) error {
		return s.returnChanged(ctx, docs, ev)
	})
}

func (s *Service) invoiceChanged(ctx context.Context, docs Documents, ev events.Event) error {
	prev, cur := entity.InvoiceStatus(ev.PreviousStatus), entity.InvoiceStatus(ev.Status)
	switch {
	case cur == entity.InvoiceConfirmed && prev != entity.InvoiceConfirmed:
		inv, err := docs.GetInvoice(ctx, ev.EntityID)
		if err != nil {
			return err
		}
		if inv.Status != entity.InvoiceConfirmed {
			return stale(ctx, ev, string(inv.Status))
		}
		_, err = s.HandleInvoiceConfirmation(ctx, inv)
		return err
	case prev == entity.InvoiceConfirmed && cur == entity.InvoiceCancelled:
		inv, err := docs.GetInvoice(ctx, ev.EntityID)
		if err != nil {
			return err
		}
		if inv.Status == entity.InvoiceConfirmed {
			return stale(ctx, ev, string(inv.Status))
		}
		_, err = s.HandleCommercialCancellation(ctx, CancellationInput{
			ReferenceID:    inv.ID,
			ReferenceType:  RefInvoice,
			CommercialType: string(inv.InvoiceType),
			Amount:         inv.TotalAmount,
			PaidAmount:     inv.PaidAmount,
			PaymentMethod:  inv.PaymentMethod,
			PartyID:        inv.PartyID,
			PartyName:      inv.PartyName,
			Date:           ev.OccurredAt,
		})
		return err
	}
	return nil
}

func (s *Service) returnChanged(ctx context.Context, docs Documents, ev events.Event) error {
	prev, cur := entity.ReturnStatus(ev.PreviousStatus), entity.ReturnStatus(ev.Status)
	switch {
	case cur == entity.ReturnConfirmed && prev != entity.ReturnConfirmed:
		r, err := docs.GetReturn(ctx, ev.EntityID)
		if err != nil {
			return err
		}
		if r.Status != entity.ReturnConfirmed {
			return stale(ctx, ev, string(r.Status))
		}
		_, err = s.HandleReturnConfirmation(ctx, r)
		return err
	case prev == entity.ReturnConfirmed && cur == entity.ReturnCancelled:
		r, err := docs.GetReturn(ctx, ev.EntityID)
		if err != nil {
			return err
		}
		if r.Status == entity.ReturnConfirmed {
			return stale(ctx, ev, string(r.Status))
		}
		_, err = s.HandleReturnCancellation(ctx, r)
		return err
	}
	return nil
}

// stale drops an event the document has since moved past, such as a
// confirmation relayed after the invoice was cancelled.
func stale(ctx context.Context, ev events.Event, stored string) error {
	logger.Warn(ctx, "status event no longer matches document, skipped",
		"event", ev.Name, "entity_id", ev.EntityID, "to", ev.Status, "stored", stored)
	return nil
}
