// Package posting translates business status transitions into inventory movements.
//
// A transition that enters the posting boundary (order completed, invoice or
// return confirmed) posts forward movements. Leaving it posts the mirror of
// whatever is still outstanding for that reference. Each posting runs in one
// transaction; each line runs in its own savepoint so a bad line is skipped
// while the rest proceed.
package posting

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/core/notify"
	"factoryledger/internal/core/tx"
	"factoryledger/internal/domain/movement"
	"factoryledger/pkg/logger"
)

// Reference types written on movements.
const (
	RefProductionOrder = "production_order"
	RefPackagingOrder  = "packaging_order"
	RefInvoice         = "invoice"
	RefReturn          = "return"
)

// Source loads the business objects whose transitions are posted.
type Source interface {
	GetProductionOrder(ctx context.Context, id string) (entity.ProductionOrder, error)
	GetPackagingOrder(ctx context.Context, id string) (entity.PackagingOrder, error)
	GetInvoice(ctx context.Context, id string) (entity.Invoice, error)
	GetReturn(ctx context.Context, id string) (entity.Return, error)
}

// Stock changes on-hand quantity atomically and returns the new quantity.
// A missing item is reported as an apperror not-found.
type Stock interface {
	AdjustQuantity(ctx context.Context, itemType entity.ItemType, itemID string, delta decimal.Decimal) (decimal.Decimal, error)
}

// Recorder appends movements.
type Recorder interface {
	Record(ctx context.Context, in movement.Input) error
}

// Postings reads what was already posted for a reference.
type Postings interface {
	// LockReference serializes postings of one reference until the transaction ends.
	LockReference(ctx context.Context, refType, refID string) error
	LatestDirection(ctx context.Context, refType, refID string) (*entity.Direction, error)
	ListByReference(ctx context.Context, refType, refID string) ([]entity.InventoryMovement, error)
}

// Translator turns status transitions into movements.
type Translator struct {
	txManager tx.Manager
	source    Source
	stock     Stock
	recorder  Recorder
	postings  Postings
	notifier  notify.Notifier
}

// NewTranslator creates a translator.
func NewTranslator(txManager tx.Manager, source Source, stock Stock, recorder Recorder, postings Postings, notifier notify.Notifier) *Translator {
	return &Translator{
		txManager: txManager,
		source:    source,
		stock:     stock,
		recorder:  recorder,
		postings:  postings,
		notifier:  notifier,
	}
}

type line struct {
	itemType     entity.ItemType
	itemID       string
	movementType entity.MovementType
	quantity     decimal.Decimal
}

// crossing reports whether prev -> cur enters or leaves boundary.
func crossing(prev, cur, boundary string) (entity.Direction, bool) {
	switch {
	case prev != boundary && cur == boundary:
		return entity.DirectionForward, true
	case prev == boundary && cur != boundary:
		return entity.DirectionReverse, true
	}
	return "", false
}

// allowed applies the posting idempotency rule: forward only when the latest
// posting is not forward, reverse only when it is.
func allowed(latest *entity.Direction, dir entity.Direction) bool {
	if dir == entity.DirectionForward {
		return latest == nil || *latest != entity.DirectionForward
	}
	return latest != nil && *latest == entity.DirectionForward
}

// document is what a posting needs from the business object: its forward
// lines, a label for movement reasons and its stored status.
type document struct {
	lines   []line
	subject string
	status  string
}

type loader func(ctx context.Context) (document, error)

// current reports whether the stored status still agrees with dir: a forward
// posting needs the document inside the boundary, a reverse one outside it.
// Replayed events for a transition that was since undone fail this check.
func current(stored, boundary string, dir entity.Direction) bool {
	if dir == entity.DirectionForward {
		return stored == boundary
	}
	return stored != boundary
}

// ProductionOrderChanged posts a production order transition.
func (t *Translator) ProductionOrderChanged(ctx context.Context, orderID, prev, cur string) (Report, error) {
	return t.post(ctx, RefProductionOrder, orderID, prev, cur, string(entity.OrderCompleted),
		func(ctx context.Context) (document, error) {
			o, err := t.source.GetProductionOrder(ctx, orderID)
			if err != nil {
				return document{}, err
			}
			lines := make([]line, 0, len(o.Ingredients)+1)
			for _, in := range o.Ingredients {
				lines = append(lines, line{entity.ItemTypeRaw, in.ItemID, entity.MovementOut, in.RequiredQuantity})
			}
			lines = append(lines, line{entity.ItemTypeSemi, o.ProductID, entity.MovementIn, o.Quantity})
			return document{lines, "production order " + label(o.Code, o.ID), string(o.Status)}, nil
		})
}

// PackagingOrderChanged posts a packaging order transition.
func (t *Translator) PackagingOrderChanged(ctx context.Context, orderID, prev, cur string) (Report, error) {
	return t.post(ctx, RefPackagingOrder, orderID, prev, cur, string(entity.OrderCompleted),
		func(ctx context.Context) (document, error) {
			o, err := t.source.GetPackagingOrder(ctx, orderID)
			if err != nil {
				return document{}, err
			}
			lines := make([]line, 0, len(o.Materials)+2)
			lines = append(lines, line{entity.ItemTypeSemi, o.SemiFinishedID, entity.MovementOut, o.SemiFinishedQuantity})
			for _, m := range o.Materials {
				lines = append(lines, line{entity.ItemTypePackaging, m.ItemID, entity.MovementOut, m.RequiredQuantity})
			}
			lines = append(lines, line{entity.ItemTypeFinished, o.FinishedProductID, entity.MovementIn, o.Quantity})
			return document{lines, "packaging order " + label(o.Code, o.ID), string(o.Status)}, nil
		})
}

// InvoiceChanged posts an invoice transition: sales take stock out, purchases bring it in.
func (t *Translator) InvoiceChanged(ctx context.Context, invoiceID, prev, cur string) (Report, error) {
	return t.post(ctx, RefInvoice, invoiceID, prev, cur, string(entity.InvoiceConfirmed),
		func(ctx context.Context) (document, error) {
			inv, err := t.source.GetInvoice(ctx, invoiceID)
			if err != nil {
				return document{}, err
			}
			mt := entity.MovementOut
			if inv.InvoiceType == entity.InvoicePurchase {
				mt = entity.MovementIn
			}
			lines := make([]line, 0, len(inv.Items))
			for _, it := range inv.Items {
				lines = append(lines, line{it.ItemType, it.ItemID, mt, it.Quantity})
			}
			return document{lines, fmt.Sprintf("%s invoice %s", inv.InvoiceType, inv.ID), string(inv.Status)}, nil
		})
}

// ReturnChanged posts a return transition: sales returns bring stock back, purchase returns send it out.
func (t *Translator) ReturnChanged(ctx context.Context, returnID, prev, cur string) (Report, error) {
	return t.post(ctx, RefReturn, returnID, prev, cur, string(entity.ReturnConfirmed),
		func(ctx context.Context) (document, error) {
			r, err := t.source.GetReturn(ctx, returnID)
			if err != nil {
				return document{}, err
			}
			mt := entity.MovementIn
			if r.ReturnType == entity.PurchaseReturn {
				mt = entity.MovementOut
			}
			lines := make([]line, 0, len(r.Items))
			for _, it := range r.Items {
				lines = append(lines, line{it.ItemType, it.ItemID, mt, it.Quantity})
			}
			return document{lines, fmt.Sprintf("%s %s", r.ReturnType, r.ID), string(r.Status)}, nil
		})
}

func (t *Translator) post(
	ctx context.Context,
	refType, refID, prev, cur, boundary string,
	load loader,
) (Report, error) {
	report := Report{ReferenceType: refType, ReferenceID: refID, Items: []ItemResult{}}

	dir, ok := crossing(prev, cur, boundary)
	if !ok {
		return report, nil
	}
	report.Triggered = true
	report.Direction = dir

	err := t.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := t.postings.LockReference(ctx, refType, refID); err != nil {
			return fmt.Errorf("lock reference: %w", err)
		}

		doc, err := load(ctx)
		switch {
		case err == nil:
		case dir == entity.DirectionReverse && apperror.IsNotFound(err):
			// A deleted document still has its outstanding stock undone.
			doc = document{}
		default:
			return err
		}
		if !current(doc.status, boundary, dir) {
			report.Stale = true
			return nil
		}

		latest, err := t.postings.LatestDirection(ctx, refType, refID)
		if err != nil {
			return fmt.Errorf("latest posting: %w", err)
		}
		if !allowed(latest, dir) {
			report.Duplicate = true
			return nil
		}

		lines, subject := doc.lines, doc.subject
		if dir == entity.DirectionReverse {
			lines, err = t.outstanding(ctx, refType, refID)
			if err != nil {
				return err
			}
			subject = refType + " " + refID
		}

		reason := subject
		if dir == entity.DirectionReverse {
			reason = "reversal of " + subject
		}
		for _, l := range lines {
			report.Items = append(report.Items, t.apply(ctx, refType, refID, dir, reason, l))
		}
		return nil
	})
	if err != nil {
		logger.Error(ctx, "posting failed",
			"reference_type", refType, "reference_id", refID, "direction", dir, "error", err)
		return report, apperror.Wrap(err)
	}

	if report.Stale {
		logger.Warn(ctx, "transition no longer matches document status, skipped",
			"reference_type", refType, "reference_id", refID, "direction", dir, "from", prev, "to", cur)
		return report, nil
	}
	if report.Duplicate {
		logger.Info(ctx, "posting already in effect, skipped",
			"reference_type", refType, "reference_id", refID, "direction", dir)
		return report, nil
	}

	logger.Info(ctx, "posting applied",
		"reference_type", refType,
		"reference_id", refID,
		"direction", dir,
		"recorded", report.Count(ItemRecorded),
		"skipped", report.Count(ItemSkipped),
		"failed", report.Count(ItemFailed),
	)
	return report, nil
}

// outstanding mirrors the net effect still standing for a reference, item by item.
func (t *Translator) outstanding(ctx context.Context, refType, refID string) ([]line, error) {
	movements, err := t.postings.ListByReference(ctx, refType, refID)
	if err != nil {
		return nil, fmt.Errorf("list posted movements: %w", err)
	}

	type key struct {
		itemType entity.ItemType
		itemID   string
	}
	net := make(map[key]decimal.Decimal)
	var order []key
	for _, m := range movements {
		k := key{m.ItemType, m.ItemID}
		if _, seen := net[k]; !seen {
			order = append(order, k)
			net[k] = decimal.Zero
		}
		net[k] = net[k].Add(m.SignedQuantity())
	}

	lines := make([]line, 0, len(order))
	for _, k := range order {
		q := net[k]
		switch {
		case q.IsPositive():
			lines = append(lines, line{k.itemType, k.itemID, entity.MovementOut, q})
		case q.IsNegative():
			lines = append(lines, line{k.itemType, k.itemID, entity.MovementIn, q.Abs()})
		}
	}
	return lines, nil
}

func (t *Translator) apply(ctx context.Context, refType, refID string, dir entity.Direction, reason string, l line) ItemResult {
	res := ItemResult{
		ItemType:     l.itemType,
		ItemID:       l.itemID,
		MovementType: l.movementType,
		Quantity:     l.quantity.Abs(),
		Direction:    dir,
	}
	if !l.itemType.Valid() || l.itemID == "" {
		res.Status = ItemSkipped
		res.Error = fmt.Sprintf("invalid item reference %q/%q", l.itemType, l.itemID)
		logger.Warn(ctx, "posting line skipped", "reference_id", refID, "item_type", l.itemType, "item_id", l.itemID, "error", res.Error)
		return res
	}

	delta := res.Quantity
	if l.movementType == entity.MovementOut {
		delta = delta.Neg()
	}

	err := t.txManager.RunInSavepoint(ctx, func(ctx context.Context) error {
		balance, err := t.stock.AdjustQuantity(ctx, l.itemType, l.itemID, delta)
		if err != nil {
			return err
		}
		res.BalanceAfter = &balance
		return t.recorder.Record(ctx, movement.Input{
			ItemID:        l.itemID,
			ItemType:      l.itemType,
			MovementType:  l.movementType,
			Quantity:      res.Quantity,
			BalanceAfter:  balance,
			Reason:        reason,
			ReferenceType: refType,
			ReferenceID:   refID,
			Direction:     dir,
		})
	})

	switch {
	case err == nil:
		res.Status = ItemRecorded
	case apperror.IsNotFound(err):
		res.Status = ItemSkipped
		res.BalanceAfter = nil
		res.Error = err.Error()
		logger.Warn(ctx, "posting line skipped",
			"reference_id", refID, "item_type", l.itemType, "item_id", l.itemID, "error", err)
	default:
		res.Status = ItemFailed
		res.BalanceAfter = nil
		res.Error = err.Error()
		logger.Error(ctx, "posting line failed",
			"reference_id", refID, "item_type", l.itemType, "item_id", l.itemID, "error", err)
	}
	return res
}

func label(code, id string) string {
	if code != "" {
		return code
	}
	return id
}
