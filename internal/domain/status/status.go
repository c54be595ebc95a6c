// Package status changes document lifecycles and announces the transitions.
package status

import (
	"context"
	"fmt"
	"time"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/core/notify"
	"factoryledger/internal/core/tx"
	"factoryledger/internal/domain/events"
	"factoryledger/pkg/logger"
)

// Kind names a document with a lifecycle.
type Kind string

const (
	KindProductionOrder Kind = "production_order"
	KindPackagingOrder  Kind = "packaging_order"
	KindInvoice         Kind = "invoice"
	KindReturn          Kind = "return"
)

// Event returns the bus stream for the kind.
func (k Kind) Event() (events.Name, bool) {
	switch k {
	case KindProductionOrder:
		return events.ProductionOrderStatusChange, true
	case KindPackagingOrder:
		return events.PackagingOrderStatusChange, true
	case KindInvoice:
		return events.InvoiceStatusChange, true
	case KindReturn:
		return events.ReturnStatusChange, true
	}
	return "", false
}

// ValidStatus reports whether status belongs to the kind's lifecycle.
func (k Kind) ValidStatus(status string) bool {
	switch k {
	case KindProductionOrder, KindPackagingOrder:
		return entity.OrderStatus(status).Valid()
	case KindInvoice:
		return entity.InvoiceStatus(status).Valid()
	case KindReturn:
		return entity.ReturnStatus(status).Valid()
	}
	return false
}

// Terminal reports whether a document of the kind may not leave status.
// A cancelled invoice or return has had its stock and money reversed; booking
// it again needs a new document.
func (k Kind) Terminal(status string) bool {
	switch k {
	case KindInvoice:
		return entity.InvoiceStatus(status) == entity.InvoiceCancelled
	case KindReturn:
		return entity.ReturnStatus(status) == entity.ReturnCancelled
	}
	return false
}

// Repository persists document statuses.
type Repository interface {
	// UpdateStatus stores status and returns the one it replaced.
	UpdateStatus(ctx context.Context, kind Kind, id, status string) (previous string, err error)
}

// Outbox records events inside the status transaction. Messages that were
// delivered in-process are marked published; the rest are relayed by the worker.
type Outbox interface {
	Append(ctx context.Context, ev events.Event) (messageID string, err error)
	MarkPublished(ctx context.Context, messageID string) error
}

// Publisher delivers events to in-process listeners.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Change is the result of a status update.
type Change struct {
	Kind           Kind   `json:"kind"`
	ID             string `json:"id"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previousStatus"`
	// Delivered is false when a listener failed; the outbox relay retries it.
	Delivered bool `json:"delivered"`
}

// Service applies status changes.
type Service struct {
	repo      Repository
	outbox    Outbox
	publisher Publisher
	txManager tx.Manager
	notifier  notify.Notifier
	now       func() time.Time
}

// NewService creates a status service.
func NewService(repo Repository, outbox Outbox, publisher Publisher, txManager tx.Manager, notifier notify.Notifier) *Service {
	return &Service{
		repo:      repo,
		outbox:    outbox,
		publisher: publisher,
		txManager: txManager,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Change stores the new status and the outbox record in one transaction, then
// publishes the transition. A status that does not change publishes nothing.
func (s *Service) Change(ctx context.Context, kind Kind, id, status string) (Change, error) {
	name, ok := kind.Event()
	if !ok {
		return Change{}, apperror.NewValidation(fmt.Sprintf("unknown document kind %q", kind))
	}
	if id == "" {
		return Change{}, apperror.NewValidation("id is required").WithDetail("field", "id")
	}
	if !kind.ValidStatus(status) {
		return Change{}, apperror.NewInvalidTransition(string(kind), status)
	}

	ch := Change{Kind: kind, ID: id, Status: status}
	var (
		ev        events.Event
		messageID string
	)

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		prev, err := s.repo.UpdateStatus(ctx, kind, id, status)
		if err != nil {
			return err
		}
		ch.PreviousStatus = prev
		if prev == status {
			return nil
		}
		if kind.Terminal(prev) {
			return apperror.NewBusinessRule(apperror.CodeInvalidTransition,
				fmt.Sprintf("%s %s is %s and cannot change to %s", kind, id, prev, status)).
				WithDetail("from", prev).
				WithDetail("to", status)
		}

		ev = events.Event{
			Name:           name,
			EntityID:       id,
			Status:         status,
			PreviousStatus: prev,
			OccurredAt:     s.now().UTC(),
		}
		messageID, err = s.outbox.Append(ctx, ev)
		if err != nil {
			return fmt.Errorf("append outbox: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error(ctx, "status change failed", "kind", kind, "id", id, "status", status, "error", err)
		return Change{}, apperror.Wrap(err)
	}

	if ch.PreviousStatus == status {
		ch.Delivered = true
		return ch, nil
	}

	logger.Info(ctx, "status changed", "kind", kind, "id", id, "from", ch.PreviousStatus, "to", status)

	if err := s.publisher.Publish(ctx, ev); err != nil {
		notify.Error(ctx, s.notifier, "Status change side effects failed",
			fmt.Sprintf("%s %s moved to %s but some listeners failed: %v", kind, id, status, err))
		return ch, nil
	}
	ch.Delivered = true

	if err := s.outbox.MarkPublished(ctx, messageID); err != nil {
		logger.Warn(ctx, "mark outbox message published", "message_id", messageID, "error", err)
	}
	return ch, nil
}
