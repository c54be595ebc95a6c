package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"factoryledger/internal/core/id"
	"factoryledger/internal/domain/events"
	"factoryledger/pkg/logger"
)

const outboxTable = "sys_outbox"

// OutboxStatus is the delivery state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// maxOutboxRetries moves a message to failed after this many attempts.
const maxOutboxRetries = 5

// OutboxMessage is a row of sys_outbox.
type OutboxMessage struct {
	ID            string       `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   string       `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// Event decodes the payload.
func (m OutboxMessage) Event() (events.Event, error) {
	var ev events.Event
	if err := json.Unmarshal(m.Payload, &ev); err != nil {
		return ev, fmt.Errorf("decode outbox payload %s: %w", m.ID, err)
	}
	return ev, nil
}

// Outbox writes status events next to the status update and marks them
// published once in-process delivery succeeded.
type Outbox struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// NewOutbox creates an outbox writer.
func NewOutbox(txManager *TxManager) *Outbox {
	return &Outbox{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts ev. It must run inside a transaction.
func (o *Outbox) Append(ctx context.Context, ev events.Event) (string, error) {
	t := o.txManager.GetTx(ctx)
	if t == nil {
		return "", fmt.Errorf("outbox append requires transaction context")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal event payload: %w", err)
	}

	msgID := id.NewString()
	sql, args, err := o.builder.Insert(outboxTable).
		Columns("id", "aggregate_type", "aggregate_id", "event_type", "payload", "status", "created_at").
		Values(msgID, aggregateOf(ev.Name), ev.EntityID, string(ev.Name), payload, OutboxStatusPending, time.Now().UTC()).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}

	if _, err := t.Exec(ctx, sql, args...); err != nil {
		return "", fmt.Errorf("insert outbox message: %w", err)
	}
	return msgID, nil
}

// MarkPublished flags a message as delivered.
func (o *Outbox) MarkPublished(ctx context.Context, messageID string) error {
	sql, args, err := o.builder.Update(outboxTable).
		Set("status", OutboxStatusPublished).
		Set("published_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": messageID, "status": OutboxStatusPending}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := o.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("mark outbox message: %w", err)
	}
	return nil
}

func aggregateOf(name events.Name) string {
	switch name {
	case events.ProductionOrderStatusChange:
		return "production_order"
	case events.PackagingOrderStatusChange:
		return "packaging_order"
	case events.InvoiceStatusChange:
		return "invoice"
	case events.ReturnStatusChange:
		return "return"
	}
	return string(name)
}

// OutboxHandler processes one relayed message.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxRelay redelivers messages whose in-process delivery did not complete.
type OutboxRelay struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
	batchSize int
	handler   OutboxHandler
	// minAge leaves fresh messages to the request that wrote them.
	minAge time.Duration
}

// NewOutboxRelay creates a relay.
func NewOutboxRelay(txManager *TxManager, batchSize int, handler OutboxHandler) *OutboxRelay {
	if batchSize < 1 {
		batchSize = 100
	}
	return &OutboxRelay{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		batchSize: batchSize,
		handler:   handler,
		minAge:    30 * time.Second,
	}
}

// BatchSize is the maximum number of messages one ProcessBatch handles.
func (r *OutboxRelay) BatchSize() int {
	return r.batchSize
}

func (r *OutboxRelay) pendingQuery(now time.Time) squirrel.SelectBuilder {
	return r.builder.Select(
		"id::text AS id", "aggregate_type", "aggregate_id", "event_type", "payload", "status",
		"retry_count", "last_error", "next_retry_at", "created_at", "published_at",
	).From(outboxTable).
		Where(squirrel.Eq{"status": OutboxStatusPending}).
		Where(squirrel.LtOrEq{"created_at": now.Add(-r.minAge)}).
		Where(squirrel.Or{
			squirrel.Eq{"next_retry_at": nil},
			squirrel.LtOrEq{"next_retry_at": now},
		}).
		OrderBy("created_at").
		Limit(uint64(r.batchSize)).
		Suffix("FOR UPDATE SKIP LOCKED")
}

// ProcessBatch locks a batch of pending messages and hands each to the
// handler inside its own savepoint. Returns the number delivered.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sql, args, err := r.pendingQuery(time.Now().UTC()).ToSql()
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}

		var messages []*OutboxMessage
		if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &messages, sql, args...); err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		for _, msg := range messages {
			if err := r.deliver(ctx, msg); err != nil {
				return err
			}
			if msg.Status == OutboxStatusPublished {
				processed++
			}
		}
		return nil
	})
	return processed, err
}

// deliver records the outcome on msg; only bookkeeping failures are returned.
func (r *OutboxRelay) deliver(ctx context.Context, msg *OutboxMessage) error {
	handleErr := r.txManager.RunInSavepoint(ctx, func(ctx context.Context) error {
		return r.handler.Handle(ctx, msg)
	})

	q := r.builder.Update(outboxTable).Where(squirrel.Eq{"id": msg.ID})
	if handleErr == nil {
		msg.Status = OutboxStatusPublished
		q = q.Set("status", OutboxStatusPublished).Set("published_at", time.Now().UTC())
	} else {
		logger.Warn(ctx, "outbox delivery failed",
			"message_id", msg.ID, "event", msg.EventType, "retry", msg.RetryCount+1, "error", handleErr)
		status := OutboxStatusPending
		if msg.RetryCount+1 >= maxOutboxRetries {
			status = OutboxStatusFailed
		}
		msg.Status = status
		q = q.Set("retry_count", squirrel.Expr("retry_count + 1")).
			Set("last_error", handleErr.Error()).
			Set("next_retry_at", time.Now().UTC().Add(time.Duration(msg.RetryCount+1)*time.Minute)).
			Set("status", status)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update outbox message: %w", err)
	}
	return nil
}

// BusHandler replays outbox messages onto an event bus.
type BusHandler struct {
	Bus *events.Bus
}

// Handle decodes msg and publishes it.
func (h BusHandler) Handle(ctx context.Context, msg *OutboxMessage) error {
	ev, err := msg.Event()
	if err != nil {
		return err
	}
	return h.Bus.Publish(ctx, ev)
}
