package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factoryledger/internal/domain/events"
)

func TestOutboxRelay_PendingQuery(t *testing.T) {
	r := NewOutboxRelay(&TxManager{}, 0, nil)
	assert.Equal(t, 100, r.BatchSize())

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sql, args, err := r.pendingQuery(now).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM sys_outbox WHERE status = $1 AND created_at <= $2")
	assert.Contains(t, sql, "(next_retry_at IS NULL OR next_retry_at <= $3)")
	assert.Contains(t, sql, "ORDER BY created_at LIMIT 100 FOR UPDATE SKIP LOCKED")
	require.Len(t, args, 3)
	assert.Equal(t, OutboxStatusPending, args[0])
	assert.Equal(t, now.Add(-30*time.Second), args[1])
	assert.Equal(t, now, args[2])
}

func TestOutbox_AppendRequiresTransaction(t *testing.T) {
	o := NewOutbox(&TxManager{})

	_, err := o.Append(context.Background(), events.Event{Name: events.InvoiceStatusChange, EntityID: "7"})
	assert.Error(t, err)
}

func TestOutboxMessage_Event(t *testing.T) {
	msg := OutboxMessage{
		ID:      "m1",
		Payload: []byte(`{"name":"return-status-change","entityId":"12","status":"confirmed","previousStatus":"pending"}`),
	}

	ev, err := msg.Event()
	require.NoError(t, err)
	assert.Equal(t, events.ReturnStatusChange, ev.Name)
	assert.Equal(t, "12", ev.EntityID)
	assert.Equal(t, "pending", ev.PreviousStatus)

	_, err = OutboxMessage{ID: "m2", Payload: []byte("{")}.Event()
	assert.Error(t, err)
}

func TestAggregateOf(t *testing.T) {
	assert.Equal(t, "production_order", aggregateOf(events.ProductionOrderStatusChange))
	assert.Equal(t, "packaging_order", aggregateOf(events.PackagingOrderStatusChange))
	assert.Equal(t, "invoice", aggregateOf(events.InvoiceStatusChange))
	assert.Equal(t, "return", aggregateOf(events.ReturnStatusChange))
	assert.Equal(t, "financial-data-change", aggregateOf(events.FinancialDataChange))
}
