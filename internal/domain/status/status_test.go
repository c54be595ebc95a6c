package status

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/notify"
	"factoryledger/internal/core/tx/txtest"
	"factoryledger/internal/domain/events"
)

type fakeRepo struct {
	statuses map[string]string
}

func (f *fakeRepo) UpdateStatus(_ context.Context, kind Kind, id, status string) (string, error) {
	key := string(kind) + "/" + id
	prev, ok := f.statuses[key]
	if !ok {
		return "", apperror.NewNotFound(string(kind), id)
	}
	f.statuses[key] = status
	return prev, nil
}

type fakeOutbox struct {
	appended  []events.Event
	published []string
}

func (f *fakeOutbox) Append(_ context.Context, ev events.Event) (string, error) {
	f.appended = append(f.appended, ev)
	return "msg-" + ev.EntityID, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, id string) error {
	f.published = append(f.published, id)
	return nil
}

func newTestService(bus *events.Bus) (*Service, *fakeRepo, *fakeOutbox) {
	repo := &fakeRepo{statuses: map[string]string{
		"production_order/po-1": "pending",
		"invoice/inv-1":         "draft",
		"invoice/inv-9":         "cancelled",
		"return/ret-9":          "cancelled",
		"production_order/po-9": "cancelled",
	}}
	outbox := &fakeOutbox{}
	return NewService(repo, outbox, bus, &txtest.Manager{}, notify.ContextNotifier{}), repo, outbox
}

func TestChange_PublishesTransition(t *testing.T) {
	bus := events.NewBus()
	var got []events.Event
	bus.Subscribe(events.ProductionOrderStatusChange, "test", func(_ context.Context, ev events.Event) error {
		got = append(got, ev)
		return nil
	})
	svc, repo, outbox := newTestService(bus)

	ch, err := svc.Change(context.Background(), KindProductionOrder, "po-1", "completed")
	require.NoError(t, err)

	assert.Equal(t, "pending", ch.PreviousStatus)
	assert.True(t, ch.Delivered)
	assert.Equal(t, "completed", repo.statuses["production_order/po-1"])

	require.Len(t, got, 1)
	assert.Equal(t, "po-1", got[0].EntityID)
	assert.Equal(t, "pending", got[0].PreviousStatus)
	assert.Equal(t, "completed", got[0].Status)

	require.Len(t, outbox.appended, 1)
	assert.Equal(t, []string{"msg-po-1"}, outbox.published)
}

func TestChange_SameStatusIsQuiet(t *testing.T) {
	bus := events.NewBus()
	calls := 0
	bus.Subscribe(events.InvoiceStatusChange, "test", func(context.Context, events.Event) error {
		calls++
		return nil
	})
	svc, _, outbox := newTestService(bus)

	ch, err := svc.Change(context.Background(), KindInvoice, "inv-1", "draft")
	require.NoError(t, err)
	assert.Equal(t, "draft", ch.PreviousStatus)
	assert.Zero(t, calls)
	assert.Empty(t, outbox.appended)
}

func TestChange_ListenerFailureIsNotifiedNotReturned(t *testing.T) {
	bus := events.NewBus()
	bus.Subscribe(events.InvoiceStatusChange, "broken", func(context.Context, events.Event) error {
		return errors.New("ledger unavailable")
	})
	svc, repo, outbox := newTestService(bus)

	collector := &notify.Collector{}
	ctx := notify.WithCollector(context.Background(), collector)

	ch, err := svc.Change(ctx, KindInvoice, "inv-1", "confirmed")
	require.NoError(t, err)
	assert.False(t, ch.Delivered)
	assert.Equal(t, "confirmed", repo.statuses["invoice/inv-1"])

	require.Len(t, outbox.appended, 1)
	assert.Empty(t, outbox.published)

	items := collector.Items()
	require.Len(t, items, 1)
	assert.Equal(t, notify.LevelError, items[0].Level)
}

func TestChange_Validation(t *testing.T) {
	svc, _, _ := newTestService(events.NewBus())
	ctx := context.Background()

	_, err := svc.Change(ctx, Kind("shipment"), "x", "done")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = svc.Change(ctx, KindInvoice, "", "confirmed")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = svc.Change(ctx, KindInvoice, "inv-1", "completed")
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition))

	_, err = svc.Change(ctx, KindReturn, "missing", "confirmed")
	assert.True(t, apperror.IsNotFound(err))
}

func TestChange_CancelledCommercialDocumentsAreFinal(t *testing.T) {
	bus := events.NewBus()
	calls := 0
	count := func(context.Context, events.Event) error {
		calls++
		return nil
	}
	bus.Subscribe(events.InvoiceStatusChange, "test", count)
	bus.Subscribe(events.ReturnStatusChange, "test", count)
	bus.Subscribe(events.ProductionOrderStatusChange, "test", count)
	svc, _, outbox := newTestService(bus)
	ctx := context.Background()

	_, err := svc.Change(ctx, KindInvoice, "inv-9", "confirmed")
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition))
	_, err = svc.Change(ctx, KindReturn, "ret-9", "pending")
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition))
	assert.Zero(t, calls)
	assert.Empty(t, outbox.appended)

	// Orders can be completed again after a cancellation.
	_, err = svc.Change(ctx, KindProductionOrder, "po-9", "completed")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
