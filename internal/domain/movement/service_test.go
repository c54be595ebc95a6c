package movement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "factoryledger/internal/core/context"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/core/notify"
)

type fakeRepo struct {
	inserted   []entity.InventoryMovement
	insertErr  error
	listErr    error
	totals     []Total
	since      time.Time
	lastFilter Filter
}

func (f *fakeRepo) Insert(_ context.Context, m entity.InventoryMovement) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, m)
	return nil
}

func (f *fakeRepo) List(_ context.Context, filter Filter) ([]entity.InventoryMovement, error) {
	f.lastFilter = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]entity.InventoryMovement, 0, len(f.inserted))
	for i := len(f.inserted) - 1; i >= 0; i-- {
		out = append(out, f.inserted[i])
	}
	return out, nil
}

func (f *fakeRepo) Totals(_ context.Context, since time.Time) ([]Total, error) {
	f.since = since
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.totals, nil
}

func (f *fakeRepo) ListByItem(_ context.Context, itemType entity.ItemType, itemID string) ([]entity.InventoryMovement, error) {
	var out []entity.InventoryMovement
	for _, m := range f.inserted {
		if m.ItemType == itemType && m.ItemID == itemID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeItems struct {
	qty decimal.Decimal
}

func (f fakeItems) GetItem(_ context.Context, itemType entity.ItemType, itemID string) (entity.StockItem, error) {
	return entity.StockItem{ID: itemID, Type: itemType, Quantity: f.qty}, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(repo *fakeRepo, items ItemReader) *Service {
	svc := NewService(repo, items, notify.ContextNotifier{})
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestRecord_NormalizesQuantityAndCapturesActor(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, nil)
	ctx := appctx.WithActor(context.Background(), &appctx.Actor{UserID: "u-42"})

	err := svc.RecordOutgoing(ctx, entity.ItemTypeRaw, "7", d("-12.5"), d("87.5"), "sold")
	require.NoError(t, err)

	require.Len(t, repo.inserted, 1)
	m := repo.inserted[0]
	assert.Equal(t, entity.MovementOut, m.MovementType)
	assert.True(t, m.Quantity.Equal(d("12.5")))
	assert.True(t, m.BalanceAfter.Equal(d("87.5")))
	require.NotNil(t, m.UserID)
	assert.Equal(t, "u-42", *m.UserID)
	assert.Nil(t, m.ReferenceID)
}

func TestRecord_ReferenceDefaultsToForward(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, nil)

	err := svc.Record(context.Background(), Input{
		ItemID: "3", ItemType: entity.ItemTypeSemi, MovementType: entity.MovementIn,
		Quantity: d("3"), BalanceAfter: d("3"),
		ReferenceType: "production_order", ReferenceID: "po-1",
	})
	require.NoError(t, err)
	require.NotNil(t, repo.inserted[0].Direction)
	assert.Equal(t, entity.DirectionForward, *repo.inserted[0].Direction)
	assert.Nil(t, repo.inserted[0].UserID)
}

func TestRecord_RejectsUnknownKinds(t *testing.T) {
	svc := newTestService(&fakeRepo{}, nil)

	err := svc.Record(context.Background(), Input{ItemID: "1", ItemType: "widget", MovementType: entity.MovementIn})
	assert.Error(t, err)

	err = svc.Record(context.Background(), Input{ItemID: "1", ItemType: entity.ItemTypeRaw, MovementType: "sideways"})
	assert.Error(t, err)
}

func TestRecord_PersistenceErrorIsReturned(t *testing.T) {
	svc := newTestService(&fakeRepo{insertErr: errors.New("connection reset")}, nil)

	err := svc.RecordIncoming(context.Background(), entity.ItemTypeRaw, "1", d("1"), d("1"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestList_ErrorYieldsEmptyAndNotification(t *testing.T) {
	svc := newTestService(&fakeRepo{listErr: errors.New("boom")}, nil)
	collector := &notify.Collector{}
	ctx := notify.WithCollector(context.Background(), collector)

	got := svc.List(ctx, Filter{})

	assert.NotNil(t, got)
	assert.Empty(t, got)
	require.Len(t, collector.Items(), 1)
	assert.Equal(t, notify.LevelError, collector.Items()[0].Level)
}

func TestList_ClampsLimit(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, nil)

	svc.List(context.Background(), Filter{Limit: 50000, Offset: -3})
	assert.Equal(t, maxLimit, repo.lastFilter.Limit)
	assert.Equal(t, 0, repo.lastFilter.Offset)

	svc.List(context.Background(), Filter{})
	assert.Equal(t, defaultLimit, repo.lastFilter.Limit)
}

func TestStatistics_SumsMagnitudesOverRollingWindow(t *testing.T) {
	repo := &fakeRepo{totals: []Total{
		{MovementType: entity.MovementIn, ItemType: entity.ItemTypeRaw, Quantity: d("10"), Count: 2},
		{MovementType: entity.MovementIn, ItemType: entity.ItemTypeSemi, Quantity: d("3"), Count: 1},
		{MovementType: entity.MovementOut, ItemType: entity.ItemTypeRaw, Quantity: d("-4"), Count: 1},
		{MovementType: entity.MovementAdjustment, ItemType: entity.ItemTypePackaging, Quantity: d("2"), Count: 1},
	}}
	svc := newTestService(repo, nil)

	stats := svc.Statistics(context.Background(), PeriodWeek)

	assert.Equal(t, time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC), repo.since)
	assert.True(t, stats.TotalIn.Equal(d("13")))
	assert.True(t, stats.TotalOut.Equal(d("4")))
	assert.True(t, stats.TotalAdjustments.Equal(d("2")))
	assert.True(t, stats.MovementsByType[entity.ItemTypeRaw].Equal(d("14")))
	assert.True(t, stats.MovementsByType[entity.ItemTypeFinished].IsZero())
	assert.Equal(t, 5, stats.Count)
}

func TestStatistics_ErrorYieldsZeroes(t *testing.T) {
	svc := newTestService(&fakeRepo{listErr: errors.New("timeout")}, nil)

	stats := svc.Statistics(context.Background(), "")

	assert.Equal(t, PeriodMonth, stats.Period)
	assert.True(t, stats.TotalIn.IsZero())
	assert.Len(t, stats.MovementsByType, 4)
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodMonth, p)

	p, err = ParsePeriod("year")
	require.NoError(t, err)
	assert.Equal(t, 365*24*time.Hour, p.Duration())

	_, err = ParsePeriod("quarter")
	assert.Error(t, err)
}

func TestVerifyItem_ReplaysHistory(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, fakeItems{qty: d("6")})
	ctx := context.Background()

	require.NoError(t, svc.RecordIncoming(ctx, entity.ItemTypeRaw, "9", d("10"), d("10"), ""))
	require.NoError(t, svc.RecordOutgoing(ctx, entity.ItemTypeRaw, "9", d("4"), d("6"), ""))

	audit, err := svc.VerifyItem(ctx, entity.ItemTypeRaw, "9")
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
	assert.True(t, audit.Expected.Equal(d("6")))
	assert.Empty(t, audit.Mismatched)
}

func TestVerifyItem_DetectsDrift(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, fakeItems{qty: d("5")})
	ctx := context.Background()

	require.NoError(t, svc.RecordIncoming(ctx, entity.ItemTypeRaw, "9", d("10"), d("10"), ""))
	// Lost update: snapshot claims 7 after taking 4 out of 10.
	require.NoError(t, svc.RecordOutgoing(ctx, entity.ItemTypeRaw, "9", d("4"), d("7"), ""))

	audit, err := svc.VerifyItem(ctx, entity.ItemTypeRaw, "9")
	require.NoError(t, err)
	assert.False(t, audit.Consistent)
	assert.True(t, audit.Expected.Equal(d("6")))
	assert.Len(t, audit.Mismatched, 1)
}
