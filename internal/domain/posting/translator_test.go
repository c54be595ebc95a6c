package posting

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/core/notify"
	"factoryledger/internal/domain/events"
	"factoryledger/internal/domain/movement"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stockKey struct {
	t  entity.ItemType
	id string
}

// store is an in-memory database shared by the fakes below.
type store struct {
	stock       map[stockKey]decimal.Decimal
	movements   []entity.InventoryMovement
	failRecords map[string]bool
	locks       int
}

func newStore() *store {
	return &store{stock: map[stockKey]decimal.Decimal{}, failRecords: map[string]bool{}}
}

func (s *store) snapshot() (map[stockKey]decimal.Decimal, int) {
	cp := make(map[stockKey]decimal.Decimal, len(s.stock))
	for k, v := range s.stock {
		cp[k] = v
	}
	return cp, len(s.movements)
}

// txManager rolls the store back to a snapshot when a savepoint fails.
type txManager struct{ s *store }

func (m txManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	stock, n := m.s.snapshot()
	if err := fn(ctx); err != nil {
		m.s.stock, m.s.movements = stock, m.s.movements[:n]
		return err
	}
	return nil
}

func (m txManager) RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransaction(ctx, fn)
}

func (m txManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *store) AdjustQuantity(_ context.Context, t entity.ItemType, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	k := stockKey{t, id}
	cur, ok := s.stock[k]
	if !ok {
		return decimal.Zero, apperror.NewNotFound(string(t), id)
	}
	s.stock[k] = cur.Add(delta)
	return s.stock[k], nil
}

func (s *store) Record(_ context.Context, in movement.Input) error {
	if s.failRecords[in.ItemID] {
		return errors.New("insert movement: connection reset")
	}
	refType, refID, dir := in.ReferenceType, in.ReferenceID, in.Direction
	s.movements = append(s.movements, entity.InventoryMovement{
		ItemID: in.ItemID, ItemType: in.ItemType, MovementType: in.MovementType,
		Quantity: in.Quantity.Abs(), BalanceAfter: in.BalanceAfter, Reason: in.Reason,
		ReferenceType: &refType, ReferenceID: &refID, Direction: &dir,
	})
	return nil
}

func (s *store) LockReference(context.Context, string, string) error {
	s.locks++
	return nil
}

func (s *store) LatestDirection(_ context.Context, refType, refID string) (*entity.Direction, error) {
	for i := len(s.movements) - 1; i >= 0; i-- {
		m := s.movements[i]
		if *m.ReferenceType == refType && *m.ReferenceID == refID {
			dir := *m.Direction
			return &dir, nil
		}
	}
	return nil, nil
}

func (s *store) ListByReference(_ context.Context, refType, refID string) ([]entity.InventoryMovement, error) {
	var out []entity.InventoryMovement
	for _, m := range s.movements {
		if *m.ReferenceType == refType && *m.ReferenceID == refID {
			out = append(out, m)
		}
	}
	return out, nil
}

type source struct {
	production map[string]entity.ProductionOrder
	packaging  map[string]entity.PackagingOrder
	invoices   map[string]entity.Invoice
	returns    map[string]entity.Return
}

func (s source) GetProductionOrder(_ context.Context, id string) (entity.ProductionOrder, error) {
	o, ok := s.production[id]
	if !ok {
		return o, apperror.NewNotFound("production order", id)
	}
	return o, nil
}

func (s source) GetPackagingOrder(_ context.Context, id string) (entity.PackagingOrder, error) {
	o, ok := s.packaging[id]
	if !ok {
		return o, apperror.NewNotFound("packaging order", id)
	}
	return o, nil
}

func (s source) GetInvoice(_ context.Context, id string) (entity.Invoice, error) {
	o, ok := s.invoices[id]
	if !ok {
		return o, apperror.NewNotFound("invoice", id)
	}
	return o, nil
}

func (s source) GetReturn(_ context.Context, id string) (entity.Return, error) {
	o, ok := s.returns[id]
	if !ok {
		return o, apperror.NewNotFound("return", id)
	}
	return o, nil
}

// set stores a document status the way the status service does before publishing.
func (s source) set(id, status string) {
	if o, ok := s.production[id]; ok {
		o.Status = entity.OrderStatus(status)
		s.production[id] = o
	}
	if o, ok := s.packaging[id]; ok {
		o.Status = entity.OrderStatus(status)
		s.packaging[id] = o
	}
	if o, ok := s.invoices[id]; ok {
		o.Status = entity.InvoiceStatus(status)
		s.invoices[id] = o
	}
	if o, ok := s.returns[id]; ok {
		o.Status = entity.ReturnStatus(status)
		s.returns[id] = o
	}
}

func productionFixture() (*store, source) {
	st := newStore()
	st.stock[stockKey{entity.ItemTypeRaw, "1"}] = d("100")
	st.stock[stockKey{entity.ItemTypeRaw, "2"}] = d("50")
	st.stock[stockKey{entity.ItemTypeSemi, "10"}] = d("0")
	src := source{production: map[string]entity.ProductionOrder{
		"po-1": {
			ID: "po-1", Code: "PO-0001", ProductID: "10", Quantity: d("3"), Status: entity.OrderPending,
			Ingredients: []entity.OrderLine{
				{ItemID: "1", RequiredQuantity: d("10")},
				{ItemID: "2", RequiredQuantity: d("4")},
			},
		},
	}}
	return st, src
}

func newTranslator(st *store, src Source) *Translator {
	return NewTranslator(txManager{st}, src, st, st, st, notify.ContextNotifier{})
}

func TestProductionOrder_CompletionAndCancellation(t *testing.T) {
	st, src := productionFixture()
	tr := newTranslator(st, src)
	ctx := context.Background()

	src.set("po-1", "completed")
	report, err := tr.ProductionOrderChanged(ctx, "po-1", "pending", "completed")
	require.NoError(t, err)
	require.True(t, report.Triggered)
	assert.Equal(t, entity.DirectionForward, report.Direction)
	assert.Equal(t, 3, report.Count(ItemRecorded))

	require.Len(t, st.movements, 3)
	assert.Equal(t, entity.MovementOut, st.movements[0].MovementType)
	assert.True(t, st.movements[0].Quantity.Equal(d("10")))
	assert.True(t, st.movements[0].BalanceAfter.Equal(d("90")))
	assert.Equal(t, entity.MovementOut, st.movements[1].MovementType)
	assert.True(t, st.movements[1].BalanceAfter.Equal(d("46")))
	assert.Equal(t, entity.MovementIn, st.movements[2].MovementType)
	assert.Equal(t, entity.ItemTypeSemi, st.movements[2].ItemType)
	assert.True(t, st.movements[2].Quantity.Equal(d("3")))

	src.set("po-1", "cancelled")
	report, err = tr.ProductionOrderChanged(ctx, "po-1", "completed", "cancelled")
	require.NoError(t, err)
	assert.Equal(t, entity.DirectionReverse, report.Direction)
	assert.Equal(t, 3, report.Count(ItemRecorded))

	require.Len(t, st.movements, 6)
	for i := 0; i < 3; i++ {
		fwd, rev := st.movements[i], st.movements[i+3]
		assert.Equal(t, fwd.ItemID, rev.ItemID)
		assert.True(t, fwd.Quantity.Equal(rev.Quantity))
		assert.Equal(t, fwd.MovementType.Opposite(), rev.MovementType)
		assert.Equal(t, entity.DirectionReverse, *rev.Direction)
	}

	assert.True(t, st.stock[stockKey{entity.ItemTypeRaw, "1"}].Equal(d("100")))
	assert.True(t, st.stock[stockKey{entity.ItemTypeRaw, "2"}].Equal(d("50")))
	assert.True(t, st.stock[stockKey{entity.ItemTypeSemi, "10"}].IsZero())
}

func TestProductionOrder_RedundantEventsAreNoops(t *testing.T) {
	st, src := productionFixture()
	tr := newTranslator(st, src)
	ctx := context.Background()

	src.set("po-1", "completed")
	_, err := tr.ProductionOrderChanged(ctx, "po-1", "pending", "completed")
	require.NoError(t, err)

	report, err := tr.ProductionOrderChanged(ctx, "po-1", "in_progress", "completed")
	require.NoError(t, err)
	assert.True(t, report.Duplicate)
	assert.Len(t, st.movements, 3)

	src.set("po-1", "pending")
	_, err = tr.ProductionOrderChanged(ctx, "po-1", "completed", "pending")
	require.NoError(t, err)
	src.set("po-1", "cancelled")
	report, err = tr.ProductionOrderChanged(ctx, "po-1", "completed", "cancelled")
	require.NoError(t, err)
	assert.True(t, report.Duplicate)
	assert.Len(t, st.movements, 6)

	// Completing again after a reversal posts again.
	src.set("po-1", "completed")
	report, err = tr.ProductionOrderChanged(ctx, "po-1", "pending", "completed")
	require.NoError(t, err)
	assert.False(t, report.Duplicate)
	assert.Len(t, st.movements, 9)
}

func TestProductionOrder_NonBoundaryTransitionIgnored(t *testing.T) {
	st, src := productionFixture()
	tr := newTranslator(st, src)

	report, err := tr.ProductionOrderChanged(context.Background(), "po-1", "pending", "in_progress")
	require.NoError(t, err)
	assert.False(t, report.Triggered)
	assert.Empty(t, st.movements)
	assert.Zero(t, st.locks)
}

func TestReverseWithoutForwardIsNoop(t *testing.T) {
	st, src := productionFixture()
	tr := newTranslator(st, src)

	report, err := tr.ProductionOrderChanged(context.Background(), "po-1", "completed", "cancelled")
	require.NoError(t, err)
	assert.True(t, report.Duplicate)
	assert.Empty(t, st.movements)
}

func TestPartialFailure_SkipsAndContinues(t *testing.T) {
	st, src := productionFixture()
	o := src.production["po-1"]
	o.Ingredients = append([]entity.OrderLine{{ItemID: "99", RequiredQuantity: d("1")}}, o.Ingredients...)
	src.production["po-1"] = o
	st.failRecords["2"] = true
	src.set("po-1", "completed")
	tr := newTranslator(st, src)

	report, err := tr.ProductionOrderChanged(context.Background(), "po-1", "pending", "completed")
	require.NoError(t, err)

	require.Len(t, report.Items, 4)
	assert.Equal(t, ItemSkipped, report.Items[0].Status)
	assert.Equal(t, ItemRecorded, report.Items[1].Status)
	assert.Equal(t, ItemFailed, report.Items[2].Status)
	assert.Nil(t, report.Items[2].BalanceAfter)
	assert.Equal(t, ItemRecorded, report.Items[3].Status)
	assert.Len(t, report.Problems(), 2)

	// The failed line's stock change was rolled back with its savepoint.
	assert.True(t, st.stock[stockKey{entity.ItemTypeRaw, "2"}].Equal(d("50")))
	assert.True(t, st.stock[stockKey{entity.ItemTypeRaw, "1"}].Equal(d("90")))
	assert.Len(t, st.movements, 2)
}

func TestMissingParentReturnsError(t *testing.T) {
	st, src := productionFixture()
	tr := newTranslator(st, src)

	_, err := tr.ProductionOrderChanged(context.Background(), "po-404", "pending", "completed")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
	assert.Empty(t, st.movements)
}

func TestPackagingOrder(t *testing.T) {
	st := newStore()
	st.stock[stockKey{entity.ItemTypeSemi, "10"}] = d("5")
	st.stock[stockKey{entity.ItemTypePackaging, "30"}] = d("100")
	st.stock[stockKey{entity.ItemTypeFinished, "20"}] = d("0")
	src := source{packaging: map[string]entity.PackagingOrder{
		"pk-1": {
			ID: "pk-1", FinishedProductID: "20", SemiFinishedID: "10",
			SemiFinishedQuantity: d("2.5"), Quantity: d("5"), Status: entity.OrderCompleted,
			Materials: []entity.OrderLine{{ItemID: "30", RequiredQuantity: d("10")}},
		},
	}}
	tr := newTranslator(st, src)

	report, err := tr.PackagingOrderChanged(context.Background(), "pk-1", "in_progress", "completed")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Count(ItemRecorded))
	assert.True(t, st.stock[stockKey{entity.ItemTypeSemi, "10"}].Equal(d("2.5")))
	assert.True(t, st.stock[stockKey{entity.ItemTypePackaging, "30"}].Equal(d("90")))
	assert.True(t, st.stock[stockKey{entity.ItemTypeFinished, "20"}].Equal(d("5")))
}

func TestInvoiceAndReturnRouting(t *testing.T) {
	st := newStore()
	st.stock[stockKey{entity.ItemTypeFinished, "20"}] = d("10")
	st.stock[stockKey{entity.ItemTypeRaw, "1"}] = d("0")
	src := source{
		invoices: map[string]entity.Invoice{
			"sale-1": {ID: "sale-1", InvoiceType: entity.InvoiceSale, Status: entity.InvoiceConfirmed, Items: []entity.CommercialLine{
				{ItemType: entity.ItemTypeFinished, ItemID: "20", Quantity: d("4")},
			}},
			"buy-1": {ID: "buy-1", InvoiceType: entity.InvoicePurchase, Status: entity.InvoiceConfirmed, Items: []entity.CommercialLine{
				{ItemType: entity.ItemTypeRaw, ItemID: "1", Quantity: d("25")},
				{ItemType: "gizmo", ItemID: "5", Quantity: d("1")},
			}},
		},
		returns: map[string]entity.Return{
			"ret-1": {ID: "ret-1", ReturnType: entity.SalesReturn, Status: entity.ReturnConfirmed, Items: []entity.CommercialLine{
				{ItemType: entity.ItemTypeFinished, ItemID: "20", Quantity: d("1")},
			}},
			"ret-2": {ID: "ret-2", ReturnType: entity.PurchaseReturn, Status: entity.ReturnConfirmed, Items: []entity.CommercialLine{
				{ItemType: entity.ItemTypeRaw, ItemID: "1", Quantity: d("5")},
			}},
		},
	}
	tr := newTranslator(st, src)
	ctx := context.Background()

	_, err := tr.InvoiceChanged(ctx, "sale-1", "draft", "confirmed")
	require.NoError(t, err)
	report, err := tr.InvoiceChanged(ctx, "buy-1", "draft", "confirmed")
	require.NoError(t, err)
	assert.Equal(t, ItemSkipped, report.Items[1].Status)

	_, err = tr.ReturnChanged(ctx, "ret-1", "pending", "confirmed")
	require.NoError(t, err)
	_, err = tr.ReturnChanged(ctx, "ret-2", "pending", "confirmed")
	require.NoError(t, err)

	assert.True(t, st.stock[stockKey{entity.ItemTypeFinished, "20"}].Equal(d("7")))
	assert.True(t, st.stock[stockKey{entity.ItemTypeRaw, "1"}].Equal(d("20")))

	src.set("sale-1", "cancelled")
	_, err = tr.InvoiceChanged(ctx, "sale-1", "confirmed", "cancelled")
	require.NoError(t, err)
	assert.True(t, st.stock[stockKey{entity.ItemTypeFinished, "20"}].Equal(d("11")))
}

func TestRegister_NotifiesProblems(t *testing.T) {
	st, src := productionFixture()
	delete(st.stock, stockKey{entity.ItemTypeSemi, "10"})
	src.set("po-1", "completed")
	tr := newTranslator(st, src)
	bus := events.NewBus()
	tr.Register(bus)

	collector := &notify.Collector{}
	ctx := notify.WithCollector(context.Background(), collector)

	err := bus.Publish(ctx, events.Event{
		Name: events.ProductionOrderStatusChange, EntityID: "po-1",
		PreviousStatus: "pending", Status: "completed",
	})
	require.NoError(t, err)
	require.Len(t, collector.Items(), 1)
	assert.Contains(t, collector.Items()[0].Message, "semi 10")
}

func TestStaleRedeliveryIsSkipped(t *testing.T) {
	st := newStore()
	st.stock[stockKey{entity.ItemTypeFinished, "20"}] = d("10")
	src := source{invoices: map[string]entity.Invoice{
		"inv-1": {ID: "inv-1", InvoiceType: entity.InvoiceSale, Status: entity.InvoiceDraft, Items: []entity.CommercialLine{
			{ItemType: entity.ItemTypeFinished, ItemID: "20", Quantity: d("4")},
		}},
	}}
	tr := newTranslator(st, src)
	ctx := context.Background()

	src.set("inv-1", "confirmed")
	_, err := tr.InvoiceChanged(ctx, "inv-1", "draft", "confirmed")
	require.NoError(t, err)
	src.set("inv-1", "cancelled")
	_, err = tr.InvoiceChanged(ctx, "inv-1", "confirmed", "cancelled")
	require.NoError(t, err)
	require.Len(t, st.movements, 2)

	// The first event is delivered again after the cancellation.
	report, err := tr.InvoiceChanged(ctx, "inv-1", "draft", "confirmed")
	require.NoError(t, err)
	assert.True(t, report.Stale)
	assert.Empty(t, report.Items)
	assert.Len(t, st.movements, 2)
	assert.True(t, st.stock[stockKey{entity.ItemTypeFinished, "20"}].Equal(d("10")))

	// A late cancellation after re-confirming must not undo the new posting.
	src.set("inv-1", "confirmed")
	_, err = tr.InvoiceChanged(ctx, "inv-1", "cancelled", "confirmed")
	require.NoError(t, err)
	report, err = tr.InvoiceChanged(ctx, "inv-1", "confirmed", "cancelled")
	require.NoError(t, err)
	assert.True(t, report.Stale)
	assert.True(t, st.stock[stockKey{entity.ItemTypeFinished, "20"}].Equal(d("6")))
}

func TestReverseOfDeletedDocument(t *testing.T) {
	st, src := productionFixture()
	tr := newTranslator(st, src)
	ctx := context.Background()

	src.set("po-1", "completed")
	_, err := tr.ProductionOrderChanged(ctx, "po-1", "pending", "completed")
	require.NoError(t, err)
	delete(src.production, "po-1")

	report, err := tr.ProductionOrderChanged(ctx, "po-1", "completed", "cancelled")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Count(ItemRecorded))
	assert.True(t, st.stock[stockKey{entity.ItemTypeRaw, "1"}].Equal(d("100")))
}
