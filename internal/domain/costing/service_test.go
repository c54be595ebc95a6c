package costing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/core/tx/txtest"
)

type fakeRepo struct {
	items    map[entity.ItemType]map[string]entity.StockItem
	recipes  map[string][]entity.Ingredient
	finished map[string]entity.FinishedProduct
	updates  []CostChange
}

func newFakeRepo() *fakeRepo {
	f := &fakeRepo{
		items:    map[entity.ItemType]map[string]entity.StockItem{},
		recipes:  map[string][]entity.Ingredient{},
		finished: map[string]entity.FinishedProduct{},
	}
	for _, t := range entity.ItemTypes {
		f.items[t] = map[string]entity.StockItem{}
	}
	return f
}

func (f *fakeRepo) put(t entity.ItemType, id, cost, qty, min string) {
	f.items[t][id] = entity.StockItem{ID: id, Type: t, UnitCost: d(cost), Quantity: d(qty), MinStock: d(min)}
}

func (f *fakeRepo) GetItem(_ context.Context, t entity.ItemType, id string) (entity.StockItem, error) {
	it, ok := f.items[t][id]
	if !ok {
		return entity.StockItem{}, apperror.NewNotFound(string(t), id)
	}
	return it, nil
}

func (f *fakeRepo) GetSemiFinished(ctx context.Context, id string) (entity.SemiFinishedProduct, error) {
	it, err := f.GetItem(ctx, entity.ItemTypeSemi, id)
	if err != nil {
		return entity.SemiFinishedProduct{}, err
	}
	var ingredients []entity.Ingredient
	for _, in := range f.recipes[id] {
		in.UnitCost = f.items[entity.ItemTypeRaw][in.RawMaterialID].UnitCost
		ingredients = append(ingredients, in)
	}
	return entity.SemiFinishedProduct{StockItem: it, Ingredients: ingredients}, nil
}

func (f *fakeRepo) GetFinished(ctx context.Context, id string) (entity.FinishedProduct, error) {
	it, err := f.GetItem(ctx, entity.ItemTypeFinished, id)
	if err != nil {
		return entity.FinishedProduct{}, err
	}
	p := f.finished[id]
	p.StockItem = it
	packaging := make([]entity.PackagingUsage, 0, len(p.Packaging))
	for _, u := range p.Packaging {
		u.UnitCost = f.items[entity.ItemTypePackaging][u.PackagingMaterialID].UnitCost
		packaging = append(packaging, u)
	}
	p.Packaging = packaging
	return p, nil
}

func (f *fakeRepo) SemiFinishedUsingRaw(_ context.Context, rawID string) ([]string, error) {
	var out []string
	for semiID, ingredients := range f.recipes {
		for _, in := range ingredients {
			if in.RawMaterialID == rawID {
				out = append(out, semiID)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) FinishedUsingSemi(_ context.Context, semiID string) ([]string, error) {
	var out []string
	for id, p := range f.finished {
		if p.SemiFinishedID == semiID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeRepo) FinishedUsingPackaging(_ context.Context, pkgID string) ([]string, error) {
	var out []string
	for id, p := range f.finished {
		for _, u := range p.Packaging {
			if u.PackagingMaterialID == pkgID {
				out = append(out, id)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateUnitCost(_ context.Context, t entity.ItemType, id string, cost decimal.Decimal) error {
	it := f.items[t][id]
	f.updates = append(f.updates, CostChange{ItemType: t, ItemID: id, Previous: it.UnitCost, Current: cost})
	it.UnitCost = cost
	f.items[t][id] = it
	return nil
}

func (f *fakeRepo) ListLow(_ context.Context, t entity.ItemType) ([]entity.StockItem, error) {
	var out []entity.StockItem
	for _, it := range f.items[t] {
		if it.IsLow() {
			out = append(out, it)
		}
	}
	return out, nil
}

// seed builds raw 1 (cost 5) and raw 2 (cost 8) mixed 60/40 into semi 10,
// and finished 20 using half a unit of semi 10 plus two units of packaging 30.
func seed(f *fakeRepo) {
	f.put(entity.ItemTypeRaw, "1", "5", "100", "10")
	f.put(entity.ItemTypeRaw, "2", "8", "5", "10")
	f.put(entity.ItemTypeSemi, "10", "6.2", "0", "0")
	f.put(entity.ItemTypePackaging, "30", "0.5", "40", "5")
	f.put(entity.ItemTypeFinished, "20", "4.1", "0", "0")
	f.recipes["10"] = []entity.Ingredient{
		{SemiFinishedID: "10", RawMaterialID: "1", Percentage: d("60")},
		{SemiFinishedID: "10", RawMaterialID: "2", Percentage: d("40")},
	}
	f.finished["20"] = entity.FinishedProduct{
		SemiFinishedID:       "10",
		SemiFinishedQuantity: d("0.5"),
		Packaging: []entity.PackagingUsage{
			{FinishedProductID: "20", PackagingMaterialID: "30", Quantity: d("2")},
		},
	}
}

func TestResolveFinishedCost_Fresh(t *testing.T) {
	repo := newFakeRepo()
	seed(repo)
	svc := NewService(repo, &txtest.Manager{})

	b, err := svc.ResolveFinishedCost(context.Background(), "20")
	require.NoError(t, err)

	// 6.2*0.5 + 0.5*2
	assert.True(t, d("4.1").Equal(b.UnitCost), "got %s", b.UnitCost)
	assert.False(t, b.Stale)
	assert.Len(t, b.Components, 2)
}

func TestResolveSemiFinishedCost_FallsBackToStoredWhenZero(t *testing.T) {
	repo := newFakeRepo()
	repo.put(entity.ItemTypeSemi, "11", "3.3", "0", "0")
	svc := NewService(repo, &txtest.Manager{})

	b, err := svc.ResolveSemiFinishedCost(context.Background(), "11")
	require.NoError(t, err)

	assert.True(t, b.Computed.IsZero())
	assert.True(t, d("3.3").Equal(b.UnitCost))
	assert.False(t, b.Stale)
}

func TestResolve_NotFound(t *testing.T) {
	svc := NewService(newFakeRepo(), &txtest.Manager{})

	_, err := svc.ResolveFinishedCost(context.Background(), "404")
	assert.True(t, apperror.IsNotFound(err))
}

func TestPropagateRawMaterialCost(t *testing.T) {
	repo := newFakeRepo()
	seed(repo)
	txm := &txtest.Manager{}
	svc := NewService(repo, txm)

	repo.put(entity.ItemTypeRaw, "1", "10", "100", "10")

	changes, err := svc.PropagateRawMaterialCost(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, changes, 2)

	// semi: 0.6*10 + 0.4*8 = 9.2; finished: 9.2*0.5 + 1 = 5.6
	assert.Equal(t, entity.ItemTypeSemi, changes[0].ItemType)
	assert.True(t, d("9.2").Equal(changes[0].Current))
	assert.True(t, d("6.2").Equal(changes[0].Previous))
	assert.Equal(t, entity.ItemTypeFinished, changes[1].ItemType)
	assert.True(t, d("5.6").Equal(changes[1].Current))
	assert.Equal(t, 1, txm.Transactions)
}

func TestPropagatePackagingCost(t *testing.T) {
	repo := newFakeRepo()
	seed(repo)
	svc := NewService(repo, &txtest.Manager{})

	repo.put(entity.ItemTypePackaging, "30", "1", "40", "5")

	changes, err := svc.PropagatePackagingCost(context.Background(), "30")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, d("5.1").Equal(changes[0].Current))
}

func TestPropagate_NoChangeWhenCurrent(t *testing.T) {
	repo := newFakeRepo()
	seed(repo)
	svc := NewService(repo, &txtest.Manager{})

	changes, err := svc.PropagateRawMaterialCost(context.Background(), "2")
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Empty(t, repo.updates)
}

func TestLowStock(t *testing.T) {
	repo := newFakeRepo()
	seed(repo)
	svc := NewService(repo, &txtest.Manager{})

	low, err := svc.LowStock(context.Background(), entity.ItemTypeRaw)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "2", low[0].ID)

	_, err = svc.LowStock(context.Background(), "gadget")
	assert.Error(t, err)
}
