package costing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/core/tx"
	"factoryledger/pkg/logger"
)

// Component is one input line of a cost breakdown.
type Component struct {
	ItemType entity.ItemType `json:"itemType"`
	ItemID   string          `json:"itemId"`
	UnitCost decimal.Decimal `json:"unitCost"`
	// Share is a percentage for ingredients and a per-unit quantity for packaging and semi-finished input.
	Share decimal.Decimal `json:"share"`
	Cost  decimal.Decimal `json:"cost"`
}

// Breakdown is the resolved unit cost of a product.
type Breakdown struct {
	ItemType   entity.ItemType `json:"itemType"`
	ItemID     string          `json:"itemId"`
	Computed   decimal.Decimal `json:"computed"`
	Stored     decimal.Decimal `json:"stored"`
	UnitCost   decimal.Decimal `json:"unitCost"`
	Stale      bool            `json:"stale"`
	Components []Component     `json:"components"`
}

// effective applies the read rule: the recomputed cost wins unless it is zero.
func effective(computed, stored decimal.Decimal) decimal.Decimal {
	if computed.IsZero() {
		return stored
	}
	return computed
}

// CostChange is one unit cost rewritten by propagation.
type CostChange struct {
	ItemType entity.ItemType `json:"itemType"`
	ItemID   string          `json:"itemId"`
	Previous decimal.Decimal `json:"previous"`
	Current  decimal.Decimal `json:"current"`
}

// Service resolves and propagates roll-up costs.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a costing service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager}
}

// ResolveSemiFinishedCost recomputes the unit cost of a semi-finished product from its ingredients.
func (s *Service) ResolveSemiFinishedCost(ctx context.Context, id string) (Breakdown, error) {
	p, err := s.repo.GetSemiFinished(ctx, id)
	if err != nil {
		return Breakdown{}, err
	}
	return semiBreakdown(p), nil
}

func semiBreakdown(p entity.SemiFinishedProduct) Breakdown {
	weighted := make([]WeightedCost, 0, len(p.Ingredients))
	components := make([]Component, 0, len(p.Ingredients))
	for _, in := range p.Ingredients {
		weighted = append(weighted, WeightedCost{UnitCost: in.UnitCost, Percentage: in.Percentage})
		components = append(components, Component{
			ItemType: entity.ItemTypeRaw,
			ItemID:   in.RawMaterialID,
			UnitCost: in.UnitCost,
			Share:    in.Percentage,
			Cost:     SemiFinishedUnitCost([]WeightedCost{{UnitCost: in.UnitCost, Percentage: in.Percentage}}),
		})
	}
	computed := SemiFinishedUnitCost(weighted)
	unit := effective(computed, p.UnitCost)
	return Breakdown{
		ItemType:   entity.ItemTypeSemi,
		ItemID:     p.ID,
		Computed:   computed,
		Stored:     p.UnitCost,
		UnitCost:   unit,
		Stale:      !unit.Equal(p.UnitCost),
		Components: components,
	}
}

// ResolveFinishedCost recomputes the unit cost of a finished product from its
// semi-finished input (itself resolved) and packaging.
func (s *Service) ResolveFinishedCost(ctx context.Context, id string) (Breakdown, error) {
	p, err := s.repo.GetFinished(ctx, id)
	if err != nil {
		return Breakdown{}, err
	}

	semiCost := decimal.Zero
	if p.SemiFinishedID != "" {
		semi, err := s.ResolveSemiFinishedCost(ctx, p.SemiFinishedID)
		switch {
		case err == nil:
			semiCost = semi.UnitCost
		case apperror.IsNotFound(err):
			logger.Warn(ctx, "finished product references missing semi-finished product",
				"item_id", p.ID, "semi_finished_id", p.SemiFinishedID)
		default:
			return Breakdown{}, err
		}
	}
	return finishedBreakdown(p, semiCost), nil
}

func finishedBreakdown(p entity.FinishedProduct, semiCost decimal.Decimal) Breakdown {
	materials := make([]MaterialCost, 0, len(p.Packaging))
	components := make([]Component, 0, len(p.Packaging)+1)
	components = append(components, Component{
		ItemType: entity.ItemTypeSemi,
		ItemID:   p.SemiFinishedID,
		UnitCost: semiCost,
		Share:    p.SemiFinishedQuantity,
		Cost:     semiCost.Mul(p.SemiFinishedQuantity),
	})
	for _, u := range p.Packaging {
		materials = append(materials, MaterialCost{UnitCost: u.UnitCost, Quantity: u.Quantity})
		components = append(components, Component{
			ItemType: entity.ItemTypePackaging,
			ItemID:   u.PackagingMaterialID,
			UnitCost: u.UnitCost,
			Share:    u.Quantity,
			Cost:     u.UnitCost.Mul(u.Quantity),
		})
	}
	computed := FinishedProductCost(semiCost, materials, p.SemiFinishedQuantity)
	unit := effective(computed, p.UnitCost)
	return Breakdown{
		ItemType:   entity.ItemTypeFinished,
		ItemID:     p.ID,
		Computed:   computed,
		Stored:     p.UnitCost,
		UnitCost:   unit,
		Stale:      !unit.Equal(p.UnitCost),
		Components: components,
	}
}

// PropagateRawMaterialCost rewrites the unit cost of every semi-finished product
// using the raw material, then of every finished product using those.
func (s *Service) PropagateRawMaterialCost(ctx context.Context, rawMaterialID string) ([]CostChange, error) {
	if _, err := s.repo.GetItem(ctx, entity.ItemTypeRaw, rawMaterialID); err != nil {
		return nil, err
	}

	var changes []CostChange
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		semiIDs, err := s.repo.SemiFinishedUsingRaw(ctx, rawMaterialID)
		if err != nil {
			return fmt.Errorf("find dependent semi-finished products: %w", err)
		}
		for _, semiID := range semiIDs {
			b, err := s.ResolveSemiFinishedCost(ctx, semiID)
			if err != nil {
				return err
			}
			if err := s.persist(ctx, b, &changes); err != nil {
				return err
			}
			if err := s.propagateToFinished(ctx, s.repo.FinishedUsingSemi, semiID, &changes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperror.Wrap(err)
	}

	logger.Info(ctx, "raw material cost propagated", "item_id", rawMaterialID, "changed", len(changes))
	return changes, nil
}

// PropagatePackagingCost rewrites the unit cost of every finished product using the packaging material.
func (s *Service) PropagatePackagingCost(ctx context.Context, packagingID string) ([]CostChange, error) {
	if _, err := s.repo.GetItem(ctx, entity.ItemTypePackaging, packagingID); err != nil {
		return nil, err
	}

	var changes []CostChange
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.propagateToFinished(ctx, s.repo.FinishedUsingPackaging, packagingID, &changes)
	})
	if err != nil {
		return nil, apperror.Wrap(err)
	}

	logger.Info(ctx, "packaging cost propagated", "item_id", packagingID, "changed", len(changes))
	return changes, nil
}

func (s *Service) propagateToFinished(
	ctx context.Context,
	dependents func(context.Context, string) ([]string, error),
	sourceID string,
	changes *[]CostChange,
) error {
	ids, err := dependents(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("find dependent finished products: %w", err)
	}
	for _, finishedID := range ids {
		b, err := s.ResolveFinishedCost(ctx, finishedID)
		if err != nil {
			return err
		}
		if err := s.persist(ctx, b, changes); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) persist(ctx context.Context, b Breakdown, changes *[]CostChange) error {
	if !b.Stale {
		return nil
	}
	if err := s.repo.UpdateUnitCost(ctx, b.ItemType, b.ItemID, b.UnitCost); err != nil {
		return fmt.Errorf("update %s %s unit cost: %w", b.ItemType, b.ItemID, err)
	}
	*changes = append(*changes, CostChange{
		ItemType: b.ItemType,
		ItemID:   b.ItemID,
		Previous: b.Stored,
		Current:  b.UnitCost,
	})
	return nil
}

// LowStock lists items of one kind at or below their reorder threshold.
func (s *Service) LowStock(ctx context.Context, itemType entity.ItemType) ([]entity.StockItem, error) {
	if !itemType.Valid() {
		return nil, apperror.NewValidation(fmt.Sprintf("unknown item type %q", itemType))
	}
	items, err := s.repo.ListLow(ctx, itemType)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("list low stock: %w", err))
	}
	for i := range items {
		items[i].Type = itemType
	}
	return items, nil
}
