// Package catalog_repo stores the cost entities: raw materials, packaging
// materials, semi-finished and finished products with their recipes.
package catalog_repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/domain/costing"
	"factoryledger/internal/domain/movement"
	"factoryledger/internal/domain/posting"
	"factoryledger/internal/infrastructure/storage/postgres"
)

const (
	ingredientsTable = "semi_finished_ingredients"
	packagingTable   = "finished_product_packaging"
)

var itemColumns = []string{"id::text AS id", "name", "quantity", "unit_cost", "min_stock"}

var (
	_ costing.Repository  = (*ItemRepo)(nil)
	_ movement.ItemReader = (*ItemRepo)(nil)
	_ posting.Stock       = (*ItemRepo)(nil)
)

// TableFor maps an item kind to its table.
func TableFor(t entity.ItemType) (string, error) {
	switch t {
	case entity.ItemTypeRaw:
		return "raw_materials", nil
	case entity.ItemTypeSemi:
		return "semi_finished_products", nil
	case entity.ItemTypePackaging:
		return "packaging_materials", nil
	case entity.ItemTypeFinished:
		return "finished_products", nil
	}
	return "", apperror.NewValidation(fmt.Sprintf("unknown item type %q", t)).WithDetail("field", "itemType")
}

// ParseKey converts a text id to the integer key. Ids that are not integers
// cannot exist, so they are reported as not found.
func ParseKey(entityName, id string) (int64, error) {
	key, err := strconv.ParseInt(id, 10, 64)
	if err != nil || key <= 0 {
		return 0, apperror.NewNotFound(entityName, id)
	}
	return key, nil
}

// ItemRepo implements costing.Repository, movement.ItemReader and posting.Stock.
type ItemRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewItemRepo creates an item repository.
func NewItemRepo(txManager *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetItem loads one item of any kind.
func (r *ItemRepo) GetItem(ctx context.Context, itemType entity.ItemType, itemID string) (entity.StockItem, error) {
	table, err := TableFor(itemType)
	if err != nil {
		return entity.StockItem{}, err
	}
	key, err := ParseKey(string(itemType), itemID)
	if err != nil {
		return entity.StockItem{}, err
	}

	sql, args, err := r.builder.Select(itemColumns...).From(table).Where(squirrel.Eq{"id": key}).ToSql()
	if err != nil {
		return entity.StockItem{}, fmt.Errorf("build query: %w", err)
	}

	var item entity.StockItem
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity.StockItem{}, apperror.NewNotFound(string(itemType), itemID)
		}
		return entity.StockItem{}, fmt.Errorf("get %s: %w", table, err)
	}
	item.Type = itemType
	return item, nil
}

func (r *ItemRepo) adjustQuery(table string, key int64, delta decimal.Decimal) squirrel.UpdateBuilder {
	return r.builder.Update(table).
		Set("quantity", squirrel.Expr("quantity + ?", delta)).
		Where(squirrel.Eq{"id": key}).
		Suffix("RETURNING quantity")
}

// AdjustQuantity adds delta to the stored quantity in one statement and
// returns the new quantity. Driving stock below zero is rejected.
func (r *ItemRepo) AdjustQuantity(ctx context.Context, itemType entity.ItemType, itemID string, delta decimal.Decimal) (decimal.Decimal, error) {
	table, err := TableFor(itemType)
	if err != nil {
		return decimal.Zero, err
	}
	key, err := ParseKey(string(itemType), itemID)
	if err != nil {
		return decimal.Zero, err
	}

	sql, args, err := r.adjustQuery(table, key, delta).ToSql()
	if err != nil {
		return decimal.Zero, fmt.Errorf("build query: %w", err)
	}

	var qty decimal.Decimal
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&qty); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, apperror.NewNotFound(string(itemType), itemID)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return decimal.Zero, apperror.NewBusinessRule(apperror.CodeInsufficientBalance,
				fmt.Sprintf("not enough stock of %s %s", itemType, itemID)).
				WithDetail("delta", delta.String()).
				WithCause(err)
		}
		return decimal.Zero, fmt.Errorf("adjust %s quantity: %w", table, err)
	}
	return qty, nil
}

// GetSemiFinished loads a semi-finished product with its ingredients priced at current raw cost.
func (r *ItemRepo) GetSemiFinished(ctx context.Context, id string) (entity.SemiFinishedProduct, error) {
	item, err := r.GetItem(ctx, entity.ItemTypeSemi, id)
	if err != nil {
		return entity.SemiFinishedProduct{}, err
	}

	sql, args, err := r.builder.Select(
		"i.semi_finished_id::text AS semi_finished_id",
		"i.raw_material_id::text AS raw_material_id",
		"i.percentage",
		"COALESCE(rm.unit_cost, 0) AS unit_cost",
	).From(ingredientsTable + " i").
		LeftJoin("raw_materials rm ON rm.id = i.raw_material_id").
		Where(squirrel.Eq{"i.semi_finished_id": item.ID}).
		OrderBy("i.id").
		ToSql()
	if err != nil {
		return entity.SemiFinishedProduct{}, fmt.Errorf("build query: %w", err)
	}

	ingredients := make([]entity.Ingredient, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &ingredients, sql, args...); err != nil {
		return entity.SemiFinishedProduct{}, fmt.Errorf("select ingredients: %w", err)
	}
	return entity.SemiFinishedProduct{StockItem: item, Ingredients: ingredients}, nil
}

// GetFinished loads a finished product with its packaging priced at current material cost.
func (r *ItemRepo) GetFinished(ctx context.Context, id string) (entity.FinishedProduct, error) {
	key, err := ParseKey(string(entity.ItemTypeFinished), id)
	if err != nil {
		return entity.FinishedProduct{}, err
	}

	sql, args, err := r.builder.Select(append(itemColumns,
		"COALESCE(semi_finished_id::text, '') AS semi_finished_id",
		"semi_finished_quantity",
	)...).From("finished_products").Where(squirrel.Eq{"id": key}).ToSql()
	if err != nil {
		return entity.FinishedProduct{}, fmt.Errorf("build query: %w", err)
	}

	var fp entity.FinishedProduct
	q := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, q, &fp, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity.FinishedProduct{}, apperror.NewNotFound(string(entity.ItemTypeFinished), id)
		}
		return entity.FinishedProduct{}, fmt.Errorf("get finished product: %w", err)
	}
	fp.Type = entity.ItemTypeFinished

	sql, args, err = r.builder.Select(
		"p.finished_product_id::text AS finished_product_id",
		"p.packaging_material_id::text AS packaging_material_id",
		"p.quantity",
		"COALESCE(pm.unit_cost, 0) AS unit_cost",
	).From(packagingTable + " p").
		LeftJoin("packaging_materials pm ON pm.id = p.packaging_material_id").
		Where(squirrel.Eq{"p.finished_product_id": key}).
		OrderBy("p.id").
		ToSql()
	if err != nil {
		return entity.FinishedProduct{}, fmt.Errorf("build query: %w", err)
	}

	fp.Packaging = make([]entity.PackagingUsage, 0)
	if err := pgxscan.Select(ctx, q, &fp.Packaging, sql, args...); err != nil {
		return entity.FinishedProduct{}, fmt.Errorf("select packaging: %w", err)
	}
	return fp, nil
}

func (r *ItemRepo) selectIDs(ctx context.Context, q squirrel.SelectBuilder) ([]string, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	ids := make([]string, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("select ids: %w", err)
	}
	return ids, nil
}

// SemiFinishedUsingRaw lists semi-finished products that contain the raw material.
func (r *ItemRepo) SemiFinishedUsingRaw(ctx context.Context, rawMaterialID string) ([]string, error) {
	key, err := ParseKey(string(entity.ItemTypeRaw), rawMaterialID)
	if err != nil {
		return nil, err
	}
	return r.selectIDs(ctx, r.builder.Select("DISTINCT semi_finished_id::text").
		From(ingredientsTable).
		Where(squirrel.Eq{"raw_material_id": key}))
}

// FinishedUsingSemi lists finished products built on the semi-finished product.
func (r *ItemRepo) FinishedUsingSemi(ctx context.Context, semiFinishedID string) ([]string, error) {
	key, err := ParseKey(string(entity.ItemTypeSemi), semiFinishedID)
	if err != nil {
		return nil, err
	}
	return r.selectIDs(ctx, r.builder.Select("id::text").
		From("finished_products").
		Where(squirrel.Eq{"semi_finished_id": key}).
		OrderBy("id"))
}

// FinishedUsingPackaging lists finished products packed with the material.
func (r *ItemRepo) FinishedUsingPackaging(ctx context.Context, packagingID string) ([]string, error) {
	key, err := ParseKey(string(entity.ItemTypePackaging), packagingID)
	if err != nil {
		return nil, err
	}
	return r.selectIDs(ctx, r.builder.Select("DISTINCT finished_product_id::text").
		From(packagingTable).
		Where(squirrel.Eq{"packaging_material_id": key}))
}

// UpdateUnitCost stores a recomputed cost.
func (r *ItemRepo) UpdateUnitCost(ctx context.Context, itemType entity.ItemType, itemID string, unitCost decimal.Decimal) error {
	table, err := TableFor(itemType)
	if err != nil {
		return err
	}
	key, err := ParseKey(string(itemType), itemID)
	if err != nil {
		return err
	}

	sql, args, err := r.builder.Update(table).Set("unit_cost", unitCost).Where(squirrel.Eq{"id": key}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s unit cost: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(string(itemType), itemID)
	}
	return nil
}

func (r *ItemRepo) lowStockQuery(table string) squirrel.SelectBuilder {
	return r.builder.Select(itemColumns...).From(table).
		Where("quantity <= min_stock").
		OrderBy("name")
}

// ListLow returns items at or below their reorder threshold.
func (r *ItemRepo) ListLow(ctx context.Context, itemType entity.ItemType) ([]entity.StockItem, error) {
	table, err := TableFor(itemType)
	if err != nil {
		return nil, err
	}
	sql, args, err := r.lowStockQuery(table).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := make([]entity.StockItem, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select low stock: %w", err)
	}
	for i := range items {
		items[i].Type = itemType
	}
	return items, nil
}
