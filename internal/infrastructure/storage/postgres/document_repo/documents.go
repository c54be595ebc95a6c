// Package document_repo stores production/packaging orders and commercial
// documents (invoices, returns, payments) with their lines and statuses.
package document_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/domain/bridge"
	"factoryledger/internal/domain/posting"
	"factoryledger/internal/domain/status"
	"factoryledger/internal/infrastructure/storage/postgres"
	"factoryledger/internal/infrastructure/storage/postgres/catalog_repo"
)

var (
	_ posting.Source    = (*DocumentRepo)(nil)
	_ bridge.Documents  = (*DocumentRepo)(nil)
	_ bridge.Profits    = (*DocumentRepo)(nil)
	_ status.Repository = (*DocumentRepo)(nil)
)

// statusTables maps document kinds to their tables.
var statusTables = map[status.Kind]string{
	status.KindProductionOrder: "production_orders",
	status.KindPackagingOrder:  "packaging_orders",
	status.KindInvoice:         "invoices",
	status.KindReturn:          "returns",
}

// DocumentRepo reads documents for posting and bridging and writes their status.
type DocumentRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewDocumentRepo creates a document repository.
func NewDocumentRepo(txManager *postgres.TxManager) *DocumentRepo {
	return &DocumentRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// getOne scans the single row selected by q into a T.
func getOne[T any](ctx context.Context, r *DocumentRepo, q squirrel.SelectBuilder, entityName, id string) (T, error) {
	var out T
	sql, args, err := q.ToSql()
	if err != nil {
		return out, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return out, apperror.NewNotFound(entityName, id)
		}
		return out, fmt.Errorf("get %s: %w", entityName, err)
	}
	return out, nil
}

// selectAll scans every row selected by q into a slice of T.
func selectAll[T any](ctx context.Context, r *DocumentRepo, q squirrel.SelectBuilder) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	out := make([]T, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return out, nil
}

// GetProductionOrder loads an order with its raw material lines.
func (r *DocumentRepo) GetProductionOrder(ctx context.Context, id string) (entity.ProductionOrder, error) {
	key, err := catalog_repo.ParseKey("production order", id)
	if err != nil {
		return entity.ProductionOrder{}, err
	}

	o, err := getOne[entity.ProductionOrder](ctx, r, r.builder.Select(
		"id::text AS id", "code", "product_id::text AS product_id", "quantity", "status", "total_cost", "created_at",
	).From("production_orders").Where(squirrel.Eq{"id": key}), "production order", id)
	if err != nil {
		return o, err
	}

	o.Ingredients, err = selectAll[entity.OrderLine](ctx, r, r.builder.Select(
		"raw_material_id::text AS item_id", "required_quantity",
	).From("production_order_ingredients").Where(squirrel.Eq{"production_order_id": key}).OrderBy("id"))
	if err != nil {
		return o, fmt.Errorf("production order lines: %w", err)
	}
	return o, nil
}

// GetPackagingOrder loads an order with its packaging material lines.
func (r *DocumentRepo) GetPackagingOrder(ctx context.Context, id string) (entity.PackagingOrder, error) {
	key, err := catalog_repo.ParseKey("packaging order", id)
	if err != nil {
		return entity.PackagingOrder{}, err
	}

	o, err := getOne[entity.PackagingOrder](ctx, r, r.builder.Select(
		"id::text AS id", "code", "finished_product_id::text AS finished_product_id",
		"semi_finished_id::text AS semi_finished_id", "semi_finished_quantity",
		"quantity", "status", "total_cost", "created_at",
	).From("packaging_orders").Where(squirrel.Eq{"id": key}), "packaging order", id)
	if err != nil {
		return o, err
	}

	o.Materials, err = selectAll[entity.OrderLine](ctx, r, r.builder.Select(
		"packaging_material_id::text AS item_id", "required_quantity",
	).From("packaging_order_materials").Where(squirrel.Eq{"packaging_order_id": key}).OrderBy("id"))
	if err != nil {
		return o, fmt.Errorf("packaging order lines: %w", err)
	}
	return o, nil
}

func (r *DocumentRepo) lines(ctx context.Context, table, fk string, key int64) ([]entity.CommercialLine, error) {
	raw, err := selectAll[entity.CommercialLine](ctx, r, r.builder.Select(
		"item_type", "item_id", "quantity", "unit_price",
	).From(table).Where(squirrel.Eq{fk: key}).OrderBy("id"))
	if err != nil {
		return nil, err
	}
	for i := range raw {
		// Lines may carry table-style kinds such as "raw_materials".
		if t, err := entity.ParseItemType(string(raw[i].ItemType)); err == nil {
			raw[i].ItemType = t
		}
	}
	return raw, nil
}

// GetInvoice loads an invoice with its lines.
func (r *DocumentRepo) GetInvoice(ctx context.Context, id string) (entity.Invoice, error) {
	key, err := catalog_repo.ParseKey("invoice", id)
	if err != nil {
		return entity.Invoice{}, err
	}

	inv, err := getOne[entity.Invoice](ctx, r, r.builder.Select(
		"id::text AS id", "invoice_type", "party_id::text AS party_id", "party_name", "date",
		"status", "total_amount", "paid_amount", "payment_method",
	).From("invoices").Where(squirrel.Eq{"id": key}), "invoice", id)
	if err != nil {
		return inv, err
	}

	inv.Items, err = r.lines(ctx, "invoice_items", "invoice_id", key)
	if err != nil {
		return inv, fmt.Errorf("invoice lines: %w", err)
	}
	return inv, nil
}

// GetReturn loads a return with its lines.
func (r *DocumentRepo) GetReturn(ctx context.Context, id string) (entity.Return, error) {
	key, err := catalog_repo.ParseKey("return", id)
	if err != nil {
		return entity.Return{}, err
	}

	ret, err := getOne[entity.Return](ctx, r, r.builder.Select(
		"id::text AS id", "return_type", "invoice_id::text AS invoice_id", "party_id::text AS party_id",
		"party_name", "date", "status", "total_amount", "payment_method",
	).From("returns").Where(squirrel.Eq{"id": key}), "return", id)
	if err != nil {
		return ret, err
	}

	ret.Items, err = r.lines(ctx, "return_items", "return_id", key)
	if err != nil {
		return ret, fmt.Errorf("return lines: %w", err)
	}
	return ret, nil
}

// GetPayment loads a payment.
func (r *DocumentRepo) GetPayment(ctx context.Context, id string) (entity.Payment, error) {
	key, err := catalog_repo.ParseKey("payment", id)
	if err != nil {
		return entity.Payment{}, err
	}
	return getOne[entity.Payment](ctx, r, r.builder.Select(
		"id::text AS id", "payment_type", "party_id::text AS party_id", "party_name",
		"amount", "payment_method", "date",
	).From("payments").Where(squirrel.Eq{"id": key}), "payment", id)
}

func (r *DocumentRepo) statusQuery(table string, key int64, newStatus string) (string, []any, error) {
	locked := r.builder.Select("id", "status").
		From(table).
		Where(squirrel.Eq{"id": key}).
		Suffix("FOR UPDATE")

	return r.builder.Update(table+" AS d").
		Set("status", newStatus).
		FromSelect(locked, "old").
		Where("d.id = old.id").
		Suffix("RETURNING old.status").
		ToSql()
}

// UpdateStatus stores the new status and returns the previous one.
func (r *DocumentRepo) UpdateStatus(ctx context.Context, kind status.Kind, id, newStatus string) (string, error) {
	table, ok := statusTables[kind]
	if !ok {
		return "", apperror.NewValidation(fmt.Sprintf("unknown document kind %q", kind))
	}
	key, err := catalog_repo.ParseKey(string(kind), id)
	if err != nil {
		return "", err
	}

	sql, args, err := r.statusQuery(table, key, newStatus)
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}

	var prev string
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&prev); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperror.NewNotFound(string(kind), id)
		}
		return "", fmt.Errorf("update %s status: %w", table, err)
	}
	return prev, nil
}

// GetProfit returns the recognized profit of an invoice.
func (r *DocumentRepo) GetProfit(ctx context.Context, invoiceID string) (entity.InvoiceProfit, error) {
	key, err := catalog_repo.ParseKey("invoice profit", invoiceID)
	if err != nil {
		return entity.InvoiceProfit{}, err
	}
	return getOne[entity.InvoiceProfit](ctx, r, r.builder.Select(
		"invoice_id::text AS invoice_id", "total_sales", "total_cost", "profit_amount",
	).From("invoice_profits").Where(squirrel.Eq{"invoice_id": key}), "invoice profit", invoiceID)
}

// SaveProfit upserts the profit row of an invoice.
func (r *DocumentRepo) SaveProfit(ctx context.Context, p entity.InvoiceProfit) error {
	key, err := catalog_repo.ParseKey("invoice profit", p.InvoiceID)
	if err != nil {
		return err
	}

	sql, args, err := r.builder.Insert("invoice_profits").
		Columns("invoice_id", "total_sales", "total_cost", "profit_amount").
		Values(key, p.TotalSales, p.TotalCost, p.ProfitAmount).
		Suffix("ON CONFLICT (invoice_id) DO UPDATE SET total_sales = EXCLUDED.total_sales, " +
			"total_cost = EXCLUDED.total_cost, profit_amount = EXCLUDED.profit_amount").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("save invoice profit: %w", err)
	}
	return nil
}
