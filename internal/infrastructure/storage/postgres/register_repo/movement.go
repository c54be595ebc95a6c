// Package register_repo stores the append-only inventory movement register.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"factoryledger/internal/core/entity"
	"factoryledger/internal/domain/movement"
	"factoryledger/internal/domain/posting"
	"factoryledger/internal/infrastructure/storage/postgres"
)

const movementsTable = "inventory_movements"

var movementColumns = []string{
	"id::text AS id", "item_id", "item_type", "movement_type", "quantity", "balance_after",
	"reason", "reference_type", "reference_id", "direction", "user_id::text AS user_id", "created_at",
}

var (
	_ movement.Repository = (*MovementRepo)(nil)
	_ posting.Postings    = (*MovementRepo)(nil)
)

// MovementRepo implements movement.Repository and posting.Postings.
type MovementRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewMovementRepo creates a movement repository.
func NewMovementRepo(txManager *postgres.TxManager) *MovementRepo {
	return &MovementRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Insert appends one movement.
func (r *MovementRepo) Insert(ctx context.Context, m entity.InventoryMovement) error {
	sql, args, err := r.builder.Insert(movementsTable).
		Columns("id", "item_id", "item_type", "movement_type", "quantity", "balance_after",
			"reason", "reference_type", "reference_id", "direction", "user_id", "created_at").
		Values(m.ID, m.ItemID, m.ItemType, m.MovementType, m.Quantity, m.BalanceAfter,
			m.Reason, m.ReferenceType, m.ReferenceID, m.Direction, m.UserID, m.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func (r *MovementRepo) listQuery(f movement.Filter) squirrel.SelectBuilder {
	q := r.builder.Select(movementColumns...).From(movementsTable)
	if f.ItemType != nil {
		q = q.Where(squirrel.Eq{"item_type": *f.ItemType})
	}
	if f.ItemID != nil {
		q = q.Where(squirrel.Eq{"item_id": *f.ItemID})
	}
	if f.MovementType != nil {
		q = q.Where(squirrel.Eq{"movement_type": *f.MovementType})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *f.To})
	}
	q = q.OrderBy("created_at DESC", "id DESC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q
}

// List returns movements matching f, newest first.
func (r *MovementRepo) List(ctx context.Context, f movement.Filter) ([]entity.InventoryMovement, error) {
	sql, args, err := r.listQuery(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.selectMovements(ctx, sql, args)
}

func (r *MovementRepo) totalsQuery(since time.Time) squirrel.SelectBuilder {
	return r.builder.Select(
		"movement_type", "item_type",
		"COALESCE(SUM(ABS(quantity)), 0) AS quantity",
		"COUNT(*) AS count",
	).From(movementsTable).
		Where(squirrel.GtOrEq{"created_at": since}).
		GroupBy("movement_type", "item_type")
}

// Totals groups quantities by movement and item type.
func (r *MovementRepo) Totals(ctx context.Context, since time.Time) ([]movement.Total, error) {
	sql, args, err := r.totalsQuery(since).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var totals []movement.Total
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &totals, sql, args...); err != nil {
		return nil, fmt.Errorf("select totals: %w", err)
	}
	return totals, nil
}

// ListByItem returns an item's history, oldest first.
func (r *MovementRepo) ListByItem(ctx context.Context, itemType entity.ItemType, itemID string) ([]entity.InventoryMovement, error) {
	sql, args, err := r.builder.Select(movementColumns...).From(movementsTable).
		Where(squirrel.Eq{"item_type": itemType, "item_id": itemID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.selectMovements(ctx, sql, args)
}

// LockReference takes a transaction-scoped advisory lock on the reference.
func (r *MovementRepo) LockReference(ctx context.Context, refType, refID string) error {
	if r.txManager.GetTx(ctx) == nil {
		return fmt.Errorf("lock reference requires transaction context")
	}
	_, err := r.txManager.GetQuerier(ctx).Exec(ctx,
		"SELECT pg_advisory_xact_lock(hashtext($1))", "movement:"+refType+":"+refID)
	if err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

// LatestDirection returns the direction of the newest posting for the reference, or nil.
func (r *MovementRepo) LatestDirection(ctx context.Context, refType, refID string) (*entity.Direction, error) {
	sql, args, err := r.builder.Select("direction").From(movementsTable).
		Where(squirrel.Eq{"reference_type": refType, "reference_id": refID}).
		Where(squirrel.NotEq{"direction": nil}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var dir entity.Direction
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &dir, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest direction: %w", err)
	}
	return &dir, nil
}

// ListByReference returns every movement posted for the reference, oldest first.
func (r *MovementRepo) ListByReference(ctx context.Context, refType, refID string) ([]entity.InventoryMovement, error) {
	sql, args, err := r.builder.Select(movementColumns...).From(movementsTable).
		Where(squirrel.Eq{"reference_type": refType, "reference_id": refID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.selectMovements(ctx, sql, args)
}

func (r *MovementRepo) selectMovements(ctx context.Context, sql string, args []any) ([]entity.InventoryMovement, error) {
	movements := make([]entity.InventoryMovement, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}
