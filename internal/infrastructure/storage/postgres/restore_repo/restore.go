// Package restore_repo loads backup rows into whitelisted tables.
package restore_repo

import (
	"context"
	"fmt"
	"sort"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"factoryledger/internal/domain/restore"
	"factoryledger/internal/infrastructure/storage/postgres"
)

var _ restore.Store = (*RestoreRepo)(nil)

// RestoreRepo implements restore.Store.
type RestoreRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewRestoreRepo creates a restore repository.
func NewRestoreRepo(txManager *postgres.TxManager) *RestoreRepo {
	return &RestoreRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func lookup(table string) (restore.Table, error) {
	t, ok := restore.Lookup(table)
	if !ok {
		return restore.Table{}, fmt.Errorf("table %q is not restorable", table)
	}
	return t, nil
}

// insertQuery builds one multi-row insert over the union of the rows' columns.
// Columns a row lacks take their DEFAULT.
func (r *RestoreRepo) insertQuery(table string, rows []restore.Row) (squirrel.InsertBuilder, error) {
	seen := make(map[string]struct{})
	var columns []string
	for _, row := range rows {
		for col := range row {
			if !restore.ValidColumn(col) {
				return squirrel.InsertBuilder{}, fmt.Errorf("invalid column %q", col)
			}
			if _, ok := seen[col]; !ok {
				seen[col] = struct{}{}
				columns = append(columns, col)
			}
		}
	}
	sort.Strings(columns)

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = pgx.Identifier{col}.Sanitize()
	}

	q := r.builder.Insert(pgx.Identifier{table}.Sanitize()).Columns(quoted...)
	for _, row := range rows {
		values := make([]any, len(columns))
		for i, col := range columns {
			if v, ok := row[col]; ok {
				values[i] = v
			} else {
				values[i] = squirrel.Expr("DEFAULT")
			}
		}
		q = q.Values(values...)
	}
	return q, nil
}

// InsertRows inserts rows in one statement inside a savepoint.
func (r *RestoreRepo) InsertRows(ctx context.Context, table string, rows []restore.Row) error {
	if len(rows) == 0 {
		return nil
	}
	if _, err := lookup(table); err != nil {
		return err
	}

	q, err := r.insertQuery(table, rows)
	if err != nil {
		return err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	err = r.txManager.RunInSavepoint(ctx, func(ctx context.Context) error {
		_, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func sequenceQuery(table string) string {
	ident := pgx.Identifier{table}.Sanitize()
	return fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence($1, 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)",
		ident)
}

// ResetSequence moves the id sequence of an integer-key table past the restored rows.
func (r *RestoreRepo) ResetSequence(ctx context.Context, table string) error {
	t, err := lookup(table)
	if err != nil {
		return err
	}
	if !t.IntegerKey {
		return nil
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sequenceQuery(table), table); err != nil {
		return fmt.Errorf("reset %s sequence: %w", table, err)
	}
	return nil
}
