package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// BatchQuery is one queued statement.
type BatchQuery struct {
	SQL  string
	Args []any
}

// Batch collects squirrel statements for a single round trip.
type Batch struct {
	queries []BatchQuery
}

// Queue renders q and appends it.
func (b *Batch) Queue(q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	b.queries = append(b.queries, BatchQuery{SQL: sql, Args: args})
	return nil
}

// Len is the number of queued statements.
func (b *Batch) Len() int {
	return len(b.queries)
}

// ExecBatch sends every queued statement in one round trip on the active
// transaction (or the pool) and fails on the first statement error.
func (m *TxManager) ExecBatch(ctx context.Context, b *Batch) error {
	if b.Len() == 0 {
		return nil
	}

	pb := &pgx.Batch{}
	for _, q := range b.queries {
		pb.Queue(q.SQL, q.Args...)
	}

	results := m.GetQuerier(ctx).SendBatch(ctx, pb)
	defer results.Close()

	for i := range b.queries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return nil
}
