package postgres

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema/schema.sql
var schemaSQL string

// ApplySchema creates missing tables and indexes. Statements are idempotent.
func ApplySchema(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
