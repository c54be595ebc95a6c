package register_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factoryledger/internal/core/entity"
	"factoryledger/internal/domain/movement"
)

func TestMovementRepo_ListQuery(t *testing.T) {
	r := NewMovementRepo(nil)

	itemType := entity.ItemTypeRaw
	mt := entity.MovementOut
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	sql, args, err := r.listQuery(movement.Filter{
		ItemType:     &itemType,
		MovementType: &mt,
		From:         &from,
		Limit:        50,
		Offset:       100,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM inventory_movements WHERE item_type = $1 AND movement_type = $2 AND created_at >= $3")
	assert.Contains(t, sql, "ORDER BY created_at DESC, id DESC LIMIT 50 OFFSET 100")
	assert.Equal(t, []any{itemType, mt, from}, args)
}

func TestMovementRepo_ListQueryWithoutFilters(t *testing.T) {
	r := NewMovementRepo(nil)

	sql, args, err := r.listQuery(movement.Filter{}).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "WHERE")
	assert.NotContains(t, sql, "LIMIT")
	assert.Empty(t, args)
}

func TestMovementRepo_TotalsQuery(t *testing.T) {
	r := NewMovementRepo(nil)
	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	sql, args, err := r.totalsQuery(since).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT movement_type, item_type, COALESCE(SUM(ABS(quantity)), 0) AS quantity, COUNT(*) AS count "+
			"FROM inventory_movements WHERE created_at >= $1 GROUP BY movement_type, item_type",
		sql)
	assert.Equal(t, []any{since}, args)
}
