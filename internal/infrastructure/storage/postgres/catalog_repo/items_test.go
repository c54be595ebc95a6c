package catalog_repo

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
)

func TestTableFor(t *testing.T) {
	for itemType, want := range map[entity.ItemType]string{
		entity.ItemTypeRaw:       "raw_materials",
		entity.ItemTypeSemi:      "semi_finished_products",
		entity.ItemTypePackaging: "packaging_materials",
		entity.ItemTypeFinished:  "finished_products",
	} {
		got, err := TableFor(itemType)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := TableFor("pallets")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey("raw", "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), key)

	for _, bad := range []string{"", "abc", "-1", "0", "1.5"} {
		_, err := ParseKey("raw", bad)
		assert.True(t, apperror.IsNotFound(err), bad)
	}
}

func TestItemRepo_AdjustQueryIsAtomic(t *testing.T) {
	r := NewItemRepo(nil)

	sql, args, err := r.adjustQuery("raw_materials", 7, decimal.RequireFromString("-2.5")).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE raw_materials SET quantity = quantity + $1 WHERE id = $2 RETURNING quantity", sql)
	require.Len(t, args, 2)
	assert.True(t, args[0].(decimal.Decimal).Equal(decimal.RequireFromString("-2.5")))
	assert.Equal(t, int64(7), args[1])
}

func TestItemRepo_LowStockQuery(t *testing.T) {
	r := NewItemRepo(nil)

	sql, args, err := r.lowStockQuery("packaging_materials").ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id::text AS id, name, quantity, unit_cost, min_stock FROM packaging_materials WHERE quantity <= min_stock ORDER BY name",
		sql)
	assert.Empty(t, args)
}
