package bstar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rnbguy/uosql-server/pkg/meta"
	"github.com/rnbguy/uosql-server/pkg/storage"
	"github.com/rnbguy/uosql-server/pkg/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	table, err := meta.NewTable("account", []types.Column{
		{Name: "id", Type: types.IntType(), IsPrimaryKey: true},
		{Name: "owner", Type: types.CharType(16)},
	}, meta.BStar)
	require.NoError(t, err)

	eng := New(table, t.TempDir())
	require.NoError(t, eng.CreateTable())
	return eng
}

func insertAccount(t *testing.T, eng *Engine, id int32, owner string) {
	t.Helper()
	row, err := eng.Layout().EncodeRow([]types.Value{
		types.NewIntValue(id),
		types.NewCharValue(owner, 16),
	})
	require.NoError(t, err)
	_, err = eng.InsertRow(row)
	require.NoError(t, err)
}

func lookupIDs(t *testing.T, eng *Engine, pivot int32, comp types.CompType) []int32 {
	t.Helper()
	value, err := types.Encode(types.NewIntValue(pivot))
	require.NoError(t, err)

	rows, err := eng.Lookup(0, value, comp)
	require.NoError(t, err)

	var ids []int32
	for {
		ok, err := rows.Advance()
		require.NoError(t, err)
		if !ok {
			return ids
		}
		v, err := rows.Get(0)
		require.NoError(t, err)
		ids = append(ids, v.(*types.IntValue).Value)
	}
}

func TestCreateRequiresPrimaryKey(t *testing.T) {
	table, err := meta.NewTable("log", []types.Column{
		{Name: "line", Type: types.CharType(32)},
	}, meta.BStar)
	require.NoError(t, err)

	eng := New(table, t.TempDir())
	assert.ErrorIs(t, eng.CreateTable(), storage.ErrMissingPrimaryKey)

	_, err = eng.InsertRow(make([]byte, 34))
	assert.ErrorIs(t, err, storage.ErrMissingPrimaryKey)
}

func TestIndexedLookup(t *testing.T) {
	eng := newTestEngine(t)
	// inserted out of order; index-served lookups come back in key order
	for _, id := range []int32{5, 1, 9, 3, 7} {
		insertAccount(t, eng, id, "owner")
	}

	assert.Equal(t, []int32{5}, lookupIDs(t, eng, 5, types.Equals))
	assert.Equal(t, []int32{1, 3}, lookupIDs(t, eng, 5, types.LessThan))
	assert.Equal(t, []int32{1, 3, 5}, lookupIDs(t, eng, 5, types.LessThanOrEqual))
	assert.Equal(t, []int32{7, 9}, lookupIDs(t, eng, 5, types.GreaterThan))
	assert.Equal(t, []int32{5, 7, 9}, lookupIDs(t, eng, 5, types.GreaterThanOrEqual))
	assert.Equal(t, []int32{1, 3, 7, 9}, lookupIDs(t, eng, 5, types.NotEqual))
	assert.Empty(t, lookupIDs(t, eng, 4, types.Equals))
}

func TestDuplicateKeyRejectedByIndex(t *testing.T) {
	eng := newTestEngine(t)
	insertAccount(t, eng, 1, "anna")

	row, err := eng.Layout().EncodeRow([]types.Value{
		types.NewIntValue(1),
		types.NewCharValue("dup", 16),
	})
	require.NoError(t, err)

	_, err = eng.InsertRow(row)
	assert.ErrorIs(t, err, storage.ErrPrimaryKeyValueExists)
}

func TestNonKeyLookupFallsBack(t *testing.T) {
	eng := newTestEngine(t)
	insertAccount(t, eng, 1, "anna")
	insertAccount(t, eng, 2, "bert")

	owner, err := types.Encode(types.NewCharValue("bert", 16))
	require.NoError(t, err)

	rows, err := eng.Lookup(1, owner, types.Equals)
	require.NoError(t, err)

	ok, err := rows.Advance()
	require.NoError(t, err)
	require.True(t, ok)
	id, err := rows.Get(0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), id.(*types.IntValue).Value)
}

func TestIndexSurvivesDeleteAndReorganize(t *testing.T) {
	eng := newTestEngine(t)
	for id := int32(1); id <= 6; id++ {
		insertAccount(t, eng, id, "owner")
	}

	pivot, err := types.Encode(types.NewIntValue(3))
	require.NoError(t, err)
	removed, err := eng.Delete(0, pivot, types.LessThanOrEqual)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), removed)

	// index is rebuilt after the mutation and reflects the tombstones
	assert.Equal(t, []int32{4, 5, 6}, lookupIDs(t, eng, 0, types.GreaterThan))

	require.NoError(t, eng.Reorganize())
	assert.Equal(t, []int32{4, 5, 6}, lookupIDs(t, eng, 0, types.GreaterThan))

	// key 3 is free again after the delete
	insertAccount(t, eng, 3, "owner")
	assert.Equal(t, []int32{3}, lookupIDs(t, eng, 3, types.Equals))
}
