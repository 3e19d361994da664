package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tatianab/grammrpg/internal/models"
)

func testItemStore(t *testing.T, s ItemStore) {
	t.Helper()
	ctx := context.Background()

	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	knife, err := s.Insert(ctx, "  Knife ")
	require.NoError(t, err)
	assert.Equal(t, "Knife", knife.Name)
	assert.NotEmpty(t, knife.ID)
	assert.False(t, knife.CreatedAt.IsZero())

	rope, err := s.Insert(ctx, "Rope")
	require.NoError(t, err)
	_, err = s.Insert(ctx, "")
	require.NoError(t, err)

	items, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"Knife", "Rope"}, models.NamesOf(items))

	require.NoError(t, s.Delete(ctx, knife.ID))
	assert.ErrorIs(t, s.Delete(ctx, knife.ID), ErrItemNotFound)

	items, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, rope.ID, items[0].ID)
}

func TestMemoryStore(t *testing.T) {
	testItemStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "saves", "items.db"))
	require.NoError(t, err)
	defer s.Close()

	testItemStore(t, s)
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = s.Insert(ctx, "Potion")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Potion"}, models.NamesOf(items))
}
