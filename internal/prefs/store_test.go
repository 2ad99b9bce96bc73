package prefs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(DefaultConfig(path))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(nil)
	assert.Error(t, err)
	_, err = Open(&Config{})
	assert.Error(t, err)
}

func TestOperatorName(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "prefs.db"))

	name, err := store.OperatorName(ctx)
	require.NoError(t, err)
	assert.Equal(t, Anonymous, name)

	stored, err := store.SetOperatorName(ctx, "  ana ")
	require.NoError(t, err)
	assert.Equal(t, "ana", stored)
	name, err = store.OperatorName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ana", name)

	stored, err = store.SetOperatorName(ctx, "   ")
	require.NoError(t, err)
	assert.Equal(t, Anonymous, stored)
	v, ok, err := store.Get(ctx, OperatorNameKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Anonymous, v)
}

func TestCollapsed(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "prefs.db"))

	assert.False(t, store.IsCollapsed("woe"), "groups default to expanded")

	require.NoError(t, store.SetCollapsed(ctx, "WOE", true))
	assert.True(t, store.IsCollapsed("woe"))
	v, ok, err := store.Get(ctx, "set_collapsed_woe")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	require.NoError(t, store.SetCollapsed(ctx, "", true))
	assert.True(t, store.IsCollapsed("unknown"))

	require.NoError(t, store.SetCollapsed(ctx, "woe", false))
	assert.False(t, store.IsCollapsed("woe"))
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "prefs.db")

	first, err := Open(DefaultConfig(path))
	require.NoError(t, err)
	_, err = first.SetOperatorName(ctx, "bo")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := openStore(t, path)
	name, err := second.OperatorName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bo", name)
}
