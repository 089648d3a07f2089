package mount

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriora/vfsoverlay/internal/backingstore"
	"github.com/auriora/vfsoverlay/internal/ids"
)

func newTestMount(t *testing.T) *Mount {
	t.Helper()
	store := backingstore.NewMemoryStore()
	m, err := New(Options{Store: store})
	require.NoError(t, err)
	return m
}

func TestUT_MT_01_New_InstallsReservedEdenAtFixedID(t *testing.T) {
	m := newTestMount(t)
	n, err := m.Lookup(context.Background(), "/.eden")
	require.NoError(t, err)
	assert.Equal(t, ids.ReservedDotEdenInodeId, n.ID())
}

func TestUT_MT_02_Lookup_ResolvesNestedPath(t *testing.T) {
	m := newTestMount(t)
	_, err := m.Root().Mkdir(context.Background(), "sub", 0)
	require.NoError(t, err)
	sub, err := m.Root().GetOrLoadChildTree(context.Background(), "sub")
	require.NoError(t, err)
	_, err = sub.Create(context.Background(), "file.txt", 0)
	require.NoError(t, err)

	n, err := m.Lookup(context.Background(), "/sub/file.txt")
	require.NoError(t, err)
	assert.NotNil(t, n)
}

func TestUT_MT_03_Stats_CountsLookups(t *testing.T) {
	m := newTestMount(t)
	before := m.Stats().Lookups
	_, err := m.Lookup(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, before+1, m.Stats().Lookups)
}

func TestUT_MT_04_New_RequiresBackingStore(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
