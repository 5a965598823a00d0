package imgcache

import (
	"testing"

	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/help"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"
)

// TestRegistry_OpenLookupClose shares instances by name and closes them explicitly.
func TestRegistry_OpenLookupClose(t *testing.T) {
	r := NewRegistry(help.Quiet(), WithFilesystem(memfs.New()))
	defer func() { require.NoError(t, r.CloseAll()) }()

	avatars, err := r.Open(t.Context(), &config.Cache{Name: "avatars"})
	require.NoError(t, err)
	again, err := r.Open(t.Context(), &config.Cache{Name: "avatars"})
	require.NoError(t, err)
	require.Same(t, avatars, again)
	require.Equal(t, "avatars", avatars.Name())

	covers, err := r.Open(t.Context(), &config.Cache{Name: "covers"})
	require.NoError(t, err)
	require.NotSame(t, avatars, covers)

	found, ok := r.Lookup("covers")
	require.True(t, ok)
	require.Same(t, covers, found)

	require.NoError(t, r.Close("covers"))
	_, ok = r.Lookup("covers")
	require.False(t, ok)
	require.NoError(t, r.Close("covers"))

	require.ErrorIs(t, covers.RegisterFormat(Format{Name: "x", Width: 1, Height: 1}), ErrClosed)
}

// TestRegistry_Open_DefaultName opens the default cache for a nil config.
func TestRegistry_Open_DefaultName(t *testing.T) {
	r := NewRegistry(help.Quiet())
	defer func() { require.NoError(t, r.CloseAll()) }()

	c, err := r.Open(t.Context(), nil)
	require.NoError(t, err)
	_, ok := r.Lookup(config.DefaultName)
	require.True(t, ok)
	require.Equal(t, config.DefaultName, c.Name())
}

// TestSerialExecutor_KeepsOrder runs completions in submission order and runs inline after Close.
func TestSerialExecutor_KeepsOrder(t *testing.T) {
	exec := NewSerialExecutor(4)

	var got []int
	for i := 0; i < 100; i++ {
		exec.Execute(func() { got = append(got, i) })
	}
	require.NoError(t, exec.Close())
	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v)
	}

	ran := false
	exec.Execute(func() { ran = true })
	require.True(t, ran)
	require.NoError(t, exec.Close())
}
