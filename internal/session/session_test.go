package session

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := OpenAt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestCookies_MissingHost(t *testing.T) {
	store := openTestStore(t)
	assert.Nil(t, store.Cookies("labyrinth.example.org"))
}

func TestSetCookies_Roundtrip(t *testing.T) {
	store := openTestStore(t)

	blob := []byte(`[{"name":"session","value":"abc"}]`)
	require.NoError(t, store.SetCookies("labyrinth.example.org", blob))

	assert.Equal(t, blob, store.Cookies("labyrinth.example.org"))
	assert.Nil(t, store.Cookies("other.example.org"))
}

func TestSetCookies_Overwrite(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SetCookies("host", []byte("old")))
	require.NoError(t, store.SetCookies("host", []byte("new")))

	assert.Equal(t, []byte("new"), store.Cookies("host"))
}

func TestClear(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SetCookies("host", []byte("data")))
	require.NoError(t, store.Clear("host"))

	assert.Nil(t, store.Cookies("host"))
	// Clearing an absent host is fine.
	assert.NoError(t, store.Clear("never-stored"))
}

func TestOpenAt_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.db")

	store, err := OpenAt(path)
	require.NoError(t, err)
	defer store.Close()

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenAt_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on windows")
	}

	path := filepath.Join(t.TempDir(), "state.db")

	store, err := OpenAt(path)
	require.NoError(t, err)
	defer store.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := OpenAt(path)
	require.NoError(t, err)
	require.NoError(t, store.SetCookies("host", []byte("data")))
	require.NoError(t, store.Close())

	reopened, err := OpenAt(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, []byte("data"), reopened.Cookies("host"))
}
