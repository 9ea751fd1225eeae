package storage

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	key, err := store.Save("reports/scores.csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)
	require.Equal(t, "reports/scores.csv", key)

	f, err := store.Open(key)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, store.Delete(key))
	_, err = store.Open(key)
	require.Error(t, err)

	// Deleting again must stay silent for retried cleanup jobs.
	require.NoError(t, store.Delete(key))
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../outside.txt", []byte("nope"))
	require.ErrorIs(t, err, ErrOutsideBase)
	_, err = store.Open("../../etc/passwd")
	require.ErrorIs(t, err, ErrOutsideBase)
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("reports/old.csv", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("reports/fresh.csv", []byte("fresh"))
	require.NoError(t, err)

	stale := time.Now().Add(-48 * time.Hour)
	path, err := store.resolve("reports/old.csv")
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(path, stale, stale))

	removed, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{"reports/old.csv"}, removed)

	f, err := store.Open("reports/fresh.csv")
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
