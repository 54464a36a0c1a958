package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	atlaserrors "github.com/hpungsan/atlas/internal/errors"
)

// storeContract runs the behavior every Store must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "v1"))
	require.NoError(t, s.Set(ctx, "k", "v2"))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", v)

	require.NoError(t, s.Remove(ctx, "k"))
	require.NoError(t, s.Remove(ctx, "k"), "removing an absent key is not an error")
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestLegacyStore_Contract(t *testing.T) {
	storeContract(t, NewLegacyStore(filepath.Join(t.TempDir(), LegacyFileName), 0))
}

func TestSQLiteStore_Contract(t *testing.T) {
	s, err := OpenSQLite(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	storeContract(t, s)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore()
	require.ErrorIs(t, s.Set(ctx, "k", "v"), context.Canceled)
	require.Equal(t, 0, s.Len())
}

func TestLegacyStore_Quota(t *testing.T) {
	path := filepath.Join(t.TempDir(), LegacyFileName)
	s := NewLegacyStore(path, 16)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "1234"))

	err := s.Set(ctx, "b", strings.Repeat("x", 20))
	require.Error(t, err)
	require.True(t, atlaserrors.Is(err, atlaserrors.ErrQuotaExceeded))

	_, ok, err := s.Get(ctx, "b")
	require.NoError(t, err)
	require.False(t, ok, "rejected write must not be stored")

	used, err := s.Usage()
	require.NoError(t, err)
	require.Equal(t, 5, used)
}

func TestLegacyStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), LegacyFileName)
	ctx := context.Background()

	require.NoError(t, NewLegacyStore(path, 0).Set(ctx, PersistKey, `{"version":1}`))

	v, ok, err := NewLegacyStore(path, 0).Get(ctx, PersistKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"version":1}`, v)
}

func TestLegacyStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), LegacyFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, _, err := NewLegacyStore(path, 0).Get(context.Background(), PersistKey)
	require.Error(t, err)
}

func TestOpenSQLite(t *testing.T) {
	tmpDir := t.TempDir()

	s, err := OpenSQLite(tmpDir)
	require.NoError(t, err)
	defer s.Close()

	if _, err := os.Stat(filepath.Join(tmpDir, DBFileName)); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	info, err := os.Stat(filepath.Join(tmpDir, "exports"))
	require.NoError(t, err)
	require.True(t, info.IsDir())

	var journalMode string
	require.NoError(t, s.DB().QueryRow("PRAGMA journal_mode;").Scan(&journalMode))
	require.Equal(t, "wal", journalMode)

	version, err := GetUserVersion(s.DB())
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, version)
}

func TestOpenSQLite_Reopen(t *testing.T) {
	tmpDir := t.TempDir()
	ctx := context.Background()

	s, err := OpenSQLite(tmpDir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, PersistKey, "payload"))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(tmpDir)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.Get(ctx, PersistKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "payload", v)
}

func TestSQLiteStore_LargeValue(t *testing.T) {
	s, err := OpenSQLite(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	big := "data:image/jpeg;base64," + strings.Repeat("QUJD", 3*1024*1024)
	require.NoError(t, s.Set(ctx, PersistKey, big))

	v, ok, err := s.Get(ctx, PersistKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, len(big), len(v))
}
