package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/atlas/internal/metrics"
)

const blob = `{"state":{"memories":[],"groups":[]},"version":2}`

func TestMigrating_CopiesLegacyOnce(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryStore()
	legacy := NewLegacyStore(filepath.Join(t.TempDir(), LegacyFileName), 0)
	require.NoError(t, legacy.Set(ctx, PersistKey, blob))

	c := metrics.NewCollector("atlas")
	m := NewMigrating(primary, legacy, WithMetrics(c))

	v, ok, err := m.Get(ctx, PersistKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, blob, v)

	got, ok, err := primary.Get(ctx, PersistKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, blob, got)

	_, ok, err = legacy.Get(ctx, PersistKey)
	require.NoError(t, err)
	require.False(t, ok, "legacy must be empty after migration")
	require.Equal(t, 1.0, testutil.ToFloat64(c.LegacyMigrated))
}

func TestMigrating_KeepLegacy(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryStore()
	legacy := NewMemoryStore()
	require.NoError(t, legacy.Set(ctx, PersistKey, blob))

	v, ok, err := NewMigrating(primary, legacy, WithKeepLegacy()).Get(ctx, PersistKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, blob, v)
	require.Equal(t, 1, primary.Len())

	kept, ok, err := legacy.Get(ctx, PersistKey)
	require.NoError(t, err)
	require.True(t, ok, "legacy value survives when it is only copied")
	require.Equal(t, blob, kept)
}

func TestMigrating_Idempotent(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryStore()
	legacy := NewMemoryStore()
	require.NoError(t, legacy.Set(ctx, PersistKey, blob))
	m := NewMigrating(primary, legacy)

	first, _, err := m.Get(ctx, PersistKey)
	require.NoError(t, err)
	second, ok, err := m.Get(ctx, PersistKey)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, first, second)
	require.Equal(t, 0, legacy.Len())
	require.Equal(t, 1, primary.Len())
}

func TestMigrating_PrimaryWins(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryStore()
	legacy := NewMemoryStore()
	require.NoError(t, primary.Set(ctx, PersistKey, "new"))
	require.NoError(t, legacy.Set(ctx, PersistKey, "old"))

	v, _, err := NewMigrating(primary, legacy).Get(ctx, PersistKey)
	require.NoError(t, err)
	require.Equal(t, "new", v)

	_, ok, _ := legacy.Get(ctx, PersistKey)
	require.True(t, ok, "legacy is untouched when primary already has data")
}

func TestMigrating_BothEmpty(t *testing.T) {
	_, ok, err := NewMigrating(NewMemoryStore(), NewMemoryStore()).Get(context.Background(), PersistKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMigrating_OtherKeysPassThrough(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryStore()
	legacy := NewMemoryStore()
	require.NoError(t, legacy.Set(ctx, "other", "legacy-only"))
	m := NewMigrating(primary, legacy)

	_, ok, err := m.Get(ctx, "other")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.Set(ctx, "other", "x"))
	v, _, _ := primary.Get(ctx, "other")
	require.Equal(t, "x", v)

	require.NoError(t, m.Remove(ctx, "other"))
	_, ok, _ = primary.Get(ctx, "other")
	require.False(t, ok)
}

func TestMigrating_Concurrent(t *testing.T) {
	ctx := context.Background()
	primary, err := OpenSQLite(t.TempDir())
	require.NoError(t, err)
	defer primary.Close()

	legacy := NewLegacyStore(filepath.Join(t.TempDir(), LegacyFileName), 0)
	require.NoError(t, legacy.Set(ctx, PersistKey, blob))
	m := NewMigrating(primary, legacy)

	results := make([]string, 8)
	g, gctx := errgroup.WithContext(ctx)
	for i := range results {
		g.Go(func() error {
			v, ok, err := m.Get(gctx, PersistKey)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("value missing")
			}
			results[i] = v
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, v := range results {
		require.Equal(t, blob, v)
	}
	v, _, err := primary.Get(ctx, PersistKey)
	require.NoError(t, err)
	require.Equal(t, blob, v)
	_, ok, err := legacy.Get(ctx, PersistKey)
	require.NoError(t, err)
	require.False(t, ok)
}

type failingStore struct {
	Store
	setErr    error
	removeErr error
}

func (f failingStore) Set(ctx context.Context, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Store.Set(ctx, key, value)
}

func (f failingStore) Remove(ctx context.Context, key string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.Store.Remove(ctx, key)
}

func TestMigrating_PrimaryWriteFailurePropagates(t *testing.T) {
	ctx := context.Background()
	legacy := NewMemoryStore()
	require.NoError(t, legacy.Set(ctx, PersistKey, blob))
	boom := errors.New("quota")

	_, _, err := NewMigrating(failingStore{Store: NewMemoryStore(), setErr: boom}, legacy).Get(ctx, PersistKey)
	require.ErrorIs(t, err, boom)

	_, ok, _ := legacy.Get(ctx, PersistKey)
	require.True(t, ok, "legacy value kept when the copy fails")
}

func TestMigrating_LegacyRemoveFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	require.NoError(t, inner.Set(ctx, PersistKey, blob))
	legacy := failingStore{Store: inner, removeErr: errors.New("read-only")}

	v, ok, err := NewMigrating(NewMemoryStore(), legacy).Get(ctx, PersistKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, blob, v)
}
