package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/atlas/internal/metrics"
	"github.com/hpungsan/atlas/internal/storage"
)

// recordingStore records every value written and can stall writes.
type recordingStore struct {
	*storage.MemoryStore

	mu     sync.Mutex
	writes []string
	gate   chan struct{}
	err    error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: storage.NewMemoryStore()}
}

func (r *recordingStore) Set(ctx context.Context, key, value string) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	r.writes = append(r.writes, value)
	err := r.err
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.MemoryStore.Set(ctx, key, value)
}

func (r *recordingStore) widths(t *testing.T) []int {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.writes))
	for _, raw := range r.writes {
		snap, _, err := Decode(raw)
		require.NoError(t, err)
		out = append(out, snap.SidebarWidth)
	}
	return out
}

func snapWithWidth(w int) Snapshot {
	s := Defaults()
	s.SidebarWidth = w
	return s
}

func TestWriter_OrderedAndCoalesced(t *testing.T) {
	store := newRecordingStore()
	store.gate = make(chan struct{})
	w := NewWriter(store, Options{})

	w.Save(snapWithWidth(300))
	// Let the first write start and block on the gate.
	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.pending == nil
	}, time.Second, time.Millisecond)

	for width := 301; width <= 350; width++ {
		w.Save(snapWithWidth(width))
	}
	close(store.gate)

	require.NoError(t, w.Flush(context.Background()))

	widths := store.widths(t)
	require.Equal(t, 300, widths[0])
	require.Equal(t, 350, widths[len(widths)-1])
	require.Less(t, len(widths), 51, "pending saves should coalesce")
	for i := 1; i < len(widths); i++ {
		require.Greater(t, widths[i], widths[i-1], "writes must never go backwards")
	}

	snap, _ := Load(context.Background(), store, Options{})
	require.Equal(t, 350, snap.SidebarWidth)
	require.NoError(t, w.Close(context.Background()))
}

func TestWriter_SaveDoesNotBlock(t *testing.T) {
	store := newRecordingStore()
	store.gate = make(chan struct{})
	w := NewWriter(store, Options{})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			w.Save(snapWithWidth(240 + i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Save blocked on a stalled store")
	}
	close(store.gate)
	require.NoError(t, w.Close(context.Background()))
}

func TestWriter_FlushRespectsContext(t *testing.T) {
	store := newRecordingStore()
	store.gate = make(chan struct{})
	w := NewWriter(store, Options{})
	w.Save(snapWithWidth(300))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, w.Flush(ctx), context.DeadlineExceeded)

	close(store.gate)
	require.NoError(t, w.Close(context.Background()))
}

func TestWriter_FailuresAreCountedNotRetried(t *testing.T) {
	store := newRecordingStore()
	store.err = errors.New("quota exceeded")
	c := metrics.NewCollector("atlas")
	w := NewWriter(store, Options{Metrics: c})

	w.Save(snapWithWidth(300))
	require.NoError(t, w.Flush(context.Background()))

	require.Len(t, store.widths(t), 1, "failed write must not be retried")
	require.Equal(t, 1.0, testutil.ToFloat64(c.WriteFailures))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Saves))

	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()
	w.Save(snapWithWidth(310))
	require.NoError(t, w.Close(context.Background()))

	snap, _ := Load(context.Background(), store, Options{})
	require.Equal(t, 310, snap.SidebarWidth)
}

func TestWriter_CloseDrainsAndDropsLaterSaves(t *testing.T) {
	store := newRecordingStore()
	w := NewWriter(store, Options{})

	w.Save(snapWithWidth(400))
	require.NoError(t, w.Close(context.Background()))
	require.NoError(t, w.Close(context.Background()), "Close is idempotent")

	w.Save(snapWithWidth(500))
	require.NoError(t, w.Flush(context.Background()))
	require.Equal(t, []int{400}, store.widths(t))
}

func TestWriter_FlushWithNothingPending(t *testing.T) {
	w := NewWriter(storage.NewMemoryStore(), Options{})
	defer w.Close(context.Background())
	require.NoError(t, w.Flush(context.Background()))
}
