package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/atlas/internal/logging"
	"github.com/hpungsan/atlas/internal/metrics"
	"github.com/hpungsan/atlas/internal/storage"
)

// Writer applies snapshot saves to a store in the order they were issued.
//
// Save never blocks on I/O. A single goroutine owns the store; while a write
// is in flight, newer saves replace the pending one, so the store only ever
// moves forward. Failed writes are logged and counted, never retried.
type Writer struct {
	store   storage.Store
	key     string
	logger  *zap.Logger
	metrics *metrics.Collector

	mu       sync.Mutex
	pending  *Snapshot
	issued   uint64 // seq of the latest Save
	settled  uint64 // seq of the latest write that finished (ok or failed)
	progress chan struct{}
	closed   bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewWriter starts the write goroutine. Call Close to stop it.
func NewWriter(store storage.Store, opts Options) *Writer {
	w := &Writer{
		store:    store,
		key:      opts.key(),
		logger:   logging.OrNop(opts.Logger),
		metrics:  opts.Metrics,
		progress: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

// Save queues s for writing. The snapshot must not be mutated afterwards.
// Saves after Close are dropped.
func (w *Writer) Save(s Snapshot) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn("save after writer closed, dropping snapshot")
		return
	}
	w.issued++
	w.pending = &s
	w.mu.Unlock()

	w.metrics.SaveRequested()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Flush waits until every save issued before the call has been written or
// has failed, or until ctx is done.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	target := w.issued
	for w.settled < target {
		ch := w.progress
		w.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		}
		w.mu.Lock()
	}
	w.mu.Unlock()
	return nil
}

// Close flushes outstanding saves, then stops the write goroutine.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	err := w.Flush(ctx)
	close(w.stop)
	<-w.done
	return err
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.stop:
			w.drain()
			return
		}
	}
}

// drain writes the pending snapshot, repeating until none is left.
func (w *Writer) drain() {
	for {
		w.mu.Lock()
		snap, seq := w.pending, w.issued
		w.pending = nil
		w.mu.Unlock()
		if snap == nil {
			return
		}

		w.write(*snap)

		w.mu.Lock()
		w.settled = seq
		close(w.progress)
		w.progress = make(chan struct{})
		w.mu.Unlock()
	}
}

func (w *Writer) write(s Snapshot) {
	start := time.Now()
	raw, err := Encode(s)
	if err == nil {
		// Writes are never cancelled.
		err = w.store.Set(context.Background(), w.key, raw)
	}
	w.metrics.WriteFinished(time.Since(start).Seconds(), err)
	if err != nil {
		w.logger.Error("failed to persist state, continuing in memory",
			zap.String("key", w.key),
			zap.Error(err))
		return
	}
	w.logger.Debug("persisted state",
		zap.String("key", w.key),
		zap.Int("bytes", len(raw)),
		zap.Int("memories", len(s.Memories)))
}
