// Package state is the single source of truth for memories, groups,
// preferences and transient UI flags.
//
// Every collection mutation records an undo checkpoint and queues a
// persistence save while the store's mutex is held, so durable writes follow
// mutation order. Changes are queued for subscribers under the same mutex and
// delivered after it is released, one notification at a time.
package state

import (
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/atlas/internal/history"
	"github.com/hpungsan/atlas/internal/logging"
	"github.com/hpungsan/atlas/internal/memory"
	"github.com/hpungsan/atlas/internal/metrics"
	"github.com/hpungsan/atlas/internal/persist"
)

// Saver receives the persisted subset after each persisted mutation.
// *persist.Writer implements it. Save must not block.
type Saver interface {
	Save(persist.Snapshot)
}

// LatLng is a map coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Highlight marks a search result on the map: a point, or an area when BBox is set.
type Highlight struct {
	Point *LatLng `json:"point,omitempty"`

	// BBox is [south, north, west, east]
	BBox *[4]float64 `json:"bbox,omitempty"`
}

type SortMode string

const (
	SortManual   SortMode = "manual"
	SortNewest   SortMode = "newest"
	SortOldest   SortMode = "oldest"
	SortTitleAsc SortMode = "title"
)

// State is an immutable view of the store. Slices are shared with the store
// and must not be modified.
type State struct {
	// Persisted
	Memories       []memory.Memory
	Groups         []memory.Group
	Theme          persist.Theme
	DefaultGroupID *string
	SidebarWidth   int

	// Transient
	SelectedID      string
	EditingID       string
	PendingDeleteID string
	Adding          bool
	Pending         *LatLng
	SearchQuery     string
	SearchHighlight *Highlight
	SidebarOpen     bool
	Filter          memory.Filter
	Sort            SortMode

	CanUndo bool
	CanRedo bool
}

// Persisted returns the durable subset of s.
func (s State) Persisted() persist.Snapshot {
	return persist.Snapshot{
		Memories:       s.Memories,
		Groups:         s.Groups,
		Theme:          s.Theme,
		DefaultGroupID: s.DefaultGroupID,
		SidebarWidth:   s.SidebarWidth,
	}
}

// Memory returns the memory with id.
func (s State) Memory(id string) (memory.Memory, bool) {
	if i := indexOfMemory(s.Memories, id); i >= 0 {
		return s.Memories[i], true
	}
	return memory.Memory{}, false
}

// Group returns the group with id.
func (s State) Group(id string) (memory.Group, bool) {
	if i := indexOfGroup(s.Groups, id); i >= 0 {
		return s.Groups[i], true
	}
	return memory.Group{}, false
}

// Options configure a Store.
type Options struct {
	// HistoryLimit defaults to history.DefaultLimit
	HistoryLimit int

	// Saver is optional; without one the store is in-memory only.
	Saver   Saver
	Logger  *zap.Logger
	Metrics *metrics.Collector
}

// Store holds the application state.
type Store struct {
	mu      sync.Mutex
	st      State
	history *history.Manager
	saver   Saver
	logger  *zap.Logger
	metrics *metrics.Collector

	// Guarded by mu. Whichever goroutine finds notifying false drains the
	// queue, so subscribers see changes in mutation order.
	queue     []stateChange
	notifying bool

	subsMu  sync.Mutex
	subs    []subscriber
	nextSub int
}

type stateChange struct {
	prev, next State
}

type subscriber struct {
	id int
	fn func(prev, next State)
}

// New returns a store initialized from a loaded snapshot.
func New(initial persist.Snapshot, opts Options) *Store {
	s := &Store{
		history: history.New(opts.HistoryLimit),
		saver:   opts.Saver,
		logger:  logging.OrNop(opts.Logger),
		metrics: opts.Metrics,
	}
	s.st = State{
		Memories:       initial.Memories,
		Groups:         initial.Groups,
		Theme:          persist.ParseTheme(string(initial.Theme)),
		DefaultGroupID: initial.DefaultGroupID,
		SidebarWidth:   persist.ClampSidebarWidth(initial.SidebarWidth),
		SidebarOpen:    true,
		Sort:           SortManual,
	}
	if s.st.Memories == nil {
		s.st.Memories = []memory.Memory{}
	}
	if s.st.Groups == nil {
		s.st.Groups = []memory.Group{}
	}
	return s
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// Subscribe registers fn to run after every change, in registration order.
// fn runs outside the store's mutex, possibly on the goroutine of a different
// mutation, and may read the store. A mutation made from fn is delivered after
// the current notification finishes. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(prev, next State)) (unsubscribe func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Select calls fn with the selected slice of state whenever it changes
// according to equal.
func Select[T any](s *Store, selector func(State) T, equal func(a, b T) bool, fn func(T)) (unsubscribe func()) {
	return s.Subscribe(func(prev, next State) {
		a, b := selector(prev), selector(next)
		if !equal(a, b) {
			fn(b)
		}
	})
}

// change describes how a mutation interacts with history and persistence.
type change int

const (
	transient  change = iota // UI flags only
	preference               // persisted, not checkpointed
	collection               // checkpointed and persisted
)

// apply runs fn against a copy of the current state. If fn returns an error
// nothing changes. Otherwise the checkpoint (for collection changes) is
// recorded from the pre-mutation state, the new state is installed and, for
// persisted changes, a save is queued before the mutex is released.
func (s *Store) apply(op string, kind change, fn func(st *State) error) error {
	s.mu.Lock()
	prev := s.st
	next := prev
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		s.logger.Debug("mutation rejected", zap.String("op", op), zap.Error(err))
		return err
	}

	if kind == collection {
		s.history.Record(historyState(prev))
	}
	s.commitLocked(op, kind != transient, prev, next)
	return nil
}

// commitLocked installs next, queues persistence, and notifies subscribers.
// It must be called with s.mu held and releases it.
func (s *Store) commitLocked(op string, persisted bool, prev, next State) {
	next.CanUndo = s.history.CanUndo()
	next.CanRedo = s.history.CanRedo()
	s.st = next

	if persisted && s.saver != nil {
		s.saver.Save(next.Persisted())
	}
	s.metrics.Mutation(op)
	s.metrics.HistoryDepth(s.history.Depth())

	s.queue = append(s.queue, stateChange{prev: prev, next: next})
	if s.notifying {
		s.mu.Unlock()
		return
	}
	s.notifying = true
	s.mu.Unlock()
	s.drain()
}

// drain delivers queued changes until the queue is empty. Only one goroutine
// drains at a time.
func (s *Store) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.notifying = false
			s.mu.Unlock()
			return
		}
		c := s.queue[0]
		s.queue[0] = stateChange{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.subsMu.Lock()
		subs := append([]subscriber(nil), s.subs...)
		s.subsMu.Unlock()
		for _, sub := range subs {
			sub.fn(c.prev, c.next)
		}
	}
}

func historyState(st State) history.State {
	return history.State{Memories: st.Memories, Groups: st.Groups}
}

func indexOfMemory(ms []memory.Memory, id string) int {
	for i, m := range ms {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func indexOfGroup(gs []memory.Group, id string) int {
	for i, g := range gs {
		if g.ID == id {
			return i
		}
	}
	return -1
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
