package state

import (
	"slices"
	"strings"

	"github.com/hpungsan/atlas/internal/memory"
)

// VisibleMemories is the map-surface feed: memories neither hidden nor in a hidden group.
func (s *Store) VisibleMemories() []memory.Memory {
	st := s.Snapshot()
	return memory.VisibleOnMap(st.Memories, st.Groups)
}

// SidebarMemories returns filtered memories in sidebar order.
func (s *Store) SidebarMemories() []memory.Memory {
	return s.Snapshot().Sidebar()
}

// Sidebar returns st's filtered memories in the order the sidebar shows them.
// Manual sort groups by bucket; the other modes produce a flat list.
func (st State) Sidebar() []memory.Memory {
	var ordered []memory.Memory
	switch st.Sort {
	case SortNewest, SortOldest:
		ordered = memory.SortByOrder(st.Memories)
		slices.SortStableFunc(ordered, func(a, b memory.Memory) int {
			if st.Sort == SortNewest {
				return strings.Compare(b.Date, a.Date)
			}
			return strings.Compare(a.Date, b.Date)
		})
	case SortTitleAsc:
		ordered = memory.SortByOrder(st.Memories)
		slices.SortStableFunc(ordered, func(a, b memory.Memory) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		})
	default:
		ordered = memory.SidebarOrder(st.Memories, st.Groups)
	}
	return st.Filter.Apply(ordered)
}

// Stats summarizes every memory in the store.
func (s *Store) Stats() memory.Stats {
	return memory.ComputeStats(s.Snapshot().Memories)
}

// Calendar groups every memory by date.
func (s *Store) Calendar() []memory.Day {
	return memory.Calendar(s.Snapshot().Memories)
}

// CanUndo reports whether Undo would change anything.
func (s *Store) CanUndo() bool { return s.Snapshot().CanUndo }

// CanRedo reports whether Redo would change anything.
func (s *Store) CanRedo() bool { return s.Snapshot().CanRedo }
