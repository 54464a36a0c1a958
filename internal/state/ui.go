package state

import (
	stderrors "errors"
	"math"
	"slices"

	atlaserrors "github.com/hpungsan/atlas/internal/errors"
	"github.com/hpungsan/atlas/internal/memory"
)

var errNothingPending = stderrors.New("no delete pending")

// Transient UI flags. None of these are persisted or checkpointed.

func (s *Store) SetSelected(id string) {
	_ = s.apply("set_selected", transient, func(st *State) error {
		st.SelectedID = id
		return nil
	})
}

func (s *Store) SetEditing(id string) {
	_ = s.apply("set_editing", transient, func(st *State) error {
		st.EditingID = id
		return nil
	})
}

func (s *Store) SetAdding(adding bool) {
	_ = s.apply("set_adding", transient, func(st *State) error {
		st.Adding = adding
		if !adding {
			st.Pending = nil
		}
		return nil
	})
}

func (s *Store) SetSearchQuery(q string) {
	_ = s.apply("set_search_query", transient, func(st *State) error {
		st.SearchQuery = q
		st.Filter.Query = q
		return nil
	})
}

func (s *Store) SetSearchHighlight(h *Highlight) {
	_ = s.apply("set_search_highlight", transient, func(st *State) error {
		st.SearchHighlight = h
		return nil
	})
}

func (s *Store) SetSidebarOpen(open bool) {
	_ = s.apply("set_sidebar_open", transient, func(st *State) error {
		st.SidebarOpen = open
		return nil
	})
}

// SetFilter replaces the sidebar filter. The search query tracks Filter.Query.
func (s *Store) SetFilter(f memory.Filter) {
	_ = s.apply("set_filter", transient, func(st *State) error {
		f.Tags = memory.NormalizeTags(f.Tags)
		st.Filter = f
		st.SearchQuery = f.Query
		return nil
	})
}

func (s *Store) SetSort(mode SortMode) {
	_ = s.apply("set_sort", transient, func(st *State) error {
		switch mode {
		case SortNewest, SortOldest, SortTitleAsc:
			st.Sort = mode
		default:
			st.Sort = SortManual
		}
		return nil
	})
}

// Map-surface intents.

// RequestAdd opens the add flow at a map position and clears any search highlight.
func (s *Store) RequestAdd(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return atlaserrors.NewInvalidRequest("coordinates out of range")
	}
	return s.apply("request_add", transient, func(st *State) error {
		st.Pending = &LatLng{Lat: lat, Lng: lng}
		st.Adding = true
		st.SearchHighlight = nil
		return nil
	})
}

// RequestEdit opens the editor for a memory.
func (s *Store) RequestEdit(id string) error {
	return s.apply("request_edit", transient, func(st *State) error {
		if indexOfMemory(st.Memories, id) < 0 {
			return atlaserrors.NewNotFound("memory", id)
		}
		st.EditingID = id
		st.SelectedID = id
		return nil
	})
}

// RequestDelete asks for confirmation before deleting a memory.
// ConfirmDelete or CancelDelete resolve it.
func (s *Store) RequestDelete(id string) error {
	return s.apply("request_delete", transient, func(st *State) error {
		if indexOfMemory(st.Memories, id) < 0 {
			return atlaserrors.NewNotFound("memory", id)
		}
		st.PendingDeleteID = id
		return nil
	})
}

// ConfirmDelete removes the memory awaiting confirmation. Returns false when
// no delete was pending or the memory is already gone. The pending id is read
// and cleared in the same step as the removal.
func (s *Store) ConfirmDelete() bool {
	removed := false
	err := s.apply("confirm_delete", collection, func(st *State) error {
		id := st.PendingDeleteID
		if id == "" {
			return errNothingPending
		}
		before := len(st.Memories)
		st.Memories = slices.DeleteFunc(slices.Clone(st.Memories), func(m memory.Memory) bool { return m.ID == id })
		removed = len(st.Memories) != before
		clearPointers(st, map[string]bool{id: true})
		return nil
	})
	return err == nil && removed
}

func (s *Store) CancelDelete() {
	_ = s.apply("cancel_delete", transient, func(st *State) error {
		st.PendingDeleteID = ""
		return nil
	})
}

// Reorder is the map-surface name for ReorderMemoriesInGroup.
func (s *Store) Reorder(groupID string, orderedIDs []string) {
	s.ReorderMemoriesInGroup(groupID, orderedIDs)
}
