package state

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	atlaserrors "github.com/hpungsan/atlas/internal/errors"
	"github.com/hpungsan/atlas/internal/history"
	"github.com/hpungsan/atlas/internal/memory"
	"github.com/hpungsan/atlas/internal/persist"
)

// AddMemory appends m, assigning id, createdAt and date when empty.
// A successful add closes the add flow (add mode and pending coordinates).
func (s *Store) AddMemory(m memory.Memory) (memory.Memory, error) {
	m = m.Clone()
	if m.ID == "" {
		m.ID = memory.NewID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = memory.Now()
	}
	if m.Date == "" {
		m.Date = memory.Today()
	}
	m.Tags = memory.NormalizeTags(m.Tags)
	if err := memory.Validate(m); err != nil {
		return memory.Memory{}, atlaserrors.NewInvalidRequest(err.Error())
	}

	err := s.apply("add_memory", collection, func(st *State) error {
		if indexOfMemory(st.Memories, m.ID) >= 0 {
			return atlaserrors.NewInvalidRequest(fmt.Sprintf("memory already exists: %s", m.ID))
		}
		st.Memories = append(slices.Clip(st.Memories), m)
		st.Adding = false
		st.Pending = nil
		return nil
	})
	if err != nil {
		return memory.Memory{}, err
	}
	return m, nil
}

// UpdateMemory merges patch into the memory with id. An unknown id is a
// checkpointed no-op and reports found=false without error.
func (s *Store) UpdateMemory(id string, patch memory.Patch) (updated memory.Memory, found bool, err error) {
	err = s.apply("update_memory", collection, func(st *State) error {
		i := indexOfMemory(st.Memories, id)
		if i < 0 {
			return nil
		}
		next := patch.Apply(st.Memories[i])
		if err := memory.Validate(next); err != nil {
			return atlaserrors.NewInvalidRequest(err.Error())
		}
		st.Memories = slices.Clone(st.Memories)
		st.Memories[i] = next
		updated, found = next, true
		return nil
	})
	return updated, found, err
}

// RemoveMemory deletes the memory with id and clears pointers to it.
// Reports whether it existed.
func (s *Store) RemoveMemory(id string) bool {
	removed := false
	_ = s.apply("remove_memory", collection, func(st *State) error {
		before := len(st.Memories)
		st.Memories = slices.DeleteFunc(slices.Clone(st.Memories), func(m memory.Memory) bool { return m.ID == id })
		removed = len(st.Memories) != before
		clearPointers(st, map[string]bool{id: true})
		return nil
	})
	return removed
}

// AddGroup appends g and makes it the default group for new memories.
func (s *Store) AddGroup(g memory.Group) (memory.Group, error) {
	if g.ID == "" {
		g.ID = memory.NewID()
	}
	if err := memory.ValidateGroup(g); err != nil {
		return memory.Group{}, atlaserrors.NewInvalidRequest(err.Error())
	}

	err := s.apply("add_group", collection, func(st *State) error {
		if indexOfGroup(st.Groups, g.ID) >= 0 {
			return atlaserrors.NewInvalidRequest(fmt.Sprintf("group already exists: %s", g.ID))
		}
		st.Groups = append(slices.Clip(st.Groups), g)
		st.DefaultGroupID = memory.StringPtr(g.ID)
		return nil
	})
	if err != nil {
		return memory.Group{}, err
	}
	return g, nil
}

// UpdateGroup merges patch into the group with id. Unknown ids are a
// checkpointed no-op.
func (s *Store) UpdateGroup(id string, patch memory.GroupPatch) (updated memory.Group, found bool) {
	_ = s.apply("update_group", collection, func(st *State) error {
		i := indexOfGroup(st.Groups, id)
		if i < 0 {
			return nil
		}
		st.Groups = slices.Clone(st.Groups)
		st.Groups[i] = patch.Apply(st.Groups[i])
		updated, found = st.Groups[i], true
		return nil
	})
	return updated, found
}

// RemoveGroup deletes the group. Its memories become ungrouped, and the
// default group pointer is cleared if it pointed here. No memory is deleted.
func (s *Store) RemoveGroup(id string) bool {
	removed := false
	_ = s.apply("remove_group", collection, func(st *State) error {
		before := len(st.Groups)
		st.Groups = slices.DeleteFunc(slices.Clone(st.Groups), func(g memory.Group) bool { return g.ID == id })
		removed = len(st.Groups) != before

		st.Memories = mapMemories(st.Memories, func(m memory.Memory) (memory.Memory, bool) {
			if m.GroupID == nil || *m.GroupID != id {
				return m, false
			}
			m = m.Clone()
			m.GroupID = nil
			return m, true
		})
		if st.DefaultGroupID != nil && *st.DefaultGroupID == id {
			st.DefaultGroupID = nil
		}
		return nil
	})
	return removed
}

// ReorderMemoriesInGroup sets order = index for each listed memory whose
// current bucket is groupID ("" for ungrouped). Listed memories in another
// bucket are left untouched.
func (s *Store) ReorderMemoriesInGroup(groupID string, orderedIDs []string) {
	position := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		if _, dup := position[id]; !dup {
			position[id] = i
		}
	}

	_ = s.apply("reorder", collection, func(st *State) error {
		st.Memories = mapMemories(st.Memories, func(m memory.Memory) (memory.Memory, bool) {
			i, listed := position[m.ID]
			if !listed || !m.InGroup(groupID) {
				return m, false
			}
			m = m.Clone()
			m.Order = memory.FloatPtr(float64(i))
			return m, true
		})
		return nil
	})
}

// BulkDelete removes every memory in ids under a single checkpoint.
// Returns the number removed.
func (s *Store) BulkDelete(ids []string) int {
	set := idSet(ids)
	removed := 0
	_ = s.apply("bulk_delete", collection, func(st *State) error {
		before := len(st.Memories)
		st.Memories = slices.DeleteFunc(slices.Clone(st.Memories), func(m memory.Memory) bool { return set[m.ID] })
		removed = before - len(st.Memories)
		clearPointers(st, set)
		return nil
	})
	return removed
}

// BulkMoveToGroup moves every memory in ids into groupID ("" ungroups)
// under a single checkpoint. Moving into an unknown group is rejected.
func (s *Store) BulkMoveToGroup(ids []string, groupID string) (int, error) {
	set := idSet(ids)
	moved := 0
	err := s.apply("bulk_move", collection, func(st *State) error {
		if groupID != "" && indexOfGroup(st.Groups, groupID) < 0 {
			return atlaserrors.NewNotFound("group", groupID)
		}
		st.Memories = mapMemories(st.Memories, func(m memory.Memory) (memory.Memory, bool) {
			if !set[m.ID] {
				return m, false
			}
			m = m.Clone()
			if groupID == "" {
				m.GroupID = nil
			} else {
				m.GroupID = memory.StringPtr(groupID)
			}
			moved++
			return m, true
		})
		return nil
	})
	return moved, err
}

// BulkSetHidden sets the hidden flag on every memory in ids under a single checkpoint.
func (s *Store) BulkSetHidden(ids []string, hidden bool) int {
	return s.bulkFlag("bulk_hide", ids, func(m *memory.Memory) { m.Hidden = hidden })
}

// BulkSetStarred sets the starred flag on every memory in ids under a single checkpoint.
func (s *Store) BulkSetStarred(ids []string, starred bool) int {
	return s.bulkFlag("bulk_star", ids, func(m *memory.Memory) { m.Starred = starred })
}

func (s *Store) bulkFlag(op string, ids []string, set func(m *memory.Memory)) int {
	want := idSet(ids)
	n := 0
	_ = s.apply(op, collection, func(st *State) error {
		st.Memories = mapMemories(st.Memories, func(m memory.Memory) (memory.Memory, bool) {
			if !want[m.ID] {
				return m, false
			}
			m = m.Clone()
			set(&m)
			n++
			return m, true
		})
		return nil
	})
	return n
}

// ReplaceAll swaps both collections wholesale (import replace mode) under a
// single checkpoint. Every entity must already be valid.
func (s *Store) ReplaceAll(memories []memory.Memory, groups []memory.Group) error {
	if err := validateAll(memories, groups); err != nil {
		return err
	}
	return s.apply("replace_all", collection, func(st *State) error {
		st.Memories = cloneMemories(memories)
		st.Groups = append([]memory.Group{}, groups...)
		reconcilePointers(st)
		return nil
	})
}

// Merge appends memories and groups whose ids are not present yet (import
// merge mode) under a single checkpoint. Returns how many were added and skipped.
func (s *Store) Merge(memories []memory.Memory, groups []memory.Group) (added, skipped int, err error) {
	if err := validateAll(memories, groups); err != nil {
		return 0, 0, err
	}
	err = s.apply("merge", collection, func(st *State) error {
		haveM := make(map[string]bool, len(st.Memories))
		for _, m := range st.Memories {
			haveM[m.ID] = true
		}
		haveG := make(map[string]bool, len(st.Groups))
		for _, g := range st.Groups {
			haveG[g.ID] = true
		}

		st.Memories = slices.Clip(st.Memories)
		for _, m := range memories {
			if haveM[m.ID] {
				skipped++
				continue
			}
			haveM[m.ID] = true
			st.Memories = append(st.Memories, m.Clone())
			added++
		}
		st.Groups = slices.Clip(st.Groups)
		for _, g := range groups {
			if haveG[g.ID] {
				skipped++
				continue
			}
			haveG[g.ID] = true
			st.Groups = append(st.Groups, g)
			added++
		}
		return nil
	})
	return added, skipped, err
}

// Undo restores the collections to the previous checkpoint. Returns false
// when there is nothing to undo.
func (s *Store) Undo() bool {
	return s.travel("undo", s.history.Undo)
}

// Redo re-applies the most recently undone change.
func (s *Store) Redo() bool {
	return s.travel("redo", s.history.Redo)
}

func (s *Store) travel(op string, step func(cur history.State) (history.State, bool)) bool {
	s.mu.Lock()
	prev := s.st
	restored, ok := step(historyState(prev))
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("history empty", zap.String("op", op))
		return false
	}
	next := prev
	next.Memories = restored.Memories
	next.Groups = restored.Groups
	reconcilePointers(&next)
	s.commitLocked(op, true, prev, next)
	return true
}

// SetTheme changes the persisted theme.
func (s *Store) SetTheme(theme persist.Theme) {
	_ = s.apply("set_theme", preference, func(st *State) error {
		st.Theme = persist.ParseTheme(string(theme))
		return nil
	})
}

// SetDefaultGroup sets the group pre-filled for new memories. "" clears it.
func (s *Store) SetDefaultGroup(groupID string) error {
	return s.apply("set_default_group", preference, func(st *State) error {
		if groupID == "" {
			st.DefaultGroupID = nil
			return nil
		}
		if indexOfGroup(st.Groups, groupID) < 0 {
			return atlaserrors.NewNotFound("group", groupID)
		}
		st.DefaultGroupID = memory.StringPtr(groupID)
		return nil
	})
}

// SetSidebarWidth stores the sidebar width, clamped to the allowed range.
func (s *Store) SetSidebarWidth(width int) int {
	clamped := persist.ClampSidebarWidth(width)
	_ = s.apply("set_sidebar_width", preference, func(st *State) error {
		st.SidebarWidth = clamped
		return nil
	})
	return clamped
}

// clearPointers drops transient references to removed memories.
func clearPointers(st *State, removed map[string]bool) {
	if removed[st.SelectedID] {
		st.SelectedID = ""
	}
	if removed[st.EditingID] {
		st.EditingID = ""
	}
	if removed[st.PendingDeleteID] {
		st.PendingDeleteID = ""
	}
}

// reconcilePointers clears pointers whose target no longer exists after a
// wholesale replacement.
func reconcilePointers(st *State) {
	present := make(map[string]bool, len(st.Memories))
	for _, m := range st.Memories {
		present[m.ID] = true
	}
	gone := map[string]bool{}
	for _, id := range []string{st.SelectedID, st.EditingID, st.PendingDeleteID} {
		if id != "" && !present[id] {
			gone[id] = true
		}
	}
	clearPointers(st, gone)

	if st.DefaultGroupID != nil && indexOfGroup(st.Groups, *st.DefaultGroupID) < 0 {
		st.DefaultGroupID = nil
	}
}

// mapMemories returns ms with fn applied. The original slice is reused when
// fn changes nothing.
func mapMemories(ms []memory.Memory, fn func(memory.Memory) (memory.Memory, bool)) []memory.Memory {
	var out []memory.Memory
	for i, m := range ms {
		next, changed := fn(m)
		if !changed {
			continue
		}
		if out == nil {
			out = slices.Clone(ms)
		}
		out[i] = next
	}
	if out == nil {
		return ms
	}
	return out
}

func cloneMemories(ms []memory.Memory) []memory.Memory {
	out := make([]memory.Memory, len(ms))
	for i, m := range ms {
		out[i] = m.Clone()
	}
	return out
}

func validateAll(memories []memory.Memory, groups []memory.Group) error {
	for _, m := range memories {
		if err := memory.Validate(m); err != nil {
			return atlaserrors.NewInvalidRequest(fmt.Sprintf("memory %s: %v", m.ID, err))
		}
	}
	for _, g := range groups {
		if err := memory.ValidateGroup(g); err != nil {
			return atlaserrors.NewInvalidRequest(fmt.Sprintf("group %s: %v", g.ID, err))
		}
	}
	return nil
}
