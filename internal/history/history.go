// Package history implements bounded undo/redo over the memory and group
// collections.
//
// Checkpoints hold memory.Core values, so image payloads are never copied
// into history. When a checkpoint is restored, each memory's images are taken
// from the current state by id. A consequence: undoing an image removal, or
// the deletion of a memory that had images, does not bring the images back.
package history

import "github.com/hpungsan/atlas/internal/memory"

// DefaultLimit is the default number of undo (and redo) checkpoints kept.
const DefaultLimit = 20

// Checkpoint is an image-free copy of the collections.
type Checkpoint struct {
	Memories []memory.Core
	Groups   []memory.Group
}

// State is the live pair of collections that checkpoints are taken from and
// restored into.
type State struct {
	Memories []memory.Memory
	Groups   []memory.Group
}

// Manager holds the undo and redo stacks. It is not safe for concurrent use;
// the state container serializes access.
type Manager struct {
	undo *ring[Checkpoint]
	redo *ring[Checkpoint]
}

// New returns a manager keeping at most limit checkpoints per stack.
// limit <= 0 selects DefaultLimit.
func New(limit int) *Manager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager{undo: newRing[Checkpoint](limit), redo: newRing[Checkpoint](limit)}
}

// Record pushes a checkpoint of current onto the undo stack and clears redo.
func (h *Manager) Record(current State) {
	h.undo.push(Strip(current))
	h.redo.clear()
}

// Undo restores the most recent checkpoint. The current state moves onto the
// redo stack. ok is false (and nothing changes) when there is nothing to undo.
func (h *Manager) Undo(current State) (restored State, ok bool) {
	cp, ok := h.undo.pop()
	if !ok {
		return current, false
	}
	h.redo.push(Strip(current))
	return Restore(cp, current), true
}

// Redo is the inverse of Undo.
func (h *Manager) Redo(current State) (restored State, ok bool) {
	cp, ok := h.redo.pop()
	if !ok {
		return current, false
	}
	h.undo.push(Strip(current))
	return Restore(cp, current), true
}

func (h *Manager) CanUndo() bool { return h.undo.len() > 0 }
func (h *Manager) CanRedo() bool { return h.redo.len() > 0 }

// Depth returns the number of undo and redo checkpoints held.
func (h *Manager) Depth() (undo, redo int) {
	return h.undo.len(), h.redo.len()
}

// Reset drops all history.
func (h *Manager) Reset() {
	h.undo.clear()
	h.redo.clear()
}

// Strip copies the collections without image data.
func Strip(s State) Checkpoint {
	cp := Checkpoint{
		Memories: make([]memory.Core, len(s.Memories)),
		Groups:   append([]memory.Group(nil), s.Groups...),
	}
	for i, m := range s.Memories {
		cp.Memories[i] = m.Core.Clone()
	}
	return cp
}

// Restore rebuilds full memories from cp, attaching images found in current
// by id. Image slices are shared with current, which is never mutated in place.
func Restore(cp Checkpoint, current State) State {
	type images struct {
		single *string
		list   []string
	}
	byID := make(map[string]images, len(current.Memories))
	for _, m := range current.Memories {
		if m.ImageDataURL != nil || len(m.ImageDataURLs) > 0 {
			byID[m.ID] = images{single: m.ImageDataURL, list: m.ImageDataURLs}
		}
	}

	out := State{
		Memories: make([]memory.Memory, len(cp.Memories)),
		Groups:   append([]memory.Group(nil), cp.Groups...),
	}
	for i, c := range cp.Memories {
		m := memory.Memory{Core: c.Clone()}
		if img, ok := byID[c.ID]; ok {
			m.ImageDataURL = img.single
			m.ImageDataURLs = img.list
		}
		out.Memories[i] = m
	}
	if out.Groups == nil {
		out.Groups = []memory.Group{}
	}
	return out
}
