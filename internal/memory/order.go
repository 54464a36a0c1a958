package memory

import (
	"math"
	"slices"
)

// Compare orders memories by Order ascending (nil last), then CreatedAt ascending.
func Compare(a, b Memory) int {
	oa, ob := orderKey(a.Order), orderKey(b.Order)
	switch {
	case oa < ob:
		return -1
	case oa > ob:
		return 1
	}
	return a.CreatedAt.Compare(b.CreatedAt)
}

func orderKey(o *float64) float64 {
	if o == nil {
		return math.Inf(1)
	}
	return *o
}

// SortByOrder returns a sorted copy of memories. The input is not modified.
func SortByOrder(memories []Memory) []Memory {
	out := slices.Clone(memories)
	slices.SortStableFunc(out, Compare)
	return out
}

// InGroup returns the memories of one bucket in display order. "" selects ungrouped.
func InGroup(memories []Memory, groupID string) []Memory {
	var out []Memory
	for _, m := range memories {
		if m.InGroup(groupID) {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, Compare)
	return out
}

// SidebarOrder returns ungrouped memories first, then each group's memories
// in group order. Memories pointing at an unknown group (as left by a CSV
// import) are listed with the ungrouped ones.
func SidebarOrder(memories []Memory, groups []Group) []Memory {
	known := make(map[string]bool, len(groups))
	for _, g := range groups {
		known[g.ID] = true
	}

	var out []Memory
	for _, m := range memories {
		if !known[m.Group()] {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, Compare)

	for _, g := range groups {
		out = append(out, InGroup(memories, g.ID)...)
	}
	return out
}
