package memory

import "strings"

// Filter selects memories for the sidebar. The zero value matches everything.
type Filter struct {
	Query       string
	DateFrom    string
	DateTo      string
	Tags        []string
	StarredOnly bool
}

// Match reports whether m passes every criterion of f.
func (f Filter) Match(m Memory) bool {
	if !MatchesSearch(m, f.Query) {
		return false
	}
	if !InDateRange(m, f.DateFrom, f.DateTo) {
		return false
	}
	if f.StarredOnly && !m.Starred {
		return false
	}
	return HasAnyTag(m, f.Tags)
}

// Apply returns the memories that pass f, preserving order.
func (f Filter) Apply(memories []Memory) []Memory {
	var out []Memory
	for _, m := range memories {
		if f.Match(m) {
			out = append(out, m)
		}
	}
	return out
}

// MatchesSearch is a case-insensitive substring match over title, notes and date.
// An empty query matches everything.
func MatchesSearch(m Memory, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(m.Title), q) ||
		strings.Contains(strings.ToLower(m.Notes), q) ||
		strings.Contains(m.Date, q)
}

// InDateRange compares YYYY-MM-DD strings inclusively. Empty bounds are open.
func InDateRange(m Memory, from, to string) bool {
	if from != "" && m.Date < from {
		return false
	}
	if to != "" && m.Date > to {
		return false
	}
	return true
}

// FilterByDate keeps memories dated within [from, to].
func FilterByDate(memories []Memory, from, to string) []Memory {
	return Filter{DateFrom: from, DateTo: to}.Apply(memories)
}

// HasAnyTag reports whether m carries at least one of tags. No tags matches everything.
func HasAnyTag(m Memory, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		want = strings.ToLower(strings.TrimSpace(want))
		for _, have := range m.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Visible reports whether m is shown on the map: neither the memory nor its group is hidden.
func Visible(m Memory, groups map[string]Group) bool {
	if m.Hidden {
		return false
	}
	if g, ok := groups[m.Group()]; ok && g.Hidden {
		return false
	}
	return true
}

// VisibleOnMap returns the memories the map surface should draw.
func VisibleOnMap(memories []Memory, groups []Group) []Memory {
	byID := make(map[string]Group, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}
	var out []Memory
	for _, m := range memories {
		if Visible(m, byID) {
			out = append(out, m)
		}
	}
	return out
}

// AllTags returns every distinct tag in first-seen order.
func AllTags(memories []Memory) []string {
	var all []string
	for _, m := range memories {
		all = append(all, m.Tags...)
	}
	return NormalizeTags(all)
}
