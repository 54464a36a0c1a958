package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchesSearch(t *testing.T) {
	m := Memory{Core: Core{Title: "Lisbon Trip", Notes: "Pastel de NATA", Date: "2023-06-14"}}

	tests := []struct {
		q    string
		want bool
	}{
		{"", true},
		{"  ", true},
		{"lisbon", true},
		{"nata", true},
		{"2023-06", true},
		{"porto", false},
	}
	for _, tt := range tests {
		if got := MatchesSearch(m, tt.q); got != tt.want {
			t.Errorf("MatchesSearch(%q) = %v, want %v", tt.q, got, tt.want)
		}
	}
}

func TestFilterByDate_Inclusive(t *testing.T) {
	in := []Memory{
		{Core: Core{ID: "a", Date: "2024-01-01"}},
		{Core: Core{ID: "b", Date: "2024-01-15"}},
		{Core: Core{ID: "c", Date: "2024-02-01"}},
	}

	require.Equal(t, []string{"a", "b"}, ids(FilterByDate(in, "2024-01-01", "2024-01-15")))
	require.Equal(t, []string{"b", "c"}, ids(FilterByDate(in, "2024-01-02", "")))
	require.Equal(t, []string{"a", "b", "c"}, ids(FilterByDate(in, "", "")))
}

func TestFilter_Combined(t *testing.T) {
	in := []Memory{
		{Core: Core{ID: "a", Title: "beach", Tags: []string{"travel"}, Starred: true}},
		{Core: Core{ID: "b", Title: "beach bar", Tags: []string{"food"}}},
		{Core: Core{ID: "c", Title: "museum", Tags: []string{"travel"}, Starred: true}},
	}

	f := Filter{Query: "beach", Tags: []string{"Travel"}, StarredOnly: true}
	require.Equal(t, []string{"a"}, ids(f.Apply(in)))
	require.Equal(t, []string{"a", "b", "c"}, ids(Filter{}.Apply(in)))
	require.Equal(t, []string{"travel", "food"}, AllTags(in))
}

func TestVisibleOnMap(t *testing.T) {
	groups := []Group{{ID: "shown"}, {ID: "muted", Hidden: true}}
	in := []Memory{
		mem("plain", "", nil, 1),
		mem("in-shown", "shown", nil, 2),
		mem("in-muted", "muted", nil, 3),
		mem("orphan", "deleted", nil, 4),
	}
	hidden := mem("self-hidden", "shown", nil, 5)
	hidden.Hidden = true
	in = append(in, hidden)

	require.Equal(t, []string{"plain", "in-shown", "orphan"}, ids(VisibleOnMap(in, groups)))
}
