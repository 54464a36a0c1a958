package persist

import "math"

// A migration upgrades the generic JSON shape of version to-1 into version to.
// Steps only assume the previous shape and never fail: malformed fields are
// coerced to their documented defaults.
type migration struct {
	to    int
	apply func(state map[string]any)
}

var migrations = []migration{
	{to: 1, apply: migrateV1},
	{to: 2, apply: migrateV2},
	{to: 3, apply: migrateV3},
}

// migrateV1 coerces collections to arrays and backfills groupId on memories.
func migrateV1(state map[string]any) {
	memories, _ := state["memories"].([]any)
	if memories == nil {
		memories = []any{}
	}
	for _, item := range memories {
		if m, ok := item.(map[string]any); ok {
			if _, has := m["groupId"]; !has {
				m["groupId"] = nil
			}
		}
	}
	state["memories"] = memories

	if groups, ok := state["groups"].([]any); ok {
		state["groups"] = groups
	} else {
		state["groups"] = []any{}
	}
}

// migrateV2 coerces theme and defaultGroupId, and folds the single legacy
// image into the image list.
func migrateV2(state map[string]any) {
	theme, _ := state["theme"].(string)
	state["theme"] = string(ParseTheme(theme))

	if id, ok := state["defaultGroupId"].(string); ok && id != "" {
		state["defaultGroupId"] = id
	} else {
		state["defaultGroupId"] = nil
	}

	memories, _ := state["memories"].([]any)
	for _, item := range memories {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		urls, _ := m["imageDataUrls"].([]any)
		single, _ := m["imageDataUrl"].(string)
		if len(urls) == 0 && single != "" {
			m["imageDataUrls"] = []any{single}
		}
	}
}

// migrateV3 backfills and clamps sidebarWidth.
func migrateV3(state map[string]any) {
	w, ok := state["sidebarWidth"].(float64)
	if !ok || math.IsNaN(w) || math.IsInf(w, 0) {
		state["sidebarWidth"] = float64(DefaultSidebarWidth)
		return
	}
	state["sidebarWidth"] = float64(clampWidthFloat(w))
}

// upgrade runs every step above version, in order. It returns the number of
// steps applied.
func upgrade(state map[string]any, version int, applied func(to int)) int {
	n := 0
	for _, m := range migrations {
		if m.to <= version {
			continue
		}
		m.apply(state)
		n++
		if applied != nil {
			applied(m.to)
		}
	}
	return n
}
