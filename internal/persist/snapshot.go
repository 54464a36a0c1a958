// Package persist serializes the durable subset of state to a storage.Store,
// and restores it on startup through a versioned migration chain.
package persist

import (
	"math"

	"github.com/hpungsan/atlas/internal/memory"
)

// CurrentVersion is the schema version written by this build.
// Bump it together with a new step in migrations.
const CurrentVersion = 3

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ParseTheme returns the theme named by s, or dark for anything else.
func ParseTheme(s string) Theme {
	if Theme(s) == ThemeLight {
		return ThemeLight
	}
	return ThemeDark
}

const (
	DefaultSidebarWidth = 320
	MinSidebarWidth     = 240
	MaxSidebarWidth     = 560
)

// ClampSidebarWidth bounds w to [MinSidebarWidth, MaxSidebarWidth].
func ClampSidebarWidth(w int) int {
	return min(max(w, MinSidebarWidth), MaxSidebarWidth)
}

// clampWidthFloat clamps before converting so huge values cannot overflow int.
func clampWidthFloat(f float64) int {
	return int(math.Round(math.Min(math.Max(f, MinSidebarWidth), MaxSidebarWidth)))
}

// Snapshot is the persisted subset of state. Transient UI flags never appear here.
type Snapshot struct {
	Memories       []memory.Memory `json:"memories"`
	Groups         []memory.Group  `json:"groups"`
	Theme          Theme           `json:"theme"`
	DefaultGroupID *string         `json:"defaultGroupId"`
	SidebarWidth   int             `json:"sidebarWidth"`
}

// Defaults returns the snapshot used when nothing (or nothing usable) is stored.
func Defaults() Snapshot {
	return Snapshot{
		Memories:     []memory.Memory{},
		Groups:       []memory.Group{},
		Theme:        ThemeDark,
		SidebarWidth: DefaultSidebarWidth,
	}
}

// Envelope is the stored blob: {"state": {...}, "version": N}.
type Envelope struct {
	State   Snapshot `json:"state"`
	Version int      `json:"version"`
}
