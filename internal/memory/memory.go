package memory

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// DateLayout is the calendar date format used by Memory.Date.
const DateLayout = "2006-01-02"

// Core holds every Memory field that undo checkpoints capture.
// Image payloads live on Memory only, so a []Core never carries image data.
type Core struct {
	// ID is a ULID when generated by Atlas; imported ids are kept as-is
	ID string `json:"id" validate:"required"`

	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`

	Title string `json:"title"`

	// Date is the calendar day of the memory (YYYY-MM-DD, no time)
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`

	Notes string `json:"notes"`

	// CreatedAt is set once on add and never changes
	CreatedAt time.Time `json:"createdAt"`

	// GroupID is nil for ungrouped memories
	GroupID *string `json:"groupId"`

	// Hidden removes the memory from the map; it stays in the sidebar
	Hidden bool `json:"hidden"`

	Starred bool `json:"starred"`

	// Order is the manual position within the group (or the ungrouped bucket).
	// Nil sorts after every ordered sibling.
	Order *float64 `json:"order,omitempty"`

	// CustomLabel overrides the computed A/B/C label
	CustomLabel *string `json:"customLabel" validate:"omitempty,max=3"`

	Tags  []string `json:"tags,omitempty" validate:"omitempty,dive,lowercase"`
	Links []string `json:"links,omitempty"`
}

// Memory is a single pinned recollection.
type Memory struct {
	Core

	// ImageDataURL is the deprecated single-image field.
	// Only consulted when ImageDataURLs is empty.
	ImageDataURL *string `json:"imageDataUrl,omitempty"`

	ImageDataURLs []string `json:"imageDataUrls,omitempty"`
}

// Images returns the effective image list.
func (m Memory) Images() []string {
	if len(m.ImageDataURLs) > 0 {
		return m.ImageDataURLs
	}
	if m.ImageDataURL != nil && *m.ImageDataURL != "" {
		return []string{*m.ImageDataURL}
	}
	return nil
}

// HasImages reports whether the memory carries at least one image.
func (m Memory) HasImages() bool {
	return len(m.Images()) > 0
}

// Group returns the normalized group id ("" when ungrouped).
func (c Core) Group() string {
	if c.GroupID == nil {
		return ""
	}
	return *c.GroupID
}

// InGroup reports whether the memory belongs to groupID. "" matches ungrouped.
func (c Core) InGroup(groupID string) bool {
	return c.Group() == groupID
}

// Group is a named collection of memories.
type Group struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name"`
	Collapsed bool   `json:"collapsed"`

	// Hidden removes the group's memories from the map
	Hidden bool `json:"hidden"`
}

// Clone returns a copy of m that shares no slices or pointers with it.
func (m Memory) Clone() Memory {
	out := m
	out.Core = m.Core.Clone()
	out.ImageDataURL = clonePtr(m.ImageDataURL)
	out.ImageDataURLs = cloneStrings(m.ImageDataURLs)
	return out
}

// Clone returns a deep copy of c.
func (c Core) Clone() Core {
	out := c
	out.GroupID = clonePtr(c.GroupID)
	out.Order = clonePtr(c.Order)
	out.CustomLabel = clonePtr(c.CustomLabel)
	out.Tags = cloneStrings(c.Tags)
	out.Links = cloneStrings(c.Links)
	return out
}

// NewID generates a new ULID.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0)).String()
}

// Now returns the current time at the millisecond precision of persisted timestamps.
func Now() time.Time {
	return clock().UTC().Truncate(time.Millisecond)
}

// Today returns the current UTC calendar date.
func Today() string {
	return clock().UTC().Format(DateLayout)
}

// clock is replaced in tests.
var clock = time.Now

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 { return &f }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
