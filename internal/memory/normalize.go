package memory

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultTitle is used for memories imported without a title.
const DefaultTitle = "Untitled"

// DefaultGroupName is used for groups imported without a name.
const DefaultGroupName = "Imported group"

// MaxCustomLabel is the maximum length of a custom label, in characters.
const MaxCustomLabel = 3

// Result is the outcome of normalizing one untyped record: either a valid
// entity (OK) or a rejection with a reason.
type Result[T any] struct {
	Value  T
	OK     bool
	Reason string
}

func accept[T any](v T) Result[T] {
	return Result[T]{Value: v, OK: true}
}

func reject[T any](format string, args ...any) Result[T] {
	return Result[T]{Reason: fmt.Sprintf(format, args...)}
}

// NormalizeMemory coerces an untyped record (as decoded from JSON into
// map[string]any) into a valid Memory. Malformed input is rejected with a
// reason, never panics.
func NormalizeMemory(raw any) Result[Memory] {
	o, ok := raw.(map[string]any)
	if !ok {
		return reject[Memory]("memory is not an object")
	}

	lat, ok := toFloat(o["lat"])
	if !ok {
		return reject[Memory]("lat is not a number")
	}
	lng, ok := toFloat(o["lng"])
	if !ok {
		return reject[Memory]("lng is not a number")
	}
	if lat < -90 || lat > 90 {
		return reject[Memory]("lat %v out of range [-90, 90]", lat)
	}
	if lng < -180 || lng > 180 {
		return reject[Memory]("lng %v out of range [-180, 180]", lng)
	}

	var m Memory
	m.ID = stringOr(o["id"], "")
	if m.ID == "" {
		m.ID = NewID()
	}
	m.Lat = lat
	m.Lng = lng
	m.Title = stringOr(o["title"], DefaultTitle)
	m.Date = normalizeDate(o["date"])
	m.Notes = stringOr(o["notes"], "")
	m.CreatedAt = normalizeTimestamp(o["createdAt"])

	if s, ok := o["groupId"].(string); ok && s != "" {
		m.GroupID = &s
	}
	m.Hidden = o["hidden"] == true
	m.Starred = o["starred"] == true

	if order, ok := toNumber(o["order"]); ok {
		m.Order = &order
	}
	if s, ok := o["customLabel"].(string); ok && s != "" {
		m.CustomLabel = StringPtr(truncateRunes(s, MaxCustomLabel))
	}

	if tags, ok := o["tags"].([]any); ok {
		m.Tags = NormalizeTags(stringItems(tags))
	}
	if links, ok := o["links"].([]any); ok {
		m.Links = nonEmpty(stringItems(links))
	}

	if s, ok := o["imageDataUrl"].(string); ok && s != "" {
		m.ImageDataURL = &s
	}
	if urls, ok := o["imageDataUrls"].([]any); ok && len(urls) > 0 {
		m.ImageDataURLs = nonEmpty(stringItems(urls))
	}
	if len(m.ImageDataURLs) == 0 && m.ImageDataURL != nil {
		m.ImageDataURLs = []string{*m.ImageDataURL}
	}

	return accept(m)
}

// NormalizeGroup coerces an untyped record into a valid Group.
func NormalizeGroup(raw any) Result[Group] {
	o, ok := raw.(map[string]any)
	if !ok {
		return reject[Group]("group is not an object")
	}

	g := Group{
		ID:        stringOr(o["id"], ""),
		Name:      stringOr(o["name"], DefaultGroupName),
		Collapsed: o["collapsed"] == true,
		Hidden:    o["hidden"] == true,
	}
	if g.ID == "" {
		g.ID = NewID()
	}
	return accept(g)
}

// NormalizeTags lowercases, trims and deduplicates tags, keeping first-seen order.
// Returns nil when nothing remains.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// toFloat accepts JSON numbers and numeric strings. NaN and infinities are rejected.
func toFloat(v any) (float64, bool) {
	if f, ok := toNumber(v); ok {
		return f, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toNumber accepts only JSON numbers.
func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

// normalizeDate keeps a valid YYYY-MM-DD (or the date part of a timestamp), else today.
func normalizeDate(v any) string {
	s, ok := v.(string)
	if !ok {
		return Today()
	}
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return Today()
	}
	return s
}

func normalizeTimestamp(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return Now()
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return Now()
	}
	return t.UTC()
}

func stringItems(items []any) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func nonEmpty(items []string) []string {
	var out []string
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
