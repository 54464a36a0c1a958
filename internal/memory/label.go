package memory

import "strconv"

// Label returns the display label for the i-th memory in a list:
// A..Z, then A1..Z1, A2..Z2 and so on.
func Label(i int) string {
	if i < 0 {
		return ""
	}
	letter := string(rune('A' + i%26))
	cycle := i / 26
	if cycle == 0 {
		return letter
	}
	return letter + strconv.Itoa(cycle)
}

// DisplayLabel prefers the memory's custom label over the computed one.
func DisplayLabel(m Memory, i int) string {
	if m.CustomLabel != nil && *m.CustomLabel != "" {
		return *m.CustomLabel
	}
	return Label(i)
}
