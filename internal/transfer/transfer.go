// Package transfer moves memories and groups in and out of files: full JSON
// backups, and CSV tables of memories (no images, no groups).
package transfer

import (
	"path/filepath"
	"strings"

	"github.com/hpungsan/atlas/internal/errors"
	"github.com/hpungsan/atlas/internal/memory"
)

// Format is a file format for import and export.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// FormatFromPath infers the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", errors.NewInvalidRequest("path must have .json or .csv extension")
	}
}

// ParseFormat accepts "json" or "csv" (case-insensitive). Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", errors.NewInvalidRequest("format must be one of: json, csv")
	}
}

func (f Format) ext() string {
	return "." + string(f)
}

// Data is the content of a backup.
type Data struct {
	Memories []memory.Memory `json:"memories"`
	Groups   []memory.Group  `json:"groups"`
}

// ImportError describes one record that could not be imported.
type ImportError struct {
	// Line is the CSV line, or the 1-based position in the JSON array
	Line    int    `json:"line"`
	Kind    string `json:"kind"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for ImportError.
const (
	CodeInvalidRecord = "INVALID_RECORD"
	CodeDuplicateID   = "DUPLICATE_ID"
)

// Decoded is the result of parsing an import file: every record that
// normalized cleanly, plus a reason for each one that did not.
type Decoded struct {
	Format   Format
	Memories []memory.Memory
	Groups   []memory.Group
	Errors   []ImportError
}

// Data returns the accepted entities.
func (d *Decoded) Data() Data {
	return Data{Memories: d.Memories, Groups: d.Groups}
}

func (d *Decoded) addMemory(line int, r memory.Result[memory.Memory], seen map[string]bool) {
	if !r.OK {
		d.Errors = append(d.Errors, ImportError{Line: line, Kind: "memory", Code: CodeInvalidRecord, Message: r.Reason})
		return
	}
	if seen[r.Value.ID] {
		d.Errors = append(d.Errors, ImportError{Line: line, Kind: "memory", ID: r.Value.ID, Code: CodeDuplicateID, Message: "duplicate memory id in file"})
		return
	}
	if err := memory.Validate(r.Value); err != nil {
		d.Errors = append(d.Errors, ImportError{Line: line, Kind: "memory", ID: r.Value.ID, Code: CodeInvalidRecord, Message: err.Error()})
		return
	}
	seen[r.Value.ID] = true
	d.Memories = append(d.Memories, r.Value)
}

func (d *Decoded) addGroup(line int, r memory.Result[memory.Group], seen map[string]bool) {
	if !r.OK {
		d.Errors = append(d.Errors, ImportError{Line: line, Kind: "group", Code: CodeInvalidRecord, Message: r.Reason})
		return
	}
	if seen[r.Value.ID] {
		d.Errors = append(d.Errors, ImportError{Line: line, Kind: "group", ID: r.Value.ID, Code: CodeDuplicateID, Message: "duplicate group id in file"})
		return
	}
	seen[r.Value.ID] = true
	d.Groups = append(d.Groups, r.Value)
}
