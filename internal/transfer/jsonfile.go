package transfer

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hpungsan/atlas/internal/errors"
	"github.com/hpungsan/atlas/internal/memory"
)

// ExportVersion is the version written into JSON backups.
const ExportVersion = 1

// timestampLayout is ISO-8601 with milliseconds, as written for exportedAt and createdAt.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Document is the JSON backup file.
type Document struct {
	Version    int             `json:"version"`
	ExportedAt string          `json:"exportedAt"`
	Memories   []memory.Memory `json:"memories"`
	Groups     []memory.Group  `json:"groups"`
}

// EncodeJSON writes a full backup, images included.
func EncodeJSON(w io.Writer, data Data, exportedAt time.Time) error {
	doc := Document{
		Version:    ExportVersion,
		ExportedAt: exportedAt.UTC().Format(timestampLayout),
		Memories:   data.Memories,
		Groups:     data.Groups,
	}
	if doc.Memories == nil {
		doc.Memories = []memory.Memory{}
	}
	if doc.Groups == nil {
		doc.Groups = []memory.Group{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// DecodeJSON parses a backup. Missing arrays are treated as empty and every
// entity is normalized; records that cannot be repaired are reported in
// Decoded.Errors. Only a file that is not a JSON object fails outright.
func DecodeJSON(r io.Reader) (*Decoded, error) {
	var raw any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.NewImportFailed("json", err)
	}
	o, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.NewImportFailed("json", fmt.Errorf("top level is not an object"))
	}

	d := &Decoded{Format: FormatJSON}

	rawMemories, _ := o["memories"].([]any)
	seenMemories := make(map[string]bool, len(rawMemories))
	for i, item := range rawMemories {
		d.addMemory(i+1, memory.NormalizeMemory(item), seenMemories)
	}

	rawGroups, _ := o["groups"].([]any)
	seenGroups := make(map[string]bool, len(rawGroups))
	for i, item := range rawGroups {
		d.addGroup(i+1, memory.NormalizeGroup(item), seenGroups)
	}
	return d, nil
}
