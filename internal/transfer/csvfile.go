package transfer

import (
	"encoding/csv"
	stderrors "errors"
	"io"
	"strconv"
	"strings"

	"github.com/hpungsan/atlas/internal/errors"
	"github.com/hpungsan/atlas/internal/memory"
)

// CSVHeader is the column order written by EncodeCSV.
var CSVHeader = []string{
	"id", "lat", "lng", "title", "date", "notes", "hasImage",
	"createdAt", "groupId", "hidden", "order", "customLabel",
}

// EncodeCSV writes one row per memory with CRLF line endings. Images, tags,
// links and groups are not included; use JSON for a full backup.
func EncodeCSV(w io.Writer, memories []memory.Memory) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, m := range memories {
		if err := cw.Write(csvRecord(m)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRecord(m memory.Memory) []string {
	order := ""
	if m.Order != nil {
		order = formatFloat(*m.Order)
	}
	customLabel := ""
	if m.CustomLabel != nil {
		customLabel = *m.CustomLabel
	}
	return []string{
		m.ID,
		formatFloat(m.Lat),
		formatFloat(m.Lng),
		m.Title,
		m.Date,
		m.Notes,
		flag(m.HasImages()),
		m.CreatedAt.UTC().Format(timestampLayout),
		m.Group(),
		flag(m.Hidden),
		order,
		customLabel,
	}
}

// DecodeCSV parses a CSV table of memories. Header names match
// case-insensitively and columns may appear in any order; missing optional
// columns take their defaults. groupId comes from its column when present.
// A file with only a header yields no memories.
func DecodeCSV(r io.Reader) (*Decoded, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	d := &Decoded{Format: FormatCSV}

	header, err := cr.Read()
	if stderrors.Is(err, io.EOF) {
		return d, nil
	}
	if err != nil {
		return nil, errors.NewImportFailed("csv", err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := columns[h]; !dup {
			columns[h] = i
		}
	}

	seen := map[string]bool{}
	for {
		record, err := cr.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.NewImportFailed("csv", err)
		}
		if blank(record) {
			continue
		}
		line, _ := cr.FieldPos(0)
		d.addMemory(line, memory.NormalizeMemory(csvRow(columns, record)), seen)
	}
	return d, nil
}

// csvRow maps a record onto the untyped shape NormalizeMemory expects.
func csvRow(columns map[string]int, record []string) map[string]any {
	get := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	raw := map[string]any{
		"lat":    get("lat"),
		"lng":    get("lng"),
		"notes":  get("notes"),
		"hidden": get("hidden") == "1",
	}
	for key, column := range map[string]string{
		"id":          "id",
		"title":       "title",
		"date":        "date",
		"createdAt":   "createdat",
		"groupId":     "groupid",
		"customLabel": "customlabel",
	} {
		if v := get(column); v != "" {
			raw[key] = v
		}
	}
	// 0 and blank both mean unordered.
	if f, err := strconv.ParseFloat(strings.TrimSpace(get("order")), 64); err == nil && f != 0 {
		raw["order"] = f
	}
	return raw
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
