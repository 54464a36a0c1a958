package transfer

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/atlas/internal/config"
	"github.com/hpungsan/atlas/internal/errors"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path   string // optional, default: ~/.atlas/exports/memory-atlas-<kind>-<date>.<ext>
	Format Format // optional, inferred from Path; JSON when both are empty
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Format     Format `json:"format"`
	Memories   int    `json:"memories"`
	Groups     int    `json:"groups"`
	ExportedAt string `json:"exported_at"`
}

// Marshal renders data in the given format.
func Marshal(format Format, data Data, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatCSV:
		err = EncodeCSV(&buf, data.Memories)
	case FormatJSON, "":
		err = EncodeJSON(&buf, data, now)
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown format %q", format))
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return buf.Bytes(), nil
}

// Export writes data to a file. The file is written to a temp name and
// renamed into place, so an existing export is never left half-written.
func Export(ctx context.Context, cfg *config.Config, data Data, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	format, exportPath, err := resolveExport(input, now)
	if err != nil {
		return nil, err
	}
	if err := ValidatePath(exportPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("export")
	}

	body, err := Marshal(format, data, now)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(exportPath, body); err != nil {
		return nil, err
	}

	out := &ExportOutput{
		Path:       exportPath,
		Format:     format,
		Memories:   len(data.Memories),
		ExportedAt: now.UTC().Format(timestampLayout),
	}
	if format == FormatJSON {
		out.Groups = len(data.Groups)
	}
	return out, nil
}

func resolveExport(input ExportInput, now time.Time) (Format, string, error) {
	if input.Path == "" {
		format := input.Format
		if format == "" {
			format = FormatJSON
		}
		path, err := DefaultExportPath(format, now)
		return format, path, err
	}

	format, err := FormatFromPath(input.Path)
	if err != nil {
		return "", "", err
	}
	if input.Format != "" && input.Format != format {
		return "", "", errors.NewInvalidRequest(
			fmt.Sprintf("format %q does not match the %s extension", input.Format, filepath.Ext(input.Path)))
	}
	return format, input.Path, nil
}

// DefaultExportPath is memory-atlas-backup-<date>.json for JSON and
// memory-atlas-memories-<date>.csv for CSV, in the exports directory.
func DefaultExportPath(format Format, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	kind := "backup"
	if format == FormatCSV {
		kind = "memories"
	}
	name := fmt.Sprintf("memory-atlas-%s-%s%s", kind, now.UTC().Format("2006-01-02"), format.ext())
	return filepath.Join(dir, name), nil
}

func writeFileAtomic(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(body); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("export path is a symlink")
	}

	// Windows refuses to rename over an existing file; keep the old one rather
	// than delete-then-rename.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return nil
}
