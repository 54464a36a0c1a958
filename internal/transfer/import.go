package transfer

import (
	"context"
	"fmt"
	"io"

	"github.com/hpungsan/atlas/internal/config"
	"github.com/hpungsan/atlas/internal/errors"
	"github.com/hpungsan/atlas/internal/memory"
)

// ImportMode controls how imported entities combine with existing ones.
type ImportMode string

const (
	ImportModeReplace ImportMode = "replace" // swap both collections wholesale
	ImportModeMerge   ImportMode = "merge"   // add entities whose ids are new
)

// Target receives imported entities. *state.Store implements it; either
// call is a single undo checkpoint.
type Target interface {
	ReplaceAll(memories []memory.Memory, groups []memory.Group) error
	Merge(memories []memory.Memory, groups []memory.Group) (added, skipped int, err error)
}

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: replace
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Format   Format        `json:"format"`
	Mode     ImportMode    `json:"mode"`
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ParseImportMode accepts "replace" or "merge". Empty means replace.
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(s) {
	case "", ImportModeReplace:
		return ImportModeReplace, nil
	case ImportModeMerge:
		return ImportModeMerge, nil
	default:
		return "", errors.NewInvalidRequest("mode must be one of: replace, merge")
	}
}

// Decode parses an import stream in the given format.
func Decode(format Format, r io.Reader) (*Decoded, error) {
	switch format {
	case FormatJSON:
		return DecodeJSON(r)
	case FormatCSV:
		return DecodeCSV(r)
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown format %q", format))
	}
}

// Read validates path and decodes the file it names.
func Read(ctx context.Context, cfg *config.Config, path string) (*Decoded, error) {
	if err := ValidatePath(path, PathCheckRead, cfg); err != nil {
		return nil, err
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	file, err := openNoFollowRead(path)
	if err != nil {
		if _, ok := err.(*errors.AtlasError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("import")
	}
	return Decode(format, file)
}

// Import reads a JSON or CSV file and hands the accepted entities to target.
// Records that could not be normalized are skipped and reported.
func Import(ctx context.Context, target Target, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	mode, err := ParseImportMode(string(input.Mode))
	if err != nil {
		return nil, err
	}
	decoded, err := Read(ctx, cfg, input.Path)
	if err != nil {
		return nil, err
	}
	return Apply(target, decoded, mode)
}

// Apply commits already-decoded entities to target.
func Apply(target Target, decoded *Decoded, mode ImportMode) (*ImportOutput, error) {
	out := &ImportOutput{
		Format:  decoded.Format,
		Mode:    mode,
		Skipped: len(decoded.Errors),
		Errors:  decoded.Errors,
	}
	if out.Errors == nil {
		out.Errors = []ImportError{}
	}

	switch mode {
	case ImportModeMerge:
		added, skipped, err := target.Merge(decoded.Memories, decoded.Groups)
		if err != nil {
			return nil, err
		}
		out.Imported = added
		out.Skipped += skipped
	default:
		if err := target.ReplaceAll(decoded.Memories, decoded.Groups); err != nil {
			return nil, err
		}
		out.Imported = len(decoded.Memories) + len(decoded.Groups)
	}
	return out, nil
}
