package transfer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/atlas/internal/config"
	"github.com/hpungsan/atlas/internal/errors"
	"github.com/hpungsan/atlas/internal/memory"
	"github.com/hpungsan/atlas/internal/persist"
	"github.com/hpungsan/atlas/internal/state"
)

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}
	return cfg, dir
}

func TestExport_JSONAndCSV(t *testing.T) {
	cfg, dir := testConfig(t)
	ctx := context.Background()

	jsonPath := filepath.Join(dir, "backup.json")
	out, err := Export(ctx, cfg, sampleData(), ExportInput{Path: jsonPath})
	require.NoError(t, err)
	require.Equal(t, FormatJSON, out.Format)
	require.Equal(t, 2, out.Memories)
	require.Equal(t, 1, out.Groups)

	f, err := os.Open(jsonPath)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := DecodeJSON(f)
	require.NoError(t, err)
	require.Len(t, decoded.Memories, 2)

	csvPath := filepath.Join(dir, "memories.csv")
	out, err = Export(ctx, cfg, sampleData(), ExportInput{Path: csvPath})
	require.NoError(t, err)
	require.Equal(t, FormatCSV, out.Format)
	require.Zero(t, out.Groups)

	body, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(body), strings.Join(CSVHeader, ",")+"\r\n"))

	info, err := os.Stat(csvPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2, "no temp files left behind")
}

func TestExport_DefaultPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, err := Export(context.Background(), config.DefaultConfig(), sampleData(), ExportInput{Format: FormatCSV})
	require.NoError(t, err)

	exports, err := DefaultExportsDir()
	require.NoError(t, err)
	require.Equal(t, exports, filepath.Dir(out.Path))
	require.True(t, strings.HasPrefix(filepath.Base(out.Path), "memory-atlas-memories-"))
	require.Equal(t, ".csv", filepath.Ext(out.Path))
}

func TestExport_Rejections(t *testing.T) {
	cfg, dir := testConfig(t)
	ctx := context.Background()

	_, err := Export(ctx, cfg, sampleData(), ExportInput{Path: filepath.Join(dir, "a.json"), Format: FormatCSV})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Export(ctx, cfg, sampleData(), ExportInput{Path: filepath.Join(t.TempDir(), "a.json")})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Export(cancelled, cfg, sampleData(), ExportInput{Path: filepath.Join(dir, "a.json")})
	require.True(t, errors.Is(err, errors.ErrCancelled))
}

func TestExport_OverwritesAtomically(t *testing.T) {
	cfg, dir := testConfig(t)
	path := filepath.Join(dir, "backup.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0600))

	_, err := Export(context.Background(), cfg, Data{}, ExportInput{Path: path})
	require.NoError(t, err)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(body), `"memories": []`)
	require.Contains(t, string(body), `"groups": []`)
}

func TestMarshal(t *testing.T) {
	body, err := Marshal(FormatJSON, sampleData(), time.Now())
	require.NoError(t, err)
	require.Contains(t, string(body), `"version": 1`)

	_, err = Marshal("xml", sampleData(), time.Now())
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

// fakeTarget records what an import hands over.
type fakeTarget struct {
	replaced *Data
	merged   *Data
	skip     int
	err      error
}

func (f *fakeTarget) ReplaceAll(memories []memory.Memory, groups []memory.Group) error {
	f.replaced = &Data{Memories: memories, Groups: groups}
	return f.err
}

func (f *fakeTarget) Merge(memories []memory.Memory, groups []memory.Group) (int, int, error) {
	f.merged = &Data{Memories: memories, Groups: groups}
	return len(memories) + len(groups) - f.skip, f.skip, f.err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestImport_Modes(t *testing.T) {
	cfg, dir := testConfig(t)
	ctx := context.Background()
	path := writeFile(t, dir, "in.json", `{"memories":[{"id":"a","lat":1,"lng":1},{"id":"b"}],"groups":[{"id":"g"}]}`)

	t.Run("replace", func(t *testing.T) {
		target := &fakeTarget{}
		out, err := Import(ctx, target, cfg, ImportInput{Path: path})
		require.NoError(t, err)
		require.Equal(t, ImportModeReplace, out.Mode)
		require.Equal(t, 2, out.Imported)
		require.Equal(t, 1, out.Skipped)
		require.Len(t, out.Errors, 1)
		require.Len(t, target.replaced.Memories, 1)
		require.Nil(t, target.merged)
	})

	t.Run("merge", func(t *testing.T) {
		target := &fakeTarget{skip: 1}
		out, err := Import(ctx, target, cfg, ImportInput{Path: path, Mode: ImportModeMerge})
		require.NoError(t, err)
		require.Equal(t, 1, out.Imported)
		require.Equal(t, 2, out.Skipped)
		require.NotNil(t, target.merged)
	})

	t.Run("bad mode", func(t *testing.T) {
		_, err := Import(ctx, &fakeTarget{}, cfg, ImportInput{Path: path, Mode: "rename"})
		require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	})

	t.Run("target error", func(t *testing.T) {
		_, err := Import(ctx, &fakeTarget{err: errors.NewInvalidRequest("nope")}, cfg, ImportInput{Path: path})
		require.Error(t, err)
	})
}

func TestImport_FileErrors(t *testing.T) {
	cfg, dir := testConfig(t)
	ctx := context.Background()

	_, err := Import(ctx, &fakeTarget{}, cfg, ImportInput{Path: filepath.Join(dir, "missing.csv")})
	require.True(t, errors.Is(err, errors.ErrFileNotFound))

	bad := writeFile(t, dir, "bad.json", `not json`)
	target := &fakeTarget{}
	_, err = Import(ctx, target, cfg, ImportInput{Path: bad})
	require.True(t, errors.Is(err, errors.ErrImportFailed))
	require.Nil(t, target.replaced, "nothing is applied when the file cannot be parsed")
}

// Export from one store, import into another, and undo the import.
func TestExportImportWorkflow(t *testing.T) {
	cfg, dir := testConfig(t)
	ctx := context.Background()

	src := state.New(persist.Defaults(), state.Options{})
	g, err := src.AddGroup(memory.Group{Name: "Trips"})
	require.NoError(t, err)
	m := memory.Memory{Core: memory.Core{Lat: 10, Lng: 20, Title: "Beach", GroupID: memory.StringPtr(g.ID)}}
	m.ImageDataURLs = []string{"data:image/png;base64,AA"}
	_, err = src.AddMemory(m)
	require.NoError(t, err)

	snap := src.Snapshot()
	path := filepath.Join(dir, "workflow.json")
	_, err = Export(ctx, cfg, Data{Memories: snap.Memories, Groups: snap.Groups}, ExportInput{Path: path})
	require.NoError(t, err)

	dst := state.New(persist.Defaults(), state.Options{})
	_, err = dst.AddMemory(memory.Memory{Core: memory.Core{Lat: 1, Lng: 1, Title: "Existing"}})
	require.NoError(t, err)

	out, err := Import(ctx, dst, cfg, ImportInput{Path: path})
	require.NoError(t, err)
	require.Equal(t, 2, out.Imported)

	got := dst.Snapshot()
	require.Equal(t, snap.Memories, got.Memories)
	require.Equal(t, snap.Groups, got.Groups)

	require.True(t, dst.Undo())
	require.Equal(t, "Existing", dst.Snapshot().Memories[0].Title)
}
