package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/atlas/internal/memory"
	"github.com/hpungsan/atlas/internal/metrics"
	"github.com/hpungsan/atlas/internal/storage"
)

func TestDecode_V0(t *testing.T) {
	raw := `{"state": {
		"memories": [{"id": "m1", "lat": 1, "lng": 2, "title": "t", "date": "2020-01-01", "createdAt": "2020-01-01T00:00:00Z", "imageDataUrl": "img"}],
		"theme": "neon"
	}}`

	snap, report, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, 0, report.StoredVersion)
	require.Equal(t, 3, report.Migrated)

	require.Len(t, snap.Memories, 1)
	require.Nil(t, snap.Memories[0].GroupID)
	require.Equal(t, []string{"img"}, snap.Memories[0].ImageDataURLs)
	require.Empty(t, snap.Groups)
	require.NotNil(t, snap.Groups)
	require.Equal(t, ThemeDark, snap.Theme)
	require.Nil(t, snap.DefaultGroupID)
	require.Equal(t, DefaultSidebarWidth, snap.SidebarWidth)
}

func TestDecode_V2ClampsSidebar(t *testing.T) {
	tests := []struct {
		width string
		want  int
	}{
		{`100`, MinSidebarWidth},
		{`9000`, MaxSidebarWidth},
		{`1e300`, MaxSidebarWidth},
		{`333.6`, 334},
		{`"wide"`, DefaultSidebarWidth},
		{`null`, DefaultSidebarWidth},
	}

	for _, tt := range tests {
		t.Run(tt.width, func(t *testing.T) {
			raw := fmt.Sprintf(`{"state": {"memories": [], "groups": [], "theme": "light", "defaultGroupId": null, "sidebarWidth": %s}, "version": 2}`, tt.width)
			snap, report, err := Decode(raw)
			require.NoError(t, err)
			require.Equal(t, 1, report.Migrated)
			require.Equal(t, tt.want, snap.SidebarWidth)
			require.Equal(t, ThemeLight, snap.Theme)
		})
	}
}

// Every blob older than CurrentVersion satisfies current invariants after migration.
func TestDecode_VersionMonotonicity(t *testing.T) {
	states := []string{
		`{}`,
		`{"memories": "nope", "groups": 5}`,
		`{"memories": [1, "x", null, {"lat": 0, "lng": 0}], "groups": [{"name": "g"}, []]}`,
		`{"theme": 7, "defaultGroupId": 42, "sidebarWidth": -5}`,
		`{"theme": "light", "defaultGroupId": "g1", "sidebarWidth": 1000}`,
	}

	for v := 0; v < CurrentVersion; v++ {
		for i, state := range states {
			t.Run(fmt.Sprintf("v%d/%d", v, i), func(t *testing.T) {
				raw := fmt.Sprintf(`{"state": %s, "version": %d}`, state, v)
				snap, report, err := Decode(raw)
				require.NoError(t, err)
				require.Equal(t, CurrentVersion-v, report.Migrated)

				require.GreaterOrEqual(t, snap.SidebarWidth, MinSidebarWidth)
				require.LessOrEqual(t, snap.SidebarWidth, MaxSidebarWidth)
				require.Contains(t, []Theme{ThemeDark, ThemeLight}, snap.Theme)
				require.NotNil(t, snap.Memories)
				require.NotNil(t, snap.Groups)
				for _, m := range snap.Memories {
					require.NoError(t, memory.Validate(m))
				}
			})
		}
	}
}

func TestDecode_MigrationsDoNotSkipSteps(t *testing.T) {
	// A v1 blob must still get its legacy image folded (v2) and width (v3).
	raw := `{"state": {"memories": [{"lat": 0, "lng": 0, "groupId": null, "imageDataUrl": "a"}], "groups": [], "theme": "dark"}, "version": 1}`
	snap, report, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, 2, report.Migrated)
	require.Equal(t, []string{"a"}, snap.Memories[0].Images())
	require.Equal(t, DefaultSidebarWidth, snap.SidebarWidth)
}

func TestDecode_UnknownVersionIsZero(t *testing.T) {
	for _, v := range []string{`"3"`, `-1`, `2.5`, `null`} {
		_, report, err := Decode(`{"state": {}, "version": ` + v + `}`)
		require.NoError(t, err)
		require.Equal(t, 0, report.StoredVersion, "version %s", v)
		require.Equal(t, CurrentVersion, report.Migrated)
	}
}

func TestDecode_FutureVersion(t *testing.T) {
	raw := `{"state": {"memories": [], "groups": [], "theme": "light", "sidebarWidth": 400, "newField": true}, "version": 99}`
	snap, report, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, 99, report.StoredVersion)
	require.Equal(t, 0, report.Migrated)
	require.Equal(t, ThemeLight, snap.Theme)
	require.Equal(t, 400, snap.SidebarWidth)
}

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{`not json`, `[]`, `"str"`, `null`} {
		_, _, err := Decode(raw)
		require.Error(t, err, raw)
	}

	snap, _, err := Decode(`{"state": "broken", "version": 3}`)
	require.NoError(t, err)
	require.Equal(t, Defaults(), snap)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	created := time.Date(2024, 2, 3, 4, 5, 6, 7_000_000, time.UTC)
	in := Snapshot{
		Memories: []memory.Memory{{
			Core: memory.Core{
				ID: "m1", Lat: 51.5, Lng: -0.12, Title: "London", Date: "2024-02-03",
				Notes: "rain", CreatedAt: created, GroupID: memory.StringPtr("g1"),
				Starred: true, Order: memory.FloatPtr(0), CustomLabel: memory.StringPtr("L"),
				Tags: []string{"city"}, Links: []string{"https://example.org"},
			},
			ImageDataURLs: []string{"data:image/png;base64,AAA"},
		}},
		Groups:         []memory.Group{{ID: "g1", Name: "UK", Collapsed: true}},
		Theme:          ThemeLight,
		DefaultGroupID: memory.StringPtr("g1"),
		SidebarWidth:   300,
	}

	raw, err := Encode(in)
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	require.Equal(t, float64(CurrentVersion), env["version"])

	out, report, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, 0, report.Migrated)
	require.Equal(t, in, out)
}

func TestEncode_NilCollections(t *testing.T) {
	raw, err := Encode(Snapshot{Theme: ThemeDark, SidebarWidth: 320})
	require.NoError(t, err)
	require.Contains(t, raw, `"memories":[]`)
	require.Contains(t, raw, `"groups":[]`)
	require.Contains(t, raw, `"defaultGroupId":null`)
}

type errStore struct{ err error }

func (e errStore) Get(context.Context, string) (string, bool, error) { return "", false, e.err }
func (e errStore) Set(context.Context, string, string) error         { return e.err }
func (e errStore) Remove(context.Context, string) error              { return e.err }

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("absent", func(t *testing.T) {
		snap, report := Load(ctx, storage.NewMemoryStore(), Options{})
		require.False(t, report.Found)
		require.NoError(t, report.Err)
		require.Equal(t, Defaults(), snap)
	})

	t.Run("store failure falls back to defaults", func(t *testing.T) {
		c := metrics.NewCollector("atlas")
		snap, report := Load(ctx, errStore{err: errors.New("unavailable")}, Options{Metrics: c})
		require.Error(t, report.Err)
		require.Equal(t, Defaults(), snap)
		require.Equal(t, 1.0, testutil.ToFloat64(c.LoadFailures))
	})

	t.Run("corrupt blob falls back to defaults", func(t *testing.T) {
		s := storage.NewMemoryStore()
		require.NoError(t, s.Set(ctx, storage.PersistKey, "{{{"))
		snap, report := Load(ctx, s, Options{})
		require.Error(t, report.Err)
		require.Equal(t, Defaults(), snap)
	})

	t.Run("migrates and counts", func(t *testing.T) {
		s := storage.NewMemoryStore()
		require.NoError(t, s.Set(ctx, storage.PersistKey, `{"state": {"memories": [{"lat": 1, "lng": 1}, {"lat": "x"}]}, "version": 1}`))
		c := metrics.NewCollector("atlas")

		snap, report := Load(ctx, s, Options{Metrics: c})
		require.True(t, report.Found)
		require.Equal(t, 1, report.Rejected)
		require.Len(t, snap.Memories, 1)
		require.Equal(t, 1.0, testutil.ToFloat64(c.Migrations.WithLabelValues("2")))
		require.Equal(t, 1.0, testutil.ToFloat64(c.Migrations.WithLabelValues("3")))
		require.Equal(t, 0.0, testutil.ToFloat64(c.Migrations.WithLabelValues("1")))
	})

	t.Run("custom key", func(t *testing.T) {
		s := storage.NewMemoryStore()
		require.NoError(t, s.Set(ctx, "other", `{"state": {"theme": "light"}, "version": 3}`))
		snap, report := Load(ctx, s, Options{Key: "other"})
		require.True(t, report.Found)
		require.Equal(t, ThemeLight, snap.Theme)
	})
}

func TestClampSidebarWidth(t *testing.T) {
	require.Equal(t, 240, ClampSidebarWidth(0))
	require.Equal(t, 400, ClampSidebarWidth(400))
	require.Equal(t, 560, ClampSidebarWidth(561))
	require.Equal(t, ThemeLight, ParseTheme("light"))
	require.Equal(t, ThemeDark, ParseTheme("LIGHT"))
}
