package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/hpungsan/atlas/internal/logging"
	"github.com/hpungsan/atlas/internal/memory"
	"github.com/hpungsan/atlas/internal/metrics"
	"github.com/hpungsan/atlas/internal/storage"
)

// Options are shared by Load and NewWriter.
type Options struct {
	// Key defaults to storage.PersistKey
	Key     string
	Logger  *zap.Logger
	Metrics *metrics.Collector
}

func (o Options) key() string {
	if o.Key == "" {
		return storage.PersistKey
	}
	return o.Key
}

// Report describes what Load found.
type Report struct {
	// Found is false when nothing was stored or the stored blob was unusable.
	Found bool

	// StoredVersion is the version read from the blob (0 when missing or unknown).
	StoredVersion int

	// Migrated counts the migration steps applied.
	Migrated int

	// Rejected counts memories and groups dropped by normalization.
	Rejected int

	// Err is the read or parse failure that forced defaults, if any.
	Err error
}

// Load reads the persisted snapshot. It never fails: an absent key yields
// defaults, and a read or parse failure yields defaults plus a logged warning.
func Load(ctx context.Context, store storage.Store, opts Options) (Snapshot, Report) {
	logger := logging.OrNop(opts.Logger)

	raw, ok, err := store.Get(ctx, opts.key())
	if err != nil {
		logger.Warn("persisted state unreadable, starting empty", zap.String("key", opts.key()), zap.Error(err))
		opts.Metrics.LoadFailed()
		return Defaults(), Report{Err: err}
	}
	if !ok || raw == "" {
		return Defaults(), Report{}
	}

	snap, report, err := decode(raw, opts.Metrics)
	if err != nil {
		logger.Warn("persisted state corrupt, starting empty", zap.String("key", opts.key()), zap.Error(err))
		opts.Metrics.LoadFailed()
		return Defaults(), Report{Err: err}
	}
	if report.StoredVersion > CurrentVersion {
		logger.Warn("persisted state is newer than this build, loading as current",
			zap.Int("stored_version", report.StoredVersion),
			zap.Int("current_version", CurrentVersion))
	}
	if report.Migrated > 0 {
		logger.Info("migrated persisted state",
			zap.Int("from_version", report.StoredVersion),
			zap.Int("to_version", CurrentVersion))
	}
	if report.Rejected > 0 {
		logger.Warn("dropped malformed records from persisted state", zap.Int("rejected", report.Rejected))
	}
	return snap, report
}

// Decode parses a stored blob, migrating it to CurrentVersion.
func Decode(raw string) (Snapshot, Report, error) {
	return decode(raw, nil)
}

func decode(raw string, mc *metrics.Collector) (Snapshot, Report, error) {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Snapshot{}, Report{}, fmt.Errorf("parse envelope: %w", err)
	}
	envelope, ok := doc.(map[string]any)
	if !ok {
		return Snapshot{}, Report{}, errors.New("envelope is not an object")
	}

	report := Report{Found: true, StoredVersion: versionOf(envelope["version"])}

	state, ok := envelope["state"].(map[string]any)
	if !ok {
		state = map[string]any{}
	}

	report.Migrated = upgrade(state, report.StoredVersion, func(to int) {
		mc.MigrationApplied(strconv.Itoa(to))
	})

	snap, rejected := fromState(state)
	report.Rejected = rejected
	return snap, report, nil
}

// versionOf treats anything but a non-negative integer as version 0.
func versionOf(v any) int {
	f, ok := v.(float64)
	if !ok || f < 0 || f != float64(int(f)) {
		return 0
	}
	return int(f)
}

// fromState builds a typed snapshot from the current-version generic shape.
func fromState(state map[string]any) (Snapshot, int) {
	snap := Defaults()
	rejected := 0

	memories, _ := state["memories"].([]any)
	for _, item := range memories {
		res := memory.NormalizeMemory(item)
		if !res.OK {
			rejected++
			continue
		}
		snap.Memories = append(snap.Memories, res.Value)
	}

	groups, _ := state["groups"].([]any)
	for _, item := range groups {
		res := memory.NormalizeGroup(item)
		if !res.OK {
			rejected++
			continue
		}
		snap.Groups = append(snap.Groups, res.Value)
	}

	theme, _ := state["theme"].(string)
	snap.Theme = ParseTheme(theme)

	if id, ok := state["defaultGroupId"].(string); ok && id != "" {
		snap.DefaultGroupID = &id
	}

	if w, ok := state["sidebarWidth"].(float64); ok {
		snap.SidebarWidth = clampWidthFloat(w)
	}

	return snap, rejected
}

// Encode serializes a snapshot inside a CurrentVersion envelope.
func Encode(s Snapshot) (string, error) {
	if s.Memories == nil {
		s.Memories = []memory.Memory{}
	}
	if s.Groups == nil {
		s.Groups = []memory.Group{}
	}
	raw, err := json.Marshal(Envelope{State: s, Version: CurrentVersion})
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(raw), nil
}
