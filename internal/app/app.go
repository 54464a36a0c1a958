// Package app wires configuration, logging, metrics, storage, persistence and
// the state store into one session shared by the CLI, MCP server and web UI.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/atlas/internal/backup"
	"github.com/hpungsan/atlas/internal/config"
	"github.com/hpungsan/atlas/internal/logging"
	"github.com/hpungsan/atlas/internal/metrics"
	"github.com/hpungsan/atlas/internal/persist"
	"github.com/hpungsan/atlas/internal/state"
	"github.com/hpungsan/atlas/internal/storage"
	"github.com/hpungsan/atlas/internal/transfer"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "atlas"

// Options configure Open.
type Options struct {
	// BaseDir holds atlas.db, legacy.json and config.json.
	BaseDir string

	// Config defaults to config.Load(BaseDir).
	Config *config.Config

	// Logger defaults to one built from Config.LogLevel and Config.LogDev.
	Logger *zap.Logger

	// InMemory skips SQLite. The legacy file is still read but never removed.
	InMemory bool
}

// App is an open Atlas session.
type App struct {
	BaseDir string
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Collector
	Store   *state.Store

	// LoadReport describes what was found in storage at startup.
	LoadReport persist.Report

	// Degraded is true when the primary store could not be opened and the
	// session keeps its state in memory only.
	Degraded bool

	writer  *persist.Writer
	sqlite  *storage.SQLiteStore
	unwatch func()
}

// collectionSize is the slice of state exported as gauges.
type collectionSize struct {
	memories, groups int
}

// DefaultBaseDir returns ~/.atlas.
func DefaultBaseDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".atlas"), nil
}

// Open loads persisted state (migrating the legacy store on first use) and
// returns a ready session. Storage failures never fail Open: the session
// falls back to in-memory state.
func Open(ctx context.Context, opts Options) (*App, error) {
	if opts.BaseDir == "" {
		return nil, fmt.Errorf("app: base directory is required")
	}

	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(opts.BaseDir)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	logger := opts.Logger
	if logger == nil {
		built, err := logging.New(cfg.LogLevel, cfg.LogDev)
		if err != nil {
			return nil, err
		}
		logger = built
	}

	a := &App{
		BaseDir: opts.BaseDir,
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewCollector(MetricsNamespace),
	}

	var primary storage.Store
	if opts.InMemory {
		primary = storage.NewMemoryStore()
	} else {
		sqlite, err := storage.OpenSQLite(opts.BaseDir)
		if err != nil {
			logger.Warn("primary store unavailable, continuing in memory",
				zap.String("base_dir", opts.BaseDir), zap.Error(err))
			primary = storage.NewMemoryStore()
			a.Degraded = true
		} else {
			sqlite.ConfigurePool(cfg)
			a.sqlite = sqlite
			primary = sqlite
		}
	}

	legacy := storage.NewLegacyStore(filepath.Join(opts.BaseDir, storage.LegacyFileName), cfg.LegacyCapacityBytes)
	migratingOpts := []storage.Option{
		storage.WithLogger(logger.Named("storage")),
		storage.WithMetrics(a.Metrics),
	}
	if a.sqlite == nil {
		// Nothing durable would hold the copy, so the legacy file stays put.
		migratingOpts = append(migratingOpts, storage.WithKeepLegacy())
	}
	store := storage.NewMigrating(primary, legacy, migratingOpts...)

	persistOpts := persist.Options{Logger: logger.Named("persist"), Metrics: a.Metrics}
	snapshot, report := persist.Load(ctx, store, persistOpts)
	a.LoadReport = report

	a.writer = persist.NewWriter(store, persistOpts)
	a.Store = state.New(snapshot, state.Options{
		HistoryLimit: cfg.HistoryLimit,
		Saver:        a.writer,
		Logger:       logger.Named("state"),
		Metrics:      a.Metrics,
	})

	a.Metrics.CollectionSize(len(snapshot.Memories), len(snapshot.Groups))
	a.unwatch = state.Select(a.Store,
		func(st state.State) collectionSize {
			return collectionSize{memories: len(st.Memories), groups: len(st.Groups)}
		},
		func(x, y collectionSize) bool { return x == y },
		func(n collectionSize) { a.Metrics.CollectionSize(n.memories, n.groups) })
	return a, nil
}

// Flush waits until every change made so far is durable (or has failed).
func (a *App) Flush(ctx context.Context) error {
	return a.writer.Flush(ctx)
}

// Close drains pending writes and closes the database.
func (a *App) Close(ctx context.Context) error {
	a.unwatch()
	err := a.writer.Close(ctx)
	if a.sqlite != nil {
		if cerr := a.sqlite.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	_ = a.Logger.Sync()
	return err
}

// Data returns the current memories and groups.
func (a *App) Data() transfer.Data {
	st := a.Store.Snapshot()
	return transfer.Data{Memories: st.Memories, Groups: st.Groups}
}

// Export writes the current data to a JSON or CSV file.
func (a *App) Export(ctx context.Context, input transfer.ExportInput) (*transfer.ExportOutput, error) {
	return transfer.Export(ctx, a.Config, a.Data(), input)
}

// Import reads a JSON or CSV file into the store as one undoable change.
func (a *App) Import(ctx context.Context, input transfer.ImportInput) (*transfer.ImportOutput, error) {
	out, err := transfer.Import(ctx, a.Store, a.Config, input)
	if err != nil {
		return nil, err
	}
	a.Logger.Info("import finished",
		zap.String("path", input.Path),
		zap.String("mode", string(out.Mode)),
		zap.Int("imported", out.Imported),
		zap.Int("skipped", out.Skipped))
	return out, nil
}

// Backup uploads a JSON backup to the configured bucket.
func (a *App) Backup(ctx context.Context) (*backup.Result, error) {
	bucket, err := backup.New(ctx, backup.ConfigFrom(a.Config))
	if err != nil {
		return nil, err
	}
	res, err := bucket.Upload(ctx, a.Data(), time.Now())
	if err != nil {
		return nil, err
	}
	a.Logger.Info("backup uploaded", zap.String("bucket", res.Bucket), zap.String("key", res.Key), zap.Int("bytes", res.Bytes))
	return res, nil
}

// ListBackups lists backups in the configured bucket, newest first.
func (a *App) ListBackups(ctx context.Context) ([]backup.Object, error) {
	bucket, err := backup.New(ctx, backup.ConfigFrom(a.Config))
	if err != nil {
		return nil, err
	}
	return bucket.List(ctx)
}

// Restore imports a backup from the configured bucket.
func (a *App) Restore(ctx context.Context, key string, mode transfer.ImportMode) (*transfer.ImportOutput, error) {
	bucket, err := backup.New(ctx, backup.ConfigFrom(a.Config))
	if err != nil {
		return nil, err
	}
	decoded, err := bucket.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	return transfer.Apply(a.Store, decoded, mode)
}
