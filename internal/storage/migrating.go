package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/atlas/internal/logging"
	"github.com/hpungsan/atlas/internal/metrics"
)

// Migrating wraps the primary store. Reads of PersistKey lazily move a value
// left in the legacy store into the primary store the first time it is needed.
// This is the only code that reads the legacy store.
//
// The check-then-copy sequence is idempotent rather than locked: two
// concurrent reads may both copy the same legacy value, which writes the
// same bytes twice.
type Migrating struct {
	primary    Store
	legacy     Store
	keepLegacy bool
	logger     *zap.Logger
	metrics    *metrics.Collector
}

// Option configures a Migrating store.
type Option func(*Migrating)

func WithLogger(l *zap.Logger) Option {
	return func(m *Migrating) { m.logger = logging.OrNop(l) }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(m *Migrating) { m.metrics = c }
}

// WithKeepLegacy copies legacy values without removing them. Use it when the
// primary store is not durable.
func WithKeepLegacy() Option {
	return func(m *Migrating) { m.keepLegacy = true }
}

// NewMigrating returns a store that reads through primary, consulting legacy
// (which may be nil) only for PersistKey.
func NewMigrating(primary, legacy Store, opts ...Option) *Migrating {
	m := &Migrating{primary: primary, legacy: legacy, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Migrating) Get(ctx context.Context, key string) (string, bool, error) {
	if key != PersistKey || m.legacy == nil {
		return m.primary.Get(ctx, key)
	}

	value, ok, err := m.primary.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if ok && value != "" {
		return value, true, nil
	}

	legacyValue, legacyOK, err := m.legacy.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if !legacyOK || legacyValue == "" {
		// Another reader may have finished a migration since the first read.
		return m.primary.Get(ctx, key)
	}

	if err := m.primary.Set(ctx, key, legacyValue); err != nil {
		return "", false, err
	}
	m.metrics.LegacyCopied()
	m.logger.Info("migrated legacy value to primary store",
		zap.String("key", key),
		zap.Int("bytes", len(legacyValue)))

	if m.keepLegacy {
		return legacyValue, true, nil
	}
	if err := m.legacy.Remove(ctx, key); err != nil {
		m.logger.Warn("failed to remove migrated legacy value",
			zap.String("key", key),
			zap.Error(err))
	}
	return legacyValue, true, nil
}

func (m *Migrating) Set(ctx context.Context, key, value string) error {
	return m.primary.Set(ctx, key, value)
}

func (m *Migrating) Remove(ctx context.Context, key string) error {
	return m.primary.Remove(ctx, key)
}
