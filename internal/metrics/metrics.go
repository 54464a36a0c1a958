package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics for persistence and history.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// Persistence
	Saves          prometheus.Counter
	WriteFailures  prometheus.Counter
	WriteDuration  prometheus.Histogram
	LoadFailures   prometheus.Counter
	Migrations     *prometheus.CounterVec
	LegacyMigrated prometheus.Counter

	// State
	Mutations *prometheus.CounterVec
	UndoDepth prometheus.Gauge
	RedoDepth prometheus.Gauge
	Memories  prometheus.Gauge
	Groups    prometheus.Gauge
}

// NewCollector creates a collector backed by its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	saves := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persist_saves_total",
		Help:      "Total number of snapshot saves requested",
	})

	writeFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persist_write_failures_total",
		Help:      "Total number of snapshot writes that failed",
	})

	writeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "persist_write_duration_seconds",
		Help:      "Snapshot write duration in seconds",
		Buckets:   prometheus.DefBuckets,
	})

	loadFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persist_load_failures_total",
		Help:      "Total number of loads that fell back to defaults",
	})

	migrations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_migrations_total",
			Help:      "Snapshot schema migrations applied, by target version",
		},
		[]string{"to_version"},
	)

	legacyMigrated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "storage_legacy_migrations_total",
		Help:      "Values copied from the legacy store into the primary store",
	})

	mutations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_mutations_total",
			Help:      "State mutations applied, by operation",
		},
		[]string{"op"},
	)

	undoDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "history_undo_depth",
		Help:      "Current number of undo checkpoints",
	})

	redoDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "history_redo_depth",
		Help:      "Current number of redo checkpoints",
	})

	memories := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "state_memories",
		Help:      "Current number of memories",
	})

	groups := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "state_groups",
		Help:      "Current number of groups",
	})

	registry.MustRegister(
		saves,
		writeFailures,
		writeDuration,
		loadFailures,
		migrations,
		legacyMigrated,
		mutations,
		undoDepth,
		redoDepth,
		memories,
		groups,
	)

	return &Collector{
		registry:       registry,
		Saves:          saves,
		WriteFailures:  writeFailures,
		WriteDuration:  writeDuration,
		LoadFailures:   loadFailures,
		Migrations:     migrations,
		LegacyMigrated: legacyMigrated,
		Mutations:      mutations,
		UndoDepth:      undoDepth,
		RedoDepth:      redoDepth,
		Memories:       memories,
		Groups:         groups,
	}
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) SaveRequested() {
	if c != nil {
		c.Saves.Inc()
	}
}

func (c *Collector) WriteFinished(seconds float64, err error) {
	if c == nil {
		return
	}
	c.WriteDuration.Observe(seconds)
	if err != nil {
		c.WriteFailures.Inc()
	}
}

func (c *Collector) LoadFailed() {
	if c != nil {
		c.LoadFailures.Inc()
	}
}

func (c *Collector) MigrationApplied(toVersion string) {
	if c != nil {
		c.Migrations.WithLabelValues(toVersion).Inc()
	}
}

func (c *Collector) LegacyCopied() {
	if c != nil {
		c.LegacyMigrated.Inc()
	}
}

func (c *Collector) Mutation(op string) {
	if c != nil {
		c.Mutations.WithLabelValues(op).Inc()
	}
}

// HistoryDepth records the current undo and redo stack sizes.
func (c *Collector) HistoryDepth(undo, redo int) {
	if c == nil {
		return
	}
	c.UndoDepth.Set(float64(undo))
	c.RedoDepth.Set(float64(redo))
}

// CollectionSize records how many memories and groups the store holds.
func (c *Collector) CollectionSize(memories, groups int) {
	if c == nil {
		return
	}
	c.Memories.Set(float64(memories))
	c.Groups.Set(float64(groups))
}
