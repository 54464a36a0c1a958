package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("atlas")

	c.SaveRequested()
	c.SaveRequested()
	c.WriteFinished(0.01, nil)
	c.WriteFinished(0.02, errors.New("disk full"))
	c.LoadFailed()
	c.MigrationApplied("3")
	c.LegacyCopied()
	c.Mutation("add_memory")
	c.HistoryDepth(4, 1)
	c.CollectionSize(7, 2)

	if got := testutil.ToFloat64(c.Saves); got != 2 {
		t.Errorf("Saves = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.WriteFailures); got != 1 {
		t.Errorf("WriteFailures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.LoadFailures); got != 1 {
		t.Errorf("LoadFailures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Migrations.WithLabelValues("3")); got != 1 {
		t.Errorf("Migrations{3} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.UndoDepth); got != 4 {
		t.Errorf("UndoDepth = %v, want 4", got)
	}
	if got := testutil.ToFloat64(c.RedoDepth); got != 1 {
		t.Errorf("RedoDepth = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Memories); got != 7 {
		t.Errorf("Memories = %v, want 7", got)
	}
	if got := testutil.ToFloat64(c.Groups); got != 2 {
		t.Errorf("Groups = %v, want 2", got)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.SaveRequested()
	c.WriteFinished(1, errors.New("x"))
	c.LoadFailed()
	c.MigrationApplied("1")
	c.LegacyCopied()
	c.Mutation("x")
	c.HistoryDepth(1, 1)
	c.CollectionSize(1, 1)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil Handler status = %d, want 404", rec.Code)
	}
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("atlas")
	b := NewCollector("atlas")
	a.SaveRequested()

	if got := testutil.ToFloat64(b.Saves); got != 0 {
		t.Errorf("second collector Saves = %v, want 0", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("atlas")
	c.Mutation("undo")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `atlas_state_mutations_total{op="undo"} 1`) {
		t.Errorf("body missing mutation counter:\n%s", rec.Body.String())
	}
}
