package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("station_review", reg)

	c.RecordRepairAction("extend-up", "applied")
	c.RecordRepairAction("extend-up", "applied")
	c.RecordRepairAction("extend-down", "rejected")
	c.RecordImport(3, 1)
	c.RecordClassifications(map[string]int{"NONE": 30, "BETWEEN_TWO": 7})

	if got := testutil.ToFloat64(c.RepairActionsTotal.WithLabelValues("extend-up", "applied")); got != 2 {
		t.Errorf("extend-up applied = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.ImportRecordsTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed imports = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ClassificationsTotal.WithLabelValues("BETWEEN_TWO")); got != 7 {
		t.Errorf("BETWEEN_TWO = %v, want 7", got)
	}
}

func TestCollector_SeparateRegistries(t *testing.T) {
	// registering twice on distinct registries must not panic
	a := NewCollector("station_review", prometheus.NewRegistry())
	b := NewCollector("station_review", prometheus.NewRegistry())

	a.StaleResponsesTotal.Inc()
	if got := testutil.ToFloat64(b.StaleResponsesTotal); got != 0 {
		t.Errorf("collectors share state: %v", got)
	}
}

func TestCollector_Gauges(t *testing.T) {
	c := NewCollector("station_review", prometheus.NewRegistry())

	c.UpdateDBConnectionPool(2, 3, 5)
	c.RecordSnapshot(40, 2)

	if got := testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("total")); got != 5 {
		t.Errorf("pool total = %v, want 5", got)
	}
	if got := testutil.ToFloat64(c.SnapshotRows.WithLabelValues("rinex")); got != 40 {
		t.Errorf("rinex rows = %v, want 40", got)
	}
}

func TestTimer_ObserveDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("station_review", reg)

	timer := c.NewTimer(c.DeriveDuration)
	if d := timer.ObserveDuration(); d < 0 {
		t.Errorf("negative duration %v", d)
	}
	if n := testutil.CollectAndCount(c.DeriveDuration); n != 1 {
		t.Errorf("derive histogram series = %d, want 1", n)
	}
}
