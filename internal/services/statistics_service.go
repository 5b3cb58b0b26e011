package services

import (
	"context"

	"station-review/internal/models"
	"station-review/internal/reconcile"
	"station-review/pkg/logging"
	"station-review/pkg/metrics"
)

// ReviewSummary counts what a review view contains
type ReviewSummary struct {
	TotalRows      int                    `json:"total_rows"`
	FilteredRows   int                    `json:"filtered_rows"`
	ByGapType      map[models.GapType]int `json:"by_gap_type"`
	MismatchedRows int                    `json:"mismatched_rows"`
	UncoveredRows  int                    `json:"uncovered_rows"`
	Groups         int                    `json:"groups"`
	Subgroups      int                    `json:"subgroups"`
	Intervals      int                    `json:"intervals"`
	Disagreements  int                    `json:"disagreements"`
}

// StatisticsService computes review summaries
type StatisticsService struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *StatisticsService {
	return &StatisticsService{
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Summarize counts rows by gap type over the whole snapshot and groups over
// the filtered result
func (s *StatisticsService) Summarize(d reconcile.Derived) ReviewSummary {
	summary := ReviewSummary{
		TotalRows:     len(d.Rows),
		FilteredRows:  len(d.Filtered),
		ByGapType:     make(map[models.GapType]int, len(models.GapTypes)),
		Groups:        len(d.Groups),
		Disagreements: len(d.Disagreements),
	}
	if d.Index != nil {
		summary.Intervals = d.Index.Len()
	}

	for _, g := range models.GapTypes {
		summary.ByGapType[g] = 0
	}
	for i := range d.Rows {
		a := &d.Rows[i].Annotation
		summary.ByGapType[a.GapType]++
		if len(a.MetadataMismatch) > 0 {
			summary.MismatchedRows++
		}
		if !a.HasStationInfo {
			summary.UncoveredRows++
		}
	}
	for i := range d.Groups {
		summary.Subgroups += len(d.Groups[i].Subgroups)
	}

	return summary
}

// Record adds a freshly derived snapshot's classifications to the metrics
func (s *StatisticsService) Record(ctx context.Context, d reconcile.Derived) {
	counts := make(map[string]int)
	for i := range d.Rows {
		counts[string(d.Rows[i].Annotation.GapType)]++
	}
	s.metrics.RecordClassifications(counts)

	s.logger.Debug(ctx, "[STATS_RECORD] Classifications recorded", logging.Fields{
		"rows":        len(d.Rows),
		"by_gap_type": counts,
	})
}
