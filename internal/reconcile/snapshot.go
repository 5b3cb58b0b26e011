package reconcile

import (
	"time"

	"station-review/internal/models"
)

// Snapshot is a point-in-time copy of a station's RINEX records and station
// info intervals. It is never mutated after it is built.
type Snapshot struct {
	Station   models.StationID
	Sequence  uint64
	FetchedAt time.Time
	Intervals []models.StationInfoInterval
	Rinex     []models.RinexObservation
}

// Derived is everything computed from a snapshot and a filter
type Derived struct {
	Index         *IntervalIndex
	Rows          []Row
	Filtered      []Row
	Groups        []Group
	Disagreements []Disagreement
}

// Derive annotates, cross-checks, filters and groups a snapshot
func Derive(s *Snapshot, f *Filter, policy UngovernedPolicy) Derived {
	idx := NewIntervalIndex(s.Intervals)
	rows := AnnotateAll(s.Rinex, idx)
	filtered := f.Apply(rows)

	return Derived{
		Index:         idx,
		Rows:          rows,
		Filtered:      filtered,
		Groups:        BuildGroups(filtered, policy),
		Disagreements: CrossCheck(rows),
	}
}
