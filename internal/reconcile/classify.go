package reconcile

import (
	"station-review/internal/models"
)

// Classification is the relationship of one RINEX window to the interval index
type Classification struct {
	GapType models.GapType

	// Governing holds the single covering interval for GapNone, or every
	// overlapping interval for GapMultipleOverlap
	Governing []*models.StationInfoInterval

	Preceding *models.StationInfoInterval
	Following *models.StationInfoInterval
}

// HasStationInfo reports whether exactly one interval covers the window
func (c Classification) HasStationInfo() bool {
	return c.GapType == models.GapNone
}

// GoverningIDs returns the ids of the governing intervals
func (c Classification) GoverningIDs() []int64 {
	ids := make([]int64, 0, len(c.Governing))
	for _, iv := range c.Governing {
		ids = append(ids, iv.ID)
	}
	return ids
}

// Classify computes exactly one gap type for a RINEX record:
//
//  1. two or more overlapping intervals: MULTIPLE_OVERLAP
//  2. exactly one (full or partial cover): NONE
//  3. empty index: NO_INFO
//  4. nothing before the window: BEFORE_FIRST
//  5. nothing after the window: AFTER_LAST
//  6. otherwise: BETWEEN_TWO
func Classify(r *models.RinexObservation, idx *IntervalIndex) Classification {
	return ClassifyWindow(WindowOf(r), idx)
}

// ClassifyWindow classifies a bare time window
func ClassifyWindow(w Window, idx *IntervalIndex) Classification {
	q := idx.Query(w)
	c := Classification{
		Preceding: q.Preceding,
		Following: q.Following,
	}

	switch {
	case len(q.Overlapping) >= 2:
		c.GapType = models.GapMultipleOverlap
		c.Governing = q.Overlapping
	case len(q.Overlapping) == 1:
		c.GapType = models.GapNone
		c.Governing = q.Overlapping
	case idx.Len() == 0:
		c.GapType = models.GapNoInfo
	case q.Preceding == nil:
		c.GapType = models.GapBeforeFirst
	case q.Following == nil:
		c.GapType = models.GapAfterLast
	default:
		c.GapType = models.GapBetweenTwo
	}

	return c
}
