package reconcile

import (
	"slices"
	"sort"
	"time"

	"station-review/internal/models"
)

// Window is a closed observation time window
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowOf returns the observation window of a RINEX record
func WindowOf(r *models.RinexObservation) Window {
	start, end := r.Window()
	return Window{Start: start, End: end}
}

// IntervalIndex is a station's station info intervals sorted by date_start.
// Intervals are half-open [date_start, date_end); a nil date_end is +infinity.
type IntervalIndex struct {
	intervals []models.StationInfoInterval

	// maxEndIdx[i] is the index of the interval with the latest end among
	// intervals[0..i]. Used to stop backward scans early.
	maxEndIdx []int
}

// QueryResult is every interval related to a window
type QueryResult struct {
	Overlapping []*models.StationInfoInterval
	Preceding   *models.StationInfoInterval
	Following   *models.StationInfoInterval
}

// NewIntervalIndex builds the index. The input slice is copied; an empty set
// is valid.
func NewIntervalIndex(intervals []models.StationInfoInterval) *IntervalIndex {
	sorted := slices.Clone(intervals)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].DateStart.Equal(sorted[j].DateStart) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].DateStart.Before(sorted[j].DateStart)
	})

	maxEndIdx := make([]int, len(sorted))
	for i := range sorted {
		maxEndIdx[i] = i
		if i > 0 && !endsAfter(&sorted[i], &sorted[maxEndIdx[i-1]]) {
			maxEndIdx[i] = maxEndIdx[i-1]
		}
	}

	return &IntervalIndex{intervals: sorted, maxEndIdx: maxEndIdx}
}

// Len returns the number of intervals
func (x *IntervalIndex) Len() int {
	return len(x.intervals)
}

// Intervals returns the sorted intervals
func (x *IntervalIndex) Intervals() []models.StationInfoInterval {
	return x.intervals
}

// Get returns the interval with the given id
func (x *IntervalIndex) Get(id int64) (*models.StationInfoInterval, bool) {
	for i := range x.intervals {
		if x.intervals[i].ID == id {
			return &x.intervals[i], true
		}
	}
	return nil, false
}

// Query returns the intervals overlapping w in date_start order, plus the
// nearest interval ending at or before w.Start and the nearest interval
// starting after w.End.
func (x *IntervalIndex) Query(w Window) QueryResult {
	var res QueryResult

	// first interval starting strictly after the window
	after := sort.Search(len(x.intervals), func(i int) bool {
		return x.intervals[i].DateStart.After(w.End)
	})
	if after < len(x.intervals) {
		res.Following = &x.intervals[after]
	}

	for i := after - 1; i >= 0; i-- {
		latest := &x.intervals[x.maxEndIdx[i]]
		if !endsAfterTime(latest, w.Start) {
			// nothing at or before i reaches into the window
			res.Preceding = nearerPreceding(res.Preceding, latest)
			break
		}

		iv := &x.intervals[i]
		if endsAfterTime(iv, w.Start) {
			res.Overlapping = append(res.Overlapping, iv)
		} else {
			res.Preceding = nearerPreceding(res.Preceding, iv)
		}
	}

	slices.Reverse(res.Overlapping)
	return res
}

// endsAfterTime reports whether iv extends past t
func endsAfterTime(iv *models.StationInfoInterval, t time.Time) bool {
	return iv.DateEnd == nil || iv.DateEnd.After(t)
}

// endsAfter reports whether a ends strictly later than b
func endsAfter(a, b *models.StationInfoInterval) bool {
	switch {
	case b.DateEnd == nil:
		return false
	case a.DateEnd == nil:
		return true
	default:
		return a.DateEnd.After(*b.DateEnd)
	}
}

func nearerPreceding(current, candidate *models.StationInfoInterval) *models.StationInfoInterval {
	if current == nil || endsAfter(candidate, current) {
		return candidate
	}
	return current
}
