package models

import (
	"time"
)

// StationInfoInterval is a metadata validity interval: the receiver/antenna
// configuration believed active at a station between DateStart and DateEnd.
// A nil DateEnd means the interval is still open.
type StationInfoInterval struct {
	ID          int64      `json:"id" db:"id"`
	NetworkCode string     `json:"network_code" db:"network_code"`
	StationCode string     `json:"station_code" db:"station_code"`
	DateStart   time.Time  `json:"date_start" db:"date_start"`
	DateEnd     *time.Time `json:"date_end" db:"date_end"`
	Equipment
	Comments string `json:"comments,omitempty" db:"comments"`
}

// Station returns the owning station
func (s *StationInfoInterval) Station() StationID {
	return StationID{NetworkCode: s.NetworkCode, StationCode: s.StationCode}
}

// IsOpen reports whether the interval extends to +infinity
func (s *StationInfoInterval) IsOpen() bool {
	return s.DateEnd == nil
}

// Key returns the record identity used by the import endpoint
func (s *StationInfoInterval) Key() RecordKey {
	return RecordKey{
		NetworkCode: s.NetworkCode,
		StationCode: s.StationCode,
		DateStart:   s.DateStart.UTC(),
	}
}

// Boundary names the end of an interval a repair action moves
type Boundary string

const (
	BoundaryStart Boundary = "start"
	BoundaryEnd   Boundary = "end"
)

// Valid reports whether b is a known boundary
func (b Boundary) Valid() bool {
	return b == BoundaryStart || b == BoundaryEnd
}

// IntervalPage is one page of the station info listing
type IntervalPage struct {
	Data       []StationInfoInterval `json:"data"`
	TotalCount int                   `json:"total_count"`
}
