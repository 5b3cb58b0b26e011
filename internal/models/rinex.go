package models

import (
	"strings"
	"time"
)

// GapType classifies a RINEX observation against the station info intervals
type GapType string

const (
	GapNone            GapType = "NONE"
	GapBeforeFirst     GapType = "BEFORE_FIRST"
	GapBetweenTwo      GapType = "BETWEEN_TWO"
	GapAfterLast       GapType = "AFTER_LAST"
	GapNoInfo          GapType = "NO_INFO"
	GapMultipleOverlap GapType = "MULTIPLE_OVERLAP"
)

// GapTypes lists every classification
var GapTypes = []GapType{
	GapNone,
	GapBeforeFirst,
	GapBetweenTwo,
	GapAfterLast,
	GapNoInfo,
	GapMultipleOverlap,
}

// ParseGapType accepts the server spellings ("between_two", "BETWEEN_TWO")
func ParseGapType(s string) (GapType, bool) {
	g := GapType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range GapTypes {
		if g == known {
			return g, true
		}
	}
	return "", false
}

// RinexObservation is one GNSS observation file record
type RinexObservation struct {
	ID               int64     `json:"id" db:"id"`
	NetworkCode      string    `json:"network_code" db:"network_code"`
	StationCode      string    `json:"station_code" db:"station_code"`
	Filename         string    `json:"filename" db:"filename"`
	ObservationSTime time.Time `json:"observation_s_time" db:"observation_s_time"`
	ObservationETime time.Time `json:"observation_e_time" db:"observation_e_time"`
	ObservationYear  int       `json:"observation_year" db:"observation_year"`
	ObservationDOY   int       `json:"observation_doy" db:"observation_doy"`
	ObservationFYear float64   `json:"observation_f_year" db:"observation_f_year"`
	Completion       float64   `json:"completion" db:"completion"`
	Equipment
	ReportedStatus
}

// ReportedStatus is the classification the metadata service computed for a
// RINEX record. Fields are empty when the source does not report them.
type ReportedStatus struct {
	HasStationInfo   *bool    `json:"has_station_info,omitempty" db:"-"`
	GapType          string   `json:"gap_type,omitempty" db:"-"`
	MetadataMismatch []string `json:"metadata_mismatch,omitempty" db:"-"`
}

// Reported reports whether the source sent a classification
func (r ReportedStatus) Reported() bool {
	return r.HasStationInfo != nil || r.GapType != ""
}

// Station returns the owning station
func (r *RinexObservation) Station() StationID {
	return StationID{NetworkCode: r.NetworkCode, StationCode: r.StationCode}
}

// Window returns the observation window. An end before the start collapses
// the window to the start instant.
func (r *RinexObservation) Window() (time.Time, time.Time) {
	start, end := r.ObservationSTime, r.ObservationETime
	if end.Before(start) {
		end = start
	}
	return start, end
}
