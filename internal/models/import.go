package models

import (
	"fmt"
	"time"
)

// RecordKey identifies a station info record inside an import file
type RecordKey struct {
	NetworkCode string    `json:"network_code"`
	StationCode string    `json:"station_code"`
	DateStart   time.Time `json:"date_start"`
}

// String returns a stable textual form of the key
func (k RecordKey) String() string {
	return fmt.Sprintf("%s.%s@%s", k.NetworkCode, k.StationCode, k.DateStart.UTC().Format(time.RFC3339))
}

// RecordError is a per-record failure reported by an import
type RecordError struct {
	RecordKey
	Error string `json:"error"`
}

// ImportResult reports per-record outcomes of a station info import
type ImportResult struct {
	Created []StationInfoInterval `json:"created"`
	Errors  []RecordError         `json:"errors"`
}

// Failed reports whether any record failed
func (r *ImportResult) Failed() bool {
	return len(r.Errors) > 0
}
