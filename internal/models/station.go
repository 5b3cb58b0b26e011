package models

import (
	"fmt"
	"strings"
)

// StationID identifies a GNSS station as network.station, e.g. "igs.braz"
type StationID struct {
	NetworkCode string `json:"network_code" db:"network_code"`
	StationCode string `json:"station_code" db:"station_code"`
}

// ParseStationID parses the "network.station" form used in URLs and CLI flags
func ParseStationID(s string) (StationID, error) {
	network, station, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || network == "" || station == "" || strings.Contains(station, ".") {
		return StationID{}, &ValidationError{
			Field:   "station",
			Value:   s,
			Message: "invalid station identifier, expected network.station",
		}
	}

	return StationID{
		NetworkCode: strings.ToLower(network),
		StationCode: strings.ToLower(station),
	}, nil
}

// String returns the network.station form
func (s StationID) String() string {
	return fmt.Sprintf("%s.%s", s.NetworkCode, s.StationCode)
}
