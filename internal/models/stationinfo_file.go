package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// stationInfoColumn is a [start, end) byte range of the fixed-column
// station.info layout:
// (1x,a4,2x,a16,2x,i4,1x,i3,1x,i2,1x,i2,1x,i2,2x,i4,1x,i3,1x,i2,1x,i2,1x,i2,
//
//	2x,f7.4,2x,a5,2x,f7.4,2x,f7.4,2x,a20,2x,a20,2x,f5.2,2x,a20,2x,a15,2x,a5,2x,a20)
type stationInfoColumn struct {
	start, end int
}

var (
	colSite          = stationInfoColumn{1, 5}
	colName          = stationInfoColumn{7, 23}
	colSessionStart  = stationInfoColumn{25, 42}
	colSessionStop   = stationInfoColumn{44, 61}
	colAntennaHeight = stationInfoColumn{63, 70}
	colHeightCode    = stationInfoColumn{72, 77}
	colAntennaNorth  = stationInfoColumn{79, 86}
	colAntennaEast   = stationInfoColumn{88, 95}
	colReceiverType  = stationInfoColumn{97, 117}
	colReceiverVers  = stationInfoColumn{119, 139}
	colReceiverSwVer = stationInfoColumn{141, 146}
	colReceiverSN    = stationInfoColumn{148, 168}
	colAntennaType   = stationInfoColumn{170, 185}
	colDome          = stationInfoColumn{187, 192}
	colAntennaSN     = stationInfoColumn{194, 214}
)

func (c stationInfoColumn) from(line string) string {
	if c.start >= len(line) {
		return ""
	}
	end := c.end
	if end > len(line) {
		end = len(line)
	}
	return strings.TrimSpace(line[c.start:end])
}

// RawStationInfoRecord represents a single line from a station.info file.
// Used when previewing and importing intervals from a file.
type RawStationInfoRecord struct {
	Line          int
	Site          string
	Name          string
	SessionStart  string // "YYYY DDD HH MM SS"
	SessionStop   string // "9999 999 00 00 00" when open
	AntennaHeight string
	HeightCode    string
	AntennaNorth  string
	AntennaEast   string
	ReceiverType  string
	ReceiverVers  string
	ReceiverSwVer string
	ReceiverSN    string
	AntennaType   string
	Dome          string
	AntennaSN     string
}

// IsStationInfoData reports whether a station.info line carries a record.
// Comment lines start with '*'.
func IsStationInfoData(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && !strings.HasPrefix(trimmed, "*")
}

// ParseStationInfoLine splits a fixed-column station.info data line
func ParseStationInfoLine(line string, lineNo int) (*RawStationInfoRecord, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < colAntennaHeight.start {
		return nil, &ValidationError{
			Field:   "line",
			Value:   strconv.Itoa(lineNo),
			Message: fmt.Sprintf("line %d too short for station.info layout", lineNo),
		}
	}

	return &RawStationInfoRecord{
		Line:          lineNo,
		Site:          colSite.from(line),
		Name:          colName.from(line),
		SessionStart:  colSessionStart.from(line),
		SessionStop:   colSessionStop.from(line),
		AntennaHeight: colAntennaHeight.from(line),
		HeightCode:    colHeightCode.from(line),
		AntennaNorth:  colAntennaNorth.from(line),
		AntennaEast:   colAntennaEast.from(line),
		ReceiverType:  colReceiverType.from(line),
		ReceiverVers:  colReceiverVers.from(line),
		ReceiverSwVer: colReceiverSwVer.from(line),
		ReceiverSN:    colReceiverSN.from(line),
		AntennaType:   colAntennaType.from(line),
		Dome:          colDome.from(line),
		AntennaSN:     colAntennaSN.from(line),
	}, nil
}

// ToInterval converts the record to a StationInfoInterval of the given network.
// A session stop in year 9999 produces an open interval.
func (r *RawStationInfoRecord) ToInterval(networkCode string) (*StationInfoInterval, error) {
	if r.Site == "" {
		return nil, &ValidationError{
			Field:   "site",
			Value:   strconv.Itoa(r.Line),
			Message: fmt.Sprintf("line %d: missing site code", r.Line),
		}
	}

	start, open, err := parseSessionTime(r.SessionStart)
	if err != nil || open {
		return nil, &ValidationError{
			Field:   "session_start",
			Value:   r.SessionStart,
			Message: fmt.Sprintf("line %d: invalid session start, expected YYYY DDD HH MM SS", r.Line),
		}
	}

	interval := &StationInfoInterval{
		NetworkCode: strings.ToLower(networkCode),
		StationCode: strings.ToLower(r.Site),
		DateStart:   start,
		Equipment: Equipment{
			ReceiverCode:     r.ReceiverType,
			ReceiverSerial:   r.ReceiverSN,
			ReceiverFirmware: r.ReceiverVers,
			AntennaCode:      r.AntennaType,
			AntennaSerial:    r.AntennaSN,
			AntennaHeight:    Measure(r.AntennaHeight),
			AntennaNorth:     Measure(r.AntennaNorth),
			AntennaEast:      Measure(r.AntennaEast),
			HeightCode:       r.HeightCode,
			RadomeCode:       r.Dome,
		},
	}

	stop, open, err := parseSessionTime(r.SessionStop)
	if err != nil {
		return nil, &ValidationError{
			Field:   "session_stop",
			Value:   r.SessionStop,
			Message: fmt.Sprintf("line %d: invalid session stop, expected YYYY DDD HH MM SS", r.Line),
		}
	}
	if !open {
		if !stop.After(start) {
			return nil, &ValidationError{
				Field:   "session_stop",
				Value:   r.SessionStop,
				Message: fmt.Sprintf("line %d: session stop must be after session start", r.Line),
			}
		}
		interval.DateEnd = &stop
	}

	for _, m := range []Measure{interval.AntennaHeight, interval.AntennaNorth, interval.AntennaEast} {
		if _, ok := m.Float(); !ok {
			return nil, &ValidationError{
				Field:   "antenna_offset",
				Value:   string(m),
				Message: fmt.Sprintf("line %d: antenna height and offsets must be numeric", r.Line),
			}
		}
	}

	return interval, nil
}

// parseSessionTime parses "YYYY DDD HH MM SS". Year 9999 means open.
func parseSessionTime(s string) (time.Time, bool, error) {
	parts := strings.Fields(s)
	if len(parts) != 5 {
		return time.Time{}, false, fmt.Errorf("expected 5 fields, got %d", len(parts))
	}

	values := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("invalid field %q: %w", p, err)
		}
		values[i] = v
	}

	year, doy, hour, minute, second := values[0], values[1], values[2], values[3], values[4]
	if year == 9999 {
		return time.Time{}, true, nil
	}
	if doy < 1 || doy > 366 || hour > 23 || minute > 59 || second > 59 || hour < 0 || minute < 0 || second < 0 {
		return time.Time{}, false, fmt.Errorf("field out of range in %q", s)
	}

	t := time.Date(year, time.January, 1, hour, minute, second, 0, time.UTC).AddDate(0, 0, doy-1)
	return t, false, nil
}

// FormatStationInfoLine renders an interval in the station.info layout
func FormatStationInfoLine(s *StationInfoInterval, name string) string {
	stop := "9999 999 00 00 00"
	if s.DateEnd != nil {
		stop = formatSessionTime(*s.DateEnd)
	}

	height, _ := s.AntennaHeight.Float()
	north, _ := s.AntennaNorth.Float()
	east, _ := s.AntennaEast.Float()

	return fmt.Sprintf(" %-4.4s  %-16.16s  %s  %s  %7.4f  %-5.5s  %7.4f  %7.4f  %-20.20s  %-20.20s  %5.2f  %-20.20s  %-15.15s  %-5.5s  %-20.20s",
		strings.ToUpper(s.StationCode),
		name,
		formatSessionTime(s.DateStart),
		stop,
		height,
		s.HeightCode,
		north,
		east,
		s.ReceiverCode,
		s.ReceiverFirmware,
		0.0,
		s.ReceiverSerial,
		s.AntennaCode,
		s.RadomeCode,
		s.AntennaSerial,
	)
}

func formatSessionTime(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d %03d %02d %02d %02d", t.Year(), t.YearDay(), t.Hour(), t.Minute(), t.Second())
}
