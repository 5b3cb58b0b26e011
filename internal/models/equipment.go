package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Equipment holds the receiver/antenna configuration shared by RINEX headers
// and station info intervals
type Equipment struct {
	ReceiverCode     string  `json:"receiver_code" db:"receiver_code"`
	ReceiverSerial   string  `json:"receiver_serial" db:"receiver_serial"`
	ReceiverFirmware string  `json:"receiver_firmware" db:"receiver_firmware"`
	AntennaCode      string  `json:"antenna_code" db:"antenna_code"`
	AntennaSerial    string  `json:"antenna_serial" db:"antenna_serial"`
	AntennaHeight    Measure `json:"antenna_height" db:"antenna_height"`
	AntennaNorth     Measure `json:"antenna_north" db:"antenna_north"`
	AntennaEast      Measure `json:"antenna_east" db:"antenna_east"`
	HeightCode       string  `json:"height_code" db:"height_code"`
	RadomeCode       string  `json:"radome_code" db:"radome_code"`
}

// Equipment field names, as reported in metadata_mismatch
const (
	FieldReceiverCode     = "receiver_code"
	FieldReceiverSerial   = "receiver_serial"
	FieldReceiverFirmware = "receiver_firmware"
	FieldAntennaCode      = "antenna_code"
	FieldAntennaSerial    = "antenna_serial"
	FieldAntennaHeight    = "antenna_height"
	FieldAntennaNorth     = "antenna_north"
	FieldAntennaEast      = "antenna_east"
	FieldHeightCode       = "height_code"
	FieldRadomeCode       = "radome_code"
)

// EquipmentFields lists every equipment field in display order
var EquipmentFields = []string{
	FieldReceiverCode,
	FieldReceiverSerial,
	FieldReceiverFirmware,
	FieldAntennaCode,
	FieldAntennaSerial,
	FieldAntennaHeight,
	FieldAntennaNorth,
	FieldAntennaEast,
	FieldHeightCode,
	FieldRadomeCode,
}

// Text returns the textual value of a string equipment field and whether the
// field exists. Measure fields are returned in their raw form.
func (e Equipment) Text(field string) (string, bool) {
	switch field {
	case FieldReceiverCode:
		return e.ReceiverCode, true
	case FieldReceiverSerial:
		return e.ReceiverSerial, true
	case FieldReceiverFirmware:
		return e.ReceiverFirmware, true
	case FieldAntennaCode:
		return e.AntennaCode, true
	case FieldAntennaSerial:
		return e.AntennaSerial, true
	case FieldAntennaHeight:
		return string(e.AntennaHeight), true
	case FieldAntennaNorth:
		return string(e.AntennaNorth), true
	case FieldAntennaEast:
		return string(e.AntennaEast), true
	case FieldHeightCode:
		return e.HeightCode, true
	case FieldRadomeCode:
		return e.RadomeCode, true
	default:
		return "", false
	}
}

// Measure is a numeric equipment value (antenna height or offset) kept in the
// textual form it arrived in. The metadata service sends these either as JSON
// numbers or as strings, and RINEX headers format them freely ("0", "0.0000").
type Measure string

// Float parses the measure. Empty or malformed values report ok=false.
func (m Measure) Float() (float64, bool) {
	s := strings.TrimSpace(string(m))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// UnmarshalJSON accepts a number, a string or null
func (m *Measure) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Measure(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*m = Measure(n.String())
	return nil
}

// MarshalJSON emits a JSON number when the measure parses, otherwise a string
func (m Measure) MarshalJSON() ([]byte, error) {
	raw := []byte(strings.TrimSpace(string(m)))
	if _, ok := m.Float(); ok && json.Valid(raw) {
		return raw, nil
	}
	return json.Marshal(string(m))
}
