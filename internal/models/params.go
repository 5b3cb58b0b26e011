package models

import (
	"net/url"
	"strconv"
	"strings"
)

// FilterParams carries the raw, unvalidated filter inputs of the review screen.
// An empty field means "no constraint".
type FilterParams struct {
	ReceiverCode     string `json:"receiver_code,omitempty"`
	ReceiverSerial   string `json:"receiver_serial,omitempty"`
	ReceiverFirmware string `json:"receiver_firmware,omitempty"`
	AntennaCode      string `json:"antenna_code,omitempty"`
	AntennaSerial    string `json:"antenna_serial,omitempty"`
	AntennaHeight    string `json:"antenna_height,omitempty"`
	AntennaNorth     string `json:"antenna_north,omitempty"`
	AntennaEast      string `json:"antenna_east,omitempty"`
	HeightCode       string `json:"height_code,omitempty"`
	RadomeCode       string `json:"radome_code,omitempty"`
	Filename         string `json:"filename,omitempty"`

	// MatchMode is "exact" (default) or "contains"
	MatchMode string `json:"match_mode,omitempty"`

	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`

	Year    string `json:"observation_year,omitempty"`
	YearOp  string `json:"observation_year_op,omitempty"`
	DOY     string `json:"observation_doy,omitempty"`
	DOYOp   string `json:"observation_doy_op,omitempty"`
	FYear   string `json:"observation_f_year,omitempty"`
	FYearOp string `json:"observation_f_year_op,omitempty"`

	Completion   string `json:"completion,omitempty"`
	CompletionOp string `json:"completion_op,omitempty"`

	// GapTypes is a comma separated list of gap types
	GapTypes     string `json:"gap_types,omitempty"`
	MismatchOnly string `json:"mismatch_only,omitempty"`
}

// fields maps query keys to the fields they fill
func (p *FilterParams) fields() map[string]*string {
	return map[string]*string{
		FieldReceiverCode:       &p.ReceiverCode,
		FieldReceiverSerial:     &p.ReceiverSerial,
		FieldReceiverFirmware:   &p.ReceiverFirmware,
		FieldAntennaCode:        &p.AntennaCode,
		FieldAntennaSerial:      &p.AntennaSerial,
		FieldAntennaHeight:      &p.AntennaHeight,
		FieldAntennaNorth:       &p.AntennaNorth,
		FieldAntennaEast:        &p.AntennaEast,
		FieldHeightCode:         &p.HeightCode,
		FieldRadomeCode:         &p.RadomeCode,
		"filename":              &p.Filename,
		"match_mode":            &p.MatchMode,
		"date_from":             &p.DateFrom,
		"date_to":               &p.DateTo,
		"observation_year":      &p.Year,
		"observation_year_op":   &p.YearOp,
		"observation_doy":       &p.DOY,
		"observation_doy_op":    &p.DOYOp,
		"observation_f_year":    &p.FYear,
		"observation_f_year_op": &p.FYearOp,
		"completion":            &p.Completion,
		"completion_op":         &p.CompletionOp,
		"gap_types":             &p.GapTypes,
		"mismatch_only":         &p.MismatchOnly,
	}
}

// FilterParamsFromQuery reads filter inputs from URL query values
func FilterParamsFromQuery(q url.Values) FilterParams {
	var p FilterParams
	for key, dst := range p.fields() {
		*dst = strings.TrimSpace(q.Get(key))
	}
	return p
}

// Values encodes the non-empty params as URL query values
func (p FilterParams) Values() url.Values {
	q := url.Values{}
	for key, src := range p.fields() {
		if *src != "" {
			q.Set(key, *src)
		}
	}
	return q
}

// IsEmpty reports whether no constraint is set
func (p FilterParams) IsEmpty() bool {
	return len(p.Values()) == 0
}

// PageParams are the limit/offset parameters of paged service listings.
// Limit 0 means unlimited.
type PageParams struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Values encodes the params as URL query values
func (p PageParams) Values() url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("offset", strconv.Itoa(p.Offset))
	return q
}

// Validate rejects negative limits or offsets
func (p PageParams) Validate() error {
	if p.Limit < 0 {
		return &ValidationError{Field: "limit", Value: strconv.Itoa(p.Limit), Message: "limit must be >= 0"}
	}
	if p.Offset < 0 {
		return &ValidationError{Field: "offset", Value: strconv.Itoa(p.Offset), Message: "offset must be >= 0"}
	}
	return nil
}
