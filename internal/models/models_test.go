package models

import (
	"encoding/json"
	"errors"
	"net/url"
	"testing"
)

func TestMeasure_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Measure
	}{
		{name: "number", input: `0.0`, want: "0.0"},
		{name: "integer", input: `1`, want: "1"},
		{name: "string", input: `"0.1230"`, want: "0.1230"},
		{name: "null", input: `null`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Measure
			if err := json.Unmarshal([]byte(tt.input), &m); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if m != tt.want {
				t.Errorf("Measure = %q, want %q", m, tt.want)
			}
		})
	}
}

func TestMeasure_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A Measure `json:"a"`
		B Measure `json:"b"`
	}{A: "0.0080", B: "n/a"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"a":0.0080,"b":"n/a"}` {
		t.Errorf("Marshal() = %s", data)
	}
}

func TestParseStationID(t *testing.T) {
	id, err := ParseStationID("IGS.Braz")
	if err != nil {
		t.Fatalf("ParseStationID() error = %v", err)
	}
	if id.String() != "igs.braz" {
		t.Errorf("String() = %q, want %q", id.String(), "igs.braz")
	}

	for _, bad := range []string{"", "igs", ".braz", "igs.", "a.b.c"} {
		if _, err := ParseStationID(bad); err == nil {
			t.Errorf("ParseStationID(%q) expected error", bad)
		}
	}
}

func TestParseGapType(t *testing.T) {
	if g, ok := ParseGapType("between_two"); !ok || g != GapBetweenTwo {
		t.Errorf("ParseGapType(between_two) = %v, %v", g, ok)
	}
	if _, ok := ParseGapType("sideways"); ok {
		t.Error("ParseGapType(sideways) should fail")
	}
}

func TestFilterParams_QueryRoundTrip(t *testing.T) {
	q := url.Values{}
	q.Set("antenna_code", " TRM41249.00 ")
	q.Set("completion", "0.9")
	q.Set("completion_op", "GREATER_THAN")

	p := FilterParamsFromQuery(q)
	if p.AntennaCode != "TRM41249.00" {
		t.Errorf("AntennaCode = %q", p.AntennaCode)
	}
	if p.IsEmpty() {
		t.Error("params should not be empty")
	}

	values := p.Values()
	if values.Get("completion_op") != "GREATER_THAN" || len(values) != 3 {
		t.Errorf("Values() = %v", values)
	}

	if !(FilterParams{}).IsEmpty() {
		t.Error("zero params should be empty")
	}
}

// TestErrors tests error classification
func TestErrors(t *testing.T) {
	vErr := &ValidationError{Field: "completion", Value: "abc", Message: "must be numeric"}
	if vErr.Error() != "completion: must be numeric" {
		t.Errorf("Error() = %v", vErr.Error())
	}
	if vErr.IsTransient() {
		t.Error("ValidationError should not be transient")
	}

	cause := errors.New("connection refused")
	fErr := &FetchError{Station: "igs.braz", Op: "rinex", Err: cause}
	if !errors.Is(fErr, cause) {
		t.Error("FetchError should unwrap to its cause")
	}
	if !fErr.IsTransient() {
		t.Error("FetchError should be transient")
	}

	rErr := &RepairActionError{IntervalID: 4, Fields: map[string][]string{
		"date_end":   {"overlaps station info 5"},
		"date_start": {"required"},
	}}
	want := "station info 4 rejected: date_end: overlaps station info 5, date_start: required"
	if rErr.Error() != want {
		t.Errorf("Error() = %q, want %q", rErr.Error(), want)
	}

	pErr := &PartialImportError{Created: 2, Failed: []RecordError{{Error: "overlap"}}}
	if pErr.Error() != "import partially failed: 2 created, 1 failed" {
		t.Errorf("Error() = %q", pErr.Error())
	}
}
