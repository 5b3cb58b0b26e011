package reconcile

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"station-review/internal/models"
)

var filterValidate = validator.New(validator.WithRequiredStructEnabled())

// CompareOp is a numeric comparison operator
type CompareOp string

const (
	LessThan    CompareOp = "LESS_THAN"
	GreaterThan CompareOp = "GREATER_THAN"
	Equal       CompareOp = "EQUAL"
)

// numericEpsilon bounds EQUAL comparisons on fractional values
const numericEpsilon = 1e-9

// Compare applies the operator to v against threshold
func (op CompareOp) Compare(v, threshold float64) bool {
	switch op {
	case LessThan:
		return v < threshold
	case GreaterThan:
		return v > threshold
	case Equal:
		return math.Abs(v-threshold) <= numericEpsilon
	default:
		return false
	}
}

// FieldMatch matches a text column exactly or by substring
type FieldMatch struct {
	Field     string `json:"field" validate:"required,oneof=receiver_code receiver_serial receiver_firmware antenna_code antenna_serial antenna_height antenna_north antenna_east height_code radome_code filename"`
	Value     string `json:"value" validate:"required"`
	Substring bool   `json:"substring"`
}

// NumericPredicate compares a numeric column against a value
type NumericPredicate struct {
	Op    CompareOp `json:"op" validate:"required,oneof=LESS_THAN GREATER_THAN EQUAL"`
	Value float64   `json:"value"`
}

// CompletionPredicate compares completion against a threshold in [0, 1]
type CompletionPredicate struct {
	Op        CompareOp `json:"op" validate:"required,oneof=LESS_THAN GREATER_THAN EQUAL"`
	Threshold float64   `json:"threshold" validate:"gte=0,lte=1"`
}

// Filter is a conjunction of optional row predicates. The zero value keeps
// every row. ToExclusive is set when To is the midnight after a date-only
// upper bound.
type Filter struct {
	Fields       []FieldMatch         `json:"fields,omitempty" validate:"dive"`
	From         *time.Time           `json:"from,omitempty"`
	To           *time.Time           `json:"to,omitempty"`
	ToExclusive  bool                 `json:"to_exclusive,omitempty"`
	Year         *NumericPredicate    `json:"year,omitempty"`
	DOY          *NumericPredicate    `json:"doy,omitempty"`
	FYear        *NumericPredicate    `json:"f_year,omitempty"`
	Completion   *CompletionPredicate `json:"completion,omitempty"`
	GapTypes     []models.GapType     `json:"gap_types,omitempty" validate:"dive,oneof=NONE BEFORE_FIRST BETWEEN_TWO AFTER_LAST NO_INFO MULTIPLE_OVERLAP"`
	MismatchOnly bool                 `json:"mismatch_only,omitempty"`
}

// Validate checks operators, ranges and field names
func (f *Filter) Validate() error {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return &models.ValidationError{
			Field:   "date_to",
			Value:   f.To.Format(time.RFC3339),
			Message: "end of time window is before its start",
		}
	}

	if err := filterValidate.Struct(f); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &models.ValidationError{
				Field:   fe.Namespace(),
				Value:   fmt.Sprint(fe.Value()),
				Message: fmt.Sprintf("failed %s validation", fe.Tag()),
			}
		}
		return &models.ValidationError{Message: err.Error()}
	}
	return nil
}

// IsEmpty reports whether the filter has no active predicate
func (f *Filter) IsEmpty() bool {
	return len(f.Fields) == 0 && f.From == nil && f.To == nil &&
		f.Year == nil && f.DOY == nil && f.FYear == nil &&
		f.Completion == nil && len(f.GapTypes) == 0 && !f.MismatchOnly
}

// Match reports whether a row passes every active predicate
func (f *Filter) Match(row *Row) bool {
	r := &row.Rinex

	for _, fm := range f.Fields {
		if !fm.match(r) {
			return false
		}
	}

	start, end := r.Window()
	if f.From != nil && start.Before(*f.From) {
		return false
	}
	if f.To != nil && (end.After(*f.To) || f.ToExclusive && end.Equal(*f.To)) {
		return false
	}

	if f.Year != nil && !f.Year.Op.Compare(float64(r.ObservationYear), f.Year.Value) {
		return false
	}
	if f.DOY != nil && !f.DOY.Op.Compare(float64(r.ObservationDOY), f.DOY.Value) {
		return false
	}
	if f.FYear != nil && !f.FYear.Op.Compare(r.ObservationFYear, f.FYear.Value) {
		return false
	}
	if f.Completion != nil && !f.Completion.Op.Compare(r.Completion, f.Completion.Threshold) {
		return false
	}

	if len(f.GapTypes) > 0 {
		found := false
		for _, g := range f.GapTypes {
			if g == row.Annotation.GapType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.MismatchOnly && len(row.Annotation.MetadataMismatch) == 0 {
		return false
	}

	return true
}

// Apply returns the rows passing the filter, in input order
func (f *Filter) Apply(rows []Row) []Row {
	if f == nil || f.IsEmpty() {
		return rows
	}

	out := make([]Row, 0, len(rows))
	for i := range rows {
		if f.Match(&rows[i]) {
			out = append(out, rows[i])
		}
	}
	return out
}

func (fm FieldMatch) match(r *models.RinexObservation) bool {
	var value string
	if fm.Field == "filename" {
		value = r.Filename
	} else {
		value, _ = r.Equipment.Text(fm.Field)
	}

	if fm.Substring {
		return strings.Contains(value, fm.Value)
	}
	return value == fm.Value
}

// ParseFilter validates raw filter inputs. Non-numeric values in numeric-only
// fields, unknown operators and out-of-range thresholds are returned as
// *models.ValidationError and block the filter.
func ParseFilter(p models.FilterParams) (Filter, error) {
	var f Filter

	substring := false
	switch strings.ToLower(p.MatchMode) {
	case "", "exact":
	case "contains", "substring":
		substring = true
	default:
		return Filter{}, &models.ValidationError{Field: "match_mode", Value: p.MatchMode, Message: "expected exact or contains"}
	}

	text := []struct {
		field, value string
	}{
		{models.FieldReceiverCode, p.ReceiverCode},
		{models.FieldReceiverSerial, p.ReceiverSerial},
		{models.FieldReceiverFirmware, p.ReceiverFirmware},
		{models.FieldAntennaCode, p.AntennaCode},
		{models.FieldAntennaSerial, p.AntennaSerial},
		{models.FieldAntennaHeight, p.AntennaHeight},
		{models.FieldAntennaNorth, p.AntennaNorth},
		{models.FieldAntennaEast, p.AntennaEast},
		{models.FieldHeightCode, p.HeightCode},
		{models.FieldRadomeCode, p.RadomeCode},
		{"filename", p.Filename},
	}
	for _, t := range text {
		if t.value != "" {
			f.Fields = append(f.Fields, FieldMatch{Field: t.field, Value: t.value, Substring: substring})
		}
	}

	var err error
	if f.From, _, err = parseFilterTime("date_from", p.DateFrom); err != nil {
		return Filter{}, err
	}
	var dateOnly bool
	if f.To, dateOnly, err = parseFilterTime("date_to", p.DateTo); err != nil {
		return Filter{}, err
	}
	if dateOnly {
		// a bare date as upper bound covers that whole day
		next := f.To.AddDate(0, 0, 1)
		f.To = &next
		f.ToExclusive = true
	}

	if f.Year, err = parseNumeric("observation_year", p.Year, p.YearOp, true); err != nil {
		return Filter{}, err
	}
	if f.DOY, err = parseNumeric("observation_doy", p.DOY, p.DOYOp, true); err != nil {
		return Filter{}, err
	}
	if f.FYear, err = parseNumeric("observation_f_year", p.FYear, p.FYearOp, false); err != nil {
		return Filter{}, err
	}

	completion, err := parseNumeric("completion", p.Completion, p.CompletionOp, false)
	if err != nil {
		return Filter{}, err
	}
	if completion != nil {
		f.Completion = &CompletionPredicate{Op: completion.Op, Threshold: completion.Value}
	}

	if p.GapTypes != "" {
		for _, raw := range strings.Split(p.GapTypes, ",") {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			g, ok := models.ParseGapType(raw)
			if !ok {
				return Filter{}, &models.ValidationError{Field: "gap_types", Value: raw, Message: "unknown gap type"}
			}
			f.GapTypes = append(f.GapTypes, g)
		}
	}

	if p.MismatchOnly != "" {
		b, err := strconv.ParseBool(p.MismatchOnly)
		if err != nil {
			return Filter{}, &models.ValidationError{Field: "mismatch_only", Value: p.MismatchOnly, Message: "must be a boolean"}
		}
		f.MismatchOnly = b
	}

	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// parseNumeric parses a value/operator pair. The operator defaults to EQUAL.
func parseNumeric(field, value, op string, integer bool) (*NumericPredicate, error) {
	if value == "" {
		if op != "" {
			return nil, &models.ValidationError{Field: field, Value: op, Message: "operator given without a value"}
		}
		return nil, nil
	}

	var v float64
	if integer {
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, &models.ValidationError{Field: field, Value: value, Message: "must be an integer"}
		}
		v = float64(n)
	} else {
		n, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, &models.ValidationError{Field: field, Value: value, Message: "must be numeric"}
		}
		v = n
	}

	if op == "" {
		op = string(Equal)
	}
	return &NumericPredicate{Op: CompareOp(strings.ToUpper(op)), Value: v}, nil
}

const dateLayout = "2006-01-02"

var filterTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", dateLayout}

// parseFilterTime also reports whether value was a bare date
func parseFilterTime(field, value string) (*time.Time, bool, error) {
	if value == "" {
		return nil, false, nil
	}
	for _, layout := range filterTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, layout == dateLayout, nil
		}
	}
	return nil, false, &models.ValidationError{Field: field, Value: value, Message: "invalid time, expected YYYY-MM-DD or RFC 3339"}
}
