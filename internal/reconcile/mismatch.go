package reconcile

import (
	"math"
	"strings"

	"station-review/internal/models"
)

// MeasureEpsilon is the tolerance for antenna height and offset comparisons
const MeasureEpsilon = 1e-4

// DetectMismatches returns the equipment fields where the observed RINEX
// header differs from the governing interval, in models.EquipmentFields
// order. String fields compare exactly and case-sensitively; height and
// offsets compare numerically so "0" equals "0.0". A field the observation
// does not carry (empty) is not compared: RINEX headers have no north and
// east offsets or height code.
func DetectMismatches(observed, governing models.Equipment) []string {
	mismatches := []string{}

	for _, field := range models.EquipmentFields {
		a, _ := observed.Text(field)
		if strings.TrimSpace(a) == "" {
			continue
		}
		b, _ := governing.Text(field)

		var equal bool
		switch field {
		case models.FieldAntennaHeight, models.FieldAntennaNorth, models.FieldAntennaEast:
			equal = measuresEqual(models.Measure(a), models.Measure(b))
		default:
			equal = a == b
		}

		if !equal {
			mismatches = append(mismatches, field)
		}
	}

	return mismatches
}

func measuresEqual(a, b models.Measure) bool {
	fa, okA := a.Float()
	fb, okB := b.Float()
	if okA && okB {
		return math.Abs(fa-fb) <= MeasureEpsilon
	}
	return strings.TrimSpace(string(a)) == strings.TrimSpace(string(b))
}
