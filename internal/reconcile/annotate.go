package reconcile

import (
	"slices"

	"station-review/internal/models"
)

// Annotation is the derived reconciliation state of one RINEX record. It is
// never persisted.
type Annotation struct {
	HasStationInfo       bool           `json:"has_station_info"`
	GoverningIntervalIDs []int64        `json:"governing_interval_ids"`
	GapType              models.GapType `json:"gap_type"`
	MetadataMismatch     []string       `json:"metadata_mismatch"`
	PrecedingIntervalID  *int64         `json:"preceding_interval_id,omitempty"`
	FollowingIntervalID  *int64         `json:"following_interval_id,omitempty"`
}

// GoverningID returns the single governing interval id of a covered row
func (a Annotation) GoverningID() (int64, bool) {
	if !a.HasStationInfo || len(a.GoverningIntervalIDs) != 1 {
		return 0, false
	}
	return a.GoverningIntervalIDs[0], true
}

// Row is a RINEX record with its annotation
type Row struct {
	Rinex      models.RinexObservation `json:"rinex"`
	Annotation Annotation              `json:"annotation"`
}

// Annotate classifies one record and, when it is covered, compares its
// equipment with the governing interval
func Annotate(r models.RinexObservation, idx *IntervalIndex) Row {
	c := Classify(&r, idx)

	a := Annotation{
		HasStationInfo:       c.HasStationInfo(),
		GoverningIntervalIDs: c.GoverningIDs(),
		GapType:              c.GapType,
		MetadataMismatch:     []string{},
	}
	if c.Preceding != nil {
		id := c.Preceding.ID
		a.PrecedingIntervalID = &id
	}
	if c.Following != nil {
		id := c.Following.ID
		a.FollowingIntervalID = &id
	}
	if a.HasStationInfo {
		a.MetadataMismatch = DetectMismatches(r.Equipment, c.Governing[0].Equipment)
	}

	return Row{Rinex: r, Annotation: a}
}

// AnnotateAll annotates every record, keeping input order
func AnnotateAll(rinex []models.RinexObservation, idx *IntervalIndex) []Row {
	rows := make([]Row, 0, len(rinex))
	for _, r := range rinex {
		rows = append(rows, Annotate(r, idx))
	}
	return rows
}

// Disagreement is a difference between the local annotation of a record and
// the classification reported by the metadata service
type Disagreement struct {
	RinexID  int64  `json:"rinex_id"`
	Filename string `json:"filename"`
	Field    string `json:"field"`
	Local    any    `json:"local"`
	Reported any    `json:"reported"`
}

// CrossCheck compares local annotations with server-reported status. Rows
// without a reported status are skipped.
func CrossCheck(rows []Row) []Disagreement {
	var out []Disagreement

	for _, row := range rows {
		reported := row.Rinex.ReportedStatus
		if !reported.Reported() {
			continue
		}
		local := row.Annotation

		add := func(field string, l, r any) {
			out = append(out, Disagreement{
				RinexID:  row.Rinex.ID,
				Filename: row.Rinex.Filename,
				Field:    field,
				Local:    l,
				Reported: r,
			})
		}

		if reported.HasStationInfo != nil && *reported.HasStationInfo != local.HasStationInfo {
			add("has_station_info", local.HasStationInfo, *reported.HasStationInfo)
		}
		if reported.GapType != "" {
			g, ok := models.ParseGapType(reported.GapType)
			if !ok || g != local.GapType {
				add("gap_type", local.GapType, reported.GapType)
			}
		}
		if reported.MetadataMismatch != nil && !sameFields(local.MetadataMismatch, reported.MetadataMismatch) {
			add("metadata_mismatch", local.MetadataMismatch, reported.MetadataMismatch)
		}
	}

	return out
}

func sameFields(a, b []string) bool {
	x := slices.Clone(a)
	y := slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(slices.Compact(x), slices.Compact(y))
}
