package reconcile

import (
	"fmt"
	"time"

	"station-review/internal/models"
)

// RepairAction is a change a user may submit to close a gap
type RepairAction string

const (
	// ExtendUp moves the preceding interval's end over the subgroup
	ExtendUp RepairAction = "extend-up"
	// ExtendDown moves the following interval's start over the subgroup
	ExtendDown RepairAction = "extend-down"
	// CreateFromRinex creates an interval from the subgroup's RINEX metadata
	CreateFromRinex RepairAction = "create-from-rinex"
	// ImportFromFile creates intervals from an uploaded station.info file
	ImportFromFile RepairAction = "import-from-file"
)

// ParseRepairAction parses an action name
func ParseRepairAction(s string) (RepairAction, bool) {
	switch a := RepairAction(s); a {
	case ExtendUp, ExtendDown, CreateFromRinex, ImportFromFile:
		return a, true
	}
	return "", false
}

// ActionsFor returns the repair actions valid for a gap type. It depends on
// the gap type alone.
func ActionsFor(g models.GapType) []RepairAction {
	switch g {
	case models.GapBeforeFirst:
		return []RepairAction{ExtendDown, CreateFromRinex, ImportFromFile}
	case models.GapBetweenTwo:
		return []RepairAction{ExtendUp, ExtendDown, CreateFromRinex, ImportFromFile}
	case models.GapAfterLast:
		return []RepairAction{ExtendUp, CreateFromRinex, ImportFromFile}
	case models.GapNoInfo:
		return []RepairAction{CreateFromRinex, ImportFromFile}
	default:
		return []RepairAction{}
	}
}

// Allows reports whether action is valid for gap type g
func Allows(g models.GapType, action RepairAction) bool {
	for _, a := range ActionsFor(g) {
		if a == action {
			return true
		}
	}
	return false
}

// Extension is a boundary move to submit to the metadata service
type Extension struct {
	IntervalID int64           `json:"interval_id"`
	Boundary   models.Boundary `json:"boundary"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Extension builds the boundary move for ExtendUp or ExtendDown. Extending up
// sets the preceding interval's end to the subgroup's latest observation end;
// extending down sets the following interval's start to the subgroup's
// earliest observation start.
func (s *Subgroup) Extension(action RepairAction) (Extension, error) {
	if !Allows(s.GapType, action) {
		return Extension{}, fmt.Errorf("%s is not available for %s rows", action, s.GapType)
	}

	start, end := s.Span()
	switch action {
	case ExtendUp:
		if s.PrecedingIntervalID == nil {
			return Extension{}, fmt.Errorf("subgroup %s has no preceding interval", s.ID)
		}
		return Extension{IntervalID: *s.PrecedingIntervalID, Boundary: models.BoundaryEnd, Timestamp: end}, nil
	case ExtendDown:
		if s.FollowingIntervalID == nil {
			return Extension{}, fmt.Errorf("subgroup %s has no following interval", s.ID)
		}
		return Extension{IntervalID: *s.FollowingIntervalID, Boundary: models.BoundaryStart, Timestamp: start}, nil
	default:
		return Extension{}, fmt.Errorf("%s is not an extension", action)
	}
}

// DraftInterval builds a new interval from the equipment of the subgroup's
// first RINEX, spanning the subgroup's observations
func (s *Subgroup) DraftInterval() (models.StationInfoInterval, error) {
	if !Allows(s.GapType, CreateFromRinex) {
		return models.StationInfoInterval{}, fmt.Errorf("%s is not available for %s rows", CreateFromRinex, s.GapType)
	}

	first := s.First().Rinex
	start, end := s.Span()

	return models.StationInfoInterval{
		NetworkCode: first.NetworkCode,
		StationCode: first.StationCode,
		DateStart:   start,
		DateEnd:     &end,
		Equipment:   first.Equipment,
	}, nil
}
