package reconcile

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"station-review/internal/models"
)

// UngovernedPolicy decides how consecutive rows without a single governing
// interval are split into subgroups
type UngovernedPolicy string

const (
	// MergeUngoverned puts a contiguous run of ungoverned rows of one group
	// into a single subgroup
	MergeUngoverned UngovernedPolicy = "merge"

	// IsolateUngoverned makes every ungoverned row its own subgroup
	IsolateUngoverned UngovernedPolicy = "isolate"
)

// ParseUngovernedPolicy parses a policy name; empty means MergeUngoverned
func ParseUngovernedPolicy(s string) (UngovernedPolicy, error) {
	switch UngovernedPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MergeUngoverned:
		return MergeUngoverned, nil
	case IsolateUngoverned:
		return IsolateUngoverned, nil
	default:
		return "", fmt.Errorf("unknown ungoverned policy %q", s)
	}
}

// GroupKey identifies the bordering-interval relationship shared by a group
type GroupKey string

// NoInfoKey groups rows of a station without station info
const NoInfoKey GroupKey = "no-info"

// KeyOf returns the grouping key of an annotated row
func KeyOf(a Annotation) GroupKey {
	switch a.GapType {
	case models.GapNone:
		return GroupKey("interval:" + joinIDs(a.GoverningIntervalIDs))
	case models.GapMultipleOverlap:
		return GroupKey("overlap:" + joinIDs(a.GoverningIntervalIDs))
	case models.GapNoInfo:
		return NoInfoKey
	default:
		return GroupKey("gap:" + optionalID(a.PrecedingIntervalID) + "-" + optionalID(a.FollowingIntervalID))
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

// Group is a maximal run of consecutive rows sharing a GroupKey
type Group struct {
	ID        int        `json:"id"`
	Key       GroupKey   `json:"key"`
	Subgroups []Subgroup `json:"subgroups"`
}

// RowCount returns the number of rows across subgroups
func (g *Group) RowCount() int {
	n := 0
	for i := range g.Subgroups {
		n += len(g.Subgroups[i].Rows)
	}
	return n
}

// Subgroup is a run of rows inside a group that share the exact governing
// interval, or an ungoverned run (see UngovernedPolicy)
type Subgroup struct {
	ID                  string         `json:"id"`
	GroupID             int            `json:"group_id"`
	GapType             models.GapType `json:"gap_type"`
	GoverningIntervalID *int64         `json:"governing_interval_id,omitempty"`
	PrecedingIntervalID *int64         `json:"preceding_interval_id,omitempty"`
	FollowingIntervalID *int64         `json:"following_interval_id,omitempty"`
	Rows                []Row          `json:"rows"`
}

// First returns the earliest row of the subgroup
func (s *Subgroup) First() *Row {
	return &s.Rows[0]
}

// Last returns the latest row of the subgroup
func (s *Subgroup) Last() *Row {
	return &s.Rows[len(s.Rows)-1]
}

// Span returns the earliest observation start and latest observation end
func (s *Subgroup) Span() (time.Time, time.Time) {
	start, end := s.First().Rinex.Window()
	for i := range s.Rows {
		rs, re := s.Rows[i].Rinex.Window()
		if rs.Before(start) {
			start = rs
		}
		if re.After(end) {
			end = re
		}
	}
	return start, end
}

// SubgroupID formats the positional subgroup identifier
func SubgroupID(groupID, index int) string {
	return fmt.Sprintf("%d.%d", groupID, index)
}

// SortRows orders rows by observation start, then by id
func SortRows(rows []Row) {
	slices.SortStableFunc(rows, func(a, b Row) int {
		if c := a.Rinex.ObservationSTime.Compare(b.Rinex.ObservationSTime); c != 0 {
			return c
		}
		switch {
		case a.Rinex.ID < b.Rinex.ID:
			return -1
		case a.Rinex.ID > b.Rinex.ID:
			return 1
		}
		return 0
	})
}

// BuildGroups partitions rows into nested reconciliation groups in a single
// pass over the rows sorted by observation start. A new group starts whenever
// the key changes; inside a group a new subgroup starts whenever the governing
// interval changes or, under IsolateUngoverned, for every ungoverned row.
// Group and subgroup ids are positional and only stable for identical input.
func BuildGroups(rows []Row, policy UngovernedPolicy) []Group {
	sorted := slices.Clone(rows)
	SortRows(sorted)

	groups := []Group{}
	var current *Group
	var currentKey GroupKey

	for _, row := range sorted {
		key := KeyOf(row.Annotation)
		if current == nil || key != currentKey {
			groups = append(groups, Group{ID: len(groups) + 1, Key: key})
			current = &groups[len(groups)-1]
			currentKey = key
		}

		if n := len(current.Subgroups); n == 0 || startsSubgroup(&current.Subgroups[n-1], row, policy) {
			current.Subgroups = append(current.Subgroups, newSubgroup(current.ID, len(current.Subgroups)+1, row))
		}

		sub := &current.Subgroups[len(current.Subgroups)-1]
		sub.Rows = append(sub.Rows, row)

		// the run's trailing neighbour is the one of its last row
		sub.FollowingIntervalID = row.Annotation.FollowingIntervalID
	}

	return groups
}

func startsSubgroup(prev *Subgroup, row Row, policy UngovernedPolicy) bool {
	id, governed := row.Annotation.GoverningID()
	if governed {
		return prev.GoverningIntervalID == nil || *prev.GoverningIntervalID != id
	}
	if prev.GoverningIntervalID != nil {
		return true
	}
	return policy == IsolateUngoverned
}

func newSubgroup(groupID, index int, first Row) Subgroup {
	sub := Subgroup{
		ID:                  SubgroupID(groupID, index),
		GroupID:             groupID,
		GapType:             first.Annotation.GapType,
		PrecedingIntervalID: first.Annotation.PrecedingIntervalID,
	}
	if id, ok := first.Annotation.GoverningID(); ok {
		sub.GoverningIntervalID = &id
	}
	return sub
}

// FindSubgroup looks up a subgroup by id
func FindSubgroup(groups []Group, id string) (*Subgroup, bool) {
	for i := range groups {
		for j := range groups[i].Subgroups {
			if groups[i].Subgroups[j].ID == id {
				return &groups[i].Subgroups[j], true
			}
		}
	}
	return nil, false
}
