// Package reconcile reconciles a station's RINEX observation records against
// its station info intervals.
//
// Everything here is a pure function of one snapshot: the interval index is
// built once, each RINEX is annotated with a gap classification and equipment
// mismatches, rows are filtered, grouped into reconciliation groups and cut
// into pages. Derived values are recomputed in full whenever the snapshot,
// the filter or the page changes.
package reconcile
