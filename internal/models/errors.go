package models

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError represents malformed input, such as a non-numeric value in
// a numeric-only filter field. It never reaches the network.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// FetchError is a failure retrieving a station snapshot. The previous snapshot
// stays in use and no retry is scheduled.
type FetchError struct {
	Station string
	Op      string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s for %s: %v", e.Op, e.Station, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTransient returns true; an explicit refetch may succeed
func (e *FetchError) IsTransient() bool {
	return true
}

// RepairActionError is a field-level rejection of an interval extension or
// creation returned by the metadata service
type RepairActionError struct {
	IntervalID int64
	Fields     map[string][]string
}

func (e *RepairActionError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	if e.IntervalID != 0 {
		return fmt.Sprintf("station info %d rejected: %s", e.IntervalID, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("station info rejected: %s", strings.Join(parts, ", "))
}

// IsTransient returns false; the action must be changed before resubmitting
func (e *RepairActionError) IsTransient() bool {
	return false
}

// PartialImportError reports the records of an import that failed while the
// others were created
type PartialImportError struct {
	Failed  []RecordError
	Created int
}

func (e *PartialImportError) Error() string {
	return fmt.Sprintf("import partially failed: %d created, %d failed", e.Created, len(e.Failed))
}

// IsTransient returns false
func (e *PartialImportError) IsTransient() bool {
	return false
}
