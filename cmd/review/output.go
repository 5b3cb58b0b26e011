package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-yaml"

	"station-review/internal/reconcile"
	"station-review/internal/services"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

func formatFor(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(s)); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q, expected table, json or yaml", s)
	}
}

// render writes v in the chosen format; table output is delegated to table
func render[T any](w io.Writer, format string, v T, table func(io.Writer, T) error) error {
	f, err := formatFor(format)
	if err != nil {
		return err
	}

	switch f {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return table(w, v)
	}
}

const timeLayout = "2006-01-02 15:04"

func writeViewTable(w io.Writer, view *services.ReviewView) error {
	fmt.Fprintf(w, "Station %s  snapshot #%d  fetched %s\n", view.Station, view.Sequence, view.FetchedAt.Format(time.RFC3339))
	if view.Error != "" {
		fmt.Fprintf(w, "Last refresh failed: %s\n", view.Error)
	}
	fmt.Fprintf(w, "Page %d/%d  rows %d of %d  intervals %d\n",
		view.Page.Number, view.Page.TotalPages, view.Summary.FilteredRows, view.Summary.TotalRows, view.Summary.Intervals)
	if view.Page.ContinuesFromPreviousPage {
		fmt.Fprintf(w, "(continues subgroup %s from the previous page)\n", view.Page.Rows[0].SubgroupID)
	}
	fmt.Fprintln(w)

	actions := make(map[string][]reconcile.RepairAction, len(view.Subgroups))
	for _, sg := range view.Subgroups {
		actions[sg.ID] = sg.Actions
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBGROUP\tFILE\tSTART\tEND\tGAP\tINTERVAL\tMISMATCH\tACTIONS")
	for i := range view.Page.Rows {
		pr := &view.Page.Rows[i]
		r := &pr.Row.Rinex
		a := &pr.Row.Annotation

		interval := "-"
		if id, ok := a.GoverningID(); ok {
			interval = fmt.Sprintf("%d", id)
		} else if len(a.GoverningIntervalIDs) > 1 {
			interval = joinInts(a.GoverningIntervalIDs)
		}

		mismatch := "-"
		if len(a.MetadataMismatch) > 0 {
			mismatch = strings.Join(a.MetadataMismatch, ",")
		}

		acts := ""
		if pr.StartsSubgroup() {
			names := make([]string, len(actions[pr.SubgroupID]))
			for j, act := range actions[pr.SubgroupID] {
				names[j] = string(act)
			}
			acts = strings.Join(names, ",")
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			pr.SubgroupID, r.Filename,
			r.ObservationSTime.UTC().Format(timeLayout), r.ObservationETime.UTC().Format(timeLayout),
			a.GapType, interval, mismatch, acts)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(view.Disagreements) > 0 {
		fmt.Fprintf(w, "\n%d disagreement(s) with the metadata service:\n", len(view.Disagreements))
		for _, d := range view.Disagreements {
			fmt.Fprintf(w, "  %s %s: local %v, reported %v\n", d.Filename, d.Field, d.Local, d.Reported)
		}
	}
	return nil
}

func writePreviewTable(w io.Writer, preview *services.ImportPreview) error {
	fmt.Fprintf(w, "Station %s: %d record(s), %d for other stations, %d unreadable\n\n",
		preview.Station, len(preview.Candidates), preview.OtherStations, len(preview.Errors))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tKEY\tEND\tRECEIVER\tANTENNA\tRADOME")
	for _, c := range preview.Candidates {
		end := "open"
		if c.Interval.DateEnd != nil {
			end = c.Interval.DateEnd.UTC().Format(timeLayout)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			c.Line, c.Key, end, c.Interval.ReceiverCode, c.Interval.AntennaCode, c.Interval.RadomeCode)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, e := range preview.Errors {
		fmt.Fprintf(w, "line %d: %s\n", e.Line, e.Error)
	}
	return nil
}

func joinInts(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}
