package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"station-review/internal/models"
	"station-review/internal/services"
)

func newStationCommand(opts *globalOptions) *cobra.Command {
	var (
		page     int
		pageSize int
		filters  []string
	)

	cmd := &cobra.Command{
		Use:   "station <network.station>",
		Short: "Show one page of a station's review",
		Long: `Fetch a snapshot of the station's RINEX files and station information,
classify every file and print one page of the grouped result.

Filters use the query parameter names of the review API, e.g.

  review station igs.braz --filter gap_types=BETWEEN_TWO,AFTER_LAST
  review station igs.braz --filter completion=0.9 --filter completion_op=GREATER_THAN`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			station, err := models.ParseStationID(args[0])
			if err != nil {
				return err
			}
			params, err := parseFilterFlags(filters)
			if err != nil {
				return err
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("page-size") {
				a.cfg.Review.PageSize = pageSize
			}

			review, backends, err := a.openReview(cmd)
			if err != nil {
				return err
			}
			defer backends.Close()

			ctx := cmd.Context()
			var view *services.ReviewView
			if params.IsEmpty() {
				view, err = review.View(ctx, station)
			} else {
				view, err = review.ApplyFilter(ctx, station, params)
			}
			if err != nil {
				return err
			}

			if page != 1 {
				var ok bool
				view, ok, err = review.GotoPage(ctx, station, page)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("page %d out of range, the review has %d page(s)", page, view.Page.TotalPages)
				}
			}

			return render(a.out, a.opts.output, view, writeViewTable)
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page to show")
	cmd.Flags().IntVar(&pageSize, "page-size", 15, "Rows per page, 0 for all")
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Filter as key=value, repeatable")

	return cmd
}

// parseFilterFlags turns key=value flags into filter params
func parseFilterFlags(flags []string) (models.FilterParams, error) {
	q := url.Values{}
	for _, f := range flags {
		key, value, ok := strings.Cut(f, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return models.FilterParams{}, &models.ValidationError{
				Field:   "filter",
				Value:   f,
				Message: "expected key=value",
			}
		}
		q.Set(strings.TrimSpace(key), value)
	}
	return models.FilterParamsFromQuery(q), nil
}
