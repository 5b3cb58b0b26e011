package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"station-review/internal/models"
)

const stationInfoHeader = "*SITE  Station Name      Session Start      Session Stop       Ant Ht   HtCod  Ant N    Ant E    Receiver Type         Vers                  SwVer  Receiver SN           Antenna Type     Dome   Antenna SN"

func newStationInfoCommand(opts *globalOptions) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "station-info <network.station>",
		Short: "Print a station's intervals as a station.info file",
		Long: `Fetch the station information intervals of a station and print them in
the GAMIT station.info layout, oldest first. The output can be edited and
uploaded back through the import endpoint.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			station, err := models.ParseStationID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}

			review, backends, err := a.openReview(cmd)
			if err != nil {
				return err
			}
			defer backends.Close()

			intervals, err := review.StationInfo(cmd.Context(), station)
			if err != nil {
				return err
			}

			if name == "" {
				name = strings.ToUpper(station.StationCode)
			}
			return render(a.out, a.opts.output, intervals, func(w io.Writer, intervals []models.StationInfoInterval) error {
				return writeStationInfo(w, intervals, name)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Station name column (default the station code)")

	return cmd
}

func writeStationInfo(w io.Writer, intervals []models.StationInfoInterval, name string) error {
	if _, err := fmt.Fprintln(w, stationInfoHeader); err != nil {
		return err
	}
	for i := range intervals {
		if _, err := fmt.Fprintln(w, models.FormatStationInfoLine(&intervals[i], name)); err != nil {
			return err
		}
	}
	return nil
}
