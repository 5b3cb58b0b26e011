package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"station-review/internal/models"
	"station-review/internal/services"
)

func newImportPreviewCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import-preview <network.station> <station.info>",
		Short: "List the records a station.info file would import",
		Long: `Parse a GAMIT station.info file and list the records of the station with
the keys to pass as selected_record_keys when importing. Nothing is sent
to the metadata service.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			station, err := models.ParseStationID(args[0])
			if err != nil {
				return err
			}
			content, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read station.info: %w", err)
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}

			// the preview only parses, so the service never calls its client
			imports := services.NewImportService(nil, a.logger, a.metrics)
			preview, err := imports.Preview(cmd.Context(), station, content)
			if err != nil {
				return err
			}

			return render(a.out, a.opts.output, preview, writePreviewTable)
		},
	}
}
