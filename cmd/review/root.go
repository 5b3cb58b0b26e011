package main

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"station-review/internal/config"
	"station-review/internal/reconcile"
	"station-review/internal/services"
	"station-review/pkg/logging"
	"station-review/pkg/metrics"
)

// globalOptions are flags shared by every subcommand
type globalOptions struct {
	output  string
	verbose bool
	source  string
	policy  string
}

// app is what a subcommand runs with
type app struct {
	cfg     *config.Config
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	out     io.Writer
	opts    *globalOptions
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review a station's RINEX files against its station information",
		Long: `Review classifies every RINEX file of a station against the station's
information intervals, groups consecutive files that share the same gap
and reports equipment mismatches.

Configuration is read from the environment and an optional .env file
(METADATA_BASE_URL, METADATA_TOKEN, REVIEW_SOURCE, DB_* ...).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format: table, json or yaml")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Write debug logs to stderr")
	cmd.PersistentFlags().StringVar(&opts.source, "source", "", "Snapshot source: http or postgres (default from REVIEW_SOURCE)")
	cmd.PersistentFlags().StringVar(&opts.policy, "policy", "", "Ungoverned subgroup policy: merge or isolate")

	cmd.AddCommand(newStationCommand(opts))
	cmd.AddCommand(newImportPreviewCommand(opts))
	cmd.AddCommand(newStationInfoCommand(opts))

	return cmd
}

// newApp loads configuration, applies flag overrides and builds the logger
func newApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	if _, err := formatFor(opts.output); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.source != "" {
		cfg.Review.Source = opts.source
	}
	if opts.policy != "" {
		policy, err := reconcile.ParseUngovernedPolicy(opts.policy)
		if err != nil {
			return nil, err
		}
		cfg.Review.UngovernedPolicy = policy
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := logging.WarnLevel
	if opts.verbose {
		level = logging.DebugLevel
	}
	logger := logging.NewStructuredLogger("station-review-cli", version, level)
	logger.SetOutput(os.Stderr)

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewCollector("station_review_cli", prometheus.NewRegistry()),
		out:     cmd.OutOrStdout(),
		opts:    opts,
	}, nil
}

func (a *app) openReview(cmd *cobra.Command) (*services.ReviewService, *services.Backends, error) {
	backends, err := services.OpenBackends(cmd.Context(), a.cfg, a.logger, a.metrics)
	if err != nil {
		return nil, nil, err
	}

	stats := services.NewStatisticsService(a.logger, a.metrics)
	review := services.NewReviewService(backends.Source, backends.Client, stats, services.ReviewOptionsFrom(a.cfg), a.logger, a.metrics)
	return review, backends, nil
}
