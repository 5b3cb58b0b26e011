package services

import (
	"context"
	"fmt"

	"station-review/internal/client"
	"station-review/internal/config"
	"station-review/internal/repository"
	"station-review/pkg/database"
	"station-review/pkg/logging"
	"station-review/pkg/metrics"
)

// Backends are the external systems a review runs against. Repairs always
// go through the metadata client; snapshots come from the configured source.
type Backends struct {
	Source SnapshotSource
	Client *client.MetadataClient
	// Repository is set for the postgres source
	Repository repository.MetadataRepository

	db *database.PostgresDB
}

// OpenBackends connects the snapshot source named by cfg.Review.Source
func OpenBackends(ctx context.Context, cfg *config.Config, logger *logging.StructuredLogger, collector *metrics.Collector) (*Backends, error) {
	b := &Backends{
		Client: client.NewMetadataClient(cfg.Metadata.BaseURL, cfg.Metadata.Token, cfg.Metadata.Timeout, nil, logger.Named("metadata-client")),
	}

	switch cfg.Review.Source {
	case config.SourceHTTP:
		b.Source = b.Client
	case config.SourcePostgres:
		db, err := database.NewPostgresDB(ctx, &database.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}, logger.Named("database"), collector)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot database: %w", err)
		}
		b.db = db
		b.Repository = repository.NewMetadataRepository(db, logger.Named("repository"), collector)
		b.Source = b.Repository
	default:
		return nil, fmt.Errorf("unknown review source %q", cfg.Review.Source)
	}

	return b, nil
}

// ReviewOptionsFrom returns the review options for cfg
func ReviewOptionsFrom(cfg *config.Config) ReviewOptions {
	return ReviewOptions{
		PageSize:         cfg.Review.PageSize,
		Policy:           cfg.Review.UngovernedPolicy,
		IntervalPageSize: cfg.Metadata.IntervalPageSize,
		SourceName:       cfg.Review.Source,
	}
}

// Close releases the database pool, if any
func (b *Backends) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
