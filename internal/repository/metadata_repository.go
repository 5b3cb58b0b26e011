package repository

import (
	"context"
	"fmt"
	"strings"

	"station-review/internal/models"
	"station-review/internal/reconcile"
	"station-review/pkg/database"
	"station-review/pkg/logging"
	"station-review/pkg/metrics"
)

// MetadataRepository reads RINEX records and station info straight from the
// archive database. It never writes: repair actions go through the metadata
// service so its validation applies.
type MetadataRepository interface {
	FetchStationRinex(ctx context.Context, station models.StationID, params models.FilterParams) ([]models.RinexObservation, error)
	FetchStationInfo(ctx context.Context, station models.StationID, page models.PageParams) (*models.IntervalPage, error)
	ReadSnapshot(ctx context.Context, station models.StationID, params models.FilterParams) ([]models.RinexObservation, []models.StationInfoInterval, error)
	HealthCheck(ctx context.Context) error
}

// selector is satisfied by *database.PostgresDB and *database.ReadTx
type selector interface {
	SelectContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error
}

type metadataRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewMetadataRepository creates a read-only repository over db
func NewMetadataRepository(db *database.PostgresDB, logger *logging.StructuredLogger, collector *metrics.Collector) MetadataRepository {
	return &metadataRepository{
		db:      db,
		logger:  logger,
		metrics: collector,
	}
}

// The rinex table has no north/east offsets or height code; they are read as
// empty and left out of mismatch detection.
const rinexColumns = `
		SELECT r.api_id AS id,
		       r."NetworkCode" AS network_code,
		       r."StationCode" AS station_code,
		       r."Filename" AS filename,
		       r."ObservationSTime" AS observation_s_time,
		       r."ObservationETime" AS observation_e_time,
		       r."ObservationYear" AS observation_year,
		       r."ObservationDOY" AS observation_doy,
		       r."ObservationFYear" AS observation_f_year,
		       COALESCE(r."Completion", 0) AS completion,
		       COALESCE(r."ReceiverType", '') AS receiver_code,
		       COALESCE(r."ReceiverSerial", '') AS receiver_serial,
		       COALESCE(r."ReceiverFw", '') AS receiver_firmware,
		       COALESCE(r."AntennaType", '') AS antenna_code,
		       COALESCE(r."AntennaSerial", '') AS antenna_serial,
		       COALESCE(r."AntennaOffset"::text, '') AS antenna_height,
		       '' AS antenna_north,
		       '' AS antenna_east,
		       '' AS height_code,
		       COALESCE(r."AntennaDome", '') AS radome_code
		FROM rinex r`

// rinexQuery builds the station query, pushing the year and time window of
// the filter down to SQL. The window clauses are a superset of the local
// containment test, which still runs on the result.
func rinexQuery(station models.StationID, f reconcile.Filter) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(rinexColumns)
	b.WriteString(`
		WHERE r."NetworkCode" = $1 AND r."StationCode" = $2`)
	args := []interface{}{station.NetworkCode, station.StationCode}
	argNum := 3

	if f.From != nil {
		fmt.Fprintf(&b, ` AND r."ObservationSTime" >= $%d`, argNum)
		args = append(args, *f.From)
		argNum++
	}
	if f.To != nil {
		op := "<="
		if f.ToExclusive {
			op = "<"
		}
		fmt.Fprintf(&b, ` AND r."ObservationSTime" %s $%d`, op, argNum)
		args = append(args, *f.To)
		argNum++
	}
	if f.Year != nil {
		op := map[reconcile.CompareOp]string{
			reconcile.LessThan:    "<",
			reconcile.GreaterThan: ">",
			reconcile.Equal:       "=",
		}[f.Year.Op]
		if op != "" {
			fmt.Fprintf(&b, ` AND r."ObservationYear" %s $%d`, op, argNum)
			args = append(args, int(f.Year.Value))
		}
	}

	b.WriteString(` ORDER BY r."ObservationSTime", r.api_id`)
	return b.String(), args
}

// FetchStationRinex returns the station's RINEX records ordered by start time
func (r *metadataRepository) FetchStationRinex(ctx context.Context, station models.StationID, params models.FilterParams) ([]models.RinexObservation, error) {
	f, err := reconcile.ParseFilter(params)
	if err != nil {
		return nil, err
	}
	return r.selectRinex(ctx, r.db, station, f)
}

func (r *metadataRepository) selectRinex(ctx context.Context, q selector, station models.StationID, f reconcile.Filter) ([]models.RinexObservation, error) {
	query, args := rinexQuery(station, f)

	rows := []models.RinexObservation{}
	if err := q.SelectContext(ctx, "select_station_rinex", &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get rinex for %s: %w", station, err)
	}

	r.logger.Debug(ctx, "[REPO_RINEX] Station RINEX loaded", logging.Fields{
		"station": station.String(),
		"rows":    len(rows),
	})

	return rows, nil
}

const stationInfoQuery = `
		SELECT s.api_id AS id,
		       s."NetworkCode" AS network_code,
		       s."StationCode" AS station_code,
		       s."DateStart" AS date_start,
		       s."DateEnd" AS date_end,
		       COALESCE(s."ReceiverCode", '') AS receiver_code,
		       COALESCE(s."ReceiverSerial", '') AS receiver_serial,
		       COALESCE(s."ReceiverFirmware", '') AS receiver_firmware,
		       COALESCE(s."AntennaCode", '') AS antenna_code,
		       COALESCE(s."AntennaSerial", '') AS antenna_serial,
		       COALESCE(s."AntennaHeight"::text, '') AS antenna_height,
		       COALESCE(s."AntennaNorth"::text, '') AS antenna_north,
		       COALESCE(s."AntennaEast"::text, '') AS antenna_east,
		       COALESCE(s."HeightCode", '') AS height_code,
		       COALESCE(s."RadomeCode", '') AS radome_code,
		       COALESCE(s."Comments", '') AS comments
		FROM stationinfo s
		WHERE s."NetworkCode" = $1 AND s."StationCode" = $2
		ORDER BY s."DateStart", s.api_id`

// FetchStationInfo returns one page of the station's intervals and the total
// count, both read in the same read-only transaction
func (r *metadataRepository) FetchStationInfo(ctx context.Context, station models.StationID, page models.PageParams) (*models.IntervalPage, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginReadOnly(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot read: %w", err)
	}
	defer tx.Close()

	var total []int
	err = tx.SelectContext(ctx, "count_station_info", &total,
		`SELECT COUNT(*) FROM stationinfo WHERE "NetworkCode" = $1 AND "StationCode" = $2`,
		station.NetworkCode, station.StationCode)
	if err != nil {
		return nil, fmt.Errorf("failed to count station info for %s: %w", station, err)
	}

	query := stationInfoQuery
	args := []interface{}{station.NetworkCode, station.StationCode}
	if page.Limit > 0 {
		query += " LIMIT $3 OFFSET $4"
		args = append(args, page.Limit, page.Offset)
	} else if page.Offset > 0 {
		query += " OFFSET $3"
		args = append(args, page.Offset)
	}

	result := &models.IntervalPage{Data: []models.StationInfoInterval{}}
	if err := tx.SelectContext(ctx, "select_station_info", &result.Data, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get station info for %s: %w", station, err)
	}
	if len(total) > 0 {
		result.TotalCount = total[0]
	}

	return result, nil
}

// ReadSnapshot reads the station's RINEX records and all of its intervals in
// one repeatable read transaction, so both come from the same instant
func (r *metadataRepository) ReadSnapshot(ctx context.Context, station models.StationID, params models.FilterParams) ([]models.RinexObservation, []models.StationInfoInterval, error) {
	f, err := reconcile.ParseFilter(params)
	if err != nil {
		return nil, nil, err
	}

	tx, err := r.db.BeginReadOnly(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin snapshot read: %w", err)
	}
	defer tx.Close()

	rinex, err := r.selectRinex(ctx, tx, station, f)
	if err != nil {
		return nil, nil, err
	}

	intervals := []models.StationInfoInterval{}
	err = tx.SelectContext(ctx, "select_station_info", &intervals, stationInfoQuery, station.NetworkCode, station.StationCode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get station info for %s: %w", station, err)
	}

	r.logger.Debug(ctx, "[REPO_SNAPSHOT] Station snapshot read", logging.Fields{
		"station":   station.String(),
		"rinex":     len(rinex),
		"intervals": len(intervals),
	})

	return rinex, intervals, nil
}

// HealthCheck performs a repository health check
func (r *metadataRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
