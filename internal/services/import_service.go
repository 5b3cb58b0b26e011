package services

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"station-review/internal/models"
	"station-review/pkg/logging"
	"station-review/pkg/metrics"
)

// ImportService previews and submits station.info files
type ImportService struct {
	repair  RepairClient
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewImportService creates a new import service
func NewImportService(repair RepairClient, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ImportService {
	return &ImportService{
		repair:  repair,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ImportCandidate is one record of a station.info file that can be imported
type ImportCandidate struct {
	Key      models.RecordKey           `json:"key"`
	Line     int                        `json:"line"`
	Interval models.StationInfoInterval `json:"interval"`
}

// LineError is a station.info line that could not be parsed
type LineError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// ImportPreview is the parsed content of a station.info file for one station
type ImportPreview struct {
	Station    string            `json:"station"`
	Candidates []ImportCandidate `json:"candidates"`
	Errors     []LineError       `json:"errors"`
	// OtherStations counts records for sites other than the station
	OtherStations int `json:"other_stations"`
	TotalLines    int `json:"total_lines"`
}

// Preview parses content and returns the records of station it contains
func (s *ImportService) Preview(ctx context.Context, station models.StationID, content []byte) (*ImportPreview, error) {
	startTime := time.Now()

	preview := &ImportPreview{
		Station:    station.String(),
		Candidates: []ImportCandidate{},
		Errors:     []LineError{},
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 1024), 64*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !models.IsStationInfoData(line) {
			continue
		}
		preview.TotalLines++

		raw, err := models.ParseStationInfoLine(line, lineNo)
		if err != nil {
			preview.Errors = append(preview.Errors, LineError{Line: lineNo, Error: err.Error()})
			s.metrics.ImportParseErrors.Inc()
			continue
		}
		if !strings.EqualFold(raw.Site, station.StationCode) {
			preview.OtherStations++
			continue
		}

		interval, err := raw.ToInterval(station.NetworkCode)
		if err != nil {
			preview.Errors = append(preview.Errors, LineError{Line: lineNo, Error: err.Error()})
			s.metrics.ImportParseErrors.Inc()
			continue
		}

		preview.Candidates = append(preview.Candidates, ImportCandidate{
			Key:      interval.Key(),
			Line:     lineNo,
			Interval: *interval,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading station.info: %w", err)
	}

	s.logger.Info(ctx, "[IMPORT_PREVIEW] station.info parsed", logging.Fields{
		"station":        station.String(),
		"candidates":     len(preview.Candidates),
		"parse_errors":   len(preview.Errors),
		"other_stations": preview.OtherStations,
		"duration_ms":    time.Since(startTime).Milliseconds(),
	})

	return preview, nil
}

// Import submits the selected records of a station.info file. An empty
// selection imports every candidate. Keys that are not records of the file
// are rejected before anything is sent. When some records fail the result is
// returned together with a *models.PartialImportError.
func (s *ImportService) Import(ctx context.Context, station models.StationID, filename string, content []byte, selected []models.RecordKey) (*models.ImportResult, error) {
	preview, err := s.Preview(ctx, station, content)
	if err != nil {
		return nil, err
	}

	known := make(map[string]models.RecordKey, len(preview.Candidates))
	for _, c := range preview.Candidates {
		known[c.Key.String()] = c.Key
	}

	keys := make([]models.RecordKey, 0, len(selected))
	if len(selected) == 0 {
		for _, c := range preview.Candidates {
			keys = append(keys, c.Key)
		}
	}
	for _, k := range selected {
		key, ok := known[k.String()]
		if !ok {
			return nil, &models.ValidationError{
				Field:   "selected_record_keys",
				Value:   k.String(),
				Message: "record is not in the uploaded file",
			}
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, &models.ValidationError{
			Field:   "file",
			Value:   filename,
			Message: fmt.Sprintf("no records for %s in file", station),
		}
	}

	result, err := s.repair.SubmitIntervalFromFile(ctx, station, filename, content, keys)
	if result != nil {
		s.metrics.RecordImport(len(result.Created), len(result.Errors))
	}
	if err != nil {
		s.logger.WarnErr(ctx, "[IMPORT_SUBMIT] Import did not fully succeed", logging.Fields{
			"station":  station.String(),
			"selected": len(keys),
		}, err)
		return result, err
	}

	s.logger.Info(ctx, "[IMPORT_SUBMIT] Station info imported", logging.Fields{
		"station": station.String(),
		"created": len(result.Created),
	})
	return result, nil
}
