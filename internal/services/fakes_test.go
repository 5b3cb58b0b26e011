package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"station-review/internal/client"
	"station-review/internal/models"
	"station-review/internal/reconcile"
	"station-review/pkg/logging"
	"station-review/pkg/metrics"
)

var (
	braz  = models.StationID{NetworkCode: "igs", StationCode: "braz"}
	epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
)

func day(n int) time.Time {
	return epoch.AddDate(0, 0, n-1)
}

func equipment() models.Equipment {
	return models.Equipment{
		ReceiverCode:     "TRIMBLE NETR9",
		ReceiverSerial:   "5035K69749",
		ReceiverFirmware: "5.22",
		AntennaCode:      "TRM59800.00",
		AntennaSerial:    "1441031450",
		AntennaHeight:    "0.0000",
		AntennaNorth:     "0.0000",
		AntennaEast:      "0.0000",
		HeightCode:       "DHARP",
		RadomeCode:       "SCIS",
	}
}

func interval(id int64, start, end time.Time) models.StationInfoInterval {
	iv := models.StationInfoInterval{
		ID:          id,
		NetworkCode: "igs",
		StationCode: "braz",
		DateStart:   start,
		Equipment:   equipment(),
	}
	if !end.IsZero() {
		iv.DateEnd = &end
	}
	return iv
}

func rinex(id int64, start time.Time) models.RinexObservation {
	return models.RinexObservation{
		ID:               id,
		NetworkCode:      "igs",
		StationCode:      "braz",
		Filename:         fmt.Sprintf("braz%03d0.%02do", start.YearDay(), start.Year()%100),
		ObservationSTime: start,
		ObservationETime: start.Add(24*time.Hour - 30*time.Second),
		ObservationYear:  start.Year(),
		ObservationDOY:   start.YearDay(),
		ObservationFYear: float64(start.Year()) + float64(start.YearDay()-1)/366,
		Completion:       1,
		Equipment:        equipment(),
	}
}

// scenario is I1=[Jan1,Jan10), I2=[Jan15,+inf) with RINEX on Jan5, Jan12, Feb1
func scenario() ([]models.StationInfoInterval, []models.RinexObservation) {
	return []models.StationInfoInterval{
			interval(1, day(1), day(10)),
			interval(2, day(15), time.Time{}),
		}, []models.RinexObservation{
			rinex(1, day(5)),
			rinex(2, day(12)),
			rinex(3, day(32)),
		}
}

// fakeSource serves fixed data. rinexFor, when set, picks the RINEX list by
// call number (1-based).
type fakeSource struct {
	mu          sync.Mutex
	intervals   []models.StationInfoInterval
	rinex       []models.RinexObservation
	rinexFor    func(call int) []models.RinexObservation
	err         error
	rinexCalls  int
	infoOffsets []int
	lastParams  models.FilterParams

	// maxLimit caps the station info page size like a server side limit
	maxLimit int
	// totalSkew is added to the reported interval count
	totalSkew int

	// gate, when set, is called before answering a RINEX call
	gate func(call int)
}

func (f *fakeSource) FetchStationRinex(ctx context.Context, station models.StationID, params models.FilterParams) ([]models.RinexObservation, error) {
	f.mu.Lock()
	f.rinexCalls++
	call := f.rinexCalls
	f.lastParams = params
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		gate(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.rinexFor != nil {
		return f.rinexFor(call), nil
	}
	return append([]models.RinexObservation(nil), f.rinex...), nil
}

func (f *fakeSource) FetchStationInfo(ctx context.Context, station models.StationID, page models.PageParams) (*models.IntervalPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.infoOffsets = append(f.infoOffsets, page.Offset)
	if f.err != nil {
		return nil, f.err
	}

	start := min(page.Offset, len(f.intervals))
	end := len(f.intervals)
	limit := page.Limit
	if f.maxLimit > 0 && (limit <= 0 || limit > f.maxLimit) {
		limit = f.maxLimit
	}
	if limit > 0 {
		end = min(start+limit, end)
	}
	return &models.IntervalPage{
		Data:       append([]models.StationInfoInterval{}, f.intervals[start:end]...),
		TotalCount: len(f.intervals) + f.totalSkew,
	}, nil
}

// pointInTimeSource answers whole snapshots in one read
type pointInTimeSource struct {
	*fakeSource
	reads int
}

func (p *pointInTimeSource) ReadSnapshot(ctx context.Context, station models.StationID, params models.FilterParams) ([]models.RinexObservation, []models.StationInfoInterval, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	p.lastParams = params
	if p.err != nil {
		return nil, nil, p.err
	}
	return append([]models.RinexObservation(nil), p.rinex...), append([]models.StationInfoInterval(nil), p.intervals...), nil
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rinexCalls
}

type extensionCall struct {
	IntervalID int64
	Boundary   models.Boundary
	Timestamp  time.Time
}

// fakeRepair records submitted actions
type fakeRepair struct {
	mu           sync.Mutex
	extensions   []extensionCall
	created      []models.StationInfoInterval
	importedKeys []models.RecordKey
	importResult *models.ImportResult
	err          error
}

func (f *fakeRepair) SubmitIntervalExtension(ctx context.Context, intervalID int64, boundary models.Boundary, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.extensions = append(f.extensions, extensionCall{intervalID, boundary, ts})
	return nil
}

func (f *fakeRepair) CreateInterval(ctx context.Context, station models.StationID, draft models.StationInfoInterval) (*models.StationInfoInterval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	draft.ID = int64(100 + len(f.created))
	f.created = append(f.created, draft)
	return &draft, nil
}

func (f *fakeRepair) SubmitIntervalFromFile(ctx context.Context, station models.StationID, filename string, content []byte, keys []models.RecordKey) (*models.ImportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.importedKeys = append(f.importedKeys, keys...)
	if f.importResult != nil && len(f.importResult.Errors) > 0 {
		return f.importResult, &models.PartialImportError{Failed: f.importResult.Errors, Created: len(f.importResult.Created)}
	}
	if f.importResult != nil {
		return f.importResult, nil
	}
	return &models.ImportResult{Created: []models.StationInfoInterval{}, Errors: []models.RecordError{}}, f.err
}

func (f *fakeRepair) FetchCompletionPlot(ctx context.Context, station models.StationID) (*client.CompletionPlot, error) {
	return &client.CompletionPlot{ContentType: "image/png", Data: []byte("png")}, nil
}

func testLogger() *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("station-review", "test", logging.DebugLevel)
	logger.SetOutput(io.Discard)
	return logger
}

func newTestReviewService(t *testing.T, source SnapshotSource, repair RepairClient, opts ReviewOptions) (*ReviewService, *metrics.Collector) {
	t.Helper()
	collector := metrics.NewCollector("station_review", prometheus.NewRegistry())
	logger := testLogger()
	stats := NewStatisticsService(logger, collector)
	svc := NewReviewService(source, repair, stats, opts, logger, collector)
	svc.now = func() time.Time { return epoch.AddDate(0, 2, 0) }
	return svc, collector
}

func subgroupByKey(t *testing.T, view *ReviewView, key reconcile.GroupKey) SubgroupView {
	t.Helper()
	for _, sg := range view.Subgroups {
		if sg.Key == key {
			return sg
		}
	}
	t.Fatalf("no subgroup with key %s in %+v", key, view.Subgroups)
	return SubgroupView{}
}
