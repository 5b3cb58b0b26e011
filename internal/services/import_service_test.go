package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"station-review/internal/models"
	"station-review/pkg/metrics"
)

func stationInfoFile(t *testing.T) []byte {
	t.Helper()

	first := interval(0, time.Date(2008, 5, 6, 0, 0, 0, 0, time.UTC), time.Date(2010, 5, 17, 23, 59, 59, 0, time.UTC))
	second := interval(0, time.Date(2010, 5, 18, 0, 0, 0, 0, time.UTC), time.Time{})
	other := interval(0, time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{})
	other.StationCode = "bogt"

	lines := []string{
		"*SITE  Station Name      Session Start      Session Stop       Ant Ht",
		models.FormatStationInfoLine(&first, "Brasilia"),
		models.FormatStationInfoLine(&second, "Brasilia"),
		models.FormatStationInfoLine(&other, "Bogota"),
		" BRAZ  truncated",
		"",
	}
	return []byte(strings.Join(lines, "\n"))
}

func newTestImportService(repair RepairClient) (*ImportService, *metrics.Collector) {
	collector := metrics.NewCollector("station_review", prometheus.NewRegistry())
	return NewImportService(repair, testLogger(), collector), collector
}

func TestImportService_Preview(t *testing.T) {
	svc, collector := newTestImportService(&fakeRepair{})

	preview, err := svc.Preview(context.Background(), braz, stationInfoFile(t))
	require.NoError(t, err)

	assert.Equal(t, "igs.braz", preview.Station)
	assert.Equal(t, 4, preview.TotalLines)
	assert.Equal(t, 1, preview.OtherStations)
	require.Len(t, preview.Candidates, 2)
	require.Len(t, preview.Errors, 1)
	assert.Equal(t, 5, preview.Errors[0].Line)

	first := preview.Candidates[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "igs.braz@2008-05-06T00:00:00Z", first.Key.String())
	assert.Equal(t, "TRIMBLE NETR9", first.Interval.ReceiverCode)
	require.NotNil(t, first.Interval.DateEnd)
	assert.Equal(t, time.Date(2010, 5, 17, 23, 59, 59, 0, time.UTC), *first.Interval.DateEnd)

	assert.True(t, preview.Candidates[1].Interval.IsOpen())
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.ImportParseErrors))
}

func TestImportService_ImportSelected(t *testing.T) {
	repair := &fakeRepair{importResult: &models.ImportResult{
		Created: []models.StationInfoInterval{{ID: 9}},
		Errors:  []models.RecordError{},
	}}
	svc, collector := newTestImportService(repair)

	selected := []models.RecordKey{{
		NetworkCode: "igs",
		StationCode: "braz",
		DateStart:   time.Date(2010, 5, 18, 0, 0, 0, 0, time.UTC),
	}}
	result, err := svc.Import(context.Background(), braz, "station.info", stationInfoFile(t), selected)
	require.NoError(t, err)
	assert.Len(t, result.Created, 1)
	assert.Equal(t, selected, repair.importedKeys)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.ImportRecordsTotal.WithLabelValues("created")))
}

func TestImportService_ImportAllWhenNothingSelected(t *testing.T) {
	repair := &fakeRepair{}
	svc, _ := newTestImportService(repair)

	_, err := svc.Import(context.Background(), braz, "station.info", stationInfoFile(t), nil)
	require.NoError(t, err)
	assert.Len(t, repair.importedKeys, 2)
}

func TestImportService_UnknownKey(t *testing.T) {
	repair := &fakeRepair{}
	svc, _ := newTestImportService(repair)

	selected := []models.RecordKey{{NetworkCode: "igs", StationCode: "braz", DateStart: time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)}}
	_, err := svc.Import(context.Background(), braz, "station.info", stationInfoFile(t), selected)

	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "selected_record_keys", ve.Field)
	assert.Empty(t, repair.importedKeys)
}

func TestImportService_NoRecordsForStation(t *testing.T) {
	svc, _ := newTestImportService(&fakeRepair{})

	other := models.StationID{NetworkCode: "igs", StationCode: "quit"}
	_, err := svc.Import(context.Background(), other, "station.info", stationInfoFile(t), nil)

	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "file", ve.Field)
}

func TestImportService_PartialFailure(t *testing.T) {
	repair := &fakeRepair{importResult: &models.ImportResult{
		Created: []models.StationInfoInterval{{ID: 9}},
		Errors: []models.RecordError{{
			RecordKey: models.RecordKey{NetworkCode: "igs", StationCode: "braz", DateStart: time.Date(2010, 5, 18, 0, 0, 0, 0, time.UTC)},
			Error:     "overlaps station info 3",
		}},
	}}
	svc, collector := newTestImportService(repair)

	result, err := svc.Import(context.Background(), braz, "station.info", stationInfoFile(t), nil)
	require.NotNil(t, result)

	var pie *models.PartialImportError
	require.ErrorAs(t, err, &pie)
	assert.Equal(t, 1, pie.Created)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.ImportRecordsTotal.WithLabelValues("failed")))
}
