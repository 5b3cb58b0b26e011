package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"station-review/internal/models"
	"station-review/pkg/logging"
)

var braz = models.StationID{NetworkCode: "igs", StationCode: "braz"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *MetadataClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logging.NewStructuredLogger("station-review", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	return NewMetadataClient(srv.URL+"/", "secret", time.Second, srv.Client(), logger)
}

func TestFetchStationRinex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stations/igs.braz/rinex-with-status", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "GREATER_THAN", r.URL.Query().Get("completion_op"))
		assert.Equal(t, "req-7", r.Header.Get("X-Request-ID"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{
			"id": 11, "network_code": "igs", "station_code": "braz",
			"filename": "braz0050.24o",
			"observation_s_time": "2024-01-05T00:00:00Z",
			"observation_e_time": "2024-01-05T23:59:30Z",
			"completion": 0.98,
			"antenna_height": 0.0,
			"has_station_info": true,
			"gap_type": "NONE",
			"metadata_mismatch": ["radome_code"]
		}]`)
	})

	ctx := logging.WithRequestID(context.Background(), "req-7")
	rows, err := c.FetchStationRinex(ctx, braz, models.FilterParams{Completion: "0.9", CompletionOp: "GREATER_THAN"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, int64(11), r.ID)
	assert.Equal(t, models.Measure("0.0"), r.AntennaHeight)
	require.NotNil(t, r.HasStationInfo)
	assert.True(t, *r.HasStationInfo)
	assert.Equal(t, "NONE", r.GapType)
	assert.Equal(t, []string{"radome_code"}, r.MetadataMismatch)
}

func TestFetchStationRinex_WrappedPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data": [{"id": 1}, {"id": 2}]}`)
	})

	rows, err := c.FetchStationRinex(context.Background(), braz, models.FilterParams{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestFetchStationRinex_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
	})

	_, err := c.FetchStationRinex(context.Background(), braz, models.FilterParams{})
	require.Error(t, err)

	var fe *models.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "igs.braz", fe.Station)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.True(t, se.IsTransient())
}

func TestFetchStationInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stations/igs.braz/station-info", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "4", r.URL.Query().Get("offset"))

		io.WriteString(w, `{
			"data": [
				{"id": 5, "date_start": "2024-01-15T00:00:00Z", "date_end": null}
			],
			"total_count": 5
		}`)
	})

	page, err := c.FetchStationInfo(context.Background(), braz, models.PageParams{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalCount)
	require.Len(t, page.Data, 1)
	assert.True(t, page.Data[0].IsOpen())
}

func TestFetchStationInfo_InvalidPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	})

	_, err := c.FetchStationInfo(context.Background(), braz, models.PageParams{Limit: -1})
	var ve *models.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestSubmitIntervalExtension(t *testing.T) {
	ts := time.Date(2024, 1, 14, 23, 59, 30, 0, time.UTC)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/station-info/1", r.URL.Path)

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"date_end": "2024-01-14T23:59:30Z"}, body)
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{}`)
	})

	require.NoError(t, c.SubmitIntervalExtension(context.Background(), 1, models.BoundaryEnd, ts))
}

func TestSubmitIntervalExtension_FieldErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"date_end": ["overlaps station info 2"], "detail": "invalid"}`)
	})

	err := c.SubmitIntervalExtension(context.Background(), 1, models.BoundaryEnd, time.Now())

	var rae *models.RepairActionError
	require.ErrorAs(t, err, &rae)
	assert.Equal(t, int64(1), rae.IntervalID)
	assert.Equal(t, []string{"overlaps station info 2"}, rae.Fields["date_end"])
	assert.Equal(t, []string{"invalid"}, rae.Fields["detail"])
}

func TestSubmitIntervalExtension_InvalidBoundary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	})

	err := c.SubmitIntervalExtension(context.Background(), 1, models.Boundary("middle"), time.Now())
	var ve *models.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestCreateInterval(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/stations/igs.braz/station-info", r.URL.Path)

		var draft models.StationInfoInterval
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&draft))
		draft.ID = 42
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(draft)
	})

	end := time.Date(2024, 1, 3, 23, 59, 30, 0, time.UTC)
	created, err := c.CreateInterval(context.Background(), braz, models.StationInfoInterval{
		NetworkCode: "igs",
		StationCode: "braz",
		DateStart:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:     &end,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)
}

func TestSubmitIntervalFromFile_Partial(t *testing.T) {
	keys := []models.RecordKey{
		{NetworkCode: "igs", StationCode: "braz", DateStart: time.Date(2008, 5, 6, 0, 0, 0, 0, time.UTC)},
		{NetworkCode: "igs", StationCode: "braz", DateStart: time.Date(2010, 5, 18, 0, 0, 0, 0, time.UTC)},
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		assert.Equal(t, "station.info", header.Filename)
		content, _ := io.ReadAll(file)
		assert.Equal(t, "*SITE  Station Name\n", string(content))

		var selected []models.RecordKey
		assert.NoError(t, json.Unmarshal([]byte(r.FormValue("selected_record_keys")), &selected))
		assert.Len(t, selected, 2)

		io.WriteString(w, `{
			"created": [{"id": 9, "network_code": "igs", "station_code": "braz", "date_start": "2008-05-06T00:00:00Z"}],
			"errors": [{"network_code": "igs", "station_code": "braz", "date_start": "2010-05-18T00:00:00Z", "error": "overlaps station info 3"}]
		}`)
	})

	result, err := c.SubmitIntervalFromFile(context.Background(), braz, "station.info", []byte("*SITE  Station Name\n"), keys)
	require.NotNil(t, result)
	assert.Len(t, result.Created, 1)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, keys[1].DateStart, result.Errors[0].DateStart.UTC())

	var pie *models.PartialImportError
	require.ErrorAs(t, err, &pie)
	assert.Equal(t, 1, pie.Created)
	assert.Len(t, pie.Failed, 1)
}

func TestFetchCompletionPlot(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n....")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stations/igs.braz/completion-plot", r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	})

	plot, err := c.FetchCompletionPlot(context.Background(), braz)
	require.NoError(t, err)
	assert.Equal(t, "image/png", plot.ContentType)
	assert.Equal(t, png, plot.Data)
}

func TestParseFieldErrors(t *testing.T) {
	fields := parseFieldErrors("not json")
	assert.Equal(t, []string{"not json"}, fields["non_field_errors"])

	fields = parseFieldErrors(`{"date_start": 5}`)
	assert.Equal(t, []string{"5"}, fields["date_start"])
}
