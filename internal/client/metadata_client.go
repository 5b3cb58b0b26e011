package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"station-review/internal/models"
	"station-review/pkg/logging"
)

// maxErrorBody bounds how much of an error response is kept
const maxErrorBody = 4 << 10

// StatusError is an unexpected HTTP status from the metadata service
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// IsTransient reports whether the status is worth retrying later
func (e *StatusError) IsTransient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// MetadataClient talks to the station metadata REST service
type MetadataClient struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *logging.StructuredLogger
}

// NewMetadataClient creates a client for baseURL. A nil httpClient uses one
// with the given timeout.
func NewMetadataClient(baseURL, token string, timeout time.Duration, httpClient *http.Client, logger *logging.StructuredLogger) *MetadataClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &MetadataClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
		logger:  logger,
	}
}

func (c *MetadataClient) url(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func stationPath(station models.StationID, suffix string) string {
	return "/api/stations/" + url.PathEscape(station.String()) + suffix
}

func (c *MetadataClient) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id := logging.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	return req, nil
}

// do sends req and returns the response for 2xx statuses. Other statuses are
// returned as *StatusError with the body drained.
func (c *MetadataClient) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}

	c.logger.Debug(req.Context(), "[METADATA_HTTP] Request completed", logging.Fields{
		"method":      req.Method,
		"path":        req.URL.Path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method:     req.Method,
			URL:        req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}

func (c *MetadataClient) getJSON(ctx context.Context, rawURL string, dest interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// rinexPayload accepts a bare array or an object wrapping it in "data"
type rinexPayload []models.RinexObservation

func (p *rinexPayload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, (*[]models.RinexObservation)(p))
	}
	var wrapped struct {
		Data []models.RinexObservation `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	*p = wrapped.Data
	return nil
}

// FetchStationRinex returns the station's RINEX records with the status the
// service computed for each
func (c *MetadataClient) FetchStationRinex(ctx context.Context, station models.StationID, params models.FilterParams) ([]models.RinexObservation, error) {
	var payload rinexPayload
	err := c.getJSON(ctx, c.url(stationPath(station, "/rinex-with-status"), params.Values()), &payload)
	if err != nil {
		return nil, &models.FetchError{Station: station.String(), Op: "rinex", Err: err}
	}
	if payload == nil {
		payload = rinexPayload{}
	}
	return payload, nil
}

// FetchStationInfo returns one page of the station's intervals
func (c *MetadataClient) FetchStationInfo(ctx context.Context, station models.StationID, page models.PageParams) (*models.IntervalPage, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}

	var result models.IntervalPage
	err := c.getJSON(ctx, c.url(stationPath(station, "/station-info"), page.Values()), &result)
	if err != nil {
		return nil, &models.FetchError{Station: station.String(), Op: "station info", Err: err}
	}
	if result.Data == nil {
		result.Data = []models.StationInfoInterval{}
	}
	return &result, nil
}

// sendJSON sends body as JSON and decodes a JSON response into dest. A 400
// response is decoded as field errors into a RepairActionError.
func (c *MetadataClient) sendJSON(ctx context.Context, method, rawURL string, intervalID int64, body, dest interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, method, rawURL, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusBadRequest {
			return &models.RepairActionError{IntervalID: intervalID, Fields: parseFieldErrors(se.Body)}
		}
		return err
	}
	defer resp.Body.Close()

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// parseFieldErrors reads a {"field": ["message", ...]} body. Values may also
// be single strings; a body that is not an object becomes a non_field_errors
// entry.
func parseFieldErrors(body string) map[string][]string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return map[string][]string{"non_field_errors": {body}}
	}

	fields := make(map[string][]string, len(raw))
	for field, v := range raw {
		var list []string
		if err := json.Unmarshal(v, &list); err == nil {
			fields[field] = list
			continue
		}
		var single string
		if err := json.Unmarshal(v, &single); err == nil {
			fields[field] = []string{single}
			continue
		}
		fields[field] = []string{string(v)}
	}
	return fields
}

// SubmitIntervalExtension moves one boundary of an interval to ts
func (c *MetadataClient) SubmitIntervalExtension(ctx context.Context, intervalID int64, boundary models.Boundary, ts time.Time) error {
	if !boundary.Valid() {
		return &models.ValidationError{Field: "boundary", Value: string(boundary), Message: "must be start or end"}
	}

	body := map[string]string{
		"date_" + string(boundary): ts.UTC().Format(time.RFC3339),
	}
	path := "/api/station-info/" + strconv.FormatInt(intervalID, 10)
	return c.sendJSON(ctx, http.MethodPatch, c.url(path, nil), intervalID, body, nil)
}

// CreateInterval creates a station info interval and returns it as stored
func (c *MetadataClient) CreateInterval(ctx context.Context, station models.StationID, draft models.StationInfoInterval) (*models.StationInfoInterval, error) {
	var created models.StationInfoInterval
	if err := c.sendJSON(ctx, http.MethodPost, c.url(stationPath(station, "/station-info"), nil), 0, draft, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// SubmitIntervalFromFile uploads a station.info file and asks the service to
// create the selected records. Records that fail are reported in the result
// and as a *models.PartialImportError.
func (c *MetadataClient) SubmitIntervalFromFile(ctx context.Context, station models.StationID, filename string, content []byte, keys []models.RecordKey) (*models.ImportResult, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}

	selected, err := json.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("encode selected records: %w", err)
	}
	if err := w.WriteField("selected_record_keys", string(selected)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.url(stationPath(station, "/station-info/import"), nil), &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusBadRequest {
			return nil, &models.RepairActionError{Fields: parseFieldErrors(se.Body)}
		}
		return nil, err
	}
	defer resp.Body.Close()

	var result models.ImportResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if result.Created == nil {
		result.Created = []models.StationInfoInterval{}
	}
	if result.Errors == nil {
		result.Errors = []models.RecordError{}
	}

	if result.Failed() {
		return &result, &models.PartialImportError{Failed: result.Errors, Created: len(result.Created)}
	}
	return &result, nil
}

// CompletionPlot is an image returned by the metadata service
type CompletionPlot struct {
	ContentType string
	Data        []byte
}

// FetchCompletionPlot returns the station's completion plot image
func (c *MetadataClient) FetchCompletionPlot(ctx context.Context, station models.StationID) (*CompletionPlot, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.url(stationPath(station, "/completion-plot"), nil), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")

	resp, err := c.do(req)
	if err != nil {
		return nil, &models.FetchError{Station: station.String(), Op: "completion plot", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.FetchError{Station: station.String(), Op: "completion plot", Err: err}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &CompletionPlot{ContentType: contentType, Data: data}, nil
}
