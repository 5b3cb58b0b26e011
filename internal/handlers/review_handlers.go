package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"station-review/internal/client"
	"station-review/internal/models"
	"station-review/internal/reconcile"
	"station-review/internal/repository"
	"station-review/internal/services"
	"station-review/pkg/logging"
	"station-review/pkg/metrics"
)

// DefaultMaxUploadBytes bounds station.info uploads
const DefaultMaxUploadBytes = 4 << 20

// HealthChecker is implemented by snapshot sources that can check their
// backing store
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ReviewHandler handles station review API endpoints
type ReviewHandler struct {
	reviewService *services.ReviewService
	importService *services.ImportService
	health        HealthChecker
	logger        *logging.StructuredLogger
	metrics       *metrics.Collector

	MaxUploadBytes int64
}

// NewReviewHandler creates a new review handler. health may be nil.
func NewReviewHandler(
	reviewService *services.ReviewService,
	importService *services.ImportService,
	health HealthChecker,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *ReviewHandler {
	return &ReviewHandler{
		reviewService:  reviewService,
		importService:  importService,
		health:         health,
		logger:         logger,
		metrics:        metricsCollector,
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Code    int                 `json:"code"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// PageResponse is the view after a page change
type PageResponse struct {
	Changed bool                 `json:"changed"`
	View    *services.ReviewView `json:"view"`
}

// ImportResponse is the outcome of a station.info upload
type ImportResponse struct {
	Result *models.ImportResult `json:"result"`
	View   *services.ReviewView `json:"view,omitempty"`
}

func (h *ReviewHandler) station(w http.ResponseWriter, r *http.Request) (models.StationID, bool) {
	station, err := models.ParseStationID(mux.Vars(r)["station"])
	if err != nil {
		h.sendError(w, r, err)
		return models.StationID{}, false
	}
	return station, true
}

// GetReview handles GET /api/stations/{station}/review
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	station, ok := h.station(w, r)
	if !ok {
		return
	}

	view, err := h.reviewService.View(r.Context(), station)
	h.sendView(w, r, view, err)
}

// Refresh handles POST /api/stations/{station}/review/refresh
func (h *ReviewHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	station, ok := h.station(w, r)
	if !ok {
		return
	}

	view, err := h.reviewService.Refresh(r.Context(), station)
	h.sendView(w, r, view, err)
}

// ApplyFilter handles POST /api/stations/{station}/review/filter. Filter
// inputs come from the query string or a form body.
func (h *ReviewHandler) ApplyFilter(w http.ResponseWriter, r *http.Request) {
	station, ok := h.station(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		h.sendError(w, r, &models.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	params := models.FilterParamsFromQuery(r.Form)

	view, err := h.reviewService.ApplyFilter(r.Context(), station, params)
	h.sendView(w, r, view, err)
}

// GotoPage handles POST /api/stations/{station}/review/page/{page}
func (h *ReviewHandler) GotoPage(w http.ResponseWriter, r *http.Request) {
	station, ok := h.station(w, r)
	if !ok {
		return
	}

	raw := mux.Vars(r)["page"]
	page, err := strconv.Atoi(raw)
	if err != nil {
		h.sendError(w, r, &models.ValidationError{Field: "page", Value: raw, Message: "must be an integer"})
		return
	}

	view, changed, err := h.reviewService.GotoPage(r.Context(), station, page)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, PageResponse{Changed: changed, View: view}, http.StatusOK)
}

// ExecuteAction handles POST /api/stations/{station}/review/subgroups/{subgroup}/{action}.
// An optional sequence query parameter pins the snapshot the subgroup id
// was read from.
func (h *ReviewHandler) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	station, ok := h.station(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	action, ok := reconcile.ParseRepairAction(vars["action"])
	if !ok {
		h.sendError(w, r, &models.ValidationError{Field: "action", Value: vars["action"], Message: "unknown repair action"})
		return
	}

	var sequence uint64
	if raw := r.URL.Query().Get("sequence"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.sendError(w, r, &models.ValidationError{Field: "sequence", Value: raw, Message: "must be a positive integer"})
			return
		}
		sequence = n
	}

	result, err := h.reviewService.ExecuteAction(ctx, station, vars["subgroup"], action, sequence)
	if result == nil {
		h.sendError(w, r, err)
		return
	}
	if err != nil {
		// applied, but the refetch failed; the view carries the error
		h.logger.WarnErr(ctx, "[API_ACTION] Refresh after repair action failed", logging.Fields{
			"station": station.String(),
			"action":  string(action),
		}, err)
	}

	h.sendJSON(w, result, http.StatusOK)
}

// ImportStationInfo handles POST /api/stations/{station}/station-info/import.
// With preview=true the file is only parsed.
func (h *ReviewHandler) ImportStationInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	station, ok := h.station(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		h.sendError(w, r, &models.ValidationError{Field: "file", Message: "expected a multipart upload: " + err.Error()})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.sendError(w, r, &models.ValidationError{Field: "file", Message: "station.info file is required"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.sendError(w, r, &models.ValidationError{Field: "file", Value: header.Filename, Message: err.Error()})
		return
	}

	if preview, _ := strconv.ParseBool(r.FormValue("preview")); preview {
		result, err := h.importService.Preview(ctx, station, content)
		if err != nil {
			h.sendError(w, r, err)
			return
		}
		h.sendJSON(w, result, http.StatusOK)
		return
	}

	var selected []models.RecordKey
	if raw := r.FormValue("selected_record_keys"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &selected); err != nil {
			h.sendError(w, r, &models.ValidationError{Field: "selected_record_keys", Value: raw, Message: "must be a JSON list of record keys"})
			return
		}
	}

	result, importErr := h.importService.Import(ctx, station, header.Filename, content, selected)
	if result == nil {
		h.sendError(w, r, importErr)
		return
	}

	response := ImportResponse{Result: result}
	if len(result.Created) > 0 {
		view, err := h.reviewService.AfterImport(ctx, station)
		if err != nil {
			h.logger.WarnErr(ctx, "[API_IMPORT] Refresh after import failed", logging.Fields{
				"station": station.String(),
			}, err)
		}
		response.View = view
	}

	status := http.StatusOK
	var partial *models.PartialImportError
	if errors.As(importErr, &partial) {
		status = http.StatusMultiStatus
	} else if importErr != nil {
		h.sendError(w, r, importErr)
		return
	}

	h.sendJSON(w, response, status)
}

// CompletionPlot handles GET /api/stations/{station}/completion-plot
func (h *ReviewHandler) CompletionPlot(w http.ResponseWriter, r *http.Request) {
	station, ok := h.station(w, r)
	if !ok {
		return
	}

	plot, err := h.reviewService.CompletionPlot(r.Context(), station)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	contentType := plot.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(plot.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(plot.Data)
}

// HealthCheck handles GET /health
func (h *ReviewHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if h.health != nil {
		if err := h.health.HealthCheck(ctx); err != nil {
			h.logger.Error(ctx, "[HEALTH_CHECK] Snapshot source unhealthy", logging.Fields{}, err)
			status["status"] = "unhealthy"
			status["error"] = err.Error()
			h.sendJSON(w, status, http.StatusServiceUnavailable)
			return
		}
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// sendView answers with the view when one was loaded, even if the latest
// fetch failed. Without any snapshot the error is returned instead.
func (h *ReviewHandler) sendView(w http.ResponseWriter, r *http.Request, view *services.ReviewView, err error) {
	if err != nil {
		var fe *models.FetchError
		if !errors.As(err, &fe) || view == nil || !view.HasSnapshot() {
			h.sendError(w, r, err)
			return
		}
		h.metrics.RecordAPIError("fetch_error", r.URL.Path)
	}
	h.sendJSON(w, view, http.StatusOK)
}

// sendJSON sends a JSON response
func (h *ReviewHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError maps service errors to status codes and sends an error response
func (h *ReviewHandler) sendError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve  *models.ValidationError
		rae *models.RepairActionError
		nf  *repository.NotFoundError
		fe  *models.FetchError
		se  *client.StatusError
	)

	response := ErrorResponse{Message: err.Error()}
	errorType := "internal_error"

	switch {
	case errors.As(err, &ve):
		response.Code, errorType = http.StatusBadRequest, "validation_error"
		if ve.Field != "" {
			response.Fields = map[string][]string{ve.Field: {ve.Message}}
		}
	case errors.As(err, &rae):
		response.Code, errorType = http.StatusUnprocessableEntity, "repair_rejected"
		response.Fields = rae.Fields
	case errors.As(err, &nf):
		response.Code, errorType = http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrSnapshotChanged):
		response.Code, errorType = http.StatusConflict, "snapshot_changed"
	case errors.As(err, &fe), errors.As(err, &se):
		response.Code, errorType = http.StatusBadGateway, "upstream_error"
	case errors.Is(err, context.DeadlineExceeded):
		response.Code, errorType = http.StatusGatewayTimeout, "timeout"
	default:
		response.Code = http.StatusInternalServerError
		response.Message = "internal server error"
	}
	response.Error = http.StatusText(response.Code)

	logFields := logging.Fields{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": response.Code,
	}
	if response.Code >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logFields, err)
	} else {
		h.logger.WarnErr(r.Context(), "[API_ERROR] Request rejected", logFields, err)
	}

	h.metrics.RecordAPIError(errorType, r.URL.Path)
	h.sendJSON(w, response, response.Code)
}

// RegisterRoutes registers all review API routes
func (h *ReviewHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/stations/{station}").Subrouter()
	api.HandleFunc("/review", h.GetReview).Methods("GET")
	api.HandleFunc("/review/refresh", h.Refresh).Methods("POST")
	api.HandleFunc("/review/filter", h.ApplyFilter).Methods("POST")
	api.HandleFunc("/review/page/{page}", h.GotoPage).Methods("POST")
	api.HandleFunc("/review/subgroups/{subgroup}/{action}", h.ExecuteAction).Methods("POST")
	api.HandleFunc("/station-info/import", h.ImportStationInfo).Methods("POST")
	api.HandleFunc("/completion-plot", h.CompletionPlot).Methods("GET")

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc(docsPath, SwaggerUI).Methods("GET")
	router.HandleFunc(openAPIPath, OpenAPISpec).Methods("GET")
}
