package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"forecast-platform/internal/ensemble"
	"forecast-platform/internal/forecast"
	"forecast-platform/internal/models"
	"forecast-platform/internal/repository"
	"forecast-platform/pkg/logging"
	"forecast-platform/pkg/metrics"
)

// ForecastProvider is the service surface the handler needs. Satisfied by
// services.ForecastService; tests substitute a stub.
type ForecastProvider interface {
	Forecast(ctx context.Context, live *models.Observation, hours int) (*forecast.Outcome, error)
	GetObservations(ctx context.Context, filter repository.ObservationFilter) ([]*models.Observation, int, error)
}

// ForecastHandler handles forecast API endpoints
type ForecastHandler struct {
	service ForecastProvider
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(service ForecastProvider, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ForecastHandler {
	return &ForecastHandler{
		service: service,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// forecastRequest is the POST /api/forecast body.
type forecastRequest struct {
	Live  *models.RawObservation `json:"live"`
	Hours int                    `json:"hours"`
}

// observationResponse is the wire form of a stored observation.
type observationResponse struct {
	Time          string   `json:"time"`
	Temperature   *float64 `json:"temp,omitempty"`
	DewPoint      *float64 `json:"dwpt,omitempty"`
	Humidity      *float64 `json:"rhum,omitempty"`
	Precipitation *float64 `json:"prcp,omitempty"`
	WindDirection *float64 `json:"wdir,omitempty"`
	WindSpeed     *float64 `json:"wspd,omitempty"`
	Pressure      *float64 `json:"pres,omitempty"`
	Condition     string   `json:"coco,omitempty"`
}

// PostForecast handles POST /api/forecast
func (h *ForecastHandler) PostForecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/forecast").Observe(duration.Seconds())
	}()

	var req forecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if req.Live == nil {
		h.sendError(w, r, "missing 'live' data in payload", http.StatusBadRequest)
		return
	}

	live, err := req.Live.ToObservation()
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Hours < 0 {
		h.sendError(w, r, "hours must be positive", http.StatusBadRequest)
		return
	}

	outcome, err := h.service.Forecast(ctx, live, req.Hours)
	if err != nil {
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			h.sendError(w, r, validationErr.Error(), http.StatusBadRequest)
			return
		}

		var schemaErr *ensemble.SchemaMismatchError
		if errors.As(err, &schemaErr) {
			h.logger.Error(ctx, "[API_FORECAST_SCHEMA_ERROR] Stale artifacts vs pipeline", logging.Fields{}, err)
			h.metrics.RecordAPIError("schema_mismatch", "/api/forecast")
			h.sendError(w, r, "forecast unavailable: model artifacts do not match pipeline", http.StatusInternalServerError)
			return
		}

		h.logger.Error(ctx, "[API_FORECAST_ERROR] Forecast failed", logging.Fields{
			"hours": req.Hours,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/forecast")
		h.sendError(w, r, "forecast failed", http.StatusInternalServerError)
		return
	}

	// A truncated horizon is not an error; the caller sees fewer array
	// entries and the reason in a header.
	if outcome.Truncated {
		w.Header().Set("X-Forecast-Truncated", outcome.TruncationReason)
	}

	h.metrics.RecordAPIRequest("/api/forecast", "POST", "200")
	h.sendJSON(w, outcome.Results, http.StatusOK)
}

// GetObservations handles GET /api/observations
func (h *ForecastHandler) GetObservations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/observations").Observe(duration.Seconds())
	}()

	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	pageStr := r.URL.Query().Get("page")
	limitStr := r.URL.Query().Get("limit")

	page := 1
	limit := 100

	if pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	filter := repository.ObservationFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if startStr != "" {
		start, err := models.ParseTimestamp(startStr)
		if err != nil {
			h.sendError(w, r, "invalid start timestamp", http.StatusBadRequest)
			return
		}
		filter.StartTime = &start
	}

	if endStr != "" {
		end, err := models.ParseTimestamp(endStr)
		if err != nil {
			h.sendError(w, r, "invalid end timestamp", http.StatusBadRequest)
			return
		}
		filter.EndTime = &end
	}

	observations, total, err := h.service.GetObservations(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_OBSERVATIONS_ERROR] Failed to get observations", logging.Fields{
			"filter": filter,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/observations")
		h.sendError(w, r, "failed to retrieve observations", http.StatusInternalServerError)
		return
	}

	data := make([]observationResponse, 0, len(observations))
	for _, obs := range observations {
		data = append(data, observationResponse{
			Time:          obs.Timestamp.Format(time.RFC3339),
			Temperature:   obs.Temperature,
			DewPoint:      obs.DewPoint,
			Humidity:      obs.Humidity,
			Precipitation: obs.Precipitation,
			WindDirection: obs.WindDirection,
			WindSpeed:     obs.WindSpeed,
			Pressure:      obs.Pressure,
			Condition:     obs.Condition.String(),
		})
	}

	response := PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}

	h.metrics.RecordAPIRequest("/api/observations", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *ForecastHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// sendJSON sends a JSON response
func (h *ForecastHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *ForecastHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all forecast API routes
func (h *ForecastHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/forecast", h.PostForecast).Methods("POST")
	router.HandleFunc("/api/observations", h.GetObservations).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
