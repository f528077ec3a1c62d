package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"forecast-platform/internal/ensemble"
	"forecast-platform/internal/forecast"
	"forecast-platform/internal/models"
	"forecast-platform/internal/repository"
	"forecast-platform/pkg/logging"
	"forecast-platform/pkg/metrics"
)

var testMetrics = metrics.NewCollector("forecast_handlers_test")

func newTestLogger() *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("test", "0.0.0", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	return logger
}

// stubProvider is a canned ForecastProvider.
type stubProvider struct {
	outcome      *forecast.Outcome
	forecastErr  error
	observations []*models.Observation
	total        int
	obsErr       error

	lastLive  *models.Observation
	lastHours int
}

func (s *stubProvider) Forecast(ctx context.Context, live *models.Observation, hours int) (*forecast.Outcome, error) {
	s.lastLive = live
	s.lastHours = hours
	if s.forecastErr != nil {
		return nil, s.forecastErr
	}
	return s.outcome, nil
}

func (s *stubProvider) GetObservations(ctx context.Context, filter repository.ObservationFilter) ([]*models.Observation, int, error) {
	if s.obsErr != nil {
		return nil, 0, s.obsErr
	}
	return s.observations, s.total, nil
}

func newTestRouter(provider ForecastProvider) *mux.Router {
	handler := NewForecastHandler(provider, newTestLogger(), testMetrics)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func validForecastBody() string {
	return `{"live": {"time": "2024-06-01 10:00:00", "temp": 25.0, "rhum": 60.0, "coco": "Clear"}, "hours": 3}`
}

func TestPostForecastSuccess(t *testing.T) {
	resultTime := time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)
	provider := &stubProvider{
		outcome: &forecast.Outcome{
			Results: []forecast.Result{
				{Time: resultTime, Temperature: 24.5, Precipitation: 0.1, Condition: "Clouds"},
			},
			HoursRequested: 3,
		},
	}
	router := newTestRouter(provider)

	req := httptest.NewRequest(http.MethodPost, "/api/forecast", strings.NewReader(validForecastBody()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200; body: %s", rec.Code, rec.Body.String())
	}
	if provider.lastHours != 3 {
		t.Errorf("service received hours = %d, expected 3", provider.lastHours)
	}
	if provider.lastLive == nil || provider.lastLive.Temperature == nil || *provider.lastLive.Temperature != 25.0 {
		t.Errorf("service did not receive the decoded live observation")
	}

	var results []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("response is not a JSON array: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, expected 1", len(results))
	}
	if results[0]["predicted_temperature_celsius"] != 24.5 {
		t.Errorf("predicted_temperature_celsius = %v, expected 24.5", results[0]["predicted_temperature_celsius"])
	}
	if results[0]["predicted_weather_condition"] != "Clouds" {
		t.Errorf("predicted_weather_condition = %v, expected Clouds", results[0]["predicted_weather_condition"])
	}
	if rec.Header().Get("X-Forecast-Truncated") != "" {
		t.Errorf("truncation header set on a complete forecast")
	}
}

func TestPostForecastTruncatedHeader(t *testing.T) {
	provider := &stubProvider{
		outcome: &forecast.Outcome{
			Results:          []forecast.Result{},
			HoursRequested:   5,
			Truncated:        true,
			TruncationReason: "insufficient history to derive lag and rolling features",
		},
	}
	router := newTestRouter(provider)

	req := httptest.NewRequest(http.MethodPost, "/api/forecast", strings.NewReader(validForecastBody()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}
	if got := rec.Header().Get("X-Forecast-Truncated"); got == "" {
		t.Errorf("truncation header missing on a truncated forecast")
	}

	var results []forecast.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("response is not a JSON array: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, expected empty array", len(results))
	}
}

func TestPostForecastBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"live": `},
		{"missing live", `{"hours": 3}`},
		{"live missing temperature", `{"live": {"time": "2024-06-01 10:00:00", "rhum": 60.0}}`},
		{"live missing humidity", `{"live": {"time": "2024-06-01 10:00:00", "temp": 25.0}}`},
		{"negative hours", `{"live": {"time": "2024-06-01 10:00:00", "temp": 25.0, "rhum": 60.0}, "hours": -1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&stubProvider{outcome: &forecast.Outcome{}})

			req := httptest.NewRequest(http.MethodPost, "/api/forecast", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, expected 400; body: %s", rec.Code, rec.Body.String())
			}

			var errResp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
				t.Fatalf("error response is not JSON: %v", err)
			}
			if errResp.Code != http.StatusBadRequest {
				t.Errorf("error code = %d, expected 400", errResp.Code)
			}
		})
	}
}

func TestPostForecastServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "validation error maps to 400",
			err:        &models.ValidationError{Field: "hours", Message: "too many"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "schema mismatch maps to 500",
			err:        &ensemble.SchemaMismatchError{Missing: []string{"temp_lag1"}},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&stubProvider{forecastErr: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/api/forecast", strings.NewReader(validForecastBody()))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, expected %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestGetObservations(t *testing.T) {
	temp := 21.0
	text := "Partly cloudy"
	provider := &stubProvider{
		observations: []*models.Observation{
			{
				Timestamp:   time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
				Temperature: &temp,
				Condition:   models.ConditionSignal{Text: &text},
			},
		},
		total: 1,
	}
	router := newTestRouter(provider)

	req := httptest.NewRequest(http.MethodGet, "/api/observations?page=1&limit=50", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp PaginatedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.Total != 1 || resp.Page != 1 || resp.Limit != 50 || resp.TotalPages != 1 {
		t.Errorf("pagination = total %d page %d limit %d pages %d, expected 1/1/50/1",
			resp.Total, resp.Page, resp.Limit, resp.TotalPages)
	}
}

func TestGetObservationsBadTimestamps(t *testing.T) {
	router := newTestRouter(&stubProvider{})

	req := httptest.NewRequest(http.MethodGet, "/api/observations?start=yesterday", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, expected 400", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(&stubProvider{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}

	var status map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if status["status"] != "healthy" {
		t.Errorf("status = %q, expected healthy", status["status"])
	}
}
