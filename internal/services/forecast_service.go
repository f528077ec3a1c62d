package services

import (
	"context"
	"time"

	"forecast-platform/internal/config"
	"forecast-platform/internal/forecast"
	"forecast-platform/internal/models"
	"forecast-platform/internal/repository"
	"forecast-platform/pkg/logging"
	"forecast-platform/pkg/metrics"
)

// ForecastService runs forecasts against stored history.
type ForecastService struct {
	repo    repository.ObservationRepository
	engine  *forecast.Engine
	cfg     config.ForecastConfig
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewForecastService creates a new forecast service
func NewForecastService(
	repo repository.ObservationRepository,
	engine *forecast.Engine,
	cfg config.ForecastConfig,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *ForecastService {
	return &ForecastService{
		repo:    repo,
		engine:  engine,
		cfg:     cfg,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Forecast predicts the coming hours from stored history plus the supplied
// live observation. A zero hours value selects the configured default; a
// value beyond the configured maximum is rejected so callers keep latency
// bounded.
func (s *ForecastService) Forecast(ctx context.Context, live *models.Observation, hours int) (*forecast.Outcome, error) {
	if hours == 0 {
		hours = s.cfg.DefaultHours
	}
	if hours < 0 || hours > s.cfg.MaxHours {
		return nil, &models.ValidationError{
			Field:   "hours",
			Message: "hours must be between 1 and the configured maximum",
		}
	}

	history, err := s.repo.RecentObservations(ctx, s.cfg.HistoryHours)
	if err != nil {
		s.metrics.RecordForecastError("history_unavailable")
		return nil, err
	}

	s.logger.Debug(ctx, "[FORECAST_HISTORY] Loaded stored history", logging.Fields{
		"rows":      history.Len(),
		"live_time": live.Timestamp.Format(time.RFC3339),
	})

	return s.engine.Forecast(ctx, history, live, hours)
}

// ForecastWithHistory predicts from caller-supplied history instead of the
// stored series. Backs the ingester's forecast preview.
func (s *ForecastService) ForecastWithHistory(ctx context.Context, history *models.Table, live *models.Observation, hours int) (*forecast.Outcome, error) {
	if hours == 0 {
		hours = s.cfg.DefaultHours
	}
	if hours < 0 || hours > s.cfg.MaxHours {
		return nil, &models.ValidationError{
			Field:   "hours",
			Message: "hours must be between 1 and the configured maximum",
		}
	}
	return s.engine.Forecast(ctx, history, live, hours)
}

// GetObservations retrieves stored observations with filtering
func (s *ForecastService) GetObservations(ctx context.Context, filter repository.ObservationFilter) ([]*models.Observation, int, error) {
	return s.repo.GetObservations(ctx, filter)
}
