package services

import (
	"context"
	"fmt"
	"time"

	"forecast-platform/internal/liveweather"
	"forecast-platform/internal/repository"
	"forecast-platform/pkg/logging"
	"forecast-platform/pkg/metrics"
)

// CollectorService keeps the stored observation series current by fetching
// live conditions and upserting them into the hourly series.
type CollectorService struct {
	repo    repository.ObservationRepository
	client  *liveweather.Client
	city    string
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewCollectorService creates a new collector service
func NewCollectorService(
	repo repository.ObservationRepository,
	client *liveweather.Client,
	city string,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *CollectorService {
	return &CollectorService{
		repo:    repo,
		client:  client,
		city:    city,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CollectOnce fetches the current conditions and stores them under their
// hour. Re-collecting within the same hour replaces that hour's row.
func (s *CollectorService) CollectOnce(ctx context.Context) error {
	s.metrics.LiveFetchesTotal.Inc()

	obs, err := s.client.Current(ctx, s.city)
	if err != nil {
		s.metrics.LiveFetchErrorsTotal.Inc()
		s.logger.Error(ctx, "[COLLECT_FETCH_ERROR] Live weather fetch failed", logging.Fields{
			"city": s.city,
		}, err)
		return fmt.Errorf("failed to fetch live conditions: %w", err)
	}

	obs.Timestamp = obs.Timestamp.Truncate(time.Hour)

	if err := s.repo.UpsertObservation(ctx, obs); err != nil {
		s.logger.Error(ctx, "[COLLECT_STORE_ERROR] Failed to store observation", logging.Fields{
			"observed_at": obs.Timestamp.Format(time.RFC3339),
		}, err)
		return err
	}

	s.logger.Info(ctx, "[COLLECT_COMPLETE] Live observation stored", logging.Fields{
		"city":        s.city,
		"observed_at": obs.Timestamp.Format(time.RFC3339),
		"temperature": derefOrNaN(obs.Temperature),
	})

	return nil
}

func derefOrNaN(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
