// Package scheduler runs the periodic live-observation collection job.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"forecast-platform/internal/services"
	"forecast-platform/pkg/logging"
)

// Scheduler periodically collects live conditions into the observation
// store so forecast history stays current.
type Scheduler struct {
	scheduler *gocron.Scheduler
	collector *services.CollectorService
	interval  time.Duration
	logger    *logging.StructuredLogger
}

// New creates a new Scheduler.
func New(collector *services.CollectorService, interval time.Duration, logger *logging.StructuredLogger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		collector: collector,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the collection job and starts the underlying scheduler.
// The first run happens immediately so a fresh deployment has at least one
// stored row before the first scheduled tick.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).StartImmediately().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.collector.CollectOnce(ctx); err != nil {
			s.logger.Error(ctx, "[SCHEDULER_JOB_ERROR] Collection job failed", logging.Fields{}, err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()

	s.logger.Info(context.Background(), "[SCHEDULER_START] Collection job scheduled", logging.Fields{
		"interval": s.interval.String(),
	})
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
