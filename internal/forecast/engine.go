// Package forecast implements the recursive multi-step forecasting engine:
// an autoregressive loop that predicts one hour ahead, appends the
// prediction as a synthetic observation, and repeats. Each iteration
// depends on the previous one's output, so the loop is inherently
// sequential; parallelism is only available across independent requests.
package forecast

import (
	"context"
	"time"

	"forecast-platform/internal/condition"
	"forecast-platform/internal/models"
	"forecast-platform/internal/pipeline"
	"forecast-platform/pkg/logging"
	"forecast-platform/pkg/metrics"
)

// Models is the prediction capability the engine consumes. The loaded
// artifact ensemble satisfies it; tests inject synthetic models.
type Models interface {
	ExpectedFeatures() []string
	Scale(columns map[string]float64) ([]float64, error)
	PredictTemperature(scaled []float64) float64
	PredictPrecipitation(scaled []float64) float64
	PredictConditionClass(scaled []float64) int
	DecodeCondition(classID int) (condition.Category, error)
}

// Result is one predicted hour. Immutable once emitted; results are
// returned in chronological order.
type Result struct {
	Time          time.Time          `json:"time"`
	Temperature   float64            `json:"predicted_temperature_celsius"`
	Precipitation float64            `json:"predicted_rainfall_mm_per_hour"`
	Condition     condition.Category `json:"predicted_weather_condition"`
}

// Outcome is the partial-success result of a forecast call. A horizon cut
// short by insufficient history is not an error: callers distinguish
// "fewer results than requested" via Truncated.
type Outcome struct {
	Results          []Result
	HoursRequested   int
	Truncated        bool
	TruncationReason string
}

// maxLiveGap caps how far a live observation may run ahead of the newest
// history row. Beyond that the history carries no usable lag signal anyway.
const maxLiveGap = 7 * 24 * time.Hour

// Engine runs the recursive forecast loop against an injected model
// ensemble. The ensemble is read-only; one Engine serves concurrent
// requests, each call owning its working table.
type Engine struct {
	models  Models
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewEngine creates a forecast engine.
func NewEngine(models Models, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Engine {
	return &Engine{
		models:  models,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Forecast predicts up to horizonHours hourly steps from the given history
// and live observation. Deterministic: the same inputs against the same
// artifacts reproduce the same sequence.
func (e *Engine) Forecast(ctx context.Context, history *models.Table, live *models.Observation, horizonHours int) (*Outcome, error) {
	startTime := time.Now()

	if horizonHours < 1 {
		return nil, &models.ValidationError{
			Field:   "hours",
			Message: "forecast horizon must be at least 1 hour",
		}
	}
	if live == nil {
		return nil, &models.ValidationError{
			Field:   "live",
			Message: "missing live observation",
		}
	}
	if history == nil {
		history = models.NewTable()
	}
	if newest, ok := history.SortedByTime().Last(); ok {
		if !live.Timestamp.After(newest.Timestamp) {
			return nil, &models.ValidationError{
				Field:   "live",
				Value:   live.Timestamp.Format(time.RFC3339),
				Message: "live observation must be newer than all history rows",
			}
		}
		// The working grid holds one row per hour between the oldest
		// history row and the live row, so the gap bounds its size.
		if live.Timestamp.Sub(newest.Timestamp) > maxLiveGap {
			return nil, &models.ValidationError{
				Field:   "live",
				Value:   live.Timestamp.Format(time.RFC3339),
				Message: "live observation is too far ahead of stored history",
			}
		}
	}

	e.logger.Debug(ctx, "[FORECAST_START] Starting recursive forecast", logging.Fields{
		"history_rows":  history.Len(),
		"live_time":     live.Timestamp.Format(time.RFC3339),
		"horizon_hours": horizonHours,
	})

	// History rows already carry exactly the canonical eight fields by
	// construction of the Observation type; concatenating the live row
	// forms the working table the loop extends.
	working := history.Clone()
	working.Append(*live)

	outcome := &Outcome{
		Results:        make([]Result, 0, horizonHours),
		HoursRequested: horizonHours,
	}

	for hour := 1; hour <= horizonHours; hour++ {
		normalized := pipeline.Normalize(working)
		features := pipeline.Derive(normalized)

		if len(features) == 0 {
			outcome.Truncated = true
			outcome.TruncationReason = "insufficient history to derive lag and rolling features"
			e.metrics.ForecastTruncatedTotal.Inc()
			e.logger.Warn(ctx, "[FORECAST_TRUNCATED] Stopping early, feature table empty", logging.Fields{
				"hours_produced":  len(outcome.Results),
				"hours_requested": horizonHours,
				"working_rows":    working.Len(),
			})
			break
		}

		latest := features[len(features)-1]

		scaled, err := e.models.Scale(latest.Columns)
		if err != nil {
			e.logger.Error(ctx, "[FORECAST_SCHEMA_ERROR] Feature schema rejected by ensemble", logging.Fields{
				"feature_time": latest.Timestamp.Format(time.RFC3339),
			}, err)
			return nil, err
		}

		tempPred := e.models.PredictTemperature(scaled)
		prcpPred := e.models.PredictPrecipitation(scaled)
		classID := e.models.PredictConditionClass(scaled)
		category, err := e.models.DecodeCondition(classID)
		if err != nil {
			return nil, err
		}

		nextTime := latest.Timestamp.Add(time.Hour).Truncate(time.Hour)

		outcome.Results = append(outcome.Results, Result{
			Time:          nextTime,
			Temperature:   tempPred,
			Precipitation: prcpPred,
			Condition:     category,
		})

		// Synthesize the next observation: predicted temperature and
		// precipitation, everything unpredicted persisted from the last
		// real or synthetic row. Only these three signals have trained
		// predictors; the persistence of humidity, wind and pressure is
		// deliberate and load-bearing for output parity.
		carried := normalized[len(normalized)-1]
		dewPoint := pipeline.DewPointFromTemperature(tempPred, carried.Humidity)
		synthetic := models.Observation{
			Timestamp:     nextTime,
			Temperature:   &tempPred,
			DewPoint:      &dewPoint,
			Humidity:      &carried.Humidity,
			Precipitation: &prcpPred,
			WindDirection: &carried.WindDirection,
			WindSpeed:     &carried.WindSpeed,
			Pressure:      &carried.Pressure,
			Condition:     models.SignalFromText(string(category)),
		}
		working.Append(synthetic)
	}

	duration := time.Since(startTime)
	e.metrics.ForecastDuration.Observe(duration.Seconds())
	e.metrics.ForecastHoursPredicted.Observe(float64(len(outcome.Results)))

	e.logger.Info(ctx, "[FORECAST_COMPLETE] Forecast produced", logging.Fields{
		"hours_requested": horizonHours,
		"hours_produced":  len(outcome.Results),
		"truncated":       outcome.Truncated,
		"duration_ms":     duration.Milliseconds(),
	})

	return outcome, nil
}
