package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"forecast-platform/internal/models"
	"forecast-platform/pkg/database"
	"forecast-platform/pkg/logging"
	"forecast-platform/pkg/metrics"
)

// ObservationRepository provides data access for the hourly observation
// series backing forecasts.
type ObservationRepository interface {
	UpsertObservation(ctx context.Context, obs *models.Observation) error
	UpsertObservationsBatch(ctx context.Context, observations []*models.Observation) error

	// RecentObservations returns the newest `hours` rows in ascending
	// timestamp order, ready to serve as forecast history.
	RecentObservations(ctx context.Context, hours int) (*models.Table, error)
	LatestObservation(ctx context.Context) (*models.Observation, error)
	GetObservations(ctx context.Context, filter ObservationFilter) ([]*models.Observation, int, error)

	HealthCheck(ctx context.Context) error
}

// ObservationFilter defines filters for querying observations
type ObservationFilter struct {
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// observationRow is the database shape of an observation. The condition
// signal is split into its numeric and textual forms.
type observationRow struct {
	ObservedAt    time.Time       `db:"observed_at"`
	Temperature   sql.NullFloat64 `db:"temperature_celsius"`
	DewPoint      sql.NullFloat64 `db:"dew_point_celsius"`
	Humidity      sql.NullFloat64 `db:"relative_humidity_pct"`
	Precipitation sql.NullFloat64 `db:"precipitation_mm"`
	WindDirection sql.NullFloat64 `db:"wind_direction_deg"`
	WindSpeed     sql.NullFloat64 `db:"wind_speed_kmh"`
	Pressure      sql.NullFloat64 `db:"pressure_hpa"`
	ConditionCode sql.NullFloat64 `db:"condition_code"`
	ConditionText sql.NullString  `db:"condition_text"`
}

func (r *observationRow) toModel() *models.Observation {
	obs := &models.Observation{Timestamp: r.ObservedAt}
	obs.Temperature = nullToPtr(r.Temperature)
	obs.DewPoint = nullToPtr(r.DewPoint)
	obs.Humidity = nullToPtr(r.Humidity)
	obs.Precipitation = nullToPtr(r.Precipitation)
	obs.WindDirection = nullToPtr(r.WindDirection)
	obs.WindSpeed = nullToPtr(r.WindSpeed)
	obs.Pressure = nullToPtr(r.Pressure)
	if r.ConditionText.Valid {
		obs.Condition = models.SignalFromText(r.ConditionText.String)
	} else if r.ConditionCode.Valid {
		obs.Condition = models.SignalFromCode(r.ConditionCode.Float64)
	}
	return obs
}

func nullToPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func ptrToNull(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func conditionColumns(obs *models.Observation) (sql.NullFloat64, sql.NullString) {
	var code sql.NullFloat64
	var text sql.NullString
	if obs.Condition.Code != nil {
		code = sql.NullFloat64{Float64: *obs.Condition.Code, Valid: true}
	}
	if obs.Condition.Text != nil {
		text = sql.NullString{String: *obs.Condition.Text, Valid: true}
	}
	return code, text
}

// observationRepository implements ObservationRepository
type observationRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewObservationRepository creates a new observation repository
func NewObservationRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) ObservationRepository {
	return &observationRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

const upsertObservationQuery = `
	INSERT INTO observations (
		observed_at,
		temperature_celsius, dew_point_celsius, relative_humidity_pct,
		precipitation_mm, wind_direction_deg, wind_speed_kmh, pressure_hpa,
		condition_code, condition_text,
		created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (observed_at) DO UPDATE SET
		temperature_celsius = EXCLUDED.temperature_celsius,
		dew_point_celsius = EXCLUDED.dew_point_celsius,
		relative_humidity_pct = EXCLUDED.relative_humidity_pct,
		precipitation_mm = EXCLUDED.precipitation_mm,
		wind_direction_deg = EXCLUDED.wind_direction_deg,
		wind_speed_kmh = EXCLUDED.wind_speed_kmh,
		pressure_hpa = EXCLUDED.pressure_hpa,
		condition_code = EXCLUDED.condition_code,
		condition_text = EXCLUDED.condition_text
`

// UpsertObservation inserts or replaces the observation for its hour.
func (r *observationRepository) UpsertObservation(ctx context.Context, obs *models.Observation) error {
	code, text := conditionColumns(obs)

	_, err := r.db.ExecContext(ctx, "upsert_observation", upsertObservationQuery,
		obs.Timestamp,
		ptrToNull(obs.Temperature),
		ptrToNull(obs.DewPoint),
		ptrToNull(obs.Humidity),
		ptrToNull(obs.Precipitation),
		ptrToNull(obs.WindDirection),
		ptrToNull(obs.WindSpeed),
		ptrToNull(obs.Pressure),
		code,
		text,
		time.Now().UTC(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert observation: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_UPSERT_OBSERVATION] Observation stored", logging.Fields{
		"observed_at": obs.Timestamp.Format(time.RFC3339),
	})

	return nil
}

// UpsertObservationsBatch stores multiple observations in a single transaction
func (r *observationRepository) UpsertObservationsBatch(ctx context.Context, observations []*models.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.IngestionBatchSize.Observe(float64(len(observations)))
		r.logger.Debug(ctx, "[REPO_BATCH_UPSERT] Batch upsert completed", logging.Fields{
			"count":       len(observations),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertObservationQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, obs := range observations {
		code, text := conditionColumns(obs)
		_, err := stmt.ExecContext(ctx,
			obs.Timestamp,
			ptrToNull(obs.Temperature),
			ptrToNull(obs.DewPoint),
			ptrToNull(obs.Humidity),
			ptrToNull(obs.Precipitation),
			ptrToNull(obs.WindDirection),
			ptrToNull(obs.WindSpeed),
			ptrToNull(obs.Pressure),
			code,
			text,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.IngestionRecordsTotal.Add(float64(len(observations)))

	return nil
}

// RecentObservations returns the newest rows in ascending timestamp order
func (r *observationRepository) RecentObservations(ctx context.Context, hours int) (*models.Table, error) {
	query := `
		SELECT observed_at,
		       temperature_celsius, dew_point_celsius, relative_humidity_pct,
		       precipitation_mm, wind_direction_deg, wind_speed_kmh, pressure_hpa,
		       condition_code, condition_text
		FROM (
			SELECT * FROM observations ORDER BY observed_at DESC LIMIT $1
		) AS recent
		ORDER BY observed_at ASC
	`

	var rows []observationRow
	if err := r.db.SelectContext(ctx, "recent_observations", &rows, query, hours); err != nil {
		return nil, fmt.Errorf("failed to get recent observations: %w", err)
	}

	table := models.NewTable()
	for i := range rows {
		table.Append(*rows[i].toModel())
	}
	return table, nil
}

// LatestObservation returns the newest stored observation
func (r *observationRepository) LatestObservation(ctx context.Context) (*models.Observation, error) {
	query := `
		SELECT observed_at,
		       temperature_celsius, dew_point_celsius, relative_humidity_pct,
		       precipitation_mm, wind_direction_deg, wind_speed_kmh, pressure_hpa,
		       condition_code, condition_text
		FROM observations
		ORDER BY observed_at DESC
		LIMIT 1
	`

	var row observationRow
	err := r.db.GetContext(ctx, "latest_observation", &row, query)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "observation", ID: "latest"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest observation: %w", err)
	}

	return row.toModel(), nil
}

// GetObservations retrieves observations with filtering and pagination
func (r *observationRepository) GetObservations(ctx context.Context, filter ObservationFilter) ([]*models.Observation, int, error) {
	query := `
		SELECT observed_at,
		       temperature_celsius, dew_point_celsius, relative_humidity_pct,
		       precipitation_mm, wind_direction_deg, wind_speed_kmh, pressure_hpa,
		       condition_code, condition_text
		FROM observations
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.StartTime != nil {
		query += fmt.Sprintf(" AND observed_at >= $%d", argNum)
		args = append(args, *filter.StartTime)
		argNum++
	}

	if filter.EndTime != nil {
		query += fmt.Sprintf(" AND observed_at <= $%d", argNum)
		args = append(args, *filter.EndTime)
		argNum++
	}

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	err := r.db.GetContext(ctx, "count_observations", &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count observations: %w", err)
	}

	query += " ORDER BY observed_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	var rows []observationRow
	err = r.db.SelectContext(ctx, "get_observations", &rows, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get observations: %w", err)
	}

	observations := make([]*models.Observation, 0, len(rows))
	for i := range rows {
		observations = append(observations, rows[i].toModel())
	}

	return observations, totalCount, nil
}

// HealthCheck performs a repository health check
func (r *observationRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
