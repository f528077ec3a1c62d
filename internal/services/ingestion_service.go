package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"forecast-platform/internal/models"
	"forecast-platform/internal/repository"
	"forecast-platform/pkg/logging"
	"forecast-platform/pkg/metrics"
)

// IngestionService loads hourly observation CSV exports into the store.
type IngestionService struct {
	repo    repository.ObservationRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	Duration          time.Duration
	Errors            []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.ObservationRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// expectedHeader is the canonical CSV column order.
var expectedHeader = []string{"time", "temp", "dwpt", "rhum", "prcp", "wdir", "wspd", "pres", "coco"}

// IngestCSV ingests an hourly observation CSV file in batches.
func (s *IngestionService) IngestCSV(ctx context.Context, filePath string, batchSize int) (*IngestionResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting CSV ingestion", logging.Fields{
		"file_path":  filePath,
		"batch_size": batchSize,
	})

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(expectedHeader)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if err := validateHeader(header); err != nil {
		return nil, err
	}

	result := &IngestionResult{Errors: make([]string, 0)}
	batch := make([]*models.Observation, 0, batchSize)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}

		result.TotalRecords++

		obs, err := parseCSVRecord(record)
		if err != nil {
			result.FailedRecords++
			result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", result.TotalRecords, err))
			s.metrics.RecordIngestionError("parse_error")
			continue
		}

		batch = append(batch, obs)

		if len(batch) >= batchSize {
			if err := s.repo.UpsertObservationsBatch(ctx, batch); err != nil {
				return nil, fmt.Errorf("failed to insert batch: %w", err)
			}
			result.SuccessfulRecords += len(batch)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := s.repo.UpsertObservationsBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to insert final batch: %w", err)
		}
		result.SuccessfulRecords += len(batch)
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] CSV ingestion completed", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
	})

	return result, nil
}

func validateHeader(header []string) error {
	if len(header) != len(expectedHeader) {
		return fmt.Errorf("unexpected CSV header: got %d columns, want %d", len(header), len(expectedHeader))
	}
	for i, name := range expectedHeader {
		if header[i] != name {
			return fmt.Errorf("unexpected CSV column %d: got %q, want %q", i, header[i], name)
		}
	}
	return nil
}

// parseCSVRecord converts one CSV record into an observation. Empty cells
// are missing values; the condition column is numeric when it parses as a
// number, text otherwise.
func parseCSVRecord(record []string) (*models.Observation, error) {
	ts, err := models.ParseTimestamp(record[0])
	if err != nil {
		return nil, err
	}

	obs := &models.Observation{Timestamp: ts}
	numeric := []**float64{
		&obs.Temperature,
		&obs.DewPoint,
		&obs.Humidity,
		&obs.Precipitation,
		&obs.WindDirection,
		&obs.WindSpeed,
		&obs.Pressure,
	}

	for i, dest := range numeric {
		cell := record[i+1]
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, &models.ValidationError{
				Field:   expectedHeader[i+1],
				Value:   cell,
				Message: "not a number",
			}
		}
		*dest = &v
	}

	if cell := record[8]; cell != "" {
		if code, err := strconv.ParseFloat(cell, 64); err == nil {
			obs.Condition = models.SignalFromCode(code)
		} else {
			obs.Condition = models.SignalFromText(cell)
		}
	}

	return obs, nil
}
