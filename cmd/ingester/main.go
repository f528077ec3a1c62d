package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"forecast-platform/internal/config"
	"forecast-platform/internal/ensemble"
	"forecast-platform/internal/forecast"
	"forecast-platform/internal/models"
	"forecast-platform/internal/repository"
	"forecast-platform/internal/services"
	"forecast-platform/pkg/database"
	"forecast-platform/pkg/logging"
	"forecast-platform/pkg/metrics"
)

func main() {
	// Parse command-line flags
	csvPath := flag.String("csv", "./data/hourly.csv", "Path to the hourly observation CSV file")
	batchSize := flag.Int("batch-size", 1000, "Number of records to process in each batch")
	previewHours := flag.Int("preview-hours", 0, "Print a forecast preview for this many hours after ingestion (0 disables)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := logging.NewStructuredLogger("forecast-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting observation ingestion", logging.Fields{
		"version":    "1.0.0",
		"csv_path":   *csvPath,
		"batch_size": *batchSize,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("forecast_ingester")

	// Initialize database
	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository
	observationRepo := repository.NewObservationRepository(db, logger, metricsCollector)

	// Initialize services
	ingestionService := services.NewIngestionService(observationRepo, logger, metricsCollector)

	// Ingest data
	result, err := ingestionService.IngestCSV(ctx, *csvPath, *batchSize)
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
			"error": err.Error(),
		}, err)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Failed Records:     %d\n", result.FailedRecords)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if result.Duration.Seconds() > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/result.Duration.Seconds())
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}

	// Optional forecast preview: take the newest ingested hour as the live
	// row and run the forecast against the rows before it.
	if *previewHours > 0 {
		ens, err := ensemble.Load(cfg.Models.Dir)
		if err != nil {
			logger.Fatal(ctx, "[PREVIEW_ERROR] Failed to load model artifacts", logging.Fields{
				"models_dir": cfg.Models.Dir,
			}, err)
		}

		engine := forecast.NewEngine(ens, logger, metricsCollector)
		forecastService := services.NewForecastService(observationRepo, engine, cfg.Forecast, logger, metricsCollector)

		table, err := observationRepo.RecentObservations(ctx, cfg.Forecast.HistoryHours+1)
		if err != nil {
			logger.Fatal(ctx, "[PREVIEW_ERROR] Failed to load stored history", logging.Fields{}, err)
		}

		rows := table.Rows()
		fmt.Println("\n" + strings.Repeat("=", 80))
		fmt.Println("FORECAST PREVIEW")
		fmt.Println(strings.Repeat("=", 80))

		if len(rows) == 0 {
			fmt.Println("No stored observations available for a preview")
		} else {
			live := rows[len(rows)-1]
			history := models.NewTable(rows[:len(rows)-1]...)

			outcome, err := forecastService.ForecastWithHistory(ctx, history, &live, *previewHours)
			if err != nil {
				logger.Fatal(ctx, "[PREVIEW_ERROR] Forecast preview failed", logging.Fields{}, err)
			}

			for _, result := range outcome.Results {
				fmt.Printf("%s  %6.1f°C  %5.2f mm/h  %s\n",
					result.Time.Format("2006-01-02 15:04"),
					result.Temperature,
					result.Precipitation,
					result.Condition)
			}
			if outcome.Truncated {
				fmt.Printf("Preview stopped early: %s\n", outcome.TruncationReason)
			}
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed successfully", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
	})
}
