package pipeline

import (
	"math"
	"testing"
	"time"

	"forecast-platform/internal/models"
)

// rampRows builds n clean hourly rows with temperature equal to the row index.
func rampRows(t *testing.T, start time.Time, n int) []Row {
	t.Helper()

	table := models.NewTable()
	for i := 0; i < n; i++ {
		obs := fullObs(0, float64(i))
		obs.Timestamp = start.Add(time.Duration(i) * time.Hour)
		table.Append(obs)
	}

	rows := Normalize(table)
	if len(rows) != n {
		t.Fatalf("normalize produced %d rows, expected %d", len(rows), n)
	}
	return rows
}

func TestDeriveDropsRowsWithoutLagHistory(t *testing.T) {
	tests := []struct {
		name     string
		rows     int
		expected int
	}{
		{"empty", 0, 0},
		{"single row", 1, 0},
		{"lag1 only", 2, 0},
		{"one short of lag24", 24, 0},
		{"first complete row", 25, 1},
		{"two complete rows", 26, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []Row
			if tt.rows > 0 {
				rows = rampRows(t, testBase, tt.rows)
			}
			features := Derive(rows)
			if len(features) != tt.expected {
				t.Errorf("Derive(%d rows) produced %d feature rows, expected %d", tt.rows, len(features), tt.expected)
			}
		})
	}
}

func TestDeriveLagAndRollingValues(t *testing.T) {
	features := Derive(rampRows(t, testBase, 25))
	if len(features) != 1 {
		t.Fatalf("expected exactly 1 feature row, got %d", len(features))
	}

	cols := features[0].Columns

	if cols[ColTemp] != 24 {
		t.Errorf("temp = %g, expected 24", cols[ColTemp])
	}
	if cols["temp_lag1"] != 23 {
		t.Errorf("temp_lag1 = %g, expected 23", cols["temp_lag1"])
	}
	if cols["temp_lag24"] != 0 {
		t.Errorf("temp_lag24 = %g, expected 0", cols["temp_lag24"])
	}

	// Trailing window over rows 1..24: mean 12.5, sample variance 50.
	if math.Abs(cols["temp_roll_mean24"]-12.5) > 1e-9 {
		t.Errorf("temp_roll_mean24 = %g, expected 12.5", cols["temp_roll_mean24"])
	}
	if math.Abs(cols["temp_roll_std24"]-math.Sqrt(50)) > 1e-9 {
		t.Errorf("temp_roll_std24 = %g, expected %g", cols["temp_roll_std24"], math.Sqrt(50))
	}

	// Constant columns have zero deviation, not NaN, once the window holds
	// at least two rows.
	if cols["pres_roll_std24"] != 0 {
		t.Errorf("pres_roll_std24 = %g, expected 0", cols["pres_roll_std24"])
	}

	// Wind direction gets lags but no rolling stats.
	if _, ok := cols["wdir_lag1"]; !ok {
		t.Errorf("wdir_lag1 missing from feature row")
	}
	if _, ok := cols["wdir_roll_mean24"]; ok {
		t.Errorf("wdir_roll_mean24 present; wind direction is excluded from rolling stats")
	}
}

func TestDeriveCalendarColumns(t *testing.T) {
	// Start on a Sunday so the first surviving row (index 24) lands on
	// Monday 2024-01-01.
	start := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)

	features := Derive(rampRows(t, start, 25))
	if len(features) != 1 {
		t.Fatalf("expected exactly 1 feature row, got %d", len(features))
	}

	cols := features[0].Columns
	tests := []struct {
		col      string
		expected float64
	}{
		{ColHour, 0},
		{ColDayOfWeek, 0}, // Monday
		{ColDayOfYear, 1},
		{ColMonth, 1},
		{ColYear, 2024},
	}

	for _, tt := range tests {
		if cols[tt.col] != tt.expected {
			t.Errorf("%s = %g, expected %g", tt.col, cols[tt.col], tt.expected)
		}
	}
}

func TestDeriveFeatureRowTimestampAndCategory(t *testing.T) {
	rows := rampRows(t, testBase, 26)
	features := Derive(rows)
	if len(features) != 2 {
		t.Fatalf("expected 2 feature rows, got %d", len(features))
	}

	for i, fr := range features {
		want := testBase.Add(time.Duration(24+i) * time.Hour)
		if !fr.Timestamp.Equal(want) {
			t.Errorf("feature row %d timestamp = %v, expected %v", i, fr.Timestamp, want)
		}
		if fr.Category != rows[24+i].Category {
			t.Errorf("feature row %d category = %q, expected %q", i, fr.Category, rows[24+i].Category)
		}
	}
}
