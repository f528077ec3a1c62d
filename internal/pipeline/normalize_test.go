package pipeline

import (
	"math"
	"testing"
	"time"

	"forecast-platform/internal/condition"
	"forecast-platform/internal/models"
)

var testBase = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }

// fullObs builds an observation with every numeric field populated.
func fullObs(hour int, temp float64) models.Observation {
	return models.Observation{
		Timestamp:     testBase.Add(time.Duration(hour) * time.Hour),
		Temperature:   f64(temp),
		DewPoint:      f64(temp - 8),
		Humidity:      f64(60),
		Precipitation: f64(0),
		WindDirection: f64(180),
		WindSpeed:     f64(10),
		Pressure:      f64(1013),
		Condition:     models.SignalFromText("Clear"),
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	if rows := Normalize(nil); rows != nil {
		t.Errorf("Normalize(nil) = %v, expected nil", rows)
	}
	if rows := Normalize(models.NewTable()); rows != nil {
		t.Errorf("Normalize(empty) = %v, expected nil", rows)
	}
}

func TestNormalizeSortsAndSpacesHourly(t *testing.T) {
	table := models.NewTable(fullObs(2, 12), fullObs(0, 10), fullObs(1, 11))

	rows := Normalize(table)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, expected 3", len(rows))
	}
	for i, row := range rows {
		expected := testBase.Add(time.Duration(i) * time.Hour)
		if !row.Timestamp.Equal(expected) {
			t.Errorf("row %d timestamp = %v, expected %v", i, row.Timestamp, expected)
		}
		if row.Temperature != float64(10+i) {
			t.Errorf("row %d temperature = %g, expected %d", i, row.Temperature, 10+i)
		}
	}
}

func TestNormalizeInterpolatesInternalGaps(t *testing.T) {
	// Hour 1 and 2 are absent entirely; every column interpolates linearly
	// between the surrounding known values.
	table := models.NewTable(fullObs(0, 10), fullObs(3, 16))

	rows := Normalize(table)
	if len(rows) != 4 {
		t.Fatalf("got %d rows, expected 4", len(rows))
	}

	if rows[1].Temperature != 12 || rows[2].Temperature != 14 {
		t.Errorf("interpolated temperatures = %g, %g; expected 12, 14", rows[1].Temperature, rows[2].Temperature)
	}
	if rows[1].Pressure != 1013 {
		t.Errorf("interpolated pressure = %g, expected 1013", rows[1].Pressure)
	}

	// Inserted rows have no condition signal.
	if rows[1].Category != condition.Unknown {
		t.Errorf("inserted row category = %q, expected %q", rows[1].Category, condition.Unknown)
	}
	if rows[0].Category != condition.Clear {
		t.Errorf("observed row category = %q, expected %q", rows[0].Category, condition.Clear)
	}
}

func TestNormalizeBoundaryFill(t *testing.T) {
	// Leading missing temperature has no left neighbour, so it takes the
	// column mean rather than an interpolated value.
	first := fullObs(0, 0)
	first.Temperature = nil
	first.Precipitation = nil

	table := models.NewTable(first, fullObs(1, 10), fullObs(2, 20))

	rows := Normalize(table)
	if rows[0].Temperature != 15 {
		t.Errorf("boundary temperature = %g, expected column mean 15", rows[0].Temperature)
	}

	// Precipitation boundary gaps become 0.0, never the mean.
	if rows[0].Precipitation != 0 {
		t.Errorf("boundary precipitation = %g, expected 0", rows[0].Precipitation)
	}
}

func TestNormalizeBoundaryFillIncludesInterpolatedValues(t *testing.T) {
	// Knowns at hours 1, 3, 4 are 0, 30, 40; hour 2 interpolates to 15. The
	// leading boundary gap at hour 0 takes the mean of the column after
	// interpolation, (0+15+30+40)/4, not the mean of the knowns alone.
	first := fullObs(0, 0)
	first.Temperature = nil

	table := models.NewTable(first, fullObs(1, 0), fullObs(3, 30), fullObs(4, 40))

	rows := Normalize(table)
	if len(rows) != 5 {
		t.Fatalf("got %d rows, expected 5", len(rows))
	}
	if rows[2].Temperature != 15 {
		t.Errorf("interpolated temperature = %g, expected 15", rows[2].Temperature)
	}
	if rows[0].Temperature != 21.25 {
		t.Errorf("boundary temperature = %g, expected post-interpolation mean 21.25", rows[0].Temperature)
	}
}

func TestNormalizeRecomputesDewPoint(t *testing.T) {
	obs := fullObs(0, 25)
	obs.Humidity = f64(60)
	obs.DewPoint = nil

	rows := Normalize(models.NewTable(obs))
	want := 25.0 - (100.0-60.0)/5.0
	if rows[0].DewPoint != want {
		t.Errorf("recomputed dew point = %g, expected %g", rows[0].DewPoint, want)
	}
}

func TestNormalizeDuplicateHoursKeepLater(t *testing.T) {
	early := fullObs(0, 10)
	late := fullObs(0, 99)
	late.Timestamp = late.Timestamp.Add(30 * time.Minute)

	rows := Normalize(models.NewTable(early, late))
	if len(rows) != 1 {
		t.Fatalf("got %d rows, expected 1", len(rows))
	}
	if rows[0].Temperature != 99 {
		t.Errorf("duplicate hour temperature = %g, expected later row's 99", rows[0].Temperature)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	first := fullObs(0, 0)
	first.Temperature = nil
	table := models.NewTable(first, fullObs(3, 16), fullObs(1, 11))

	once := Normalize(table)

	back := models.NewTable()
	for _, row := range once {
		back.Append(row.Observation())
	}
	twice := Normalize(back)

	if len(once) != len(twice) {
		t.Fatalf("second pass changed row count: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if !once[i].Timestamp.Equal(twice[i].Timestamp) {
			t.Errorf("row %d timestamp changed on second pass", i)
		}
		if once[i].Temperature != twice[i].Temperature ||
			once[i].DewPoint != twice[i].DewPoint ||
			once[i].Precipitation != twice[i].Precipitation {
			t.Errorf("row %d values changed on second pass", i)
		}
	}
}

func TestNormalizeAllMissingColumn(t *testing.T) {
	a := fullObs(0, 10)
	b := fullObs(1, 11)
	a.WindSpeed = nil
	b.WindSpeed = nil
	a.Precipitation = nil
	b.Precipitation = nil

	rows := Normalize(models.NewTable(a, b))
	// A column with no known values anywhere keeps NaN...
	if !math.IsNaN(rows[0].WindSpeed) {
		t.Errorf("wind speed = %g, expected NaN for an all-missing column", rows[0].WindSpeed)
	}
	// ...except precipitation, which is always 0.0.
	if rows[0].Precipitation != 0 {
		t.Errorf("precipitation = %g, expected 0 for an all-missing column", rows[0].Precipitation)
	}
}
