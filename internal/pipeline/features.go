package pipeline

import (
	"math"
	"time"

	"forecast-platform/internal/condition"
)

// Canonical feature column names. The trained artifacts refer to columns by
// these names, so they are part of the model contract.
const (
	ColTemp = "temp"
	ColDwpt = "dwpt"
	ColRhum = "rhum"
	ColPrcp = "prcp"
	ColWdir = "wdir"
	ColWspd = "wspd"
	ColPres = "pres"

	ColHour      = "hour"
	ColDayOfWeek = "day_of_week"
	ColDayOfYear = "day_of_year"
	ColMonth     = "month"
	ColYear      = "year"
)

// laggedColumns get lag-1 and lag-24 features.
var laggedColumns = []string{ColTemp, ColRhum, ColPrcp, ColWspd, ColPres, ColDwpt, ColWdir}

// rollingColumns get 24-row rolling mean and standard deviation. Wind
// direction is excluded: circular means are meaningless for bearings.
var rollingColumns = []string{ColTemp, ColRhum, ColPrcp, ColWspd, ColPres, ColDwpt}

const rollingWindow = 24

// FeatureRow is one model-ready row: the timestamp, the condition category,
// and every derived numeric column keyed by canonical name.
type FeatureRow struct {
	Timestamp time.Time
	Category  condition.Category
	Columns   map[string]float64
}

// Derive expands a normalized table into feature rows: calendar fields,
// lag-1/lag-24 values for the seven base fields, and trailing 24-row
// rolling mean / sample standard deviation for six of them. Rows with any
// missing derived value are dropped, which removes exactly the rows lacking
// lag history; the result may be empty for tables shorter than 2 rows.
func Derive(rows []Row) []FeatureRow {
	n := len(rows)
	if n == 0 {
		return nil
	}

	base := make(map[string][]float64, numBaseFields)
	base[ColTemp] = columnValues(rows, fieldTemp)
	base[ColDwpt] = columnValues(rows, fieldDwpt)
	base[ColRhum] = columnValues(rows, fieldRhum)
	base[ColPrcp] = columnValues(rows, fieldPrcp)
	base[ColWdir] = columnValues(rows, fieldWdir)
	base[ColWspd] = columnValues(rows, fieldWspd)
	base[ColPres] = columnValues(rows, fieldPres)

	out := make([]FeatureRow, 0, n)
	for i := 0; i < n; i++ {
		cols := make(map[string]float64, 7+5+len(laggedColumns)*2+len(rollingColumns)*2)

		for name, values := range base {
			cols[name] = values[i]
		}

		ts := rows[i].Timestamp
		cols[ColHour] = float64(ts.Hour())
		cols[ColDayOfWeek] = float64(mondayIndexedWeekday(ts.Weekday()))
		cols[ColDayOfYear] = float64(ts.YearDay())
		cols[ColMonth] = float64(int(ts.Month()))
		cols[ColYear] = float64(ts.Year())

		for _, name := range laggedColumns {
			cols[name+"_lag1"] = lag(base[name], i, 1)
			cols[name+"_lag24"] = lag(base[name], i, 24)
		}

		for _, name := range rollingColumns {
			mean, std := rollingStats(base[name], i, rollingWindow)
			cols[name+"_roll_mean24"] = mean
			cols[name+"_roll_std24"] = std
		}

		if hasMissing(cols) {
			continue
		}

		out = append(out, FeatureRow{
			Timestamp: ts,
			Category:  rows[i].Category,
			Columns:   cols,
		})
	}

	return out
}

// mondayIndexedWeekday converts Go's Sunday-first weekday to the 0=Monday
// convention the models were trained with.
func mondayIndexedWeekday(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func columnValues(rows []Row, f baseField) []float64 {
	out := make([]float64, len(rows))
	for i := range rows {
		switch f {
		case fieldTemp:
			out[i] = rows[i].Temperature
		case fieldDwpt:
			out[i] = rows[i].DewPoint
		case fieldRhum:
			out[i] = rows[i].Humidity
		case fieldPrcp:
			out[i] = rows[i].Precipitation
		case fieldWdir:
			out[i] = rows[i].WindDirection
		case fieldWspd:
			out[i] = rows[i].WindSpeed
		case fieldPres:
			out[i] = rows[i].Pressure
		}
	}
	return out
}

// lag returns the value steps rows earlier, or NaN when that much history
// does not exist. Row-based, not time-based: the table is already on the
// hourly grid, so one row is one hour.
func lag(values []float64, i, steps int) float64 {
	if i-steps < 0 {
		return math.NaN()
	}
	return values[i-steps]
}

// rollingStats computes the trailing-window mean and sample standard
// deviation ending at row i, over however many rows exist (minimum window
// of 1). The sample deviation of a single row is undefined and reported
// as NaN.
func rollingStats(values []float64, i, window int) (mean, std float64) {
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	n := float64(i - start + 1)

	var sum float64
	for j := start; j <= i; j++ {
		sum += values[j]
	}
	mean = sum / n

	if n < 2 {
		return mean, math.NaN()
	}

	var ss float64
	for j := start; j <= i; j++ {
		d := values[j] - mean
		ss += d * d
	}
	std = math.Sqrt(ss / (n - 1))
	return mean, std
}

func hasMissing(cols map[string]float64) bool {
	for _, v := range cols {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
