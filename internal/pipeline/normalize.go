// Package pipeline contains the observation normalizer and the feature
// deriver: the pure, deterministic stages between raw observation rows and
// the model-ready feature table.
package pipeline

import (
	"math"
	"time"

	"forecast-platform/internal/condition"
	"forecast-platform/internal/models"
)

// Row is a fully populated hourly observation produced by Normalize. Values
// are plain float64; NaN survives only for the degenerate case of a column
// with no known values at all anywhere in the table.
type Row struct {
	Timestamp     time.Time
	Temperature   float64
	DewPoint      float64
	Humidity      float64
	Precipitation float64
	WindDirection float64
	WindSpeed     float64
	Pressure      float64
	Condition     models.ConditionSignal
	Category      condition.Category
}

// Observation converts the row back to its observation form, preserving the
// raw condition signal. Used by the forecast loop to rebuild its working
// table and by tests to check idempotence.
func (r Row) Observation() models.Observation {
	temp := r.Temperature
	dwpt := r.DewPoint
	rhum := r.Humidity
	prcp := r.Precipitation
	wdir := r.WindDirection
	wspd := r.WindSpeed
	pres := r.Pressure
	return models.Observation{
		Timestamp:     r.Timestamp,
		Temperature:   &temp,
		DewPoint:      &dwpt,
		Humidity:      &rhum,
		Precipitation: &prcp,
		WindDirection: &wdir,
		WindSpeed:     &wspd,
		Pressure:      &pres,
		Condition:     r.Condition,
	}
}

// baseField identifies one of the seven numeric observation fields.
type baseField int

const (
	fieldTemp baseField = iota
	fieldDwpt
	fieldRhum
	fieldPrcp
	fieldWdir
	fieldWspd
	fieldPres
	numBaseFields
)

func observationField(obs models.Observation, f baseField) *float64 {
	switch f {
	case fieldTemp:
		return obs.Temperature
	case fieldDwpt:
		return obs.DewPoint
	case fieldRhum:
		return obs.Humidity
	case fieldPrcp:
		return obs.Precipitation
	case fieldWdir:
		return obs.WindDirection
	case fieldWspd:
		return obs.WindSpeed
	case fieldPres:
		return obs.Pressure
	}
	return nil
}

func setRowField(row *Row, f baseField, v float64) {
	switch f {
	case fieldTemp:
		row.Temperature = v
	case fieldDwpt:
		row.DewPoint = v
	case fieldRhum:
		row.Humidity = v
	case fieldPrcp:
		row.Precipitation = v
	case fieldWdir:
		row.WindDirection = v
	case fieldWspd:
		row.WindSpeed = v
	case fieldPres:
		row.Pressure = v
	}
}

// DewPointFromTemperature computes the Magnus-type dew point approximation
// used consistently across the pipeline and the forecast loop.
func DewPointFromTemperature(tempC, humidityPct float64) float64 {
	return tempC - (100.0-humidityPct)/5.0
}

// Normalize produces a sorted, gap-free hourly table from raw observations.
// It is total (never fails on well-typed input) and idempotent. Reindexing
// inserts a row for every absent hour between the oldest and newest
// timestamps, so the output may hold more rows than the input. Steps:
// sort by timestamp, reindex onto the hourly grid spanning the table,
// time-weighted interpolation of internal gaps per numeric field, boundary
// fill (0.0 for precipitation, column mean otherwise), dew point
// recomputation for entries still missing, and category labelling of each
// row's condition signal (a missing signal maps to Unknown).
func Normalize(table *models.Table) []Row {
	if table == nil || table.Len() == 0 {
		return nil
	}

	sorted := table.SortedByTime().Rows()

	// Collapse onto the hourly grid. Duplicate hours keep the later row.
	byHour := make(map[time.Time]models.Observation, len(sorted))
	first := sorted[0].Timestamp.Truncate(time.Hour)
	last := first
	for _, obs := range sorted {
		hour := obs.Timestamp.Truncate(time.Hour)
		byHour[hour] = obs
		if hour.After(last) {
			last = hour
		}
		if hour.Before(first) {
			first = hour
		}
	}

	n := int(last.Sub(first)/time.Hour) + 1
	rows := make([]Row, n)
	present := make([]bool, n)
	for i := 0; i < n; i++ {
		ts := first.Add(time.Duration(i) * time.Hour)
		rows[i].Timestamp = ts
		if obs, ok := byHour[ts]; ok {
			present[i] = true
			rows[i].Condition = obs.Condition
		}
	}

	for f := baseField(0); f < numBaseFields; f++ {
		fillColumn(rows, present, byHour, f)
	}

	// Dew point entries the fill policy could not populate (the column had
	// no known values) are recomputed from temperature and humidity.
	for i := range rows {
		if math.IsNaN(rows[i].DewPoint) {
			rows[i].DewPoint = DewPointFromTemperature(rows[i].Temperature, rows[i].Humidity)
		}
	}

	for i := range rows {
		if rows[i].Condition.IsMissing() {
			rows[i].Category = condition.Unknown
		} else {
			rows[i].Category = condition.Categorize(rows[i].Condition)
		}
	}

	return rows
}

// fillColumn populates one numeric field across the hourly grid:
// interpolate between the nearest known values on each side, then fill the
// remaining boundary gaps with the column mean (0.0 for precipitation).
func fillColumn(rows []Row, present []bool, byHour map[time.Time]models.Observation, f baseField) {
	n := len(rows)
	values := make([]float64, n)
	known := make([]bool, n)

	for i := 0; i < n; i++ {
		values[i] = math.NaN()
		if !present[i] {
			continue
		}
		if v := observationField(byHour[rows[i].Timestamp], f); v != nil && !math.IsNaN(*v) {
			values[i] = *v
			known[i] = true
		}
	}

	// Time-weighted interpolation of internal gaps. The grid is uniform, so
	// weights reduce to the row distance between the known neighbours.
	prev := -1
	for i := 0; i < n; i++ {
		if !known[i] {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			span := float64(i - prev)
			for j := prev + 1; j < i; j++ {
				frac := float64(j-prev) / span
				values[j] = values[prev] + (values[i]-values[prev])*frac
			}
		}
		prev = i
	}

	// Boundary fill: mean of the post-interpolation column, 0.0 for
	// precipitation. Interpolated values count towards the mean. A column
	// with no known values keeps NaN (precipitation still becomes 0.0);
	// dew point gets recomputed afterwards.
	fill := math.NaN()
	if f == fieldPrcp {
		fill = 0.0
	} else {
		var sum float64
		var count int
		for i := 0; i < n; i++ {
			if !math.IsNaN(values[i]) {
				sum += values[i]
				count++
			}
		}
		if count > 0 {
			fill = sum / float64(count)
		}
	}
	for i := 0; i < n; i++ {
		if math.IsNaN(values[i]) {
			values[i] = fill
		}
		setRowField(&rows[i], f, values[i])
	}
}
