package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConditionSignal carries the raw weather-condition value attached to an
// observation. Station feeds report a numeric condition code, live APIs
// report free text; either (or neither) may be present.
type ConditionSignal struct {
	Code *float64
	Text *string
}

// IsMissing reports whether no condition value was supplied.
func (c ConditionSignal) IsMissing() bool {
	return c.Code == nil && c.Text == nil
}

// String returns the textual form used when the signal is stored or echoed
// back out (synthetic forecast rows carry the decoded category text here).
func (c ConditionSignal) String() string {
	if c.Text != nil {
		return *c.Text
	}
	if c.Code != nil {
		return fmt.Sprintf("%g", *c.Code)
	}
	return ""
}

// SignalFromCode builds a numeric condition signal.
func SignalFromCode(code float64) ConditionSignal {
	return ConditionSignal{Code: &code}
}

// SignalFromText builds a textual condition signal.
func SignalFromText(text string) ConditionSignal {
	return ConditionSignal{Text: &text}
}

// Observation represents a single hourly weather observation.
// NULL values represented as pointers so boundary fill policy can tell
// "missing" from zero.
type Observation struct {
	Timestamp     time.Time       `json:"time" db:"observed_at"`
	Temperature   *float64        `json:"temp,omitempty" db:"temperature_celsius"`
	DewPoint      *float64        `json:"dwpt,omitempty" db:"dew_point_celsius"`
	Humidity      *float64        `json:"rhum,omitempty" db:"relative_humidity_pct"`
	Precipitation *float64        `json:"prcp,omitempty" db:"precipitation_mm"`
	WindDirection *float64        `json:"wdir,omitempty" db:"wind_direction_deg"`
	WindSpeed     *float64        `json:"wspd,omitempty" db:"wind_speed_kmh"`
	Pressure      *float64        `json:"pres,omitempty" db:"pressure_hpa"`
	Condition     ConditionSignal `json:"-"`
}

// RawObservation is the wire form of an observation as received in request
// bodies and CSV exports. The condition field may be a number or a string.
type RawObservation struct {
	Time          string          `json:"time"`
	Temperature   *float64        `json:"temp"`
	DewPoint      *float64        `json:"dwpt"`
	Humidity      *float64        `json:"rhum"`
	Precipitation *float64        `json:"prcp"`
	WindDirection *float64        `json:"wdir"`
	WindSpeed     *float64        `json:"wspd"`
	Pressure      *float64        `json:"pres"`
	Condition     json.RawMessage `json:"coco"`
}

// Timestamp layouts accepted on the wire. Live feeds send local wall-clock
// strings, exports send RFC 3339.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp parses an observation timestamp in any accepted layout.
func ParseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, &ValidationError{
		Field:   "time",
		Value:   value,
		Message: "unparseable timestamp, expected RFC 3339 or YYYY-MM-DD HH:MM:SS",
	}
}

// ToObservation converts a RawObservation into a typed Observation,
// validating required fields at the boundary rather than deep in the
// forecast loop.
func (r *RawObservation) ToObservation() (*Observation, error) {
	if r.Time == "" {
		return nil, &ValidationError{
			Field:   "time",
			Message: "missing timestamp",
		}
	}

	ts, err := ParseTimestamp(r.Time)
	if err != nil {
		return nil, err
	}

	if r.Temperature == nil {
		return nil, &ValidationError{
			Field:   "temp",
			Message: "missing temperature",
		}
	}
	if r.Humidity == nil {
		return nil, &ValidationError{
			Field:   "rhum",
			Message: "missing relative humidity",
		}
	}

	obs := &Observation{
		Timestamp:     ts,
		Temperature:   r.Temperature,
		DewPoint:      r.DewPoint,
		Humidity:      r.Humidity,
		Precipitation: r.Precipitation,
		WindDirection: r.WindDirection,
		WindSpeed:     r.WindSpeed,
		Pressure:      r.Pressure,
	}

	if len(r.Condition) > 0 {
		signal, err := parseConditionSignal(r.Condition)
		if err != nil {
			return nil, err
		}
		obs.Condition = signal
	}

	return obs, nil
}

// parseConditionSignal decodes a condition value that may be numeric or
// textual. JSON null yields a missing signal.
func parseConditionSignal(raw json.RawMessage) (ConditionSignal, error) {
	var code float64
	if err := json.Unmarshal(raw, &code); err == nil {
		return SignalFromCode(code), nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return SignalFromText(text), nil
	}

	var null interface{}
	if err := json.Unmarshal(raw, &null); err == nil && null == nil {
		return ConditionSignal{}, nil
	}

	return ConditionSignal{}, &ValidationError{
		Field:   "coco",
		Value:   string(raw),
		Message: "condition must be a number or a string",
	}
}
