package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		expectErr bool
	}{
		{"rfc3339", "2024-06-01T10:00:00Z", false},
		{"space separated", "2024-06-01 10:00:00", false},
		{"t separated no zone", "2024-06-01T10:00:00", false},
		{"no seconds", "2024-06-01 10:00", false},
		{"garbage", "not-a-time", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTimestamp(tt.value)
			if tt.expectErr && err == nil {
				t.Errorf("ParseTimestamp(%q) expected error, got nil", tt.value)
			}
			if !tt.expectErr && err != nil {
				t.Errorf("ParseTimestamp(%q) unexpected error: %v", tt.value, err)
			}
		})
	}
}

func TestRawObservationToObservation(t *testing.T) {
	tests := []struct {
		name      string
		raw       RawObservation
		expectErr string
	}{
		{
			name: "valid full row",
			raw: RawObservation{
				Time:        "2024-06-01 10:00:00",
				Temperature: f64(25.0),
				Humidity:    f64(60.0),
				Condition:   json.RawMessage(`"Partly cloudy"`),
			},
		},
		{
			name:      "missing time",
			raw:       RawObservation{Temperature: f64(25.0), Humidity: f64(60.0)},
			expectErr: "time",
		},
		{
			name:      "missing temperature",
			raw:       RawObservation{Time: "2024-06-01 10:00:00", Humidity: f64(60.0)},
			expectErr: "temp",
		},
		{
			name:      "missing humidity",
			raw:       RawObservation{Time: "2024-06-01 10:00:00", Temperature: f64(25.0)},
			expectErr: "rhum",
		},
		{
			name: "unparseable time",
			raw: RawObservation{
				Time:        "yesterday",
				Temperature: f64(25.0),
				Humidity:    f64(60.0),
			},
			expectErr: "time",
		},
		{
			name: "condition must be scalar",
			raw: RawObservation{
				Time:        "2024-06-01 10:00:00",
				Temperature: f64(25.0),
				Humidity:    f64(60.0),
				Condition:   json.RawMessage(`{"text":"rain"}`),
			},
			expectErr: "coco",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := tt.raw.ToObservation()
			if tt.expectErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if obs.Temperature == nil || *obs.Temperature != 25.0 {
					t.Errorf("temperature not carried over")
				}
				return
			}

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			if vErr.Field != tt.expectErr {
				t.Errorf("validation error field = %q, expected %q", vErr.Field, tt.expectErr)
			}
		})
	}
}

func TestConditionSignalForms(t *testing.T) {
	tests := []struct {
		name        string
		raw         json.RawMessage
		wantCode    *float64
		wantText    string
		wantMissing bool
	}{
		{"numeric", json.RawMessage(`7`), f64(7), "", false},
		{"textual", json.RawMessage(`"Light rain"`), nil, "Light rain", false},
		{"null", json.RawMessage(`null`), nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := RawObservation{
				Time:        "2024-06-01 10:00:00",
				Temperature: f64(25.0),
				Humidity:    f64(60.0),
				Condition:   tt.raw,
			}
			obs, err := raw.ToObservation()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if obs.Condition.IsMissing() != tt.wantMissing {
				t.Errorf("IsMissing() = %v, expected %v", obs.Condition.IsMissing(), tt.wantMissing)
			}
			if tt.wantCode != nil {
				if obs.Condition.Code == nil || *obs.Condition.Code != *tt.wantCode {
					t.Errorf("condition code not preserved")
				}
			}
			if tt.wantText != "" {
				if obs.Condition.Text == nil || *obs.Condition.Text != tt.wantText {
					t.Errorf("condition text not preserved")
				}
			}
		})
	}
}

func TestTableOrderingAndClone(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	table := NewTable(
		Observation{Timestamp: base.Add(2 * time.Hour)},
		Observation{Timestamp: base},
		Observation{Timestamp: base.Add(time.Hour)},
	)

	sorted := table.SortedByTime()
	for i := 0; i < sorted.Len(); i++ {
		expected := base.Add(time.Duration(i) * time.Hour)
		if !sorted.Row(i).Timestamp.Equal(expected) {
			t.Errorf("row %d timestamp = %v, expected %v", i, sorted.Row(i).Timestamp, expected)
		}
	}

	// Sorting must not reorder the original.
	if !table.Row(0).Timestamp.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("SortedByTime mutated the source table")
	}

	clone := table.Clone()
	clone.Append(Observation{Timestamp: base.Add(3 * time.Hour)})
	if table.Len() != 3 {
		t.Errorf("appending to a clone changed the source table length to %d", table.Len())
	}

	last, ok := clone.Last()
	if !ok || !last.Timestamp.Equal(base.Add(3*time.Hour)) {
		t.Errorf("Last() = %v, %v; expected newest appended row", last.Timestamp, ok)
	}

	if _, ok := NewTable().Last(); ok {
		t.Errorf("Last() on empty table reported a row")
	}
}
