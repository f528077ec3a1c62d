package condition

import (
	"math"
	"testing"

	"forecast-platform/internal/models"
)

func TestCategorizeCode(t *testing.T) {
	tests := []struct {
		name     string
		code     float64
		expected Category
	}{
		{"clear low", 1, Clear},
		{"clear high", 2, Clear},
		{"clouds", 3, Clouds},
		{"overcast code", 4, Clouds},
		{"haze", 5, Haze},
		{"rain low", 7, Rain},
		{"rain high", 9, Rain},
		{"freezing rain", 10, FreezingRain},
		{"sleet", 12, Sleet},
		{"snow", 14, Snow},
		{"heavy snow", 16, Snow},
		{"rain shower", 17, RainShower},
		{"sleet shower", 19, SleetShower},
		{"snow shower", 21, SnowShower},
		{"lightning", 23, Lightning},
		{"thunderstorm low", 25, Thunderstorm},
		{"thunderstorm high", 27, Thunderstorm},
		{"zero code", 0, Other},
		{"unmapped code", 99, Other},
		{"negative code", -1, Other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Categorize(models.SignalFromCode(tt.code))
			if result != tt.expected {
				t.Errorf("Categorize(code %g) = %q, expected %q", tt.code, result, tt.expected)
			}
		})
	}
}

func TestCategorizeText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected Category
	}{
		{"thunder beats rain", "Thundery outbreaks with rain", Thunderstorm},
		{"drizzle", "Patchy light drizzle", Drizzle},
		{"rain shower", "Light rain shower", RainShower},
		{"plain rain", "Moderate rain at times", Rain},
		{"freezing", "Freezing fog", FreezingRain},
		{"sleet", "Light sleet", Sleet},
		{"snow shower", "Patchy snow shower", SnowShower},
		{"plain snow", "Blowing snow", Snow},
		{"clear", "Clear", Clear},
		{"sunny is unmapped", "Sunny", Other},
		{"cloudy", "Partly cloudy", Clouds},
		{"overcast", "Overcast", Clouds},
		{"mist", "Mist", Fog},
		{"fog", "Fog", Fog},
		{"haze text", "Haze", Fog},
		{"case insensitive", "HEAVY RAIN", Rain},
		{"unmapped text", "volcanic ash", Other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Categorize(models.SignalFromText(tt.text))
			if result != tt.expected {
				t.Errorf("Categorize(%q) = %q, expected %q", tt.text, result, tt.expected)
			}
		})
	}
}

func TestCategorizeIsTotal(t *testing.T) {
	if got := Categorize(models.ConditionSignal{}); got != Unknown {
		t.Errorf("missing signal categorized as %q, expected %q", got, Unknown)
	}

	if got := Categorize(models.SignalFromCode(math.NaN())); got != Unknown {
		t.Errorf("NaN code categorized as %q, expected %q", got, Unknown)
	}

	// Text takes precedence over code when both are present.
	text := "Light rain"
	code := 1.0
	both := models.ConditionSignal{Code: &code, Text: &text}
	if got := Categorize(both); got != Rain {
		t.Errorf("signal with both forms categorized as %q, expected %q", got, Rain)
	}
}
