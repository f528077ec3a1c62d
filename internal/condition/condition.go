// Package condition maps raw weather-condition signals (numeric station
// codes or free-text descriptions) onto a small fixed category vocabulary.
package condition

import (
	"math"
	"strings"

	"forecast-platform/internal/models"
)

// Category is a coarse weather-condition label.
type Category string

const (
	Clear        Category = "Clear"
	Clouds       Category = "Clouds"
	Haze         Category = "Haze"
	Rain         Category = "Rain"
	FreezingRain Category = "Freezing Rain"
	Sleet        Category = "Sleet"
	Snow         Category = "Snow"
	RainShower   Category = "Rain Shower"
	SleetShower  Category = "Sleet Shower"
	SnowShower   Category = "Snow Shower"
	Lightning    Category = "Lightning"
	Thunderstorm Category = "Thunderstorm"
	Drizzle      Category = "Drizzle"
	Fog          Category = "Fog"
	Other        Category = "Other"
	Unknown      Category = "Unknown"
)

// Categorize buckets a condition signal into a category. It is total: every
// signal, including a missing one, maps to a defined category.
func Categorize(signal models.ConditionSignal) Category {
	if signal.Text != nil {
		return categorizeText(*signal.Text)
	}
	if signal.Code != nil {
		return categorizeCode(*signal.Code)
	}
	return Unknown
}

// categorizeCode buckets a numeric station condition code.
func categorizeCode(value float64) Category {
	if math.IsNaN(value) {
		return Unknown
	}

	code := int(value)
	switch {
	case code == 1 || code == 2:
		return Clear
	case code == 3 || code == 4:
		return Clouds
	case code == 5 || code == 6:
		return Haze
	case code >= 7 && code <= 9:
		return Rain
	case code == 10 || code == 11:
		return FreezingRain
	case code == 12 || code == 13:
		return Sleet
	case code >= 14 && code <= 16:
		return Snow
	case code == 17 || code == 18:
		return RainShower
	case code == 19 || code == 20:
		return SleetShower
	case code == 21 || code == 22:
		return SnowShower
	case code == 23 || code == 24:
		return Lightning
	case code >= 25 && code <= 27:
		return Thunderstorm
	default:
		return Other
	}
}

// categorizeText matches free text against category keywords. More specific
// multi-word matches come before their single-word fallbacks ("rain shower"
// before "rain"), so the order of checks is load-bearing.
func categorizeText(text string) Category {
	t := strings.ToLower(text)

	contains := func(substr string) bool { return strings.Contains(t, substr) }

	switch {
	case contains("thunder"):
		return Thunderstorm
	case contains("drizzle"):
		return Drizzle
	case contains("rain") && contains("shower"):
		return RainShower
	case contains("rain"):
		return Rain
	case contains("freezing"):
		return FreezingRain
	case contains("sleet"):
		return Sleet
	case contains("snow") && contains("shower"):
		return SnowShower
	case contains("snow"):
		return Snow
	case contains("clear"):
		return Clear
	case contains("cloud") || contains("overcast"):
		return Clouds
	case contains("mist"), contains("fog"), contains("haze"),
		contains("smoke"), contains("sand"), contains("dust"):
		return Fog
	default:
		return Other
	}
}
