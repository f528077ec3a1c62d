// Package ensemble wraps the trained model artifacts: a feature scaler, a
// condition label encoder, and three random forests (temperature and
// precipitation regressors, condition classifier). An Ensemble is assembled
// once at startup and is read-only afterwards, so it may be shared across
// concurrent forecast requests without locking.
package ensemble

import (
	"fmt"
	"sort"
	"strings"

	"forecast-platform/internal/condition"
)

// Scaler standardizes a feature vector with the per-feature mean and scale
// it was fitted with.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Transform returns (x - mean) / scale.
func (s *Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = (x[i] - s.Mean[i]) / s.Scale[i]
	}
	return out
}

// LabelEncoder maps condition categories to the integer class ids the
// classifier was trained on. Classes are ordered; the index is the id.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

// Decode translates a class id back to its category label.
func (e *LabelEncoder) Decode(classID int) (condition.Category, error) {
	if classID < 0 || classID >= len(e.Classes) {
		return "", fmt.Errorf("class id %d outside encoder range [0,%d)", classID, len(e.Classes))
	}
	return condition.Category(e.Classes[classID]), nil
}

// SchemaMismatchError reports a disagreement between the feature columns
// the pipeline produced and the columns the artifacts were trained on.
// This is a configuration error (stale artifacts vs pipeline code), never
// silently repaired by reordering or dropping columns.
type SchemaMismatchError struct {
	Missing []string
	Extra   []string
}

func (e *SchemaMismatchError) Error() string {
	var b strings.Builder
	b.WriteString("feature schema mismatch")
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing columns: %s", strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		fmt.Fprintf(&b, "; unexpected columns: %s", strings.Join(e.Extra, ", "))
	}
	return b.String()
}

// targetColumns are predicted, never model inputs, yet always present in a
// derived feature row. They are exempt from the extra-column check.
var targetColumns = map[string]struct{}{
	"temp": {},
	"prcp": {},
}

// Ensemble is the immutable set of loaded artifacts.
type Ensemble struct {
	features []string
	scaler   *Scaler
	encoder  *LabelEncoder
	tempRF   *Forest
	prcpRF   *Forest
	condRF   *Forest
}

// New assembles an ensemble and cross-validates the artifacts against each
// other: the scaler must cover every expected feature and each forest must
// be structurally sound for that feature count.
func New(features []string, scaler *Scaler, encoder *LabelEncoder, tempRF, prcpRF, condRF *Forest) (*Ensemble, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("empty expected feature list")
	}
	if scaler == nil || len(scaler.Mean) != len(features) || len(scaler.Scale) != len(features) {
		return nil, fmt.Errorf("scaler dimensions do not match %d expected features", len(features))
	}
	for i, s := range scaler.Scale {
		if s == 0 {
			return nil, fmt.Errorf("scaler has zero scale for feature %q", features[i])
		}
	}
	if encoder == nil || len(encoder.Classes) == 0 {
		return nil, fmt.Errorf("label encoder has no classes")
	}
	for name, f := range map[string]*Forest{
		"temperature regressor":   tempRF,
		"precipitation regressor": prcpRF,
		"condition classifier":    condRF,
	} {
		if f == nil {
			return nil, fmt.Errorf("%s not loaded", name)
		}
		if err := f.validate(name, len(features)); err != nil {
			return nil, err
		}
	}

	fs := make([]string, len(features))
	copy(fs, features)
	return &Ensemble{
		features: fs,
		scaler:   scaler,
		encoder:  encoder,
		tempRF:   tempRF,
		prcpRF:   prcpRF,
		condRF:   condRF,
	}, nil
}

// ExpectedFeatures returns the ordered feature names the models consume.
func (e *Ensemble) ExpectedFeatures() []string {
	out := make([]string, len(e.features))
	copy(out, e.features)
	return out
}

// Scale aligns a feature row to the expected schema and standardizes it.
// Any missing or unexpected column aborts with a SchemaMismatchError.
func (e *Ensemble) Scale(columns map[string]float64) ([]float64, error) {
	var missing []string
	x := make([]float64, len(e.features))
	for i, name := range e.features {
		v, ok := columns[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		x[i] = v
	}

	expected := make(map[string]struct{}, len(e.features))
	for _, name := range e.features {
		expected[name] = struct{}{}
	}
	var extra []string
	for name := range columns {
		if _, ok := expected[name]; ok {
			continue
		}
		if _, ok := targetColumns[name]; ok {
			continue
		}
		extra = append(extra, name)
	}

	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(missing)
		sort.Strings(extra)
		return nil, &SchemaMismatchError{Missing: missing, Extra: extra}
	}

	return e.scaler.Transform(x), nil
}

// PredictTemperature returns the temperature prediction in °C.
func (e *Ensemble) PredictTemperature(scaled []float64) float64 {
	return e.tempRF.PredictValue(scaled)
}

// PredictPrecipitation returns the precipitation rate prediction in mm/h.
func (e *Ensemble) PredictPrecipitation(scaled []float64) float64 {
	return e.prcpRF.PredictValue(scaled)
}

// PredictConditionClass returns the predicted condition class id.
func (e *Ensemble) PredictConditionClass(scaled []float64) int {
	return e.condRF.PredictClass(scaled)
}

// DecodeCondition translates a class id into its category label.
func (e *Ensemble) DecodeCondition(classID int) (condition.Category, error) {
	return e.encoder.Decode(classID)
}
