package ensemble

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact file names inside the models directory.
const (
	FeatureColumnsFile = "feature_columns.json"
	ScalerFile         = "scaler.json"
	LabelEncoderFile   = "label_encoder.json"
	TemperatureFile    = "temperature_regressor.json"
	PrecipitationFile  = "precipitation_regressor.json"
	ConditionFile      = "condition_classifier.json"
)

// ArtifactError reports a model artifact that could not be loaded. It is
// fatal at startup: the service must not serve forecasts with a partial
// ensemble.
type ArtifactError struct {
	Name string
	Err  error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("model artifact %s: %v", e.Name, e.Err)
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}

// Load reads and validates all six artifacts from dir and assembles the
// ensemble.
func Load(dir string) (*Ensemble, error) {
	var features []string
	if err := readArtifact(dir, FeatureColumnsFile, &features); err != nil {
		return nil, err
	}

	var scaler Scaler
	if err := readArtifact(dir, ScalerFile, &scaler); err != nil {
		return nil, err
	}

	var encoder LabelEncoder
	if err := readArtifact(dir, LabelEncoderFile, &encoder); err != nil {
		return nil, err
	}

	var tempRF, prcpRF, condRF Forest
	if err := readArtifact(dir, TemperatureFile, &tempRF); err != nil {
		return nil, err
	}
	if err := readArtifact(dir, PrecipitationFile, &prcpRF); err != nil {
		return nil, err
	}
	if err := readArtifact(dir, ConditionFile, &condRF); err != nil {
		return nil, err
	}

	ens, err := New(features, &scaler, &encoder, &tempRF, &prcpRF, &condRF)
	if err != nil {
		return nil, &ArtifactError{Name: dir, Err: err}
	}
	return ens, nil
}

func readArtifact(dir, name string, dest interface{}) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return &ArtifactError{Name: name, Err: err}
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return &ArtifactError{Name: name, Err: fmt.Errorf("corrupt artifact: %w", err)}
	}
	return nil
}
