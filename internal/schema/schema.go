// Package schema describes the expected shape of the dataset and checks
// incoming samples against it.
package schema

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoFeatures        = errors.New("schema must declare at least one feature")
	ErrNoLabel           = errors.New("schema must declare a label column")
	ErrFeatureCount      = errors.New("unexpected feature count")
	ErrFeatureOutOfRange = errors.New("feature out of range")
	ErrLabelNotBinary    = errors.New("label must be 0 or 1")
)

// FeatureSpec declares one feature column. Min and Max are optional
// bounds; a nil bound is unchecked.
type FeatureSpec struct {
	Name string   `yaml:"name"`
	Min  *float64 `yaml:"min"`
	Max  *float64 `yaml:"max"`
}

// Schema is the dataset contract: the label column and the feature
// columns in order.
type Schema struct {
	Label    string        `yaml:"label"`
	Features []FeatureSpec `yaml:"features"`
}

// Load reads a schema from a YAML file.
func Load(path string) (*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read schema %s", path)
	}

	sch := &Schema{}
	err = yaml.Unmarshal(raw, sch)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse schema %s", path)
	}

	if sch.Label == "" {
		return nil, ErrNoLabel
	}
	if len(sch.Features) == 0 {
		return nil, ErrNoFeatures
	}

	return sch, nil
}

// ValidateRow checks one sample against the schema. NaN features are
// accepted: they are placeholders for missing values filled in by the
// transform stage.
func (s *Schema) ValidateRow(features []float64, label float64) error {
	if len(features) != len(s.Features) {
		return errors.Wrapf(ErrFeatureCount, "got %d, want %d", len(features), len(s.Features))
	}

	if label != 0 && label != 1 {
		return errors.Wrapf(ErrLabelNotBinary, "got %v", label)
	}

	for i, spec := range s.Features {
		v := features[i]
		if math.IsNaN(v) {
			continue
		}
		if spec.Min != nil && v < *spec.Min {
			return errors.Wrapf(ErrFeatureOutOfRange, "%s: %v < %v", spec.Name, v, *spec.Min)
		}
		if spec.Max != nil && v > *spec.Max {
			return errors.Wrapf(ErrFeatureOutOfRange, "%s: %v > %v", spec.Name, v, *spec.Max)
		}
	}

	return nil
}

// FeatureNames returns the declared feature names in order.
func (s *Schema) FeatureNames() []string {
	names := make([]string, len(s.Features))
	for i, spec := range s.Features {
		names[i] = spec.Name
	}

	return names
}
