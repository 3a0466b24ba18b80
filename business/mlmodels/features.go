// Package mlmodels provides the model feature vector, the interaction input
// matrix the regression model was trained on, and the boundary to the
// external model runner that scores it.
package mlmodels

import (
	"fmt"
)

// FeatureNames is the full fixed key set of the model feature vector: the
// trip features derived from the resolved trip plus the hourly weather
// attributes. The scorer input is built from exactly these keys.
var FeatureNames = []string{
	"direction_South",
	"direction_North",
	"direction_West",
	"is_morning",
	"is_evening",
	"is_peak_hour",
	"stop_distance",
	"trip_phase_start",
	"trip_phase_middle",
	"exp_trip_duration",
	"route_bearing",
	"hist_avg_delay",
	"freq_very_rare",
	"freq_rare",
	"freq_normal",
	"stop_cluster",
	"location_group",
	"arrivals_per_hour",
	"schedule_relationship_Scheduled",
	"cloud_cover",
	"relative_humidity_2m",
	"temperature_2m",
	"wind_direction_10m",
	"wind_speed_10m",
	"precipitation",
}

// FeatureVector accumulates named feature values against the fixed key set.
// Setting an unknown key, setting a key twice, or reading before every key
// has been set are all errors, so feature sources cannot silently overwrite
// or under-populate each other.
type FeatureVector struct {
	allowed map[string]bool
	values  map[string]float64
}

// NewFeatureVector builds an empty FeatureVector over FeatureNames.
func NewFeatureVector() *FeatureVector {
	allowed := make(map[string]bool, len(FeatureNames))
	for _, name := range FeatureNames {
		allowed[name] = true
	}
	return &FeatureVector{
		allowed: allowed,
		values:  make(map[string]float64, len(FeatureNames)),
	}
}

// Set records the value for name.
func (f *FeatureVector) Set(name string, value float64) error {
	if !f.allowed[name] {
		return fmt.Errorf("unknown feature name %q", name)
	}
	if _, present := f.values[name]; present {
		return fmt.Errorf("feature %q set twice", name)
	}
	f.values[name] = value
	return nil
}

// SetAll records every value in features.
func (f *FeatureVector) SetAll(features map[string]float64) error {
	for name, value := range features {
		if err := f.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves the value for name, failing if it was never set.
func (f *FeatureVector) Get(name string) (float64, error) {
	value, present := f.values[name]
	if !present {
		if !f.allowed[name] {
			return 0, fmt.Errorf("unknown feature name %q", name)
		}
		return 0, fmt.Errorf("feature %q has not been set", name)
	}
	return value, nil
}

// Require verifies that every feature in the fixed key set has been set.
func (f *FeatureVector) Require() error {
	for _, name := range FeatureNames {
		if _, present := f.values[name]; !present {
			return fmt.Errorf("feature %q has not been set", name)
		}
	}
	return nil
}
