package models

// ThresholdRule bounds the acceptable range of one sensor. A nil bound is unconstrained.
type ThresholdRule struct {
	SensorCode string   `json:"sensorCode"`
	Min        *float64 `json:"min"`
	Max        *float64 `json:"max"`
}

// ThresholdTable maps a sensor code to its rule.
type ThresholdTable map[string]ThresholdRule

// Bound is a helper for building rules in code and tests.
func Bound(v float64) *float64 { return &v }
