package service

import (
	"fmt"

	"tank_edge/internal/models"
)

// Evaluate checks value against the rule for sensorCode. Bounds are
// exclusive: a value equal to min or max does not alert. The returned alert
// carries only the code, value and message; the caller fills in ids.
func Evaluate(sensorCode, displayName string, value float64, rules models.ThresholdTable) (models.Alert, bool) {
	rule, ok := rules[sensorCode]
	if !ok {
		return models.Alert{}, false
	}

	var msg string
	switch {
	case rule.Min != nil && value < *rule.Min:
		msg = fmt.Sprintf("%s too low: %g (minimum: %g)", displayName, value, *rule.Min)
	case rule.Max != nil && value > *rule.Max:
		msg = fmt.Sprintf("%s too high: %g (maximum: %g)", displayName, value, *rule.Max)
	default:
		return models.Alert{}, false
	}

	return models.Alert{
		SensorCode: sensorCode,
		Value:      value,
		Message:    msg,
	}, true
}
