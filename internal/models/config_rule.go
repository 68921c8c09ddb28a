package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ConfigRule is a user-defined actuator schedule from the configuration API.
type ConfigRule struct {
	Code        string `json:"code"`        // actuator command, e.g. "light/on"
	ConfigType  string `json:"config_type"` // "time" | "event"
	ConfigValue string `json:"config_value"`
	ConfigDay   string `json:"config_day,omitempty"` // YYYY-MM-DD, empty means every day
}

// DecodeConfigRules validates a configuration API response.
func DecodeConfigRules(data []byte) ([]ConfigRule, []error, error) {
	var rules []ConfigRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, nil, fmt.Errorf("decode config rules: %w", err)
	}

	out := rules[:0]
	var invalid []error
	for i, r := range rules {
		r.Code = strings.TrimSpace(r.Code)
		if r.Code == "" {
			invalid = append(invalid, &DecodeError{Kind: "config rule", Index: i, Field: "code", Msg: "is missing"})
			continue
		}
		out = append(out, r)
	}
	return out, invalid, nil
}
