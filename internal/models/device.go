package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultReadingInterval applies when the registry omits a device's interval.
const DefaultReadingInterval = 300 * time.Second

// DeviceDescriptor describes one sensor known to the registry.
type DeviceDescriptor struct {
	ID                     uint32 `json:"id"`
	TankID                 uint32 `json:"tankId"`
	Code                   string `json:"code"` // sensor code, e.g. "tmp/1"
	Name                   string `json:"name"`
	ReadingIntervalSeconds uint32 `json:"reading_interval"`
}

// Interval returns the reading period, falling back to DefaultReadingInterval.
func (d DeviceDescriptor) Interval() time.Duration {
	if d.ReadingIntervalSeconds == 0 {
		return DefaultReadingInterval
	}
	return time.Duration(d.ReadingIntervalSeconds) * time.Second
}

// DisplayName is the name used in alert messages.
func (d DeviceDescriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Code
}

// SensorType is the code prefix before the slash ("tmp" for "tmp/1").
func SensorType(code string) string {
	t, _, _ := strings.Cut(code, "/")
	return t
}

// rawDevice mirrors the registry payload with optional fields so that
// missing values can be told apart from zero values.
type rawDevice struct {
	ID              *uint32 `json:"id"`
	TankID          *uint32 `json:"tankId"`
	Code            *string `json:"code"`
	Name            string  `json:"name"`
	ReadingInterval *uint32 `json:"reading_interval"`
}

// DecodeDevices validates a registry response. Entries with missing or
// invalid fields are skipped and reported through the returned errors.
func DecodeDevices(data []byte) ([]DeviceDescriptor, []error, error) {
	var raws []rawDevice
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, fmt.Errorf("decode devices: %w", err)
	}

	devices := make([]DeviceDescriptor, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	var invalid []error
	for i, r := range raws {
		d, err := r.validate(i)
		if err != nil {
			invalid = append(invalid, err)
			continue
		}
		if _, dup := seen[d.Code]; dup {
			invalid = append(invalid, &DecodeError{Kind: "device", Index: i, Field: "code", Msg: "is duplicated"})
			continue
		}
		seen[d.Code] = struct{}{}
		devices = append(devices, d)
	}
	return devices, invalid, nil
}

func (r rawDevice) validate(i int) (DeviceDescriptor, error) {
	switch {
	case r.ID == nil:
		return DeviceDescriptor{}, &DecodeError{Kind: "device", Index: i, Field: "id", Msg: "is missing"}
	case r.TankID == nil:
		return DeviceDescriptor{}, &DecodeError{Kind: "device", Index: i, Field: "tankId", Msg: "is missing"}
	case r.Code == nil || strings.TrimSpace(*r.Code) == "":
		return DeviceDescriptor{}, &DecodeError{Kind: "device", Index: i, Field: "code", Msg: "is missing"}
	case strings.Contains(*r.Code, ":"):
		return DeviceDescriptor{}, &DecodeError{Kind: "device", Index: i, Field: "code", Msg: "must not contain ':'"}
	}

	d := DeviceDescriptor{
		ID:     *r.ID,
		TankID: *r.TankID,
		Code:   strings.TrimSpace(*r.Code),
		Name:   r.Name,
	}
	if r.ReadingInterval != nil {
		d.ReadingIntervalSeconds = *r.ReadingInterval
	}
	return d, nil
}
