package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"tank_edge/internal/models"
)

// ParseLine splits a "<code>:<value>" device line. Exactly one colon is
// allowed and the value must be a finite number.
func ParseLine(line string) (string, float64, error) {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, ":")
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("%w: expected code:value, got %q", models.ErrParse, line)
	}

	code := strings.TrimSpace(parts[0])
	raw := strings.TrimSpace(parts[1])
	if code == "" {
		return "", 0, fmt.Errorf("%w: empty sensor code in %q", models.ErrParse, line)
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: non-numeric value %q for %s", models.ErrParse, raw, code)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "", 0, fmt.Errorf("%w: non-finite value %q for %s", models.ErrParse, raw, code)
	}
	return code, value, nil
}
