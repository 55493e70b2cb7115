// File: internal/utils/lookback.go
package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultLookbackDays is used when a volatility query omits the window.
const DefaultLookbackDays = 30

// ParseLookbackDays parses the "days" query value into a lookback window.
// An empty value selects the default; the [7, 365] range check itself
// lives in the price service so every caller shares it.
func ParseLookbackDays(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLookbackDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid lookback '%s': must be a whole number of days", raw)
	}
	return days, nil
}

// SplitCSV splits a comma-separated query value into trimmed, non-empty
// elements. Returns nil for an empty input.
func SplitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
