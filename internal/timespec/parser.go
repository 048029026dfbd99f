package timespec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseTimeout parses a wait timeout into a duration.
// Supports two formats:
//   - plain seconds: "60", "1.5", "0"
//   - Go duration format: "500ms", "30s", "1m30s"
//
// Negative values are rejected. An empty spec is an error; callers apply
// their own default before parsing.
func ParseTimeout(spec string) (time.Duration, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, fmt.Errorf("empty timeout specification")
	}

	// Try plain seconds first
	if secs, err := strconv.ParseFloat(spec, 64); err == nil {
		if math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, fmt.Errorf("invalid timeout: %s", spec)
		}
		if secs < 0 {
			return 0, fmt.Errorf("timeout cannot be negative: %s", spec)
		}
		if secs > math.MaxInt64/float64(time.Second) {
			return 0, fmt.Errorf("timeout too large: %s", spec)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}

	// Try parsing as Go duration
	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("timeout cannot be negative: %s", spec)
		}
		return d, nil
	}

	return 0, fmt.Errorf("invalid timeout: %s (use seconds like '30' or a duration like '1m30s')", spec)
}

// Clamp bounds d to max. A max <= 0 means no upper bound.
func Clamp(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}

// FormatSeconds renders d as fractional seconds, the form ParseTimeout accepts
// and the HTTP API carries.
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
