package aggregate

import (
	"fmt"
	"time"
)

// DefaultSpan is the lookback window used when the caller does not ask for a
// specific range.
const DefaultSpan = time.Hour

// MaxSpan caps how far back a traffic query may reach.
const MaxSpan = 14 * 24 * time.Hour

// Presets accepted on the traffic endpoint, mapped to lookback spans.
var presets = map[string]time.Duration{
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
}

// ParseRange resolves a range string to a lookback span. Presets are tried
// first, then Go duration syntax. Empty input means the default span.
func ParseRange(s string) (time.Duration, error) {
	if s == "" {
		return DefaultSpan, nil
	}
	if span, ok := presets[s]; ok {
		return span, nil
	}
	span, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid range %q", s)
	}
	if span <= 0 {
		return 0, fmt.Errorf("range must be positive, got %q", s)
	}
	if span > MaxSpan {
		return 0, fmt.Errorf("range %q exceeds maximum of %v", s, MaxSpan)
	}
	return span, nil
}
