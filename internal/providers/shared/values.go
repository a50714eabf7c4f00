package shared

import (
	"strconv"
	"strings"
	"time"
)

func Int64Ptr(v int64) *int64 {
	vv := v
	return &vv
}

// PositiveInt64Ptr returns nil for zero and negative counters so callers can
// omit them instead of storing an explicit zero.
func PositiveInt64Ptr(v int64) *int64 {
	if v <= 0 {
		return nil
	}
	return Int64Ptr(v)
}

func ParseTimestampString(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return UnixAuto(n), nil
	}
	return time.Time{}, strconv.ErrSyntax
}

func UnixAuto(ts int64) time.Time {
	switch {
	case ts > 1_000_000_000_000_000:
		return time.UnixMicro(ts).UTC()
	case ts > 1_000_000_000_000:
		return time.UnixMilli(ts).UTC()
	default:
		return time.Unix(ts, 0).UTC()
	}
}
