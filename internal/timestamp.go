package internal

import (
	"fmt"
	"strings"
	"time"
)

const isoMillis = "2006-01-02T15:04:05.000Z"

// NowISO8601 returns the current UTC time as an ISO-8601 string with
// millisecond precision and a trailing Z, e.g. "2025-10-08T14:30:45.123Z".
func NowISO8601() string {
	return time.Now().UTC().Format(isoMillis)
}

// timestampLayouts are tried in order when parsing. Offset-less forms are
// interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp, accepting a trailing Z or an
// explicit offset, and returns the instant normalized to UTC.
func ParseTimestamp(ts string) (time.Time, error) {
	text := strings.TrimSpace(ts)
	if text == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp format: %s", ts)
}
