package types

import (
	"fmt"
	"strings"
	"time"
)

// isoLayouts are the ISO 8601 forms accepted from upstream feeds and from
// query strings. Naive timestamps (no offset) are taken as UTC; this covers
// the browser's datetime-local value ("2006-01-02T15:04").
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseISOTime parses an ISO 8601 timestamp and returns it in UTC.
func ParseISOTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO 8601 time %q", s)
}
