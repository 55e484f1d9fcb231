package utils

import (
	"time"

	"github.com/araddon/dateparse"
)

// ParseDateParam parses a loosely formatted date from a query string
// ("2024-05-01", "05/01/2024", RFC 3339, unix seconds). Dates without a zone
// are read in loc.
func ParseDateParam(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return dateparse.ParseIn(value, loc)
}
