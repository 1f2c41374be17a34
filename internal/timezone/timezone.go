// Package timezone picks the location used as the reference for relative
// date/time entities.
package timezone

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// Parse parses an IANA timezone identifier as sent in meta.timezone.
// If the identifier is invalid, UTC is returned together with the error.
func Parse(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// IsValid reports whether tz can be loaded.
func IsValid(tz string) bool {
	_, err := Parse(tz)
	return err == nil
}

// Now returns the current instant in tz, falling back to fallback when tz
// is empty or unknown.
func Now(clock func() time.Time, tz string, fallback *time.Location) (time.Time, error) {
	if clock == nil {
		clock = time.Now
	}
	if fallback == nil {
		fallback = time.UTC
	}
	if strings.TrimSpace(tz) == "" {
		return clock().In(fallback), nil
	}
	loc, err := Parse(tz)
	if err != nil {
		return clock().In(fallback), err
	}
	return clock().In(loc), nil
}
