package types

import (
	"fmt"
	"strings"
	"time"
)

// ParseHL7Timestamp parses an HL7 v2 DTM value (YYYYMMDD[HHMM[SS[.S+]]][+/-ZZZZ]).
// Values without an offset are read as UTC.
func ParseHL7Timestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	loc := time.UTC

	if i := strings.IndexAny(s, "+-"); i >= 8 {
		offset := s[i:]
		s = s[:i]
		tz, err := time.Parse("-0700", offset)
		if err != nil {
			return time.Time{}, fmt.Errorf("hl7: invalid timezone offset %q", offset)
		}
		loc = tz.Location()
	}
	// fractional seconds are dropped
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}

	var layout string
	switch len(s) {
	case 14:
		layout = "20060102150405"
	case 12:
		layout = "200601021504"
	case 10:
		layout = "2006010215"
	case 8:
		layout = "20060102"
	default:
		return time.Time{}, fmt.Errorf("hl7: unrecognized timestamp format: %q", s)
	}

	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("hl7: invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// ParseOptionalHL7Timestamp returns nil for an empty or nil value.
func ParseOptionalHL7Timestamp(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := ParseHL7Timestamp(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FormatHL7Timestamp renders t as YYYYMMDDHHMMSS in UTC.
func FormatHL7Timestamp(t time.Time) string {
	return t.UTC().Format("20060102150405")
}
