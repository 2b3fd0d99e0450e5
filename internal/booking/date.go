package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var errMissingDate = errors.New("scheduled date is required")

// NormalizeDate converts a date-like value to YYYY-MM-DD using the calendar
// fields of loc (time.Local when nil). Instants are never converted to UTC first.
//
// Accepted values: time.Time, *time.Time, "YYYY-MM-DD" and RFC 3339 strings.
func NormalizeDate(v any, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.Local
	}

	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return "", errMissingDate
		}
		return formatLocal(d, loc), nil
	case *time.Time:
		if d == nil || d.IsZero() {
			return "", errMissingDate
		}
		return formatLocal(*d, loc), nil
	case string:
		return normalizeDateString(d, loc)
	case nil:
		return "", errMissingDate
	default:
		return "", fmt.Errorf("unsupported date value of type %T", v)
	}
}

func normalizeDateString(s string, loc *time.Location) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errMissingDate
	}

	// A bare calendar date has no zone, so it is already local.
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t.Format(dateLayout), nil
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return formatLocal(t, loc), nil
		}
	}

	// Date-times without a zone are read in loc.
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Format(dateLayout), nil
		}
	}

	return "", fmt.Errorf("invalid date %q; expected YYYY-MM-DD", s)
}

func formatLocal(t time.Time, loc *time.Location) string {
	y, m, d := t.In(loc).Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
}
