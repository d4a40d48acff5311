package db

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// timestampLayouts covers what the three drivers hand back for timestamp
// columns that lost their declared type (SQLite aggregates, MySQL without
// parseTime).
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// NullTime is a nullable timestamp that also accepts textual values.
type NullTime struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner.
func (nt *NullTime) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		nt.Time, nt.Valid = time.Time{}, false

		return nil
	case time.Time:
		nt.Time, nt.Valid = v.UTC(), true

		return nil
	case []byte:
		return nt.parse(string(v))
	case string:
		return nt.parse(v)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrUnparsableTime, value)
	}
}

// Value implements driver.Valuer.
func (nt NullTime) Value() (driver.Value, error) {
	if !nt.Valid {
		return nil, nil
	}

	return nt.Time, nil
}

// Ptr returns nil for NULL and a pointer to the time otherwise.
func (nt NullTime) Ptr() *time.Time {
	if !nt.Valid {
		return nil
	}

	t := nt.Time

	return &t
}

func (nt *NullTime) parse(s string) error {
	s = strings.TrimSuffix(strings.TrimSpace(s), "Z")
	if s == "" {
		nt.Time, nt.Valid = time.Time{}, false

		return nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			nt.Time, nt.Valid = t.UTC(), true

			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrUnparsableTime, s)
}
