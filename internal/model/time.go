// Package model defines the records stored by the journal backend.
//
// Every record is flat: relationships are plain string ids, list-valued
// fields are typed slices here and become serialized text only at the
// storage edge. All timestamps are ISO-8601 strings so that a record read
// from SQLite and the same record read from Firestore compare equal.
package model

import "time"

// TimeLayout is the ISO-8601 layout used for every stored timestamp:
// UTC, millisecond precision, literal "Z" suffix.
//
// Strings in this layout sort lexicographically in time order, which is
// what lets both storage engines compare expires_at against "now" with a
// plain string comparison.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// DateLayout is the layout of calendar dates (anniversaries, milestones).
const DateLayout = "2006-01-02"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts TimeLayout as well as any RFC 3339 timestamp.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// Now returns the current time in TimeLayout.
func Now() string {
	return FormatTime(time.Now())
}
