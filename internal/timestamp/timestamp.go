// Package timestamp implements the 14-digit capture timestamps used in
// Wayback Machine URLs and CDX rows.
package timestamp

import (
	"fmt"
	"time"
)

// Layout is the canonical text form, YYYYMMDDHHMMSS in UTC.
const Layout = "20060102150405"

// Len is the length of the canonical text form.
const Len = len(Layout)

// Timestamp is a UTC instant with second precision.
type Timestamp struct {
	t time.Time
}

// Error reports an unusable timestamp value.
type Error struct {
	Value  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid timestamp %q: %s", e.Value, e.Reason)
}

// Parse decodes the 14-digit form.
func Parse(s string) (Timestamp, error) {
	if len(s) != Len {
		return Timestamp{}, &Error{Value: s, Reason: fmt.Sprintf("length %d, expected %d", len(s), Len)}
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return Timestamp{}, &Error{Value: s, Reason: "non-digit character"}
		}
	}
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return Timestamp{}, &Error{Value: s, Reason: err.Error()}
	}
	return Timestamp{t: t}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Timestamp {
	ts, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return ts
}

// FromTime converts t to UTC. Sub-second precision is an error, not
// silently truncated.
func FromTime(t time.Time) (Timestamp, error) {
	if t.Nanosecond() != 0 {
		return Timestamp{}, &Error{Value: t.Format(time.RFC3339Nano), Reason: "sub-second precision"}
	}
	return fromUTC(t.UTC())
}

// FromUnix converts seconds since the Unix epoch.
func FromUnix(sec int64) (Timestamp, error) {
	return fromUTC(time.Unix(sec, 0).UTC())
}

func fromUTC(t time.Time) (Timestamp, error) {
	if y := t.Year(); y < 0 || y > 9999 {
		return Timestamp{}, &Error{Value: t.String(), Reason: "year outside 0000-9999"}
	}
	return Timestamp{t: t}, nil
}

// Time returns the instant in UTC.
func (ts Timestamp) Time() time.Time {
	return ts.t
}

// Unix returns seconds since the Unix epoch.
func (ts Timestamp) Unix() int64 {
	return ts.t.Unix()
}

// String returns the 14-digit form.
func (ts Timestamp) String() string {
	return ts.t.Format(Layout)
}

// Compare orders timestamps chronologically.
func (ts Timestamp) Compare(other Timestamp) int {
	return ts.t.Compare(other.t)
}

// Equal reports whether both name the same second.
func (ts Timestamp) Equal(other Timestamp) bool {
	return ts.t.Equal(other.t)
}

// MarshalText implements encoding.TextMarshaler.
func (ts Timestamp) MarshalText() ([]byte, error) {
	return []byte(ts.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (ts *Timestamp) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}
