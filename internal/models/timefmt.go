package models

import "time"

const (
	isoLayout     = "2006-01-02T15:04:05-07:00"
	isoNanoLayout = "2006-01-02T15:04:05.999999999-07:00"
)

// FormatTime renders t in UTC as ISO-8601 with an explicit "+00:00" offset.
// Fractional seconds appear only when non-zero.
func FormatTime(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond() == 0 {
		return t.Format(isoLayout)
	}
	return t.Format(isoNanoLayout)
}

// ParseTime parses an ISO-8601 timestamp that carries an offset and returns it
// normalized to UTC. Timestamps without an offset are rejected.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
