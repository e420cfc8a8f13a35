package helper

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	clockLayout = "15:04:05"
)

var ErrInvalidWindow = errors.New("time window must look like HH:MM-HH:MM")

// NormalizeClock accepts HH:MM or HH:MM:SS and always returns HH:MM:SS.
func NormalizeClock(s string) string {
	s = strings.TrimSpace(s)
	if strings.Count(s, ":") == 1 {
		s += ":00"
	}
	return s
}

// ParseClock returns the offset from midnight of a wall-clock value.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse(clockLayout, NormalizeClock(s))
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

// ParseTimeWindow splits "09:00-10:00" into start and end offsets from midnight.
func ParseTimeWindow(w string) (start, end time.Duration, err error) {
	from, to, ok := strings.Cut(strings.TrimSpace(w), "-")
	if !ok {
		return 0, 0, ErrInvalidWindow
	}
	if start, err = ParseClock(from); err != nil {
		return 0, 0, ErrInvalidWindow
	}
	if end, err = ParseClock(to); err != nil {
		return 0, 0, ErrInvalidWindow
	}
	if end <= start {
		return 0, 0, ErrInvalidWindow
	}
	return start, end, nil
}

// ParseDate parses an ISO calendar date as midnight in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
}

// IsOpen reports whether now falls between the opening and closing clock
// values on now's calendar day. A closing time before the opening time means
// the service day runs past midnight.
func IsOpen(now time.Time, opening, closing string, loc *time.Location) bool {
	openOff, err := ParseClock(opening)
	if err != nil {
		return false
	}
	closeOff, err := ParseClock(closing)
	if err != nil {
		return false
	}

	now = now.In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	openTime := midnight.Add(openOff)
	closeTime := midnight.Add(closeOff)

	if closeTime.Before(openTime) {
		closeTime = closeTime.Add(24 * time.Hour)
		if now.Before(openTime) {
			openTime = openTime.Add(-24 * time.Hour)
			closeTime = closeTime.Add(-24 * time.Hour)
		}
	}

	return !now.Before(openTime) && now.Before(closeTime)
}
