package slots

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidLabel = errors.New("invalid slot label")
	ErrInvalidDate  = errors.New("invalid date, expected YYYY-MM-DD")
)

const DateLayout = "2006-01-02"

// Clock is a parsed "h:mm AM|PM" value.
type Clock struct {
	Hour   int // 1-12 as written
	Minute int
	Period string // AM or PM
}

// Hour24 converts to 24-hour local time. PM adds 12 unless the hour is
// already >= 12, AM maps 12 to 0.
func (c Clock) Hour24() int {
	h := c.Hour
	switch c.Period {
	case "PM":
		if h < 12 {
			h += 12
		}
	case "AM":
		if h == 12 {
			h = 0
		}
	}
	return h
}

// Range is a parsed slot label.
type Range struct {
	Start Clock
	End   Clock
}

// ParseLabel parses "<start> - <end>" where each side is "h:mm AM|PM".
func ParseLabel(label string) (Range, error) {
	parts := strings.Split(label, " - ")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	start, err := parseClock(parts[0])
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return Range{Start: start, End: end}, nil
}

func parseClock(s string) (Clock, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Clock{}, ErrInvalidLabel
	}
	period := strings.ToUpper(fields[1])
	if period != "AM" && period != "PM" {
		return Clock{}, ErrInvalidLabel
	}

	hm := strings.SplitN(fields[0], ":", 2)
	if len(hm) != 2 || len(hm[1]) != 2 {
		return Clock{}, ErrInvalidLabel
	}
	hour, err := strconv.Atoi(hm[0])
	if err != nil || hour < 1 || hour > 12 {
		return Clock{}, ErrInvalidLabel
	}
	minute, err := strconv.Atoi(hm[1])
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, ErrInvalidLabel
	}
	return Clock{Hour: hour, Minute: minute, Period: period}, nil
}

// ToUTC anchors a slot label on the calendar day of date in loc and returns
// the absolute start and end instants in UTC. Only the year, month and day of
// date are used. An end that is not after the start rolls over to the next day.
func ToUTC(date time.Time, label string, loc *time.Location) (time.Time, time.Time, error) {
	r, err := ParseLabel(label)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}

	y, m, d := date.Date()
	start := time.Date(y, m, d, r.Start.Hour24(), r.Start.Minute, 0, 0, loc)
	end := time.Date(y, m, d, r.End.Hour24(), r.End.Minute, 0, 0, loc)
	if !end.After(start) {
		end = time.Date(y, m, d+1, r.End.Hour24(), r.End.Minute, 0, 0, loc)
	}
	return start.UTC(), end.UTC(), nil
}

// ParseDate parses YYYY-MM-DD into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// Today returns the current calendar day in loc as midnight UTC, comparable
// with values returned by ParseDate.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
