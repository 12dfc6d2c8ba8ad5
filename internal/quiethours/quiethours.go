// Package quiethours decides whether an instant falls inside a recurring
// local time-of-day window such as "22:00 - 07:00".
package quiethours

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	ErrInvalidRange    = errors.New("invalid time range")
	ErrInvalidTimezone = errors.New("invalid timezone")
)

var rangePattern = regexp.MustCompile(`^\s*([01]?[0-9]|2[0-3]):([0-5][0-9])\s*-\s*([01]?[0-9]|2[0-3]):([0-5][0-9])\s*$`)

// clock is minutes since local midnight.
type clock int

func (c clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// TimeRange is an inclusive window of local wall-clock minutes. A start
// later than the end wraps past midnight.
type TimeRange struct {
	start clock
	end   clock
	loc   *time.Location
}

// Parse reads a "HH:MM - HH:MM" range interpreted in the IANA zone tz.
func Parse(rangeStr, tz string) (*TimeRange, error) {
	m := rangePattern.FindStringSubmatch(rangeStr)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, rangeStr)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return &TimeRange{
		start: toClock(m[1], m[2]),
		end:   toClock(m[3], m[4]),
		loc:   loc,
	}, nil
}

func toClock(hh, mm string) clock {
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	return clock(h*60 + m)
}

// Includes reports whether t falls inside the window. Seconds are ignored.
func (r *TimeRange) Includes(t time.Time) bool {
	local := t.In(r.loc)
	c := clock(local.Hour()*60 + local.Minute())
	if r.start <= r.end {
		return r.start <= c && c <= r.end
	}
	return c >= r.start || c <= r.end
}

func (r *TimeRange) Excludes(t time.Time) bool {
	return !r.Includes(t)
}

func (r *TimeRange) String() string {
	return fmt.Sprintf("%s - %s %s", r.start, r.end, r.loc)
}
