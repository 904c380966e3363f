// Package window models the daily local-time interval during which polling is active.
package window

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone lookups must not depend on the host's zoneinfo
)

// Defaults for the active window.
const (
	DefaultStart    = "07:00"
	DefaultEnd      = "23:00"
	DefaultTimeZone = "Europe/Copenhagen"

	minutesPerHour = 60
	hoursPerDay    = 24
)

// Window is a daily interval [Start, End) in minutes since local midnight.
// Start > End means the window spans midnight.
type Window struct {
	Start    int
	End      int
	Location *time.Location
}

// Parse builds a window from "HH:mm" bounds and an IANA time zone name.
func Parse(start, end, tz string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("window start: %w", err)
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, fmt.Errorf("window end: %w", err)
	}
	if strings.TrimSpace(tz) == "" {
		tz = DefaultTimeZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q: %w", ErrInvalidTimeZone, tz, err)
	}
	return Window{Start: s, End: e, Location: loc}, nil
}

// Default returns the 07:00-23:00 Europe/Copenhagen window.
func Default() (Window, error) {
	return Parse(DefaultStart, DefaultEnd, DefaultTimeZone)
}

// ParseClock converts "HH:mm" into minutes since midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h >= hoursPerDay {
		return 0, fmt.Errorf("%w: hour in %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m >= minutesPerHour {
		return 0, fmt.Errorf("%w: minute in %q", ErrInvalidClock, s)
	}
	return h*minutesPerHour + m, nil
}

// FormatClock renders minutes since midnight as "HH:mm".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/minutesPerHour, minutes%minutesPerHour)
}

// Wraps reports whether the window spans midnight.
func (w Window) Wraps() bool { return w.Start > w.End }

// Contains reports whether t falls inside the window in the window's zone.
// A window whose start equals its end is never active.
func (w Window) Contains(t time.Time) bool {
	local := t
	if w.Location != nil {
		local = t.In(w.Location)
	}
	now := local.Hour()*minutesPerHour + local.Minute()
	if w.Start <= w.End {
		return now >= w.Start && now < w.End
	}
	return now >= w.Start || now < w.End
}

// Zone returns the window's time zone name.
func (w Window) Zone() string {
	if w.Location == nil {
		return time.Local.String()
	}
	return w.Location.String()
}

// Boundaries returns cron specs that fire at the window's start and end in its zone.
func (w Window) Boundaries() []string {
	spec := func(minutes int) string {
		return fmt.Sprintf("CRON_TZ=%s %d %d * * *", w.Zone(), minutes%minutesPerHour, minutes/minutesPerHour)
	}
	return []string{spec(w.Start), spec(w.End)}
}

// String renders the window as "HH:mm-HH:mm Zone".
func (w Window) String() string {
	return FormatClock(w.Start) + "-" + FormatClock(w.End) + " " + w.Zone()
}

// Equal reports whether both windows have the same bounds and zone.
func (w Window) Equal(o Window) bool {
	return w.Start == o.Start && w.End == o.End && w.Zone() == o.Zone()
}
