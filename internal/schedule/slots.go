package schedule

import (
	"fmt"
	"time"
)

// Interval is a half-open [Start, End) span in minutes from midnight.
type Interval struct {
	Start int
	End   int
}

// Overlaps reports whether two half-open intervals intersect.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && other.Start < i.End
}

// Shop describes the single shop's working grid: open interval,
// slot step and non-working weekdays. One shop, one timezone.
type Shop struct {
	openMin  int
	closeMin int
	step     int
	daysOff  map[time.Weekday]bool
	loc      *time.Location
}

func NewShop(open, close string, stepMinutes int, daysOff []time.Weekday, loc *time.Location) (*Shop, error) {
	openMin, err := MinutesOfDay(open)
	if err != nil {
		return nil, fmt.Errorf("shop open time: %w", err)
	}
	closeMin, err := MinutesOfDay(close)
	if err != nil {
		return nil, fmt.Errorf("shop close time: %w", err)
	}
	if closeMin <= openMin {
		return nil, fmt.Errorf("shop close %s is not after open %s", close, open)
	}
	if stepMinutes <= 0 {
		return nil, fmt.Errorf("slot step must be positive, got %d", stepMinutes)
	}
	if loc == nil {
		loc = time.Local
	}

	off := make(map[time.Weekday]bool, len(daysOff))
	for _, d := range daysOff {
		off[d] = true
	}

	return &Shop{
		openMin:  openMin,
		closeMin: closeMin,
		step:     stepMinutes,
		daysOff:  off,
		loc:      loc,
	}, nil
}

func (s *Shop) Location() *time.Location { return s.loc }

func (s *Shop) IsWorkingDay(date time.Time) bool {
	return !s.daysOff[date.Weekday()]
}

// AvailableSlots walks the open interval in fixed steps and returns the
// chronologically ordered start times ("15:04") at which a service of
// durationMinutes fits without touching any busy interval. The duration
// does not have to be a multiple of the step; a slot whose end would
// run past closing time is not offered. Non-working days yield nil.
func (s *Shop) AvailableSlots(date time.Time, durationMinutes int, busy []Interval) []string {
	if durationMinutes <= 0 {
		return nil
	}
	if !s.IsWorkingDay(date) {
		return nil
	}

	var slots []string
	for start := s.openMin; start+durationMinutes <= s.closeMin; start += s.step {
		candidate := Interval{Start: start, End: start + durationMinutes}
		if overlapsAny(candidate, busy) {
			continue
		}
		slots = append(slots, FormatMinutes(start))
	}
	return slots
}

// SlotFree reports whether a single start time still fits. Used for the
// re-check when the master proposes a new time.
func (s *Shop) SlotFree(date time.Time, start string, durationMinutes int, busy []Interval) bool {
	startMin, err := MinutesOfDay(start)
	if err != nil {
		return false
	}
	if !s.IsWorkingDay(date) {
		return false
	}
	if startMin < s.openMin || startMin+durationMinutes > s.closeMin {
		return false
	}
	return !overlapsAny(Interval{Start: startMin, End: startMin + durationMinutes}, busy)
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// MinutesOfDay parses "15:04" into minutes from midnight.
func MinutesOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatMinutes renders minutes from midnight back to "15:04".
func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
