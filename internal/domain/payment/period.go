package payment

import "time"

// OccurrenceKeyLayout is the canonical form of an occurrence date.
const OccurrenceKeyLayout = "2006-01-02"

// Window is a closed time interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Occurrence is one calendar instance of a recurring payment day.
type Occurrence struct {
	Date   time.Time // Midnight of the payment day in the reference timezone
	Window Window
}

// Key identifies the occurrence in storage, e.g. "2025-05-16".
func (o Occurrence) Key() string {
	return o.Date.Format(OccurrenceKeyLayout)
}

// Resolve returns the occurrence whose activation window contains now.
//
// Days are tried in the given order and the first match wins, even when
// windows overlap. A day that does not exist in now's month is skipped.
// Offsets are calendar days, so a window keeps its wall-clock bounds across
// DST changes.
func Resolve(now time.Time, days []int, before, after int, loc *time.Location) (Occurrence, bool) {
	if loc == nil {
		loc = now.Location()
	}
	local := now.In(loc)
	year, month, _ := local.Date()

	for _, day := range days {
		anchor, ok := dayOfMonth(year, month, day, loc)
		if !ok {
			continue
		}
		window := Window{
			Start: anchor.AddDate(0, 0, -before),
			End:   anchor.AddDate(0, 0, after),
		}
		if window.Contains(local) {
			return Occurrence{Date: anchor, Window: window}, true
		}
	}
	return Occurrence{}, false
}

// dayOfMonth builds midnight of the given day, refusing days time.Date would normalize into another month.
func dayOfMonth(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// PeriodResolver binds the configured payment days to Resolve. The clock is always passed in.
type PeriodResolver struct {
	Days       []int
	DaysBefore int
	DaysAfter  int
	Location   *time.Location
}

func (r PeriodResolver) Resolve(now time.Time) (Occurrence, bool) {
	return Resolve(now, r.Days, r.DaysBefore, r.DaysAfter, r.Location)
}
