package nlu

import "time"

// yearWrapOffset is added to wrapped date keys so January entries sort
// after December entries inside a window that spans the year boundary.
// Any value above the largest possible key (1231) works.
const yearWrapOffset = 1300

// DateKey folds a (day, 1-based month index) pair into a single comparable
// integer, month*100+day. Keys order chronologically within one year.
func DateKey(day, monthIndex int) int {
	return monthIndex*100 + day
}

// Window is an end-inclusive [Start, End] range of date keys. Wraps is set
// when the range crosses the year boundary (e.g. Dec 20 .. Jan 10).
type Window struct {
	Start int
	End   int
	Wraps bool
}

// UpcomingWindow computes the date-key window covering today through
// today+horizonDays, wrapping across the year boundary when needed.
func UpcomingWindow(today time.Time, horizonDays int) Window {
	start := DateKey(today.Day(), int(today.Month()))
	endDate := today.AddDate(0, 0, horizonDays)
	end := DateKey(endDate.Day(), int(endDate.Month()))
	return Window{Start: start, End: end, Wraps: end < start}
}

// Contains reports whether a date key falls inside the window.
func (w Window) Contains(key int) bool {
	if w.Wraps {
		return key >= w.Start || key <= w.End
	}
	return key >= w.Start && key <= w.End
}

// SortKey returns a comparison key ordering window members nearest-first.
// Keys that wrapped past December are pushed beyond year end so that a
// Jan 2 birthday sorts after Dec 30 but before Jan 5.
func (w Window) SortKey(key int) int {
	if w.Wraps && key < w.Start {
		return key + yearWrapOffset
	}
	return key
}
