package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DayLayout formats a calendar day the way export files are named.
const DayLayout = "2006-01-02"

// FileExt is appended to the day name to form the export file name.
const FileExt = ".csv"

// DayWindow is the closed UTC interval [00:00:00, 23:59:59] of one calendar day.
type DayWindow struct {
	Day  time.Time
	From time.Time
	To   time.Time
}

// WindowFor returns the window a task with the given reference date exports:
// the calendar day before ref, in UTC.
func WindowFor(ref time.Time) DayWindow {
	return windowOf(StartOfDay(ref).AddDate(0, 0, -1))
}

// WindowForFile parses an export file name such as "2024-01-02.csv" back into
// the window it covers.
func WindowForFile(path string) (DayWindow, error) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, FileExt) {
		return DayWindow{}, fmt.Errorf("export file %q: missing %s suffix", base, FileExt)
	}
	day, err := time.Parse(DayLayout, strings.TrimSuffix(base, FileExt))
	if err != nil {
		return DayWindow{}, fmt.Errorf("export file %q: %w", base, err)
	}
	return windowOf(day), nil
}

func windowOf(day time.Time) DayWindow {
	return DayWindow{
		Day:  day,
		From: day,
		To:   day.Add(24*time.Hour - time.Second),
	}
}

// Name is the day formatted as YYYY-MM-DD.
func (w DayWindow) Name() string {
	return w.Day.Format(DayLayout)
}

// FileName is the export file name for the day, also used as the object key.
func (w DayWindow) FileName() string {
	return w.Name() + FileExt
}

// Contains reports whether t falls inside the window, bounds included.
func (w DayWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// StartOfDay truncates t to UTC midnight.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
