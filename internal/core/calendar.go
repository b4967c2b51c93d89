package core

import "time"

// Dates are civil: the wall clock of the value as given, without zone
// conversion. All helpers below return midnight UTC values.

// StartOfDay truncates t to its calendar date.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayBounds returns the half-open range [start, end) covering t's date.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := StartOfDay(t)
	return start, start.AddDate(0, 0, 1)
}

// MonthBounds returns the half-open range covering the given month.
func MonthBounds(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// YearBounds returns the half-open range covering the given year.
func YearBounds(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}

// ISOWeekBounds returns the Monday-to-Sunday week containing t as a
// half-open range, together with its ISO year and week number.
func ISOWeekBounds(t time.Time) (start, end time.Time, isoYear, week int) {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	start = day.AddDate(0, 0, -offset)
	isoYear, week = day.ISOWeek()
	return start, start.AddDate(0, 0, 7), isoYear, week
}

// MonthWeek returns the ISO week containing t clipped to t's month. StartDate
// and EndDate are inclusive dates.
func MonthWeek(t time.Time) Week {
	start, end, isoYear, number := ISOWeekBounds(t)
	monthStart, monthEnd := MonthBounds(t.Year(), int(t.Month()))
	if start.Before(monthStart) {
		start = monthStart
	}
	if end.After(monthEnd) {
		end = monthEnd
	}
	return Week{
		StartDate:  start,
		EndDate:    end.AddDate(0, 0, -1),
		WeekNumber: number,
		Year:       isoYear,
	}
}
