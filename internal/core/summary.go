package core

import "time"

// Period names an aggregation level of the containment hierarchy.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

func (p Period) IsValid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return true
	default:
		return false
	}
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// PeriodSummary is the spending rolled up over [Start, End).
type PeriodSummary struct {
	Period     Period
	Start      time.Time
	End        time.Time
	Total      Money
	Count      int
	ByCategory []CategoryAmount
}

// Overview groups the summaries of the day, week, month and year around a date.
type Overview struct {
	Day   PeriodSummary
	Week  PeriodSummary
	Month PeriodSummary
	Year  PeriodSummary
}
