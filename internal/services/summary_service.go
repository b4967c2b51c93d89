package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"youspent/internal/cache"
	"youspent/internal/core"
	"youspent/internal/storage"
)

const (
	DefaultSummaryCacheSize = 64
	DefaultSummaryCacheTTL  = 5 * time.Minute
)

// SummaryService rolls expenses up by day, week, month and year. Results are
// cached until the next write reported through Invalidate.
type SummaryService struct {
	expenses *storage.ExpenseRepository
	cache    *cache.LRUCache[string, core.PeriodSummary]
}

func NewSummaryService(store *storage.Store, cacheSize int, ttl time.Duration) *SummaryService {
	return &SummaryService{
		expenses: storage.NewExpenseRepository(store),
		cache:    cache.NewLRUCache[string, core.PeriodSummary](cacheSize, ttl),
	}
}

// Invalidate drops every cached summary.
func (s *SummaryService) Invalidate() {
	s.cache.Purge()
}

// PeriodBounds returns the half-open range of the period containing date.
// Weeks run Monday to Sunday and may span two months.
func PeriodBounds(period core.Period, date time.Time) (time.Time, time.Time, error) {
	switch period {
	case core.PeriodDay:
		start, end := core.DayBounds(date)
		return start, end, nil
	case core.PeriodWeek:
		start, end, _, _ := core.ISOWeekBounds(date)
		return start, end, nil
	case core.PeriodMonth:
		start, end := core.MonthBounds(date.Year(), int(date.Month()))
		return start, end, nil
	case core.PeriodYear:
		start, end := core.YearBounds(date.Year())
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown period %q", period)
	}
}

// Summary returns total, count and per-category amounts for the period
// containing date.
func (s *SummaryService) Summary(ctx context.Context, period core.Period, date time.Time) (core.PeriodSummary, error) {
	start, end, err := PeriodBounds(period, date)
	if err != nil {
		return core.PeriodSummary{}, err
	}

	key := string(period) + ":" + start.Format(time.DateOnly)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	total, count, byCategory, err := s.expenses.Summarize(ctx, start, end)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("summarize %s: %w", period, err)
	}

	summary := core.PeriodSummary{
		Period:     period,
		Start:      start,
		End:        end,
		Total:      total,
		Count:      count,
		ByCategory: byCategory,
	}
	s.cache.Set(key, summary)
	slog.DebugContext(ctx, "Summary computed",
		"period", period,
		"start", start.Format(time.DateOnly),
		"total_cents", total.Cents,
		"count", count)
	return summary, nil
}

// Overview computes the day, week, month and year summaries around date
// concurrently.
func (s *SummaryService) Overview(ctx context.Context, date time.Time) (core.Overview, error) {
	var overview core.Overview
	g, ctx := errgroup.WithContext(ctx)

	targets := []struct {
		period core.Period
		dst    *core.PeriodSummary
	}{
		{core.PeriodDay, &overview.Day},
		{core.PeriodWeek, &overview.Week},
		{core.PeriodMonth, &overview.Month},
		{core.PeriodYear, &overview.Year},
	}
	for _, target := range targets {
		target := target
		g.Go(func() error {
			summary, err := s.Summary(ctx, target.period, date)
			if err != nil {
				return err
			}
			*target.dst = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return core.Overview{}, err
	}
	return overview, nil
}
