// Package leaderboard ranks users by voice time over a period and renders
// the result. Every request first sweeps sessions older than the
// retention window, so the stored history never grows past it for long.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"watchers/internal/clock"
	"watchers/internal/kst"
	"watchers/internal/logging"
	"watchers/internal/models"
)

// ErrInvalidPeriod is returned for a month, week or date range that
// cannot exist.
var ErrInvalidPeriod = errors.New("invalid leaderboard period")

// maxWeeksInMonth is the most week-of-month indices a month can span:
// a 31-day month starting on a Sunday reaches week 6.
const maxWeeksInMonth = 6

// Store is the session storage the aggregator and sweeper run against.
type Store interface {
	// AggregateSessions sums duration per user over the sessions matching
	// filter, sorted by total descending and cut to limit.
	AggregateSessions(ctx context.Context, filter models.Filter, limit int) ([]models.LeaderboardEntry, error)
	// DeleteSessionsBefore removes sessions whose KST date sorts before date.
	DeleteSessionsBefore(ctx context.Context, date string) (int64, error)
}

// Response is a rendered leaderboard and the current-week header shown with it.
type Response struct {
	Board  Board
	Header string
	Future bool
}

// Service answers leaderboard requests.
type Service struct {
	store      Store
	clock      clock.Clock
	keepMonths int
	limit      int
	logger     *slog.Logger
}

// NewService creates a Service keeping keepMonths months of history and
// returning limit rows when a request does not name its own.
func NewService(store Store, clk clock.Clock, keepMonths, limit int, logger *slog.Logger) *Service {
	return &Service{store: store, clock: clk, keepMonths: keepMonths, limit: limit, logger: logger}
}

// Aggregate runs filter against the store. A non-positive limit uses the
// service default.
func (s *Service) Aggregate(ctx context.Context, filter models.Filter, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = s.limit
	}
	logger := s.logger.With("log_id", logging.NewLogID(), "filter", filter.String())
	entries, err := s.store.AggregateSessions(ctx, filter, limit)
	if err != nil {
		logger.Error("leaderboard aggregation failed", "err", err)
		return nil, fmt.Errorf("failed to aggregate %s: %w", filter, err)
	}
	logger.Info("leaderboard aggregated", "rows", len(entries))
	return entries, nil
}

// Sweep deletes sessions dated before the first day of the month
// keepMonths-1 months before now's KST month. Running it twice deletes
// nothing the second time.
func (s *Service) Sweep(ctx context.Context, now time.Time, keepMonths int) (int64, error) {
	cutoff := kst.RetentionCutoff(now, keepMonths)
	logger := s.logger.With("log_id", logging.NewLogID(), "cutoff", cutoff)
	deleted, err := s.store.DeleteSessionsBefore(ctx, cutoff)
	if err != nil {
		logger.Error("voice session cleanup failed", "err", err)
		return 0, fmt.Errorf("failed to delete sessions before %s: %w", cutoff, err)
	}
	logger.Info("voice session cleanup", "deleted", deleted)
	return deleted, nil
}

// sweep runs the retention sweep ahead of a query. Its failure does not
// block the query.
func (s *Service) sweep(ctx context.Context, now time.Time) {
	_, _ = s.Sweep(ctx, now, s.keepMonths)
}

// RangeLeaderboard ranks sessions dated start..end inclusive (YYYY-MM-DD).
func (s *Service) RangeLeaderboard(ctx context.Context, title, start, end string, limit int, resolve NameResolver) (Response, error) {
	if !validDate(start) || !validDate(end) || start > end {
		return Response{}, fmt.Errorf("%w: range %s~%s", ErrInvalidPeriod, start, end)
	}
	now := s.clock.Now()
	s.sweep(ctx, now)
	header := kst.WeekHeader(now)

	entries, err := s.Aggregate(ctx, models.RangeFilter{Start: start, End: end}, limit)
	if err != nil {
		return Response{Header: header}, err
	}
	return Response{Board: Render(title, entries, resolve, header), Header: header}, nil
}

// RecentWeek ranks the last seven days up to and including today.
func (s *Service) RecentWeek(ctx context.Context, limit int, resolve NameResolver) (Response, error) {
	today := kst.In(s.clock.Now())
	start := today.AddDate(0, 0, -7).Format(kst.DateLayout)
	return s.RangeLeaderboard(ctx, "📅 음성 리더보드 (오늘 기준)", start, today.Format(kst.DateLayout), limit, resolve)
}

// RecentMonth ranks the last month up to and including today.
func (s *Service) RecentMonth(ctx context.Context, limit int, resolve NameResolver) (Response, error) {
	now := s.clock.Now()
	start := kst.MonthsBefore(now, 1).Format(kst.DateLayout)
	return s.RangeLeaderboard(ctx, "🗓️ 월간 음성 리더보드 (오늘 기준)", start, kst.Date(now), limit, resolve)
}

// MonthLeaderboard ranks one KST calendar month. A month that has not
// started yet gets the future placeholder without a query.
func (s *Service) MonthLeaderboard(ctx context.Context, year, month, limit int, resolve NameResolver) (Response, error) {
	if month < 1 || month > 12 {
		return Response{}, fmt.Errorf("%w: month %d", ErrInvalidPeriod, month)
	}
	now := s.clock.Now()
	s.sweep(ctx, now)
	header := kst.WeekHeader(now)
	title := fmt.Sprintf("🗓️ %d년 %d월 음성 리더보드", year, month)

	if monthIndex(year, month) > currentMonthIndex(now) {
		return Response{Board: RenderFuture(title, header), Header: header, Future: true}, nil
	}

	entries, err := s.Aggregate(ctx, models.MonthFilter{Year: year, Month: month}, limit)
	if err != nil {
		return Response{Header: header}, err
	}
	return Response{Board: Render(title, entries, resolve, header), Header: header}, nil
}

// WeekLeaderboard ranks one week-of-month. A week that has not started
// yet gets the future placeholder without a query.
func (s *Service) WeekLeaderboard(ctx context.Context, year, month, week, limit int, resolve NameResolver) (Response, error) {
	if month < 1 || month > 12 {
		return Response{}, fmt.Errorf("%w: month %d", ErrInvalidPeriod, month)
	}
	if week < 1 || week > maxWeeksInMonth {
		return Response{}, fmt.Errorf("%w: week %d", ErrInvalidPeriod, week)
	}
	now := s.clock.Now()
	s.sweep(ctx, now)
	header := kst.WeekHeader(now)

	requested, current := monthIndex(year, month), currentMonthIndex(now)
	if requested > current || (requested == current && week > kst.WeekOf(now)) {
		title := fmt.Sprintf("📆 %d년 %d월 %d주차 음성 리더보드", year, month, week)
		return Response{Board: RenderFuture(title, header), Header: header, Future: true}, nil
	}

	entries, err := s.Aggregate(ctx, models.MonthWeekFilter{Year: year, Month: month, Week: week}, limit)
	if err != nil {
		return Response{Header: header}, err
	}
	startDay, endDay := kst.WeekRange(year, time.Month(month), week)
	title := fmt.Sprintf("📆 %d년 %d월 %d주차 음성 리더보드 (%d일~%d일)", year, month, week, startDay, endDay)
	return Response{Board: Render(title, entries, resolve, header), Header: header}, nil
}

func monthIndex(year, month int) int {
	return year*12 + month - 1
}

func currentMonthIndex(now time.Time) int {
	k := kst.In(now)
	return monthIndex(k.Year(), int(k.Month()))
}

func validDate(s string) bool {
	_, err := time.Parse(kst.DateLayout, s)
	return err == nil
}
