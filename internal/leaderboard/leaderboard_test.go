package leaderboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"watchers/internal/clock"
	"watchers/internal/database"
	"watchers/internal/models"
)

// 2025-06-15 12:00 KST, a Sunday in the third week of June.
var now = time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)

type recordingStore struct {
	*database.MemoryStore
	filters   []models.Filter
	cutoffs   []string
	aggErr    error
	deleteErr error
}

func (r *recordingStore) AggregateSessions(ctx context.Context, filter models.Filter, limit int) ([]models.LeaderboardEntry, error) {
	r.filters = append(r.filters, filter)
	if r.aggErr != nil {
		return nil, r.aggErr
	}
	return r.MemoryStore.AggregateSessions(ctx, filter, limit)
}

func (r *recordingStore) DeleteSessionsBefore(ctx context.Context, date string) (int64, error) {
	r.cutoffs = append(r.cutoffs, date)
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	return r.MemoryStore.DeleteSessionsBefore(ctx, date)
}

func newTestService(t *testing.T) (*Service, *recordingStore) {
	t.Helper()
	store := &recordingStore{MemoryStore: database.NewMemory()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, clock.Fake(now), 4, 10, logger), store
}

func insert(t *testing.T, store *recordingStore, s models.VoiceSession) {
	t.Helper()
	if err := store.InsertSession(context.Background(), s); err != nil {
		t.Fatalf("InsertSession: %v", err)
	}
}

func TestRenderEmpty(t *testing.T) {
	board := Render("title", nil, nil, "")
	if board.Description != NoRecords {
		t.Errorf("description = %q, want %q", board.Description, NoRecords)
	}
}

func TestRenderRanksAndResolvesNames(t *testing.T) {
	entries := []models.LeaderboardEntry{
		{UserID: "1", Username: "stored-one", TotalSeconds: 3600},
		{UserID: "2", Username: "stored-two", TotalSeconds: 61},
		{UserID: "3", TotalSeconds: 5},
	}
	resolve := func(id string) (string, bool) {
		if id == "1" {
			return "Live One", true
		}
		return "", false
	}

	board := Render("title", entries, resolve, "header")
	lines := strings.Split(board.Description, "\n")
	want := []string{
		"header",
		"",
		"1. **Live One** — 1시간",
		"2. **stored-two** — 1분 1초",
		"3. **unknown** — 5초",
	}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestRenderFuture(t *testing.T) {
	board := RenderFuture("title", "header")
	if board.Description != "header\n\n"+FutureNotice {
		t.Errorf("description = %q", board.Description)
	}
}

func TestMonthLeaderboardFutureSkipsQuery(t *testing.T) {
	svc, store := newTestService(t)

	resp, err := svc.MonthLeaderboard(context.Background(), 2025, 7, 0, nil)
	if err != nil {
		t.Fatalf("MonthLeaderboard: %v", err)
	}
	if !resp.Future || !strings.Contains(resp.Board.Description, FutureNotice) {
		t.Errorf("expected future placeholder, got %+v", resp)
	}
	if len(store.filters) != 0 {
		t.Errorf("future month queried the store: %v", store.filters)
	}
}

func TestWeekLeaderboardFutureWeekSkipsQuery(t *testing.T) {
	svc, store := newTestService(t)

	resp, err := svc.WeekLeaderboard(context.Background(), 2025, 6, 4, 0, nil)
	if err != nil {
		t.Fatalf("WeekLeaderboard: %v", err)
	}
	if !resp.Future {
		t.Errorf("week 4 of the current month should be in the future")
	}
	if len(store.filters) != 0 {
		t.Errorf("future week queried the store: %v", store.filters)
	}

	resp, err = svc.WeekLeaderboard(context.Background(), 2025, 6, 3, 0, nil)
	if err != nil {
		t.Fatalf("WeekLeaderboard: %v", err)
	}
	if resp.Future {
		t.Error("current week reported as future")
	}
	if !strings.Contains(resp.Board.Title, "(9일~15일)") {
		t.Errorf("title = %q, want day range 9~15", resp.Board.Title)
	}
}

func TestInvalidPeriods(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if _, err := svc.MonthLeaderboard(ctx, 2025, 13, 0, nil); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("month 13: err = %v", err)
	}
	if _, err := svc.WeekLeaderboard(ctx, 2025, 6, 7, 0, nil); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("week 7: err = %v", err)
	}
	if _, err := svc.WeekLeaderboard(ctx, 2025, 0, 1, 0, nil); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("month 0: err = %v", err)
	}
	if _, err := svc.RangeLeaderboard(ctx, "t", "2025-06-10", "2025-06-01", 0, nil); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("reversed range: err = %v", err)
	}
	if _, err := svc.RangeLeaderboard(ctx, "t", "yesterday", "2025-06-01", 0, nil); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("bad date: err = %v", err)
	}
	if len(store.filters) != 0 || len(store.cutoffs) != 0 {
		t.Errorf("invalid requests touched the store")
	}
}

func TestSweepRunsBeforeQuery(t *testing.T) {
	svc, store := newTestService(t)
	insert(t, store, models.VoiceSession{UserID: "old", Username: "old", DurationSeconds: 500, KSTDate: "2025-02-28", KSTYear: 2025, KSTMonth: 2, KSTWeekOfMonth: 5})
	insert(t, store, models.VoiceSession{UserID: "new", Username: "new", DurationSeconds: 60, KSTDate: "2025-03-01", KSTYear: 2025, KSTMonth: 3, KSTWeekOfMonth: 1})

	resp, err := svc.RangeLeaderboard(context.Background(), "t", "2025-01-01", "2025-06-15", 0, nil)
	if err != nil {
		t.Fatalf("RangeLeaderboard: %v", err)
	}
	if len(store.cutoffs) != 1 || store.cutoffs[0] != "2025-03-01" {
		t.Errorf("cutoffs = %v, want [2025-03-01]", store.cutoffs)
	}
	if strings.Contains(resp.Board.Description, "old") {
		t.Errorf("swept session still ranked: %q", resp.Board.Description)
	}
	if !strings.Contains(resp.Board.Description, "**new**") {
		t.Errorf("kept session missing: %q", resp.Board.Description)
	}
}

func TestSweepFailureDoesNotBlockQuery(t *testing.T) {
	svc, store := newTestService(t)
	store.deleteErr = errors.New("down")

	if _, err := svc.MonthLeaderboard(context.Background(), 2025, 6, 0, nil); err != nil {
		t.Fatalf("MonthLeaderboard: %v", err)
	}
	if len(store.filters) != 1 {
		t.Errorf("expected the query to run, filters = %v", store.filters)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	insert(t, store, models.VoiceSession{UserID: "a", KSTDate: "2024-12-31"})

	first, err := svc.Sweep(context.Background(), now, 4)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	second, err := svc.Sweep(context.Background(), now, 4)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if first != 1 || second != 0 {
		t.Errorf("deleted %d then %d, want 1 then 0", first, second)
	}
}

func TestRecentWeekRange(t *testing.T) {
	svc, store := newTestService(t)

	if _, err := svc.RecentWeek(context.Background(), 0, nil); err != nil {
		t.Fatalf("RecentWeek: %v", err)
	}
	want := models.RangeFilter{Start: "2025-06-08", End: "2025-06-15"}
	if len(store.filters) != 1 || store.filters[0] != want {
		t.Errorf("filters = %v, want %v", store.filters, want)
	}
}

func TestRecentMonthRange(t *testing.T) {
	svc, store := newTestService(t)

	if _, err := svc.RecentMonth(context.Background(), 0, nil); err != nil {
		t.Fatalf("RecentMonth: %v", err)
	}
	want := models.RangeFilter{Start: "2025-05-15", End: "2025-06-15"}
	if len(store.filters) != 1 || store.filters[0] != want {
		t.Errorf("filters = %v, want %v", store.filters, want)
	}
}

func TestAggregationErrorPropagates(t *testing.T) {
	svc, store := newTestService(t)
	store.aggErr = errors.New("boom")

	resp, err := svc.MonthLeaderboard(context.Background(), 2025, 5, 0, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if resp.Header == "" {
		t.Error("header should still be set on failure")
	}
}

func TestHeaderNamesCurrentWeek(t *testing.T) {
	svc, _ := newTestService(t)

	resp, err := svc.MonthLeaderboard(context.Background(), 2025, 6, 0, nil)
	if err != nil {
		t.Fatalf("MonthLeaderboard: %v", err)
	}
	if resp.Header != "이번 주차: 2025년 6월 3주차" {
		t.Errorf("header = %q", resp.Header)
	}
	if !strings.HasPrefix(resp.Board.Description, resp.Header) {
		t.Errorf("description does not start with header: %q", resp.Board.Description)
	}
}
