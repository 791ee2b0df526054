package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"watchers/internal/kst"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDailyNoonIsKST(t *testing.T) {
	schedule, err := cron.ParseStandard(DailyNoon)
	if err != nil {
		t.Fatalf("ParseStandard: %v", err)
	}
	// 2025-06-15 09:00 KST
	from := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC).In(kst.Location)
	next := schedule.Next(from)
	want := time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next.UTC(), want)
	}
}

func TestWeeklyInterval(t *testing.T) {
	schedule, err := cron.ParseStandard(Weekly)
	if err != nil {
		t.Fatalf("ParseStandard: %v", err)
	}
	from := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	if got := schedule.Next(from).Sub(from); got != 7*24*time.Hour {
		t.Errorf("interval = %v", got)
	}
}

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(testLogger())
	if err := s.Add("broken", "not a spec", func(context.Context) error { return nil }); err == nil {
		t.Error("expected an error for an invalid spec")
	}
}

func TestRunRecoversAndReports(t *testing.T) {
	s := New(testLogger())
	defer s.Stop()

	s.run("panics", func(context.Context) error { panic("boom") })
	s.run("fails", func(context.Context) error { return errors.New("fail") })

	var gotCtx context.Context
	s.run("ok", func(ctx context.Context) error {
		gotCtx = ctx
		return nil
	})
	if gotCtx == nil || gotCtx.Err() != nil {
		t.Error("job should receive the live scheduler context")
	}
}

func TestStopCancelsJobContext(t *testing.T) {
	s := New(testLogger())
	s.Start()
	s.Stop()
	if s.ctx.Err() == nil {
		t.Error("context not cancelled on Stop")
	}
}
