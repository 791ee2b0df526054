package attendance

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

var now = time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)

func daysAgo(d int, extra time.Duration) time.Time {
	return now.Add(-time.Duration(d)*24*time.Hour - extra)
}

func TestCheck(t *testing.T) {
	profiles := []models.UserProfile{
		{UserID: "inactive14", LastActive: daysAgo(14, time.Hour)},
		{UserID: "inactive13", LastActive: daysAgo(13, 23*time.Hour)},
		{UserID: "inactive30", LastActive: daysAgo(30, 0), JoinedAtServer: daysAgo(100, 0)},
		{UserID: "never14", JoinedAtServer: daysAgo(14, 0)},
		{UserID: "never15", JoinedAtServer: daysAgo(15, 0)},
		{UserID: "nothing"},
		{UserID: "future", LastActive: now.Add(time.Hour)},
	}

	alerts := Check(now, profiles, []int{14, 30})

	got := map[string]Alert{}
	for _, a := range alerts {
		got[a.UserID] = a
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 alerts, got %+v", alerts)
	}
	if a := got["inactive14"]; a.Kind != Inactive || a.Days != 14 {
		t.Errorf("inactive14 = %+v", a)
	}
	if a := got["inactive30"]; a.Kind != Inactive || a.Days != 30 {
		t.Errorf("inactive30 should count from last_active: %+v", a)
	}
	if a := got["never14"]; a.Kind != NeverActive || a.Days != 14 {
		t.Errorf("never14 = %+v", a)
	}
}

func TestMessage(t *testing.T) {
	a := Alert{UserID: "1", Kind: Inactive, Since: time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC), Days: 14}
	title, desc := Message(a, "<@1>", "<@&10>", "", "<@&20>")
	if title != "⚠️ 장기 미접속 안내" {
		t.Errorf("title = %q", title)
	}
	if !strings.HasPrefix(desc, "<@&10> <@&20>\n") {
		t.Errorf("mentions not joined: %q", desc)
	}
	if !strings.Contains(desc, "2025년 06월 01일 12시 00분 00초") {
		t.Errorf("date not rendered in KST: %q", desc)
	}

	a.Kind = NeverActive
	title, desc = Message(a, "<@1>")
	if title != "⚠️ 접속 기록 없음 안내" || !strings.Contains(desc, "14일 동안 접속 기록이 없습니다!") {
		t.Errorf("never-active message = %q / %q", title, desc)
	}
}

type failingLister struct{}

func (failingLister) ListProfiles(context.Context) ([]models.UserProfile, error) {
	return nil, errors.New("down")
}

func TestServiceDue(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := database.NewMemory()
	if err := store.SaveJoinTime(context.Background(), "u1", "user", daysAgo(30, 0)); err != nil {
		t.Fatalf("SaveJoinTime: %v", err)
	}

	svc := NewService(store, clock.Fake(now), []int{14, 30}, logger)
	alerts, err := svc.Due(context.Background())
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(alerts) != 1 || alerts[0].UserID != "u1" || alerts[0].Username != "user" {
		t.Errorf("alerts = %+v", alerts)
	}

	svc = NewService(failingLister{}, clock.Fake(now), []int{14}, logger)
	if _, err := svc.Due(context.Background()); err == nil {
		t.Error("expected list failure to surface")
	}
}
