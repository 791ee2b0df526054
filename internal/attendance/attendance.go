// Package attendance finds members who have gone quiet for a watched
// number of days.
package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"watchers/internal/clock"
	"watchers/internal/kst"
	"watchers/internal/logging"
	"watchers/internal/models"
)

// Kind tells why an alert was raised.
type Kind int

const (
	// NeverActive means the member has not joined voice since arriving.
	NeverActive Kind = iota
	// Inactive means the member's last voice activity is Days old.
	Inactive
)

// Alert is one member due a notice today.
type Alert struct {
	UserID   string
	Username string
	Kind     Kind
	Since    time.Time
	Days     int
}

// Check returns an alert for every profile whose idle days equal one of
// days. Idle time runs from LastActive, or from JoinedAtServer for
// members who were never active. Profiles with neither are skipped.
func Check(now time.Time, profiles []models.UserProfile, days []int) []Alert {
	var alerts []Alert
	for _, p := range profiles {
		since, kind := p.LastActive, Inactive
		if since.IsZero() {
			since, kind = p.JoinedAtServer, NeverActive
		}
		if since.IsZero() || since.After(now) {
			continue
		}
		idle := int(now.Sub(since) / (24 * time.Hour))
		if !slices.Contains(days, idle) {
			continue
		}
		alerts = append(alerts, Alert{UserID: p.UserID, Username: p.Username, Kind: kind, Since: since, Days: idle})
	}
	return alerts
}

// Message renders the notice for a. mentions are prepended to ping the
// people who follow up.
func Message(a Alert, member string, mentions ...string) (title, description string) {
	var ping string
	for _, m := range mentions {
		if m == "" {
			continue
		}
		if ping != "" {
			ping += " "
		}
		ping += m
	}

	switch a.Kind {
	case NeverActive:
		return "⚠️ 접속 기록 없음 안내", fmt.Sprintf(
			"%s\n**%s** 님은 접속 기록이 아직 없습니다!\n서버 입장 시간은 `%s` 입니다.\n%d일 동안 접속 기록이 없습니다!",
			ping, member, kst.Format(a.Since), a.Days)
	default:
		return "⚠️ 장기 미접속 안내", fmt.Sprintf(
			"%s\n**%s** 님은 마지막 접속일이 `%s` 입니다.\n%d일 동안 접속하지 않았습니다!",
			ping, member, kst.Format(a.Since), a.Days)
	}
}

// ProfileLister reads every stored member profile.
type ProfileLister interface {
	ListProfiles(ctx context.Context) ([]models.UserProfile, error)
}

// Service runs the daily check against stored profiles.
type Service struct {
	store  ProfileLister
	clock  clock.Clock
	days   []int
	logger *slog.Logger
}

// NewService creates a Service alerting at each of days.
func NewService(store ProfileLister, clk clock.Clock, days []int, logger *slog.Logger) *Service {
	return &Service{store: store, clock: clk, days: days, logger: logger}
}

// Due lists today's alerts.
func (s *Service) Due(ctx context.Context) ([]Alert, error) {
	now := s.clock.Now()
	logger := s.logger.With("log_id", logging.NewLogID())
	logger.Info("attendance check started", "at", kst.Format(now))

	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		logger.Error("attendance check failed", "err", err)
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	alerts := Check(now, profiles, s.days)
	logger.Info("attendance check finished", "profiles", len(profiles), "alerts", len(alerts))
	return alerts, nil
}
