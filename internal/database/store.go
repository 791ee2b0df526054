package database

import (
	"context"
	"time"

	"watchers/internal/models"
)

// Store is everything the bot persists. It is implemented by Repository
// (PostgreSQL), MongoStore and MemoryStore.
type Store interface {
	// Voice sessions and running totals.
	InsertSession(ctx context.Context, session models.VoiceSession) error
	IncrementVoiceSeconds(ctx context.Context, userID, username string, seconds int64) error
	UpdateVoiceLog(ctx context.Context, entry models.VoiceLog) error
	AggregateSessions(ctx context.Context, filter models.Filter, limit int) ([]models.LeaderboardEntry, error)
	DeleteSessionsBefore(ctx context.Context, date string) (int64, error)

	// Member profiles.
	SaveJoinTime(ctx context.Context, userID, username string, at time.Time) error
	SaveGrantedRole(ctx context.Context, userID, username, role string, at time.Time) error
	UpsertMemberInfo(ctx context.Context, info models.MemberInfo) error
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	ListProfiles(ctx context.Context) ([]models.UserProfile, error)

	// Departures.
	MoveToQuitLogs(ctx context.Context, userID string, at time.Time) (bool, error)
	GetQuitLog(ctx context.Context, userID string) (*models.QuitLog, error)

	Close() error
}
