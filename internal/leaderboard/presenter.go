package leaderboard

import (
	"strings"

	"watchers/internal/models"
	"watchers/pkg/utils"
)

const (
	// NoRecords replaces the listing when nothing matched.
	NoRecords = "❌ 기록이 없습니다."
	// FutureNotice replaces the listing for a period that has not started.
	FutureNotice = "저에게 타임 스톤을 주신다면.. 미래를 봐드리지요.."
)

// Board is a rendered leaderboard, ready to become an embed.
type Board struct {
	Title       string
	Description string
}

// NameResolver returns the current display name of a user, or false when
// the user cannot be found (for example after leaving the server).
type NameResolver func(userID string) (string, bool)

// Render lists entries ranked from 1, under an optional header line.
func Render(title string, entries []models.LeaderboardEntry, resolve NameResolver, header string) Board {
	var lines []string
	if header != "" {
		lines = append(lines, header, "")
	}
	if len(entries) == 0 {
		lines = append(lines, NoRecords)
		return Board{Title: title, Description: strings.Join(lines, "\n")}
	}

	for i, entry := range entries {
		lines = append(lines, utils.FormatLeaderboardEntry(i+1, displayName(entry, resolve), utils.FormatDuration(entry.TotalSeconds)))
	}
	return Board{
		Title:       title,
		Description: utils.TruncateString(strings.Join(lines, "\n"), utils.EmbedDescriptionLimit),
	}
}

// RenderFuture is the placeholder shown instead of querying a period
// that has not happened yet.
func RenderFuture(title, header string) Board {
	var lines []string
	if header != "" {
		lines = append(lines, header, "")
	}
	lines = append(lines, FutureNotice)
	return Board{Title: title, Description: strings.Join(lines, "\n")}
}

func displayName(entry models.LeaderboardEntry, resolve NameResolver) string {
	if resolve != nil {
		if name, ok := resolve(entry.UserID); ok && name != "" {
			return name
		}
	}
	if entry.Username != "" {
		return entry.Username
	}
	return "unknown"
}
