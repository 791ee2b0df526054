package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// EmbedDescriptionLimit is Discord's maximum embed description length, in characters.
const EmbedDescriptionLimit = 4096

// FormatUserMention formats a user ID as a Discord mention
func FormatUserMention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

// FormatChannelMention formats a channel ID as a Discord channel mention
func FormatChannelMention(channelID string) string {
	return fmt.Sprintf("<#%s>", channelID)
}

// ExtractID strips user, role or channel mention syntax and returns the
// bare snowflake. Plain IDs pass through unchanged.
func ExtractID(mention string) string {
	id := strings.TrimSpace(mention)
	if !strings.HasPrefix(id, "<") || !strings.HasSuffix(id, ">") {
		return id
	}
	id = strings.TrimSuffix(strings.TrimPrefix(id, "<"), ">")
	for _, prefix := range []string{"@&", "@!", "@", "#"} {
		if strings.HasPrefix(id, prefix) {
			return strings.TrimPrefix(id, prefix)
		}
	}
	return id
}

// IsSnowflake reports whether s looks like a Discord ID.
func IsSnowflake(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatLeaderboardEntry formats a ranked leaderboard line
func FormatLeaderboardEntry(rank int, displayName, duration string) string {
	return fmt.Sprintf("%d. **%s** — %s", rank, displayName, duration)
}

// TruncateString truncates s to maxLen characters, ending with an
// ellipsis when it had to cut.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}
