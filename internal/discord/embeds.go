package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"watchers/internal/kst"
	"watchers/internal/leaderboard"
	"watchers/internal/models"
	"watchers/pkg/utils"
)

// Embed colours.
const (
	colorGreen  = 0x2ecc71
	colorBlue   = 0x3498db
	colorPurple = 0x9b59b6
	colorRed    = 0xe74c3c
	colorTeal   = 0x1abc9c
)

const (
	missing = "❌ 없음"
	unknown = "알 수 없음"
)

func boardEmbed(board leaderboard.Board) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: board.Title, Description: board.Description, Color: colorPurple}
}

func failureEmbed(err error, logID string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "❌ 요청을 처리하지 못했습니다",
		Description: fmt.Sprintf("%s\n(log id: `%s`)", err, logID),
		Color:       colorRed,
	}
}

func invalidPeriodEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "❌ 잘못된 기간",
		Description: "주차는 1~6, 월은 1~12 사이로 입력해주세요.",
		Color:       colorRed,
	}
}

func invalidIDEmbed(value string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "❌ 잘못된 ID",
		Description: fmt.Sprintf("`%s`은(는) 올바른 Discord ID가 아닙니다.", value),
		Color:       colorRed,
	}
}

func settingSavedEmbed(title, key, value string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("`%s`가 `%s`로 설정되었습니다.", key, value),
		Color:       color,
	}
}

func attendanceEmbed(name string, lastActive time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "✅ 출석 확인",
		Description: fmt.Sprintf("**`%s`** 님의 마지막 접속 시간은\n**`%s`** 입니다.", name, kst.Format(lastActive)),
		Color:       colorGreen,
	}
}

func attendanceMissingEmbed(name string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "❌ 출석 기록 없음",
		Description: fmt.Sprintf("**`%s`** 님의 접속 기록이 없습니다.", name),
		Color:       colorRed,
	}
}

func voiceTotalEmbed(name string, totalSeconds int64) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🎧 음성 리더 보드",
		Description: fmt.Sprintf("✅ **`%s`** 님은 음성 채널에서 총 **`%s`** 동안 있었어요.", name, utils.FormatDuration(totalSeconds)),
		Color:       colorPurple,
	}
}

func profileMissingEmbed(name string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Description: fmt.Sprintf("❌ `%s` 님의 정보를 찾을 수 없습니다.", name),
		Color:       colorRed,
	}
}

func orMissing(s string) string {
	if s == "" {
		return missing
	}
	return s
}

func profileEmbed(name string, p *models.UserProfile) *discordgo.MessageEmbed {
	role := missing
	if len(p.GrantedRoles) > 0 {
		role = strings.Join(p.GrantedRoles, ", ")
	}
	field := func(name, value string) *discordgo.MessageEmbedField {
		return &discordgo.MessageEmbedField{Name: name, Value: value}
	}
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🧾 %s 님의 유저 정보", name),
		Color: colorBlue,
		Fields: []*discordgo.MessageEmbedField{
			field("📛 서버 닉네임", fmt.Sprintf("**%s**", orMissing(p.ServerNickname))),
			field("👤 유저명(Discord ID)", fmt.Sprintf("`%s`", orMissing(p.Username))),
			field("🆔 유저 ID", fmt.Sprintf("`%s`", orMissing(p.UserID))),
			field("🎭 역할", fmt.Sprintf("**%s**", role)),
			field("📥 서버 입장", fmt.Sprintf("`%s`", kst.Format(p.JoinedAtServer))),
			field("🕓 마지막 활동", fmt.Sprintf("`%s`", kst.Format(p.LastActive))),
			field("🕒 음성 채널 누적 시간", fmt.Sprintf("**%s**", utils.FormatDuration(p.Durations.TotalSeconds))),
		},
	}
}

func syncEmbed(title, mentions string, updated int) *discordgo.MessageEmbed {
	desc := fmt.Sprintf("✅ 총 `%d`명의 멤버 정보를 동기화했습니다.", updated)
	if mentions != "" {
		desc = mentions + "\n" + desc
	}
	return &discordgo.MessageEmbed{Title: title, Description: desc, Color: colorTeal}
}

func welcomeEmbed(displayName, roleName string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "💛Watchers💛 합류하신 것을 축하드려요!",
		Description: fmt.Sprintf("환영해요, `%s` 님!\n`%s` 역할이 부여되었어요!\n앞으로 열심히 활동해주세요!", displayName, roleName),
		Color:       colorGreen,
	}
}

func alertEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: colorRed}
}

// joinMentions joins the non-empty mentions with spaces.
func joinMentions(mentions ...string) string {
	var parts []string
	for _, m := range mentions {
		if m != "" {
			parts = append(parts, m)
		}
	}
	return strings.Join(parts, " ")
}

// rejoinNotice tells moderators that a returning member left before.
func rejoinNotice(member string, quit *models.QuitLog, mentions ...string) string {
	joined, left := unknown, unknown
	if !quit.JoinedAtServer.IsZero() {
		joined = kst.Format(quit.JoinedAtServer)
	}
	if !quit.QuitTime.IsZero() {
		left = kst.Format(quit.QuitTime)
	}
	times := quit.Times
	if times < 1 {
		times = 1
	}
	msg := fmt.Sprintf("**%s** 님은 이전에 `%s`에 서버에 입장했고, `%s`에 퇴장한 기록이 있습니다.\n총 %d번 나갔습니다.", member, joined, left, times)
	if ping := joinMentions(mentions...); ping != "" {
		msg = ping + "\n" + msg
	}
	return msg
}
