package discord

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"

	"watchers/internal/access"
	"watchers/internal/kst"
	"watchers/internal/leaderboard"
	"watchers/internal/logging"
	"watchers/internal/settings"
	"watchers/pkg/utils"
)

const permissionDenied = "❌ 이 명령어를 사용할 권한이 없습니다."

// commandFunc runs a slash command after the interaction was deferred
// and returns the embed to follow up with.
type commandFunc func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) (*discordgo.MessageEmbed, error)

type command struct {
	def       *discordgo.ApplicationCommand
	allow     access.Capability
	ephemeral bool
	run       commandFunc
}

func userOption(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionUser, Name: name, Description: description, Required: true}
}

func stringOption(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: name, Description: description, Required: true}
}

func intOption(name, description string, lo, hi int) *discordgo.ApplicationCommandOption {
	minValue := float64(lo)
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: description,
		Required:    true,
		MinValue:    &minValue,
		MaxValue:    float64(hi),
	}
}

// commandSet wires every slash command to its handler and capability.
func (b *Bot) commandSet() map[string]command {
	list := []command{
		{
			def:   &discordgo.ApplicationCommand{Name: "출석-확인", Description: "닉네임 기준으로 마지막 음성 채널 접속시간을 확인합니다.", Options: []*discordgo.ApplicationCommandOption{userOption("user", "확인할 유저")}},
			allow: access.Everyone,
			run:   b.attendanceCheck,
		},
		{
			def:   &discordgo.ApplicationCommand{Name: "음성-리더보드", Description: "해당 유저가 서버 내 음성 채널에서 보낸 총 시간을 계산합니다.", Options: []*discordgo.ApplicationCommandOption{userOption("user", "확인할 유저")}},
			allow: access.Everyone,
			run:   b.voiceTotal,
		},
		{
			def:   &discordgo.ApplicationCommand{Name: "주간-음성-리더보드-오늘", Description: "오늘 기준 최근 7일간 음성채널 상주 시간 Top 10 멤버"},
			allow: access.MemberOrAbove,
			run:   b.recentWeekLeaderboard,
		},
		{
			def:   &discordgo.ApplicationCommand{Name: "월간-음성-리더보드-오늘", Description: "오늘 기준 최근 1개월 음성채널 상주 시간 Top 10 멤버"},
			allow: access.MemberOrAbove,
			run:   b.recentMonthLeaderboard,
		},
		{
			def:   &discordgo.ApplicationCommand{Name: "주차별-음성-리더보드", Description: "이번 달 특정 주차의 음성채널 상주 시간 Top 10 멤버", Options: []*discordgo.ApplicationCommandOption{intOption("week", "주차 (1~6)", 1, 6)}},
			allow: access.MemberOrAbove,
			run:   b.weekLeaderboard,
		},
		{
			def:   &discordgo.ApplicationCommand{Name: "월별-음성-리더보드", Description: "올해 특정 월의 음성채널 상주 시간 Top 10 멤버", Options: []*discordgo.ApplicationCommandOption{intOption("month", "월 (1~12)", 1, 12)}},
			allow: access.MemberOrAbove,
			run:   b.monthLeaderboard,
		},
		{
			def:       &discordgo.ApplicationCommand{Name: "멤버-공지메시지id-설정", Description: "멤버 공지 메시지 ID를 설정합니다.", Options: []*discordgo.ApplicationCommandOption{stringOption("message_id", "공지 메시지 ID")}},
			allow:     access.MasterOrOrganizer,
			ephemeral: true,
			run:       b.setNoticeMessage(settings.MemberNoticeMessageID, "멤버", colorGreen),
		},
		{
			def:       &discordgo.ApplicationCommand{Name: "게스트-공지메시지id-설정", Description: "게스트 공지 메시지 ID를 설정합니다.", Options: []*discordgo.ApplicationCommandOption{stringOption("message_id", "공지 메시지 ID")}},
			allow:     access.MasterOrOrganizer,
			ephemeral: true,
			run:       b.setNoticeMessage(settings.GuestNoticeMessageID, "게스트", colorBlue),
		},
		{
			def:   &discordgo.ApplicationCommand{Name: "서버동기화", Description: "현재 서버에 있는 모든 멤버 정보를 DB와 동기화합니다."},
			allow: access.MasterOrOrganizer,
			run:   b.syncServer,
		},
		{
			def:   &discordgo.ApplicationCommand{Name: "유저-정보", Description: "해당 유저의 정보를 데이터베이스에서 조회합니다.", Options: []*discordgo.ApplicationCommandOption{userOption("user", "조회할 유저")}},
			allow: access.MasterOrOrganizer,
			run:   b.userProfile,
		},
		{
			def:       &discordgo.ApplicationCommand{Name: "에러-알림-채널-설정", Description: "에러 로그를 전송할 채널 ID를 설정합니다.", Options: []*discordgo.ApplicationCommandOption{stringOption("channel_id", "채널 ID 또는 멘션")}},
			allow:     access.MasterOrOrganizer,
			ephemeral: true,
			run:       b.setErrorChannel,
		},
		{
			def:       &discordgo.ApplicationCommand{Name: "에러-테스트", Description: "[테스트]에러 로그 전송 테스트를 수행합니다."},
			allow:     access.MasterOrOrganizer,
			ephemeral: true,
			run:       b.errorTest,
		},
	}

	set := make(map[string]command, len(list))
	for _, c := range list {
		set[c.def.Name] = c
	}
	return set
}

// commandDefinitions returns the registrable definitions in name order.
func commandDefinitions(set map[string]command) []*discordgo.ApplicationCommand {
	defs := make([]*discordgo.ApplicationCommand, 0, len(set))
	for _, c := range set {
		defs = append(defs, c.def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// interactionCreate checks the caller's capability inline and runs the
// command on its own goroutine.
func (b *Bot) interactionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	cmd, ok := b.commands[i.ApplicationCommandData().Name]
	if !ok {
		return
	}
	if !cmd.allow(callerOf(i.Member, b.roleLookup(s, i.GuildID))) {
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Content: permissionDenied, Flags: discordgo.MessageFlagsEphemeral},
		})
		if err != nil {
			b.logger.Warn("permission reply failed", "command", cmd.def.Name, "err", err)
		}
		return
	}
	go b.runCommand(s, i, cmd)
}

func (b *Bot) runCommand(s *discordgo.Session, i *discordgo.InteractionCreate, cmd command) {
	var flags discordgo.MessageFlags
	if cmd.ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	})
	if err != nil {
		b.logger.Error("interaction defer failed", "command", cmd.def.Name, "err", err)
		return
	}

	ctx, cancel := b.opContext()
	defer cancel()
	embed, err := cmd.run(ctx, s, i)
	if err != nil {
		logID := logging.NewLogID()
		b.logger.Error("command failed", "command", cmd.def.Name, "log_id", logID, "err", err)
		embed = failureEmbed(err, logID)
	}
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
		Flags:  flags,
	}); err != nil {
		b.logger.Error("interaction followup failed", "command", cmd.def.Name, "err", err)
	}
}

// roleLookup resolves role IDs to names through the state cache.
func (b *Bot) roleLookup(s *discordgo.Session, guildID string) func(string) (string, bool) {
	return func(roleID string) (string, bool) {
		role, err := s.State.Role(guildID, roleID)
		if err != nil {
			return "", false
		}
		return role.Name, true
	}
}

// callerOf builds the capability view of an interaction's member. DMs
// carry no member and pass only capabilities open to everyone.
func callerOf(m *discordgo.Member, lookup func(string) (string, bool)) access.Caller {
	if m == nil {
		return access.Caller{}
	}
	return access.Caller{
		Roles: roleNames(m.Roles, lookup),
		Admin: m.Permissions&discordgo.PermissionAdministrator != 0,
	}
}

func roleNames(ids []string, lookup func(string) (string, bool)) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := lookup(id); ok {
			names = append(names, name)
		}
	}
	return names
}

type optionMap map[string]*discordgo.ApplicationCommandInteractionDataOption

func commandOptions(i *discordgo.InteractionCreate) optionMap {
	opts := make(optionMap)
	for _, o := range i.ApplicationCommandData().Options {
		opts[o.Name] = o
	}
	return opts
}

// targetUser returns the ID and display name of a user option, taken from
// the interaction's resolved data so no REST call is needed.
func targetUser(i *discordgo.InteractionCreate, name string) (string, string, error) {
	opt, ok := commandOptions(i)[name]
	if !ok {
		return "", "", fmt.Errorf("missing option %q", name)
	}
	id, _ := opt.Value.(string)
	if id == "" {
		return "", "", fmt.Errorf("option %q is not a user", name)
	}

	display := id
	data := i.ApplicationCommandData()
	if data.Resolved != nil {
		if u, ok := data.Resolved.Users[id]; ok {
			display = u.DisplayName()
		}
		if m, ok := data.Resolved.Members[id]; ok && m.Nick != "" {
			display = m.Nick
		}
	}
	return id, display, nil
}

func (b *Bot) attendanceCheck(ctx context.Context, _ *discordgo.Session, i *discordgo.InteractionCreate) (*discordgo.MessageEmbed, error) {
	userID, name, err := targetUser(i, "user")
	if err != nil {
		return nil, err
	}
	profile, err := b.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil || profile.LastActive.IsZero() {
		return attendanceMissingEmbed(name), nil
	}
	return attendanceEmbed(name, profile.LastActive), nil
}

func (b *Bot) voiceTotal(ctx context.Context, _ *discordgo.Session, i *discordgo.InteractionCreate) (*discordgo.MessageEmbed, error) {
	userID, name, err := targetUser(i, "user")
	if err != nil {
		return nil, err
	}
	profile, err := b.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	var total int64
	if profile != nil {
		total = profile.Durations.TotalSeconds
	}
	return voiceTotalEmbed(name, total), nil
}

func (b *Bot) recentWeekLeaderboard(ctx context.Context, _ *discordgo.Session, i *discordgo.InteractionCreate) (*discordgo.MessageEmbed, error) {
	resp, err := b.leaderboard.RecentWeek(ctx, 0, b.nameResolver(i.GuildID))
	return leaderboardResult(resp, err)
}

func (b *Bot) recentMonthLeaderboard(ctx context.Context, _ *discordgo.Session, i *discordgo.InteractionCreate) (*discordgo.MessageEmbed, error) {
	resp, err := b.leaderboard.RecentMonth(ctx, 0, b.nameResolver(i.GuildID))
	return leaderboardResult(resp, err)
}

func (b *Bot) weekLeaderboard(ctx context.Context, _ *discordgo.Session, i *discordgo.InteractionCreate) (*discordgo.MessageEmbed, error) {
	opt, ok := commandOptions(i)["week"]
	if !ok {
		return nil, errors.New("missing option \"week\"")
	}
	now := kst.In(b.clock.Now())
	resp, err := b.leaderboard.WeekLeaderboard(ctx, now.Year(), int(now.Month()), int(opt.IntValue()), 0, b.nameResolver(i.GuildID))
	return leaderboardResult(resp, err)
}

func (b *Bot) monthLeaderboard(ctx context.Context, _ *discordgo.Session, i *discordgo.InteractionCreate) (*discordgo.MessageEmbed, error) {
	opt, ok := commandOptions(i)["month"]
	if !ok {
		return nil, errors.New("missing option \"month\"")
	}
	now := kst.In(b.clock.Now())
	resp, err := b.leaderboard.MonthLeaderboard(ctx, now.Year(), int(opt.IntValue()), 0, b.nameResolver(i.GuildID))
	return leaderboardResult(resp, err)
}

func leaderboardResult(resp leaderboard.Response, err error) (*discordgo.MessageEmbed, error) {
	if errors.Is(err, leaderboard.ErrInvalidPeriod) {
		return invalidPeriodEmbed(), nil
	}
	if err != nil {
		return nil, err
	}
	return boardEmbed(resp.Board), nil
}

func (b *Bot) setNoticeMessage(key, label string, color int) commandFunc {
	return func(_ context.Context, _ *discordgo.Session, i *discordgo.InteractionCreate) (*discordgo.MessageEmbed, error) {
		opt, ok := commandOptions(i)["message_id"]
		if !ok {
			return nil, errors.New("missing option \"message_id\"")
		}
		id := opt.StringValue()
		if !utils.IsSnowflake(id) {
			return invalidIDEmbed(id), nil
		}
		if err := b.settings.Set(key, id); err != nil {
			return nil, err
		}
		return settingSavedEmbed(fmt.Sprintf("📌 %s 공지 메시지 ID 설정 완료", label), key, id, color), nil
	}
}

func (b *Bot) setErrorChannel(_ context.Context, _ *discordgo.Session, i *discordgo.InteractionCreate) (*discordgo.MessageEmbed, error) {
	opt, ok := commandOptions(i)["channel_id"]
	if !ok {
		return nil, errors.New("missing option \"channel_id\"")
	}
	id := utils.ExtractID(opt.StringValue())
	if !utils.IsSnowflake(id) {
		return invalidIDEmbed(opt.StringValue()), nil
	}
	if err := b.settings.Set(settings.ErrorChannelID, id); err != nil {
		return nil, err
	}
	embed := settingSavedEmbed("📌 에러 알림 채널 설정 완료", settings.ErrorChannelID, id, colorGreen)
	embed.Description += "\n에러 로그는 " + utils.FormatChannelMention(id) + " 채널로 전송됩니다."
	return embed, nil
}

func (b *Bot) errorTest(_ context.Context, _ *discordgo.Session, _ *discordgo.InteractionCreate) (*discordgo.MessageEmbed, error) {
	logID := logging.NewLogID()
	b.logger.Error("manual error test", "log_id", logID)
	return &discordgo.MessageEmbed{
		Title:       "🧪 에러 테스트",
		Description: fmt.Sprintf("에러 로그를 전송했습니다. (log id: `%s`)", logID),
		Color:       colorGreen,
	}, nil
}

func (b *Bot) userProfile(ctx context.Context, _ *discordgo.Session, i *discordgo.InteractionCreate) (*discordgo.MessageEmbed, error) {
	userID, name, err := targetUser(i, "user")
	if err != nil {
		return nil, err
	}
	profile, err := b.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return profileMissingEmbed(name), nil
	}
	return profileEmbed(name, profile), nil
}

func (b *Bot) syncServer(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) (*discordgo.MessageEmbed, error) {
	if i.GuildID == "" {
		return nil, errors.New("서버 정보를 가져올 수 없습니다")
	}
	updated, err := b.syncMembers(ctx, s, i.GuildID)
	if err != nil {
		return nil, err
	}
	return syncEmbed("🔁 서버 멤버 수동 동기화 완료", "", updated), nil
}
