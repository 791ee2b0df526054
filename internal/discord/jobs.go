package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"watchers/internal/attendance"
	"watchers/internal/logging"
	"watchers/internal/models"
	"watchers/internal/settings"
	"watchers/pkg/utils"
)

// memberPageSize is the largest page the members endpoint returns.
const memberPageSize = 1000

// memberInfo is what a synchronization pass stores for m.
func memberInfo(m *discordgo.Member, roleNames []string) models.MemberInfo {
	return models.MemberInfo{
		UserID:         m.User.ID,
		Username:       m.User.Username,
		ServerNickname: m.DisplayName(),
		JoinedAtServer: m.JoinedAt,
		Roles:          roleNames,
	}
}

// syncMembers upserts every non-bot member of guildID and returns how
// many were written.
func (b *Bot) syncMembers(ctx context.Context, s *discordgo.Session, guildID string) (int, error) {
	lookup := b.roleLookup(s, guildID)
	updated := 0
	after := ""
	for {
		page, err := s.GuildMembers(guildID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return updated, fmt.Errorf("failed to list guild members: %w", err)
		}
		for _, m := range page {
			if m.User == nil || m.User.Bot {
				continue
			}
			if err := b.store.UpsertMemberInfo(ctx, memberInfo(m, roleNames(m.Roles, lookup))); err != nil {
				return updated, err
			}
			updated++
		}
		if len(page) < memberPageSize {
			break
		}
		after = page[len(page)-1].User.ID
	}
	b.logger.Info("server members synchronized", "guild", guildID, "members", updated)
	return updated, nil
}

// SyncAllGuilds is the weekly synchronization job. Each guild's result is
// announced in the alert channel.
func (b *Bot) SyncAllGuilds(ctx context.Context) error {
	for _, guildID := range b.guildIDs() {
		updated, err := b.syncMembers(ctx, b.session, guildID)
		if err != nil {
			return fmt.Errorf("guild %s: %w", guildID, err)
		}
		if b.cfg.AlertChannelID == "" {
			continue
		}
		embed := syncEmbed("🔁 서버 멤버 주간 동기화 완료", joinMentions(b.cfg.MasterMention, b.cfg.OrganizerMention), updated)
		if _, err := b.session.ChannelMessageSendEmbed(b.cfg.AlertChannelID, embed); err != nil {
			b.logger.Warn("sync report failed", "guild", guildID, "err", err)
		}
	}
	return nil
}

// AlertInactiveMembers is the daily attendance job. Alerts are posted only
// for members still in a guild.
func (b *Bot) AlertInactiveMembers(ctx context.Context) error {
	if b.cfg.AlertChannelID == "" {
		return nil
	}
	alerts, err := b.attendance.Due(ctx)
	if err != nil {
		return err
	}
	for _, alert := range alerts {
		b.postAlert(alert)
	}
	return nil
}

func (b *Bot) postAlert(alert attendance.Alert) {
	for _, guildID := range b.guildIDs() {
		member, ok := b.guildMember(guildID, alert.UserID)
		if !ok || member.User == nil {
			continue
		}
		title, desc := attendance.Message(alert, utils.FormatUserMention(member.User.ID), b.cfg.MasterMention, b.cfg.OrganizerMention)
		if _, err := b.session.ChannelMessageSendEmbed(b.cfg.AlertChannelID, alertEmbed(title, desc)); err != nil {
			b.logger.Warn("attendance alert failed", "user_id", alert.UserID, "err", err)
		}
		return
	}
}

// ErrorSink posts forwarded error logs to the configured error channel.
// Failures are logged below error level so they are not forwarded again.
func (b *Bot) ErrorSink() logging.Sink {
	return func(line string) {
		channelID := b.settings.Get(settings.ErrorChannelID)
		if channelID == "" {
			return
		}
		go func() {
			if _, err := b.session.ChannelMessageSend(channelID, utils.TruncateString(line, messageLimit)); err != nil {
				b.logger.Warn("error notification failed", "channel", channelID, "err", err)
			}
		}()
	}
}

// messageLimit is Discord's maximum message length.
const messageLimit = 2000
