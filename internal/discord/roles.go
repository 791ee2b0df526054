package discord

import (
	"github.com/bwmarrin/discordgo"

	"watchers/internal/settings"
)

const grantEmoji = "✅"

// noticeRole returns the role granted by reacting to messageID, or "" if
// messageID is neither notice message.
func noticeRole(messageID, memberNotice, guestNotice, memberRole, guestRole string) string {
	switch {
	case messageID == "":
		return ""
	case messageID == memberNotice:
		return memberRole
	case messageID == guestNotice:
		return guestRole
	default:
		return ""
	}
}

// messageReactionAdd grants the member or guest role to whoever reacts
// with ✅ on the matching notice message.
func (b *Bot) messageReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.GuildID == "" || r.Emoji.Name != grantEmoji {
		return
	}
	roleName := noticeRole(r.MessageID,
		b.settings.Get(settings.MemberNoticeMessageID), b.settings.Get(settings.GuestNoticeMessageID),
		b.cfg.MemberRoleName, b.cfg.GuestRoleName)
	if roleName == "" {
		return
	}
	go b.grantRole(s, r, roleName)
}

func (b *Bot) grantRole(s *discordgo.Session, r *discordgo.MessageReactionAdd, roleName string) {
	logger := b.logger.With("user_id", r.UserID, "role", roleName)

	member := r.Member
	if member == nil || member.User == nil {
		m, ok := b.guildMember(r.GuildID, r.UserID)
		if !ok {
			return
		}
		member = m
	}
	if member.User.Bot {
		return
	}

	roleID, held := b.roleState(s, r.GuildID, member.Roles, roleName)
	if held {
		return
	}
	if roleID == "" {
		logger.Error("role not found")
		return
	}
	if err := s.GuildMemberRoleAdd(r.GuildID, r.UserID, roleID); err != nil {
		logger.Error("failed to grant role", "err", err)
		return
	}
	logger.Info("role granted", "user", member.User.Username)

	if dm, err := s.UserChannelCreate(r.UserID); err != nil {
		logger.Warn("welcome DM failed", "err", err)
	} else if _, err := s.ChannelMessageSendEmbed(dm.ID, welcomeEmbed(member.DisplayName(), roleName)); err != nil {
		logger.Warn("welcome DM failed", "err", err)
	}

	ctx, cancel := b.opContext()
	defer cancel()
	if err := b.store.SaveGrantedRole(ctx, r.UserID, member.User.Username, roleName, b.clock.Now()); err != nil {
		logger.Error("granted role write failed", "err", err)
	}
}

// roleState finds the guild role named roleName and whether memberRoles
// already includes it.
func (b *Bot) roleState(s *discordgo.Session, guildID string, memberRoles []string, roleName string) (roleID string, held bool) {
	roles, err := s.GuildRoles(guildID)
	if err != nil {
		b.logger.Warn("guild roles lookup failed", "guild", guildID, "err", err)
		return "", false
	}
	return findRole(roles, memberRoles, roleName)
}

func findRole(roles []*discordgo.Role, memberRoles []string, roleName string) (roleID string, held bool) {
	for _, role := range roles {
		if role.Name != roleName {
			continue
		}
		for _, id := range memberRoles {
			if id == role.ID {
				return role.ID, true
			}
		}
		return role.ID, false
	}
	return "", false
}
