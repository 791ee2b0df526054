package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"watchers/internal/attendance"
	"watchers/internal/clock"
	"watchers/internal/database"
	"watchers/internal/leaderboard"
	"watchers/internal/settings"
	"watchers/internal/voice"
	"watchers/pkg/utils"
)

// Config is the part of the application configuration the bot reads.
type Config struct {
	// GuildID scopes command registration and the periodic jobs. Empty
	// means every guild the bot is in, with commands registered globally.
	GuildID          string
	AlertChannelID   string
	MasterMention    string
	OrganizerMention string
	MemberRoleName   string
	GuestRoleName    string
	StorageTimeout   time.Duration
	SkipCommandSync  bool
}

// Services are the domain components the bot drives.
type Services struct {
	Store       database.Store
	Recorder    *voice.Recorder
	Leaderboard *leaderboard.Service
	Attendance  *attendance.Service
	Settings    *settings.Store
	Clock       clock.Clock
}

// Bot represents the Discord bot
type Bot struct {
	session     *discordgo.Session
	store       database.Store
	recorder    *voice.Recorder
	leaderboard *leaderboard.Service
	attendance  *attendance.Service
	settings    *settings.Store
	clock       clock.Clock
	cfg         Config
	commands    map[string]command
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Discord bot
func New(token string, cfg Config, svc Services, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessageReactions

	// Voice updates must reach the recorder in gateway order.
	session.SyncEvents = true

	ctx, cancel := context.WithCancel(context.Background())
	bot := &Bot{
		session:     session,
		store:       svc.Store,
		recorder:    svc.Recorder,
		leaderboard: svc.Leaderboard,
		attendance:  svc.Attendance,
		settings:    svc.Settings,
		clock:       svc.Clock,
		cfg:         cfg,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
	bot.commands = bot.commandSet()

	// Add event handlers
	session.AddHandler(bot.ready)
	session.AddHandler(bot.voiceStateUpdate)
	session.AddHandler(bot.guildMemberAdd)
	session.AddHandler(bot.guildMemberRemove)
	session.AddHandler(bot.messageReactionAdd)
	session.AddHandler(bot.interactionCreate)

	return bot, nil
}

// Start starts the bot
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	b.logger.Info("✅ Bot is running...")
	return nil
}

// Stop stops the bot
func (b *Bot) Stop() error {
	b.cancel()
	return b.session.Close()
}

// opContext bounds one storage operation.
func (b *Bot) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.ctx, b.cfg.StorageTimeout)
}

func (b *Bot) ready(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("logged in", "user", r.User.Username, "user_id", r.User.ID, "guilds", len(r.Guilds))
	if b.cfg.SkipCommandSync {
		return
	}
	go b.syncCommands(s, r.User.ID)
}

func (b *Bot) syncCommands(s *discordgo.Session, appID string) {
	synced, err := s.ApplicationCommandBulkOverwrite(appID, b.cfg.GuildID, commandDefinitions(b.commands))
	if err != nil {
		b.logger.Error("slash command sync failed", "err", err)
		return
	}
	b.logger.Info("slash commands synced", "count", len(synced), "guild", b.cfg.GuildID)
}

// voiceStateUpdate handles voice state updates. The marker transition
// runs inline so a user's events apply in order; the writes do not.
func (b *Bot) voiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	ev := voiceEvent(vs, b.memberName(s, vs.GuildID, vs.UserID, vs.Member), b.channelName(s))

	ctx, cancel := b.opContext()
	out := b.recorder.Apply(ctx, ev)
	cancel()

	if out.Transition == voice.None {
		return
	}
	go func() {
		ctx, cancel := b.opContext()
		defer cancel()
		b.recorder.Persist(ctx, ev, out)
	}()
}

// voiceEvent maps a gateway voice update to a recorder event.
func voiceEvent(vs *discordgo.VoiceStateUpdate, username string, channelName func(string) string) voice.Event {
	ev := voice.Event{
		UserID:       vs.UserID,
		Username:     username,
		AfterChannel: vs.ChannelID,
	}
	if vs.BeforeUpdate != nil {
		ev.BeforeChannel = vs.BeforeUpdate.ChannelID
	}
	if ev.AfterChannel != "" {
		ev.AfterChannelName = channelName(ev.AfterChannel)
	}
	return ev
}

// channelName looks channels up in the state cache, falling back to the ID.
func (b *Bot) channelName(s *discordgo.Session) func(string) string {
	return func(channelID string) string {
		if ch, err := s.State.Channel(channelID); err == nil && ch.Name != "" {
			return ch.Name
		}
		return channelID
	}
}

// memberName returns the account name of a member, as stored on profiles.
func (b *Bot) memberName(s *discordgo.Session, guildID, userID string, m *discordgo.Member) string {
	if m == nil || m.User == nil {
		if cached, err := s.State.Member(guildID, userID); err == nil {
			m = cached
		}
	}
	if m != nil && m.User != nil && m.User.Username != "" {
		return m.User.Username
	}
	return userID
}

// guildMemberAdd records the server join time and announces returning members.
func (b *Bot) guildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.User == nil {
		return
	}
	go func() {
		ctx, cancel := b.opContext()
		defer cancel()
		logger := b.logger.With("user", m.User.Username, "user_id", m.User.ID)
		logger.Info("member joined the server")

		quit, err := b.store.GetQuitLog(ctx, m.User.ID)
		if err != nil {
			logger.Error("quit log lookup failed", "err", err)
		} else if quit != nil && b.cfg.AlertChannelID != "" {
			msg := rejoinNotice(utils.FormatUserMention(m.User.ID), quit, b.cfg.MasterMention, b.cfg.OrganizerMention)
			if _, err := s.ChannelMessageSend(b.cfg.AlertChannelID, msg); err != nil {
				logger.Error("rejoin notice failed", "err", err)
			}
		}

		joined := m.JoinedAt
		if joined.IsZero() {
			joined = b.clock.Now()
		}
		if err := b.store.SaveJoinTime(ctx, m.User.ID, m.User.Username, joined); err != nil {
			logger.Error("join time write failed", "err", err)
		}
	}()
}

// guildMemberRemove moves the departing member's profile into the quit log.
func (b *Bot) guildMemberRemove(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if m.User == nil {
		return
	}
	go func() {
		ctx, cancel := b.opContext()
		defer cancel()
		moved, err := b.store.MoveToQuitLogs(ctx, m.User.ID, b.clock.Now())
		if err != nil {
			b.logger.Error("quit log write failed", "user_id", m.User.ID, "err", err)
			return
		}
		b.logger.Info("member left the server", "user", m.User.Username, "user_id", m.User.ID, "profile_moved", moved)
	}()
}

// guildIDs lists the guilds periodic jobs run against.
func (b *Bot) guildIDs() []string {
	if b.cfg.GuildID != "" {
		return []string{b.cfg.GuildID}
	}
	b.session.State.RLock()
	defer b.session.State.RUnlock()
	ids := make([]string, 0, len(b.session.State.Guilds))
	for _, g := range b.session.State.Guilds {
		ids = append(ids, g.ID)
	}
	return ids
}

// guildMember finds a member in the state cache or, failing that, over REST.
func (b *Bot) guildMember(guildID, userID string) (*discordgo.Member, bool) {
	if m, err := b.session.State.Member(guildID, userID); err == nil {
		return m, true
	}
	m, err := b.session.GuildMember(guildID, userID)
	if err != nil {
		return nil, false
	}
	return m, true
}

// nameResolver resolves leaderboard rows to current server display names.
func (b *Bot) nameResolver(guildID string) leaderboard.NameResolver {
	return func(userID string) (string, bool) {
		m, err := b.session.State.Member(guildID, userID)
		if err != nil {
			return "", false
		}
		return m.DisplayName(), true
	}
}
