package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"watchers/internal/attendance"
	"watchers/internal/cache"
	"watchers/internal/clock"
	"watchers/internal/config"
	"watchers/internal/database"
	"watchers/internal/discord"
	"watchers/internal/leaderboard"
	"watchers/internal/logging"
	"watchers/internal/scheduler"
	"watchers/internal/settings"
	"watchers/internal/voice"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var envFile, logLevel string
	var skipCommandSync bool

	flagSet := pflag.NewFlagSet("watchers", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flagSet.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	flagSet.BoolVar(&skipCommandSync, "skip-command-sync", false, "do not overwrite the registered slash commands on start")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	// Load configuration
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger, forwarder := logging.New(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StorageTimeout)
	defer cancel()

	// Initialize storage
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	markers, closeMarkers, err := openMarkers(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeMarkers()

	runtimeSettings := settings.Open(cfg.SettingsFile)
	if values, err := runtimeSettings.All(); err != nil {
		logger.Warn("settings file unreadable, commands will rewrite it", "path", cfg.SettingsFile, "err", err)
	} else {
		logger.Info("settings loaded", "path", cfg.SettingsFile, "keys", len(values))
	}

	clk := clock.Real()
	svc := discord.Services{
		Store:       store,
		Recorder:    voice.NewRecorder(store, markers, clk, logger),
		Leaderboard: leaderboard.NewService(store, clk, cfg.RetentionMonths, cfg.LeaderboardLimit, logger),
		Attendance:  attendance.NewService(store, clk, cfg.AlertDays, logger),
		Settings:    runtimeSettings,
		Clock:       clk,
	}

	// Initialize Discord bot
	bot, err := discord.New(cfg.DiscordToken, discord.Config{
		GuildID:          cfg.GuildID,
		AlertChannelID:   cfg.AlertChannelID,
		MasterMention:    cfg.RoleMasterMention,
		OrganizerMention: cfg.RoleOrganizerMention,
		MemberRoleName:   cfg.MemberRoleName,
		GuestRoleName:    cfg.GuestRoleName,
		StorageTimeout:   cfg.StorageTimeout,
		SkipCommandSync:  skipCommandSync,
	}, svc, logger)
	if err != nil {
		return fmt.Errorf("failed to create Discord bot: %w", err)
	}
	forwarder.SetSink(bot.ErrorSink())
	defer forwarder.SetSink(nil)

	jobs := scheduler.New(logger)
	if err := jobs.Add("attendance-alert", scheduler.DailyNoon, bot.AlertInactiveMembers); err != nil {
		return err
	}
	if err := jobs.Add("member-sync", scheduler.Weekly, bot.SyncAllGuilds); err != nil {
		return err
	}

	// Start bot
	if err := bot.Start(); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}
	defer bot.Stop()

	jobs.Start()
	defer jobs.Stop()

	// Wait for interrupt signal
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	logger.Info("Shutting down bot...")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (database.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		db, err := database.New(ctx, cfg.DatabaseDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return database.NewRepository(db), nil
	case config.DriverMongo:
		store, err := database.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongodb: %w", err)
		}
		return store, nil
	default:
		logger.Warn("using in-memory storage; records are lost on exit")
		return database.NewMemory(), nil
	}
}

// openMarkers picks where open voice sessions are tracked. Without Redis
// they live in memory and sessions in progress are lost on restart.
func openMarkers(ctx context.Context, cfg *config.Config, logger *slog.Logger) (voice.MarkerStore, func(), error) {
	if cfg.RedisAddr == "" {
		return voice.NewMemoryMarkerStore(), func() {}, nil
	}
	client, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("join markers stored in redis", "addr", cfg.RedisAddr)
	return cache.NewRedisMarkerStore(client, cache.DefaultMarkerKey), func() { client.Close() }, nil
}
