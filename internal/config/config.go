package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers accepted in STORAGE_DRIVER.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all configuration for our application
type Config struct {
	DiscordToken string
	GuildID      string

	StorageDriver  string
	MongoURI       string
	MongoDatabase  string
	DatabaseDSN    string
	StorageTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SettingsFile string

	AlertChannelID       string
	RoleMasterMention    string
	RoleOrganizerMention string
	MemberRoleName       string
	GuestRoleName        string
	AlertDays            []int

	RetentionMonths  int
	LeaderboardLimit int

	LogLevel string
}

// Load loads configuration from environment variables. Files in envFiles
// are read first; a missing file is not an error.
func Load(envFiles ...string) (*Config, error) {
	// .env is optional, the process environment wins either way
	_ = godotenv.Load(envFiles...)

	config := &Config{
		DiscordToken:         os.Getenv("DISCORD_TOKEN"),
		GuildID:              os.Getenv("GUILD_ID"),
		StorageDriver:        strings.ToLower(getenv("STORAGE_DRIVER", DriverMongo)),
		MongoURI:             os.Getenv("MONGODB_URI"),
		MongoDatabase:        getenv("MONGODB_DATABASE", "watchersdb"),
		DatabaseDSN:          os.Getenv("DATABASE_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		SettingsFile:         getenv("CONFIG_FILE", "config.json"),
		AlertChannelID:       os.Getenv("ALERT_CHANNEL_ID"),
		RoleMasterMention:    os.Getenv("ROLE_MASTER_MENTION"),
		RoleOrganizerMention: os.Getenv("ROLE_ORGANIZER_MENTION"),
		MemberRoleName:       getenv("MEMBER_ROLE_NAME", "Member"),
		GuestRoleName:        getenv("GUEST_ROLE_NAME", "Guest"),
		LogLevel:             getenv("LOG_LEVEL", "info"),
	}

	if config.DiscordToken == "" {
		return nil, &ConfigError{Field: "DISCORD_TOKEN", Message: "DISCORD_TOKEN is required"}
	}

	switch config.StorageDriver {
	case DriverMongo:
		if config.MongoURI == "" {
			return nil, &ConfigError{Field: "MONGODB_URI", Message: "MONGODB_URI is required for the mongo driver"}
		}
	case DriverPostgres:
		if config.DatabaseDSN == "" {
			return nil, &ConfigError{Field: "DATABASE_DSN", Message: "DATABASE_DSN is required for the postgres driver"}
		}
	case DriverMemory:
	default:
		return nil, &ConfigError{Field: "STORAGE_DRIVER", Message: fmt.Sprintf("unknown STORAGE_DRIVER %q", config.StorageDriver)}
	}

	var err error
	if config.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if config.RetentionMonths, err = intEnv("RETENTION_MONTHS", 4); err != nil {
		return nil, err
	}
	if config.RetentionMonths < 1 {
		return nil, &ConfigError{Field: "RETENTION_MONTHS", Message: "RETENTION_MONTHS must be at least 1"}
	}
	if config.LeaderboardLimit, err = intEnv("LEADERBOARD_LIMIT", 10); err != nil {
		return nil, err
	}
	if config.LeaderboardLimit < 1 {
		return nil, &ConfigError{Field: "LEADERBOARD_LIMIT", Message: "LEADERBOARD_LIMIT must be at least 1"}
	}
	if config.AlertDays, err = intListEnv("ALERT_DAYS", "14,30"); err != nil {
		return nil, err
	}

	timeout := getenv("STORAGE_TIMEOUT", "10s")
	if config.StorageTimeout, err = time.ParseDuration(timeout); err != nil || config.StorageTimeout <= 0 {
		return nil, &ConfigError{Field: "STORAGE_TIMEOUT", Message: fmt.Sprintf("STORAGE_TIMEOUT %q is not a positive duration", timeout)}
	}

	return config, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: fmt.Sprintf("%s must be an integer, got %q", key, raw)}
	}
	return n, nil
}

func intListEnv(key, fallback string) ([]int, error) {
	raw := getenv(key, fallback)
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, &ConfigError{Field: key, Message: fmt.Sprintf("%s must be a list of positive integers, got %q", key, raw)}
		}
		out = append(out, n)
	}
	return out, nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
