package utils

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type CooldownBackend string

const (
	COOLDOWN_BACKEND_MEMORY = CooldownBackend("memory")
	COOLDOWN_BACKEND_SQLITE = CooldownBackend("sqlite")
	COOLDOWN_BACKEND_REDIS  = CooldownBackend("redis")
)

type Config struct {
	port string

	discordAppToken   string
	discordGuildID    string
	discordClientId   string
	reviewChannelID   string
	acceptedRoleID    string
	tournamentName    string
	tournamentStart   string
	corsAllowOrigin   string
	registerRateLimit float64
	registerRateBurst int

	cooldownPeriod        time.Duration
	cooldownBackend       CooldownBackend
	cooldownSweepInterval time.Duration
	sqlitePath            string
	redisAddr             string
	redisPassword         string
	redisDB               int

	metricCollectionInterval time.Duration
}

// Reads the process environment; logs and exits on invalid configuration.
func NewConfig() *Config {
	config, err := NewConfigFromEnv(os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	return config
}

func NewConfigFromEnv(getenv func(string) string) (*Config, error) {
	var errs []error
	required := func(key string) string {
		value := getenv(key)
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is not set", key))
		}
		return value
	}
	withDefault := func(key, fallback string) string {
		value := getenv(key)
		if value == "" {
			value = fallback
		}
		slog.Debug("env", key, value)
		return value
	}
	duration := func(key, fallback string) time.Duration {
		raw := withDefault(key, fallback)
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("invalid %s %q", key, raw))
		}
		return d
	}

	c := &Config{
		port: withDefault("PORT", "3000"),

		discordAppToken: func() string {
			token := required("DISCORD_APP_TOKEN")
			if len(token) > 3 {
				slog.Debug("env", "DISCORD_APP_TOKEN", token[0:3]+"...")
			}
			return token
		}(),
		discordGuildID:  required("DISCORD_GUILD_ID"),
		discordClientId: required("DISCORD_CLIENT_ID"),
		reviewChannelID: required("REVIEW_CHANNEL_ID"),
		acceptedRoleID:  required("ACCEPTED_ROLE_ID"),
		tournamentName:  withDefault("TOURNAMENT_NAME", "Minecraft Esport Tournament"),
		tournamentStart: getenv("TOURNAMENT_START"),
		corsAllowOrigin: withDefault("CORS_ALLOW_ORIGIN", "*"),
		registerRateLimit: func() float64 {
			raw := withDefault("REGISTER_RATE_LIMIT", "5")
			limit, err := strconv.ParseFloat(raw, 64)
			if err != nil || limit <= 0 {
				errs = append(errs, fmt.Errorf("invalid REGISTER_RATE_LIMIT %q", raw))
			}
			return limit
		}(),
		registerRateBurst: func() int {
			raw := withDefault("REGISTER_RATE_BURST", "10")
			burst, err := strconv.Atoi(raw)
			if err != nil || burst <= 0 {
				errs = append(errs, fmt.Errorf("invalid REGISTER_RATE_BURST %q", raw))
			}
			return burst
		}(),

		cooldownPeriod: duration("COOLDOWN_PERIOD", "24h"),
		cooldownBackend: func() CooldownBackend {
			backend := CooldownBackend(withDefault("COOLDOWN_BACKEND", string(COOLDOWN_BACKEND_SQLITE)))
			switch backend {
			case COOLDOWN_BACKEND_MEMORY, COOLDOWN_BACKEND_SQLITE, COOLDOWN_BACKEND_REDIS:
			default:
				errs = append(errs, fmt.Errorf("invalid COOLDOWN_BACKEND %q", backend))
			}
			return backend
		}(),
		cooldownSweepInterval: duration("COOLDOWN_SWEEP_INTERVAL", "1h"),
		sqlitePath:            withDefault("SQLITE_PATH", "./sqlite.db"),
		redisAddr:             withDefault("REDIS_ADDR", "localhost:6379"),
		redisPassword:         getenv("REDIS_PASSWORD"),
		redisDB: func() int {
			raw := withDefault("REDIS_DB", "0")
			db, err := strconv.Atoi(raw)
			if err != nil || db < 0 {
				errs = append(errs, fmt.Errorf("invalid REDIS_DB %q", raw))
			}
			return db
		}(),

		metricCollectionInterval: duration("METRIC_COLLECTION_INTERVAL", "10s"),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("NewConfigFromEnv: %w", errors.Join(errs...))
	}
	return c, nil
}

// Get PORT env, default to 3000
func (c *Config) GetPort() string {
	return c.port
}

// Get DISCORD_APP_TOKEN env
func (c *Config) GetDiscordAppToken() string {
	return c.discordAppToken
}

// Get DISCORD_GUILD_ID env
func (c *Config) GetDiscordGuildID() string {
	return c.discordGuildID
}

// Get DISCORD_CLIENT_ID env
func (c *Config) GetDiscordClientId() string {
	return c.discordClientId
}

// Get REVIEW_CHANNEL_ID env
func (c *Config) GetReviewChannelID() string {
	return c.reviewChannelID
}

// Get ACCEPTED_ROLE_ID env
func (c *Config) GetAcceptedRoleID() string {
	return c.acceptedRoleID
}

// Get TOURNAMENT_NAME env
func (c *Config) GetTournamentName() string {
	return c.tournamentName
}

// Get TOURNAMENT_START env, may be empty
func (c *Config) GetTournamentStart() string {
	return c.tournamentStart
}

// Get CORS_ALLOW_ORIGIN env, default to *
func (c *Config) GetCorsAllowOrigin() string {
	return c.corsAllowOrigin
}

// Get REGISTER_RATE_LIMIT env, requests per second
func (c *Config) GetRegisterRateLimit() float64 {
	return c.registerRateLimit
}

// Get REGISTER_RATE_BURST env
func (c *Config) GetRegisterRateBurst() int {
	return c.registerRateBurst
}

// Get COOLDOWN_PERIOD env, default to 24h
func (c *Config) GetCooldownPeriod() time.Duration {
	return c.cooldownPeriod
}

// Get COOLDOWN_BACKEND env, default to sqlite
func (c *Config) GetCooldownBackend() CooldownBackend {
	return c.cooldownBackend
}

// Get COOLDOWN_SWEEP_INTERVAL env, default to 1h
func (c *Config) GetCooldownSweepInterval() time.Duration {
	return c.cooldownSweepInterval
}

// Get SQLITE_PATH env
func (c *Config) GetSqlitePath() string {
	return c.sqlitePath
}

// Get REDIS_ADDR env
func (c *Config) GetRedisAddr() string {
	return c.redisAddr
}

// Get REDIS_PASSWORD env
func (c *Config) GetRedisPassword() string {
	return c.redisPassword
}

// Get REDIS_DB env
func (c *Config) GetRedisDB() int {
	return c.redisDB
}

// Get METRIC_COLLECTION_INTERVAL env, default to 10s
func (c *Config) GetMetricCollectionInterval() time.Duration {
	return c.metricCollectionInterval
}
