package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting of the service.
type Config struct {
	Env     string
	Server  ServerConfig
	Log     LogConfig
	Session SessionConfig
	Archive ArchiveConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig(session.MaxMessageLength)
	if err != nil {
		return nil, err
	}

	log, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	archive, err := loadArchiveConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Env:     getEnvOrDefault("ENV", "development"),
		Server:  server,
		Log:     log,
		Session: session,
		Archive: archive,
	}, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// MinBodyBytes is the smallest request body that still fits a message of
// maxMessageLength four-byte runes inside its JSON envelope.
func MinBodyBytes(maxMessageLength int) int64 {
	return 4*int64(maxMessageLength) + 64
}

// DefaultBodyBytes leaves room for a message of maxMessageLength runes sent
// as \uXXXX escapes.
func DefaultBodyBytes(maxMessageLength int) int64 {
	return 6*int64(maxMessageLength) + 1024
}

func loadServerConfig(maxMessageLength int) (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	var addr string
	switch {
	case strings.Contains(port, ":"):
		// accept ":8080" or "127.0.0.1:8080" as-is
		addr = port
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	default:
		addr = ":" + port
	}

	maxBody := DefaultBodyBytes(maxMessageLength)
	if override, err := parseOptionalIntEnv("MAX_BODY_BYTES"); err != nil {
		return ServerConfig{}, err
	} else if override != nil {
		if *override <= 0 {
			return ServerConfig{}, fmt.Errorf("invalid MAX_BODY_BYTES value %d: must be positive", *override)
		}
		if floor := MinBodyBytes(maxMessageLength); int64(*override) < floor {
			return ServerConfig{}, fmt.Errorf("invalid MAX_BODY_BYTES value %d: must be at least %d for MAX_MESSAGE_LENGTH=%d", *override, floor, maxMessageLength)
		}
		maxBody = int64(*override)
	}

	return ServerConfig{
		Addr:           addr,
		AllowedOrigins: parseListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MaxBodyBytes:   maxBody,
	}, nil
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level string
}

func loadLogConfig() (LogConfig, error) {
	level := strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))
	switch level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value %q", level)
	}
	return LogConfig{Level: level}, nil
}

// SessionConfig describes the session engine.
type SessionConfig struct {
	TTL              time.Duration
	SweepInterval    time.Duration
	ReplyStrategy    string
	MaxMessageLength int
}

func loadSessionConfig() (SessionConfig, error) {
	ttl, err := parseDurationEnv("SESSION_TTL", 0)
	if err != nil {
		return SessionConfig{}, err
	}
	if ttl < 0 {
		return SessionConfig{}, fmt.Errorf("invalid SESSION_TTL value %s: must not be negative", ttl)
	}

	sweep, err := parseDurationEnv("SESSION_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}
	if sweep <= 0 {
		return SessionConfig{}, fmt.Errorf("invalid SESSION_SWEEP_INTERVAL value %s: must be positive", sweep)
	}

	strategy := strings.ToLower(getEnvOrDefault("REPLY_STRATEGY", "random"))
	if strategy != "random" && strategy != "rotate" {
		return SessionConfig{}, fmt.Errorf("invalid REPLY_STRATEGY value %q: want random or rotate", strategy)
	}

	maxLength := 4000
	if override, err := parseOptionalIntEnv("MAX_MESSAGE_LENGTH"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return SessionConfig{}, fmt.Errorf("invalid MAX_MESSAGE_LENGTH value %d: must be positive", *override)
		}
		maxLength = *override
	}

	return SessionConfig{
		TTL:              ttl,
		SweepInterval:    sweep,
		ReplyStrategy:    strategy,
		MaxMessageLength: maxLength,
	}, nil
}

// ArchiveConfig selects where transcripts are mirrored.
type ArchiveConfig struct {
	Driver     string
	SQLitePath string
	RedisURL   string
	RedisTTL   time.Duration
}

// Enabled reports whether a backend is configured.
func (c ArchiveConfig) Enabled() bool {
	return c.Driver != "none"
}

func loadArchiveConfig() (ArchiveConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("ARCHIVE_DRIVER", "none"))
	switch driver {
	case "none", "sqlite", "redis":
	default:
		return ArchiveConfig{}, fmt.Errorf("invalid ARCHIVE_DRIVER value %q: want none, sqlite or redis", driver)
	}

	redisURL := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if driver == "redis" && redisURL == "" {
		return ArchiveConfig{}, fmt.Errorf("REDIS_URL is required when ARCHIVE_DRIVER=redis")
	}

	ttl, err := parseDurationEnv("ARCHIVE_TTL", 24*time.Hour)
	if err != nil {
		return ArchiveConfig{}, err
	}

	return ArchiveConfig{
		Driver:     driver,
		SQLitePath: getEnvOrDefault("SQLITE_PATH", "./data/heartwise.db"),
		RedisURL:   redisURL,
		RedisTTL:   ttl,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseListEnv(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}

	var values []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			values = append(values, entry)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	// bare integers are seconds
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
