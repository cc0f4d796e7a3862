package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string
	Env         string

	AdminAPIKey           string
	ExpectedMigrationHead string
	AutoCreateSchema      bool

	SigningMode              string
	SigningIdentityID        string
	SigningPrivateKeySeedHex string

	AnchorCommitPath string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

const (
	SigningModeRequired = "required"
	SigningModeOptional = "optional"
	SigningModeDisabled = "disabled"
)

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:                 addr,
		PostgresDSN:              os.Getenv("POSTGRES_DSN"),
		LogLevel:                 envDefault("LOG_LEVEL", "info"),
		Env:                      envDefault("LEDGER_ENV", "dev"),
		AdminAPIKey:              os.Getenv("ADMIN_API_KEY"),
		ExpectedMigrationHead:    os.Getenv("EXPECTED_MIGRATION_HEAD"),
		AutoCreateSchema:         envBoolDefault("AUTO_CREATE_SCHEMA", false),
		SigningMode:              envDefault("SIGNING_MODE", SigningModeOptional),
		SigningIdentityID:        os.Getenv("SIGNING_IDENTITY_ID"),
		SigningPrivateKeySeedHex: os.Getenv("SIGNING_PRIVATE_KEY_SEED_HEX"),
		AnchorCommitPath:         os.Getenv("ANCHOR_COMMIT_PATH"),
		RateLimitRequests:        envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds:   envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMaxKeys:         envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  envIntDefault("REDIS_DB", 0),
	}
}

func (c Config) HasSigningKey() bool {
	return c.SigningIdentityID != "" && c.SigningPrivateKeySeedHex != ""
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}
