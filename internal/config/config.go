package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	AppEnv   string
	HTTPAddr string

	DBDriver    string
	DatabaseURL string
	DBDebug     bool
	DBMaxConns  int
	DBMinConns  int

	JWTIssuer         string
	JWTSecret         string
	AccessTokenTTLMin int

	// RedisURL enables the cross-instance realtime relay when set.
	RedisURL        string
	RealtimeChannel string
	RealtimeBuffer  int

	ShutdownTimeoutSec int
}

func Load() Config {
	return Config{
		AppEnv:   get("APP_ENV", "dev"),
		HTTPAddr: get("HTTP_ADDR", ":8080"),

		DBDriver:    get("DB_DRIVER", "postgres"),
		DatabaseURL: get("DATABASE_URL", ""),
		DBDebug:     getBool("DB_DEBUG", false),
		DBMaxConns:  getInt("DB_MAX_CONNS", 10),
		DBMinConns:  getInt("DB_MIN_CONNS", 1),

		JWTIssuer:         get("JWT_ISSUER", "storefront"),
		JWTSecret:         get("JWT_SECRET", ""),
		AccessTokenTTLMin: getInt("ACCESS_TOKEN_TTL_MIN", 15),

		RedisURL:        get("REDIS_URL", ""),
		RealtimeChannel: get("REALTIME_CHANNEL", "storefront:realtime"),
		RealtimeBuffer:  getInt("REALTIME_BUFFER", 64),

		ShutdownTimeoutSec: getInt("SHUTDOWN_TIMEOUT_SEC", 15),
	}
}

func (c Config) IsProd() bool { return c.AppEnv == "prod" || c.AppEnv == "production" }

func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			return b
		}
	}
	return def
}
