package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr string

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string

	AdminToken string

	TenantStatusTTL  time.Duration
	IdentityCacheTTL time.Duration
	AuditBuffer      int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:             envOr("SHEPHERD_ADDR", ":8080"),
		JWTSigningKey:    envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:        envOr("JWT_ISSUER", "shepherd"),
		JWTAudience:      envOr("JWT_AUDIENCE", "shepherd-app"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		AdminToken:       os.Getenv("ADMIN_API_TOKEN"),
		TenantStatusTTL:  durationOr("TENANT_STATUS_CACHE_TTL", 10*time.Second),
		IdentityCacheTTL: durationOr("IDENTITY_CACHE_TTL", 30*time.Second),
		AuditBuffer:      intOr("AUDIT_BUFFER", 1024),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
