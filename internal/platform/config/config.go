// Package config builds runtime configuration from environment variables so
// main stays lean. Everything has a development-friendly default except the
// identity provider settings, which have no sensible fallback.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Resource describes one protected backend the console calls: where it lives
// and which scopes an access token must carry to call it.
type Resource struct {
	Name    string
	BaseURL string
	Scopes  []string
}

// IdP holds the identity provider client settings.
type IdP struct {
	ClientID          string
	Authority         string
	RedirectURL       string
	AuthorizeEndpoint string
	TokenEndpoint     string
	EndSessionEndpoint string
}

// RedisConfig mirrors the go-redis options we care about.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Audit selects the audit sink. Sink is one of "memory", "postgres", "kafka".
type Audit struct {
	Sink         string
	PostgresDSN  string
	KafkaBrokers []string
	KafkaTopic   string
	AsyncBuffer  int
}

// Config is the full runtime configuration.
type Config struct {
	Addr string

	IdP       IdP
	Resources map[string]Resource

	Redis RedisConfig
	Audit Audit

	// SessionTTL bounds server-side session records. Session-scoped by policy:
	// records expire, they are never persisted past their TTL.
	SessionTTL time.Duration

	// LoginWatchdog is the hard deadline after which an unanswered interactive
	// login is failed. InteractionCleanup unconditionally clears interaction
	// flags even if the provider never emits a terminal event.
	LoginWatchdog      time.Duration
	InteractionCleanup time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	authority := strings.TrimRight(os.Getenv("ASSETGATE_IDP_AUTHORITY"), "/")
	cfg := Config{
		Addr: envOr("ASSETGATE_ADDR", ":8080"),
		IdP: IdP{
			ClientID:           os.Getenv("ASSETGATE_IDP_CLIENT_ID"),
			Authority:          authority,
			RedirectURL:        envOr("ASSETGATE_IDP_REDIRECT_URL", "http://localhost:8080/auth/callback"),
			AuthorizeEndpoint:  envOr("ASSETGATE_IDP_AUTHORIZE_ENDPOINT", authority+"/authorize"),
			TokenEndpoint:      envOr("ASSETGATE_IDP_TOKEN_ENDPOINT", authority+"/token"),
			EndSessionEndpoint: envOr("ASSETGATE_IDP_END_SESSION_ENDPOINT", authority+"/logout"),
		},
		Resources: ParseResources(os.Getenv("ASSETGATE_RESOURCES")),
		Redis: RedisConfig{
			URL:          os.Getenv("ASSETGATE_REDIS_URL"),
			PoolSize:     envInt("ASSETGATE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("ASSETGATE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("ASSETGATE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("ASSETGATE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("ASSETGATE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Audit: Audit{
			Sink:         envOr("ASSETGATE_AUDIT_SINK", "memory"),
			PostgresDSN:  os.Getenv("ASSETGATE_AUDIT_POSTGRES_DSN"),
			KafkaBrokers: splitNonEmpty(os.Getenv("ASSETGATE_AUDIT_KAFKA_BROKERS"), ","),
			KafkaTopic:   envOr("ASSETGATE_AUDIT_KAFKA_TOPIC", "assetgate.audit"),
			AsyncBuffer:  envInt("ASSETGATE_AUDIT_ASYNC_BUFFER", 0),
		},
		SessionTTL:         envDuration("ASSETGATE_SESSION_TTL", 8*time.Hour),
		LoginWatchdog:      envDuration("ASSETGATE_LOGIN_WATCHDOG", 30*time.Second),
		InteractionCleanup: envDuration("ASSETGATE_INTERACTION_CLEANUP", 60*time.Second),
	}
	return cfg
}

// ParseResources parses the resource map from its env encoding:
//
//	name=baseURL|scope scope,name2=baseURL2|scope
//
// Malformed entries are skipped rather than failing startup.
func ParseResources(raw string) map[string]Resource {
	resources := make(map[string]Resource)
	for _, entry := range splitNonEmpty(raw, ",") {
		name, rest, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		baseURL, scopesRaw, _ := strings.Cut(rest, "|")
		name = strings.TrimSpace(name)
		baseURL = strings.TrimSpace(baseURL)
		if name == "" || baseURL == "" {
			continue
		}
		resources[name] = Resource{
			Name:    name,
			BaseURL: strings.TrimRight(baseURL, "/"),
			Scopes:  strings.Fields(scopesRaw),
		}
	}
	return resources
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(raw, sep string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
