package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Port           string
	Store          string
	DatabaseURL    string
	SharedPassword string
	// TokenSecret signs session tokens. Empty means a random key per process.
	TokenSecret     string
	SessionTTL      time.Duration
	SessionCapacity int
	LoginDelay      time.Duration
	SeedFile        string

	RateLimitPerMinute      int
	RateLimitBurst          int
	LoginRateLimitPerMinute int
	LoginRateLimitBurst     int

	AllowedOrigins []string
	// TrustedProxies are the peers allowed to set X-Forwarded-For.
	TrustedProxies []netip.Prefix
}

// Load reads PORTAL_* environment variables, layered over an optional config
// file named by PORTAL_CONFIG.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PORTAL")
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("store", StoreMemory)
	v.SetDefault("db_dsn", "")
	v.SetDefault("shared_password", "apollo123")
	v.SetDefault("token_secret", "")
	v.SetDefault("session_ttl", "8h")
	v.SetDefault("session_capacity", 10000)
	v.SetDefault("login_delay", "0s")
	v.SetDefault("seed_file", "")
	v.SetDefault("rate_limit_per_min", 120)
	v.SetDefault("rate_limit_burst", 30)
	v.SetDefault("login_rate_limit_per_min", 10)
	v.SetDefault("login_rate_limit_burst", 5)
	v.SetDefault("allowed_origins", "http://localhost:5173")
	v.SetDefault("trusted_proxies", "")

	if path := os.Getenv("PORTAL_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Port:                    v.GetString("port"),
		Store:                   strings.ToLower(strings.TrimSpace(v.GetString("store"))),
		DatabaseURL:             v.GetString("db_dsn"),
		SharedPassword:          v.GetString("shared_password"),
		TokenSecret:             v.GetString("token_secret"),
		SessionTTL:              v.GetDuration("session_ttl"),
		SessionCapacity:         v.GetInt("session_capacity"),
		LoginDelay:              v.GetDuration("login_delay"),
		SeedFile:                v.GetString("seed_file"),
		RateLimitPerMinute:      v.GetInt("rate_limit_per_min"),
		RateLimitBurst:          v.GetInt("rate_limit_burst"),
		LoginRateLimitPerMinute: v.GetInt("login_rate_limit_per_min"),
		LoginRateLimitBurst:     v.GetInt("login_rate_limit_burst"),
		AllowedOrigins:          splitList(v.GetString("allowed_origins")),
	}

	proxies, err := parseTrustedProxies(splitList(v.GetString("trusted_proxies")))
	if err != nil {
		return Config{}, fmt.Errorf("PORTAL_TRUSTED_PROXIES: %w", err)
	}
	cfg.TrustedProxies = proxies

	switch cfg.Store {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("PORTAL_DB_DSN is required for the postgres store")
		}
	default:
		return Config{}, fmt.Errorf("unknown store %q", cfg.Store)
	}
	if cfg.SharedPassword == "" {
		return Config{}, fmt.Errorf("PORTAL_SHARED_PASSWORD must not be empty")
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("PORTAL_SESSION_TTL must be positive")
	}
	if cfg.SessionCapacity <= 0 {
		cfg.SessionCapacity = 10000
	}
	if cfg.LoginDelay < 0 {
		cfg.LoginDelay = 0
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseTrustedProxies accepts CIDR prefixes or bare addresses.
func parseTrustedProxies(values []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, value := range values {
		if strings.Contains(value, "/") {
			prefix, err := netip.ParsePrefix(value)
			if err != nil {
				return nil, err
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
