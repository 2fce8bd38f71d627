// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Bounds for SESSION_FRESHNESS_WINDOW. The window is the longest a banned or revoked
// session can keep acting on a previously issued token, so it is clamped here.
const (
	MinFreshnessWindow = time.Second
	MaxFreshnessWindow = 5 * time.Minute
)

// minSessionSecretLen is the shortest accepted SESSION_SECRET in bytes.
const minSessionSecretLen = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server (pages, RPC, magic-link) listens on (e.g. :3000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC server listens on. Empty disables the gRPC listener.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production"). Cookies are Secure in production.
	Env string `mapstructure:"APP_ENV"`
	// AppBaseURL is the public origin used to build magic links (e.g. https://app.pawplanner.io).
	AppBaseURL string `mapstructure:"APP_BASE_URL"`

	// SessionSecret is the token signing secret. Required; at least 32 bytes.
	SessionSecret string `mapstructure:"SESSION_SECRET"`
	// SessionFreshnessWindow is how long a signed token is trusted without a store lookup (e.g. "30s").
	SessionFreshnessWindow string `mapstructure:"SESSION_FRESHNESS_WINDOW"`
	// SessionTTLRaw is the session record lifetime and cookie max-age (e.g. "720h").
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`
	// SessionStoreTimeoutRaw bounds a single slow-path store lookup (e.g. "2s").
	SessionStoreTimeoutRaw string `mapstructure:"SESSION_STORE_TIMEOUT"`
	// SessionSweepIntervalRaw is how often expired session records are deleted. "0" disables the sweeper.
	SessionSweepIntervalRaw string `mapstructure:"SESSION_SWEEP_INTERVAL"`

	// MagicLinkTTLRaw is the magic-link token lifetime (e.g. "15m").
	MagicLinkTTLRaw string `mapstructure:"MAGIC_LINK_TTL"`
	// VerificationCodeTTLRaw is the verification code lifetime (e.g. "10m").
	VerificationCodeTTLRaw string `mapstructure:"VERIFICATION_CODE_TTL"`
	// TestAccountEmail is an account whose one-time codes are not consumed on use (app review / demos).
	TestAccountEmail string `mapstructure:"TEST_ACCOUNT_EMAIL"`
	// SuperOrgID is the organization whose owners and admins may manage sessions across all orgs.
	SuperOrgID string `mapstructure:"SUPER_ORG_ID"`

	// SignInPath is the page unauthenticated page requests are redirected to.
	SignInPath string `mapstructure:"SIGN_IN_PATH"`
	// LandingPath is where authenticated users land when they hit "/" or an auth-only page.
	LandingPath string `mapstructure:"LANDING_PATH"`
	// GeoCityHeader and GeoCountryHeader name the edge-provided geolocation headers.
	GeoCityHeader    string `mapstructure:"GEO_CITY_HEADER"`
	GeoCountryHeader string `mapstructure:"GEO_COUNTRY_HEADER"`
	// TrustedProxies is a comma-separated list of CIDRs or addresses of the reverse proxies in
	// front of the servers. X-Forwarded-For and X-Real-IP are only read from these peers. Empty
	// trusts no proxy and the client IP is always the connection's remote address.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	// SMTP settings for delivering magic links and verification codes. Empty host disables SMTP.
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	// OTPReturnToClient when true keeps sent codes in memory for GET /dev/otp. Must not be true in production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`

	// OTLPEndpoint is the OpenTelemetry collector endpoint. Empty uses no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Telemetry (optional). When Kafka brokers are set, auth events are also written to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for auth events (default pawplanner-auth-events).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the event worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("GRPC_ADDR", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_FRESHNESS_WINDOW", "30s")
	v.SetDefault("SESSION_TTL", "720h") // 30d
	v.SetDefault("SESSION_STORE_TIMEOUT", "2s")
	v.SetDefault("SESSION_SWEEP_INTERVAL", "1h")
	v.SetDefault("MAGIC_LINK_TTL", "15m")
	v.SetDefault("VERIFICATION_CODE_TTL", "10m")
	v.SetDefault("TEST_ACCOUNT_EMAIL", "")
	v.SetDefault("SUPER_ORG_ID", "")
	v.SetDefault("SIGN_IN_PATH", "/sign-in")
	v.SetDefault("LANDING_PATH", "/bookings")
	v.SetDefault("GEO_CITY_HEADER", "X-Vercel-IP-City")
	v.SetDefault("GEO_COUNTRY_HEADER", "X-Vercel-IP-Country")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "PawPlanner <no-reply@pawplanner.io>")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "pawplanner-auth-events")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "pawplanner-event-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.OTPReturnToClient && cfg.IsProduction() {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if raw := strings.TrimSpace(cfg.SessionFreshnessWindow); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("config: SESSION_FRESHNESS_WINDOW: %w", err)
		}
		if d < MinFreshnessWindow || d > MaxFreshnessWindow {
			return nil, fmt.Errorf("config: SESSION_FRESHNESS_WINDOW must be between %s and %s", MinFreshnessWindow, MaxFreshnessWindow)
		}
	}

	if !strings.HasPrefix(cfg.SignInPath, "/") || !strings.HasPrefix(cfg.LandingPath, "/") {
		return nil, errors.New("config: SIGN_IN_PATH and LANDING_PATH must be absolute paths")
	}
	if cfg.LandingPath == "/" || cfg.LandingPath == cfg.SignInPath {
		return nil, errors.New("config: LANDING_PATH must not be / or SIGN_IN_PATH")
	}

	if _, err := cfg.TrustedProxyPrefixes(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidateSessionSecret reports whether SESSION_SECRET is usable for signing.
// Binaries that issue or verify session tokens call it after Load; the worker does not.
func (c *Config) ValidateSessionSecret() error {
	if len(c.SessionSecret) < minSessionSecretLen {
		return fmt.Errorf("config: SESSION_SECRET must be at least %d bytes", minSessionSecretLen)
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// FreshnessWindow parses SessionFreshnessWindow. Returns 30s if unset or invalid.
func (c *Config) FreshnessWindow() time.Duration {
	return parseDuration(c.SessionFreshnessWindow, 30*time.Second)
}

// SessionTTL parses SessionTTLRaw. Returns 720h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	return parseDuration(c.SessionTTLRaw, 720*time.Hour)
}

// SessionStoreTimeout parses SessionStoreTimeoutRaw. Returns 2s if unset or invalid.
func (c *Config) SessionStoreTimeout() time.Duration {
	return parseDuration(c.SessionStoreTimeoutRaw, 2*time.Second)
}

// SessionSweepInterval parses SessionSweepIntervalRaw. Returns 0 (disabled) when set to "0" and 1h if invalid.
func (c *Config) SessionSweepInterval() time.Duration {
	if strings.TrimSpace(c.SessionSweepIntervalRaw) == "0" {
		return 0
	}
	return parseDuration(c.SessionSweepIntervalRaw, time.Hour)
}

// MagicLinkTTL parses MagicLinkTTLRaw. Returns 15m if unset or invalid.
func (c *Config) MagicLinkTTL() time.Duration {
	return parseDuration(c.MagicLinkTTLRaw, 15*time.Minute)
}

// VerificationCodeTTL parses VerificationCodeTTLRaw. Returns 10m if unset or invalid.
func (c *Config) VerificationCodeTTL() time.Duration {
	return parseDuration(c.VerificationCodeTTLRaw, 10*time.Minute)
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if Kafka event export is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is taken as a single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	if c == nil || strings.TrimSpace(c.TrustedProxies) == "" {
		return nil, nil
	}
	var out []netip.Prefix
	for _, part := range strings.Split(c.TrustedProxies, ",") {
		s := strings.TrimSpace(part)
		if s == "" {
			continue
		}
		if !strings.Contains(s, "/") {
			addr, err := netip.ParseAddr(s)
			if err != nil {
				return nil, fmt.Errorf("config: TRUSTED_PROXIES: %w", err)
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("config: TRUSTED_PROXIES: %w", err)
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
