package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":3000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":3000")
	}
	if cfg.GRPCAddr != "" {
		t.Errorf("GRPCAddr = %q, want empty", cfg.GRPCAddr)
	}
	if cfg.FreshnessWindow() != 30*time.Second {
		t.Errorf("FreshnessWindow = %v, want 30s", cfg.FreshnessWindow())
	}
	if cfg.SessionTTL() != 720*time.Hour {
		t.Errorf("SessionTTL = %v, want 720h", cfg.SessionTTL())
	}
	if cfg.SessionStoreTimeout() != 2*time.Second {
		t.Errorf("SessionStoreTimeout = %v, want 2s", cfg.SessionStoreTimeout())
	}
	if cfg.VerificationCodeTTL() != 10*time.Minute {
		t.Errorf("VerificationCodeTTL = %v, want 10m", cfg.VerificationCodeTTL())
	}
	if cfg.MagicLinkTTL() != 15*time.Minute {
		t.Errorf("MagicLinkTTL = %v, want 15m", cfg.MagicLinkTTL())
	}
	if cfg.SignInPath != "/sign-in" {
		t.Errorf("SignInPath = %q, want /sign-in", cfg.SignInPath)
	}
	if cfg.GeoCityHeader != "X-Vercel-IP-City" || cfg.GeoCountryHeader != "X-Vercel-IP-Country" {
		t.Errorf("geo headers = %q/%q", cfg.GeoCityHeader, cfg.GeoCountryHeader)
	}
	if cfg.SMTPPort != 587 {
		t.Errorf("SMTPPort = %d, want 587", cfg.SMTPPort)
	}
	if cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should default to false")
	}
	if cfg.IsProduction() {
		t.Error("IsProduction should be false by default")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("SESSION_FRESHNESS_WINDOW", "45s")
	os.Setenv("SESSION_TTL", "48h")
	os.Setenv("APP_ENV", "Production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.FreshnessWindow() != 45*time.Second {
		t.Errorf("FreshnessWindow = %v, want 45s", cfg.FreshnessWindow())
	}
	if cfg.SessionTTL() != 48*time.Hour {
		t.Errorf("SessionTTL = %v, want 48h", cfg.SessionTTL())
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction should be true for APP_ENV=Production")
	}
}

func TestLoad_FreshnessWindowBounds(t *testing.T) {
	testCases := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"minimum", "1s", false},
		{"default", "30s", false},
		{"maximum", "5m", false},
		{"too small", "500ms", true},
		{"too large", "6m", true},
		{"not a duration", "thirty", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("SESSION_FRESHNESS_WINDOW", tc.value)
			_, err := Load()
			if tc.wantErr && err == nil {
				t.Fatalf("Load with window %q should fail", tc.value)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Load with window %q: %v", tc.value, err)
			}
		})
	}
}

func TestLoad_OTPReturnToClientInProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "production")
	os.Setenv("OTP_RETURN_TO_CLIENT", "true")

	_, err := Load()
	if err == nil {
		t.Fatal("Load should reject OTP_RETURN_TO_CLIENT in production")
	}
	if !strings.Contains(err.Error(), "OTP_RETURN_TO_CLIENT") {
		t.Errorf("error = %q, want mention of OTP_RETURN_TO_CLIENT", err.Error())
	}
}

func TestLoad_RelativePathsRejected(t *testing.T) {
	os.Clearenv()
	os.Setenv("LANDING_PATH", "bookings")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject a relative LANDING_PATH")
	}
}

func TestLoad_LandingPathMustNotRedirectToItself(t *testing.T) {
	for _, landing := range []string{"/", "/sign-in"} {
		os.Clearenv()
		os.Setenv("LANDING_PATH", landing)
		if _, err := Load(); err == nil {
			t.Errorf("Load should reject LANDING_PATH=%q", landing)
		}
	}
}

func TestValidateSessionSecret(t *testing.T) {
	cfg := &Config{SessionSecret: "short"}
	if err := cfg.ValidateSessionSecret(); err == nil {
		t.Error("short secret should be rejected")
	}
	cfg.SessionSecret = strings.Repeat("k", 32)
	if err := cfg.ValidateSessionSecret(); err != nil {
		t.Errorf("32-byte secret: %v", err)
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := &Config{
		SessionFreshnessWindow:  "bogus",
		SessionTTLRaw:           "-1h",
		SessionStoreTimeoutRaw:  "",
		SessionSweepIntervalRaw: "0",
		MagicLinkTTLRaw:         "nope",
		VerificationCodeTTLRaw:  "0s",
	}
	if cfg.FreshnessWindow() != 30*time.Second {
		t.Errorf("FreshnessWindow = %v", cfg.FreshnessWindow())
	}
	if cfg.SessionTTL() != 720*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL())
	}
	if cfg.SessionStoreTimeout() != 2*time.Second {
		t.Errorf("SessionStoreTimeout = %v", cfg.SessionStoreTimeout())
	}
	if cfg.SessionSweepInterval() != 0 {
		t.Errorf("SessionSweepInterval = %v, want disabled", cfg.SessionSweepInterval())
	}
	if cfg.MagicLinkTTL() != 15*time.Minute {
		t.Errorf("MagicLinkTTL = %v", cfg.MagicLinkTTL())
	}
	if cfg.VerificationCodeTTL() != 10*time.Minute {
		t.Errorf("VerificationCodeTTL = %v", cfg.VerificationCodeTTL())
	}
}

func TestTelemetryKafkaBrokersList(t *testing.T) {
	cfg := &Config{TelemetryKafkaBrokers: " a:9092, ,b:9092 "}
	got := cfg.TelemetryKafkaBrokersList()
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("TelemetryKafkaBrokersList = %v", got)
	}
	var nilCfg *Config
	if nilCfg.TelemetryKafkaBrokersList() != nil {
		t.Error("nil config should return nil broker list")
	}
}

func TestTrustedProxyPrefixes(t *testing.T) {
	cfg := &Config{TrustedProxies: " 10.0.0.0/8, 192.168.1.7 ,, fd00::1/64"}
	got, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		t.Fatalf("TrustedProxyPrefixes: %v", err)
	}
	want := []string{"10.0.0.0/8", "192.168.1.7/32", "fd00::/64"}
	if len(got) != len(want) {
		t.Fatalf("TrustedProxyPrefixes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("prefix %d = %s, want %s", i, got[i], want[i])
		}
	}

	empty := &Config{}
	if got, err := empty.TrustedProxyPrefixes(); err != nil || got != nil {
		t.Errorf("empty TrustedProxies = %v, %v; want nil", got, err)
	}
}

func TestLoad_InvalidTrustedProxiesRejected(t *testing.T) {
	os.Clearenv()
	os.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,not-an-ip")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "TRUSTED_PROXIES") {
		t.Fatalf("Load error = %v, want TRUSTED_PROXIES error", err)
	}
}
