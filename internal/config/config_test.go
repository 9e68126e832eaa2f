package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv() {
	os.Setenv("JWT_ACCESS_SECRET", "test-access-secret-32-chars-long!")
	os.Setenv("JWT_REFRESH_SECRET", "test-refresh-secret-32-chars-lng!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("TOTP_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv()
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   interface{}
		expected interface{}
	}{
		{"Server.Port", cfg.Server.Port, "8080"},
		{"Server.Env", cfg.Server.Env, "development"},
		{"Database.Name", cfg.Database.Name, "gatehouse"},
		{"Redis.Addr", cfg.Redis.Addr, "localhost:6379"},
		{"Auth.AccessTokenExpiry", cfg.Auth.AccessTokenExpiry, 1 * time.Hour},
		{"Auth.RefreshTokenExpiry", cfg.Auth.RefreshTokenExpiry, 7 * 24 * time.Hour},
		{"Auth.OTPExpiry", cfg.Auth.OTPExpiry, 1 * time.Hour},
		{"Auth.MobileOTPMax", cfg.Auth.MobileOTPMax, 3},
		{"Auth.TOTPIssuer", cfg.Auth.TOTPIssuer, "Gatehouse"},
		{"Auth.CleanupInterval", cfg.Auth.CleanupInterval, 1 * time.Hour},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if len(cfg.Server.AllowedOrigins) != 4 {
		t.Errorf("AllowedOrigins: got %d origins, want 4 localhost variants", len(cfg.Server.AllowedOrigins))
	}
	if len(cfg.SSO.Providers) != 0 {
		t.Errorf("SSO.Providers: got %d, want 0 with no client ids set", len(cfg.SSO.Providers))
	}
}

func TestLoad_CustomDurations(t *testing.T) {
	setRequiredEnv()
	os.Setenv("ACCESS_TOKEN_EXPIRY", "15m")
	os.Setenv("OTP_EXPIRY", "10m")
	os.Setenv("MOBILE_OTP_WINDOW", "30m")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Auth.AccessTokenExpiry != 15*time.Minute {
		t.Errorf("AccessTokenExpiry: got %v, want 15m", cfg.Auth.AccessTokenExpiry)
	}
	if cfg.Auth.OTPExpiry != 10*time.Minute {
		t.Errorf("OTPExpiry: got %v, want 10m", cfg.Auth.OTPExpiry)
	}
	if cfg.Auth.MobileOTPWindow != 30*time.Minute {
		t.Errorf("MobileOTPWindow: got %v, want 30m", cfg.Auth.MobileOTPWindow)
	}
}

func TestLoad_RequiresBothJWTSecrets(t *testing.T) {
	os.Setenv("JWT_ACCESS_SECRET", "test-access-secret-32-chars-long!")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error when JWT_REFRESH_SECRET is missing")
	}
}

func TestLoad_RejectsIdenticalJWTSecrets(t *testing.T) {
	os.Setenv("JWT_ACCESS_SECRET", "same-secret-32-characters-long!!")
	os.Setenv("JWT_REFRESH_SECRET", "same-secret-32-characters-long!!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("TOTP_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	defer os.Clearenv()

	_, err := Load()
	if err == nil {
		t.Fatal("Load() = nil, want error for identical secrets")
	}
	if !strings.Contains(err.Error(), "must differ") {
		t.Errorf("error = %q, want mention of differing secrets", err.Error())
	}
}

func TestLoad_RejectsShortSecret(t *testing.T) {
	setRequiredEnv()
	os.Setenv("JWT_ACCESS_SECRET", "short")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error for secret under 16 characters")
	}
}

func TestLoad_ProductionRequiresLongerSecrets(t *testing.T) {
	os.Setenv("ENV", "production")
	os.Setenv("JWT_ACCESS_SECRET", "only-20-characters!!")
	os.Setenv("JWT_REFRESH_SECRET", "also-20-characters!!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("TOTP_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	defer os.Clearenv()

	_, err := Load()
	if err == nil {
		t.Fatal("Load() = nil, want error for 20-char secret in production")
	}
	if !strings.Contains(err.Error(), "32") {
		t.Errorf("error = %q, want mention of the 32-char production minimum", err.Error())
	}
}

func TestLoad_RequiresDBPassword(t *testing.T) {
	setRequiredEnv()
	os.Unsetenv("DB_PASSWORD")
	defer os.Clearenv()

	_, err := Load()
	if err == nil {
		t.Fatal("Load() = nil, want error when DB_PASSWORD is missing")
	}
	if !strings.Contains(err.Error(), "DB_PASSWORD") {
		t.Errorf("error = %q, want mention of DB_PASSWORD", err.Error())
	}
}

func TestLoad_TOTPKeyMustBe32Bytes(t *testing.T) {
	setRequiredEnv()
	os.Setenv("TOTP_ENCRYPTION_KEY", "too-short")
	defer os.Clearenv()

	_, err := Load()
	if err == nil {
		t.Fatal("Load() = nil, want error for a 9-byte TOTP key")
	}
	if !strings.Contains(err.Error(), "TOTP_ENCRYPTION_KEY") {
		t.Errorf("error = %q, want mention of TOTP_ENCRYPTION_KEY", err.Error())
	}
}

func TestLoad_ParsesSSOProviders(t *testing.T) {
	setRequiredEnv()
	os.Setenv("GOOGLE_CLIENT_ID", "google-client-id")
	os.Setenv("GOOGLE_CLIENT_SECRET", "google-client-secret")
	os.Setenv("GOOGLE_REDIRECT_URL", "https://app.example.com/auth/sso/google/callback")
	os.Setenv("MICROSOFT_CLIENT_ID", "ms-client-id")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if len(cfg.SSO.Providers) != 2 {
		t.Fatalf("SSO.Providers: got %d, want 2", len(cfg.SSO.Providers))
	}

	google := cfg.SSO.Providers[0]
	if google.Name != "google" {
		t.Errorf("Providers[0].Name = %q, want google", google.Name)
	}
	if google.IssuerURL != "https://accounts.google.com" {
		t.Errorf("google issuer = %q, want default Google issuer", google.IssuerURL)
	}
	if google.RedirectURL != "https://app.example.com/auth/sso/google/callback" {
		t.Errorf("google redirect = %q", google.RedirectURL)
	}

	microsoft := cfg.SSO.Providers[1]
	if microsoft.Name != "microsoft" {
		t.Errorf("Providers[1].Name = %q, want microsoft", microsoft.Name)
	}
	if !strings.Contains(microsoft.IssuerURL, "microsoftonline.com") {
		t.Errorf("microsoft issuer = %q, want default Microsoft issuer", microsoft.IssuerURL)
	}
}

func TestLoad_ParsesTrustedProxies(t *testing.T) {
	setRequiredEnv()
	os.Setenv("TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2 ,,192.168.1.1")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	want := []string{"10.0.0.1", "10.0.0.2", "192.168.1.1"}
	if len(cfg.Server.TrustedProxies) != len(want) {
		t.Fatalf("TrustedProxies: got %v, want %v", cfg.Server.TrustedProxies, want)
	}
	for i, proxy := range want {
		if cfg.Server.TrustedProxies[i] != proxy {
			t.Errorf("TrustedProxies[%d] = %q, want %q", i, cfg.Server.TrustedProxies[i], proxy)
		}
	}
}

func TestLoad_ProductionAllowedOrigins(t *testing.T) {
	os.Setenv("ENV", "production")
	os.Setenv("JWT_ACCESS_SECRET", "production-access-secret-at-32ch!")
	os.Setenv("JWT_REFRESH_SECRET", "production-refresh-secret-at-32c!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("TOTP_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	os.Setenv("ALLOWED_ORIGINS", "https://app.example.com,https://www.example.com")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Fatalf("AllowedOrigins: got %v, want exactly the configured origins", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("AllowedOrigins[0] = %q", cfg.Server.AllowedOrigins[0])
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "gatehouse",
		Password: "hunter2!",
		Name:     "gatehouse",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()
	want := "host=db.internal port=5433 user=gatehouse password=hunter2! dbname=gatehouse sslmode=require"
	if dsn != want {
		t.Errorf("DSN() = %q, want %q", dsn, want)
	}
}
