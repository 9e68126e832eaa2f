package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
	SSO      SSOConfig
	Email    EmailConfig
	SMS      SMSConfig
	Geo      GeoConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
}

type AuthConfig struct {
	AccessSecret       string
	RefreshSecret      string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	OTPExpiry          time.Duration
	MagicLinkExpiry    time.Duration
	MobileOTPWindow    time.Duration
	MobileOTPMax       int
	TOTPIssuer         string
	TOTPEncryptionKey  string // 32 bytes, AES-256
	CleanupInterval    time.Duration
}

// SSOProviderConfig holds the OAuth2/OIDC settings for one identity provider.
type SSOProviderConfig struct {
	Name         string
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type SSOConfig struct {
	Providers    []SSOProviderConfig
	DashboardURL string
	ErrorURL     string
}

type EmailConfig struct {
	AWSRegion     string
	FromAddress   string
	MagicLinkBase string
}

type SMSConfig struct {
	GatewayURL string
	AccountID  string
	AuthToken  string
	FromNumber string
	Timeout    time.Duration
}

type GeoConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	accessSecret := getEnv("JWT_ACCESS_SECRET", "")
	refreshSecret := getEnv("JWT_REFRESH_SECRET", "")
	if accessSecret == "" || refreshSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "gatehouse"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitAndTrim(getEnv("TRUSTED_PROXIES", "")),
		},
		Auth: AuthConfig{
			AccessSecret:       accessSecret,
			RefreshSecret:      refreshSecret,
			AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 1*time.Hour),
			RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			OTPExpiry:          getEnvAsDuration("OTP_EXPIRY", 1*time.Hour),
			MagicLinkExpiry:    getEnvAsDuration("MAGIC_LINK_EXPIRY", 1*time.Hour),
			MobileOTPWindow:    getEnvAsDuration("MOBILE_OTP_WINDOW", 1*time.Hour),
			MobileOTPMax:       getEnvAsInt("MOBILE_OTP_MAX", 3),
			TOTPIssuer:         getEnv("TOTP_ISSUER", "Gatehouse"),
			TOTPEncryptionKey:  getEnv("TOTP_ENCRYPTION_KEY", ""),
			CleanupInterval:    getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
		SSO: SSOConfig{
			Providers:    parseSSOProviders(),
			DashboardURL: getEnv("SSO_DASHBOARD_URL", "http://localhost:5173/dashboard"),
			ErrorURL:     getEnv("SSO_ERROR_URL", "http://localhost:5173/auth/error"),
		},
		Email: EmailConfig{
			AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
			FromAddress:   getEnv("EMAIL_FROM", ""),
			MagicLinkBase: getEnv("MAGIC_LINK_BASE_URL", "http://localhost:3000"),
		},
		SMS: SMSConfig{
			GatewayURL: getEnv("SMS_GATEWAY_URL", ""),
			AccountID:  getEnv("SMS_ACCOUNT_ID", ""),
			AuthToken:  getEnv("SMS_AUTH_TOKEN", ""),
			FromNumber: getEnv("SMS_FROM_NUMBER", ""),
			Timeout:    getEnvAsDuration("SMS_TIMEOUT", 10*time.Second),
		},
		Geo: GeoConfig{
			APIURL:  getEnv("GEO_API_URL", "http://api.ipstack.com"),
			APIKey:  getEnv("GEO_API_KEY", ""),
			Timeout: getEnvAsDuration("GEO_TIMEOUT", 3*time.Second),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateSecret("JWT_ACCESS_SECRET", accessSecret, env); err != nil {
		return nil, err
	}
	if err := validateSecret("JWT_REFRESH_SECRET", refreshSecret, env); err != nil {
		return nil, err
	}

	if len(cfg.Auth.TOTPEncryptionKey) != 32 {
		return nil, fmt.Errorf("TOTP_ENCRYPTION_KEY must be exactly 32 bytes (got %d)", len(cfg.Auth.TOTPEncryptionKey))
	}

	return cfg, nil
}

// validateSecret enforces minimum security standards for signing secrets
func validateSecret(name, secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32 // 256 bits
	}

	if len(secret) < minLength {
		return fmt.Errorf("%s must be at least %d characters in %s environment (got %d)",
			name, minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("%s cannot be a common weak value", name)
		}
	}

	return nil
}

// parseSSOProviders builds provider configs from GOOGLE_* and MICROSOFT_*
// env vars. A provider is enabled when its client id is set.
func parseSSOProviders() []SSOProviderConfig {
	var providers []SSOProviderConfig

	if id := getEnv("GOOGLE_CLIENT_ID", ""); id != "" {
		providers = append(providers, SSOProviderConfig{
			Name:         "google",
			IssuerURL:    getEnv("GOOGLE_ISSUER_URL", "https://accounts.google.com"),
			ClientID:     id,
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		})
	}

	if id := getEnv("MICROSOFT_CLIENT_ID", ""); id != "" {
		providers = append(providers, SSOProviderConfig{
			Name:         "microsoft",
			IssuerURL:    getEnv("MICROSOFT_ISSUER_URL", "https://login.microsoftonline.com/common/v2.0"),
			ClientID:     id,
			ClientSecret: getEnv("MICROSOFT_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("MICROSOFT_REDIRECT_URL", ""),
		})
	}

	return providers
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{} // Default to no origins in production
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
