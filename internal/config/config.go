// Package config provides configuration loading for the dashboard API.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Session   SessionConfig   `mapstructure:"session"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	Environment    string        `mapstructure:"environment"` // dev, staging, production
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// IsProduction reports whether cookies must be marked Secure.
func (c ServerConfig) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the PostgreSQL URL form used by the migrator.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig holds the external identity provider configuration.
type AuthConfig struct {
	// IssuerBaseURL is the provider tenant URL, e.g. https://tenant.us.auth0.com.
	IssuerBaseURL string `mapstructure:"issuer_base_url"`
	ClientID      string `mapstructure:"client_id"`
	ClientSecret  string `mapstructure:"client_secret"`
	// BaseURL is the public URL of this application; callback and logout
	// return URLs are derived from it.
	BaseURL string `mapstructure:"base_url"`
	// RoleClaims lists claim paths checked in order for the role list.
	RoleClaims []string `mapstructure:"role_claims"`
	Scopes     []string `mapstructure:"scopes"`
}

// CallbackURL returns the OAuth redirect URI registered with the provider.
func (c AuthConfig) CallbackURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/api/auth/callback"
}

// SessionConfig holds session lifetime and cookie key configuration.
type SessionConfig struct {
	// Secret seeds the keys that sign and encrypt the OAuth state cookie.
	Secret          string        `mapstructure:"secret"`
	AccessFallback  time.Duration `mapstructure:"access_fallback"`
	RefreshLifetime time.Duration `mapstructure:"refresh_lifetime"`
	StateLifetime   time.Duration `mapstructure:"state_lifetime"`
}

// RateLimitConfig defines rate limiting parameters.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	BurstSize         int `mapstructure:"burst_size"`
}

// TelemetryConfig holds OpenTelemetry exporter configuration.
type TelemetryConfig struct {
	// OTLPEndpoint is host:port of an OTLP/HTTP collector; empty disables tracing.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
	Insecure     bool   `mapstructure:"insecure"`
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.IssuerBaseURL == "" {
		errs = append(errs, errors.New("auth.issuer_base_url is required"))
	}
	if c.Auth.ClientID == "" {
		errs = append(errs, errors.New("auth.client_id is required"))
	}
	if len(c.Session.Secret) < 32 {
		errs = append(errs, errors.New("session.secret must be at least 32 characters"))
	}
	return errors.Join(errs...)
}

// Load reads configuration from .env, files and environment variables.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/oakley-metrics")

	v.SetEnvPrefix("OAKLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Nested keys without defaults are not picked up by AutomaticEnv on Unmarshal.
	v.BindEnv("auth.issuer_base_url", "OAKLEY_AUTH_ISSUER_BASE_URL")
	v.BindEnv("auth.client_id", "OAKLEY_AUTH_CLIENT_ID")
	v.BindEnv("auth.client_secret", "OAKLEY_AUTH_CLIENT_SECRET")
	v.BindEnv("session.secret", "OAKLEY_SESSION_SECRET")
	v.BindEnv("telemetry.otlp_endpoint", "OAKLEY_TELEMETRY_OTLP_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "oakley")
	v.SetDefault("database.password", "oakley")
	v.SetDefault("database.database", "oakley_metrics")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Auth defaults
	v.SetDefault("auth.base_url", "http://localhost:8080")
	v.SetDefault("auth.role_claims", []string{
		"https://auth.oakleydye.com/roles",
		"app_metadata.roles",
		"auth.oakleydye.com/roles",
	})
	v.SetDefault("auth.scopes", []string{"openid", "profile", "email"})

	// Session defaults
	v.SetDefault("session.access_fallback", "1h")
	v.SetDefault("session.refresh_lifetime", "720h") // 30 days
	v.SetDefault("session.state_lifetime", "5m")

	// Rate limit defaults
	v.SetDefault("ratelimit.requests_per_minute", 120)
	v.SetDefault("ratelimit.burst_size", 20)

	// Telemetry defaults
	v.SetDefault("telemetry.service_name", "oakley-metrics")
	v.SetDefault("telemetry.insecure", true)
}
