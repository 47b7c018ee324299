package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Log       LogConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Providers ProvidersConfig
	Scan      ScanConfig
	Dashboard DashboardConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name    string
	Env     string
	Version string
	Debug   bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration // Per-request handler timeout
	ShutdownTimeout time.Duration
	MaxBodySize     int64
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string

	SamplingEnabled   bool
	SamplingThreshold int
	SamplingRate      float64

	SkipHealthLogs     bool
	SlowRequestSeconds int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// RateLimitConfig holds inbound rate limiting configuration.
type RateLimitConfig struct {
	Enabled         bool
	RequestsPerSec  float64
	Burst           int
	CleanupInterval time.Duration
}

// RedisConfig holds Redis configuration. Redis is optional and only backs
// the proxy response cache.
type RedisConfig struct {
	Enabled       bool
	Host          string
	Port          int
	Password      string
	DB            int
	PoolSize      int
	MinIdleConns  int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxRetries    int
	MinRetryDelay time.Duration
	MaxRetryDelay time.Duration
}

// ProviderConfig holds the settings of one upstream intelligence provider.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
}

// IsConfigured returns true when the provider has credentials.
func (c ProviderConfig) IsConfigured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// ProvidersConfig holds upstream provider configuration. Credentials are
// read once at start and never change afterwards.
type ProvidersConfig struct {
	Shodan        ProviderConfig
	URLScan       ProviderConfig
	URLScanSubmit bool

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	RateLimit  float64 // requests per second per provider
	UserAgent  string
}

// CallBudget bounds one provider call including every retry and backoff.
func (c ProvidersConfig) CallBudget() time.Duration {
	retries := max(c.MaxRetries, 0)
	return time.Duration(retries+1)*c.Timeout + c.RetryDelay*time.Duration(1<<retries-1)
}

// ScanConfig holds scan orchestration settings.
type ScanConfig struct {
	PacingDelay       time.Duration
	MaxFactsPerSource int
	RunTimeout        time.Duration
}

// DashboardConfig holds proxy boundary and overview settings.
type DashboardConfig struct {
	CacheTTL        time.Duration
	RefreshSchedule string
	OverviewTimeout time.Duration
}

// TelemetryConfig holds OpenTelemetry tracing configuration.
type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "KaliumOSINT"),
			Env:     getEnv("APP_ENV", EnvDevelopment),
			Version: getEnv("APP_VERSION", "1.0.0"),
			Debug:   getEnvBool("APP_DEBUG", false),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			RequestTimeout:  getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodySize:     getEnvInt64("SERVER_MAX_BODY_SIZE", 1<<20),
		},
		Log: LogConfig{
			Level:              getEnv("LOG_LEVEL", "info"),
			Format:             getEnv("LOG_FORMAT", "json"),
			SamplingEnabled:    getEnvBool("LOG_SAMPLING_ENABLED", false),
			SamplingThreshold:  getEnvInt("LOG_SAMPLING_THRESHOLD", 100),
			SamplingRate:       getEnvFloat("LOG_SAMPLING_RATE", 0.1),
			SkipHealthLogs:     getEnvBool("LOG_SKIP_HEALTH", true),
			SlowRequestSeconds: getEnvInt("LOG_SLOW_REQUEST_SECONDS", 5),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Accept", "Content-Type", "Content-Encoding", "X-Request-ID"}),
			MaxAge:         getEnvInt("CORS_MAX_AGE", 86400),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSec:  getEnvFloat("RATE_LIMIT_RPS", 20),
			Burst:           getEnvInt("RATE_LIMIT_BURST", 40),
			CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP", time.Minute),
		},
		Redis: RedisConfig{
			Enabled:       getEnvBool("REDIS_ENABLED", false),
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnvInt("REDIS_PORT", 6379),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			PoolSize:      getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:  getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:   getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:   getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:  getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			MaxRetries:    getEnvInt("REDIS_MAX_RETRIES", 3),
			MinRetryDelay: getEnvDuration("REDIS_MIN_RETRY_DELAY", 100*time.Millisecond),
			MaxRetryDelay: getEnvDuration("REDIS_MAX_RETRY_DELAY", 3*time.Second),
		},
		Providers: ProvidersConfig{
			Shodan: ProviderConfig{
				APIKey:  getEnv("SHODAN_API_KEY", ""),
				BaseURL: getEnv("SHODAN_BASE_URL", "https://api.shodan.io"),
			},
			URLScan: ProviderConfig{
				APIKey:  getEnv("URLSCAN_API_KEY", ""),
				BaseURL: getEnv("URLSCAN_BASE_URL", "https://urlscan.io"),
			},
			URLScanSubmit: getEnvBool("URLSCAN_SUBMIT", true),
			Timeout:       getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second),
			MaxRetries:    getEnvInt("PROVIDER_MAX_RETRIES", 2),
			RetryDelay:    getEnvDuration("PROVIDER_RETRY_DELAY", 500*time.Millisecond),
			RateLimit:     getEnvFloat("PROVIDER_RATE_LIMIT", 1),
			UserAgent:     getEnv("PROVIDER_USER_AGENT", "KaliumOSINT/1.0"),
		},
		Scan: ScanConfig{
			PacingDelay:       getEnvDuration("SCAN_PACING_DELAY", 300*time.Millisecond),
			MaxFactsPerSource: getEnvInt("SCAN_MAX_FACTS_PER_SOURCE", 5),
			RunTimeout:        getEnvDuration("SCAN_RUN_TIMEOUT", 2*time.Minute),
		},
		Dashboard: DashboardConfig{
			CacheTTL:        getEnvDuration("DASHBOARD_CACHE_TTL", 5*time.Minute),
			RefreshSchedule: getEnv("DASHBOARD_REFRESH_SCHEDULE", "@every 5m"),
			OverviewTimeout: getEnvDuration("DASHBOARD_OVERVIEW_TIMEOUT", 20*time.Second),
		},
		Telemetry: TelemetryConfig{
			Enabled:     getEnvBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			Insecure:    getEnvBool("OTEL_INSECURE", true),
			SampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1.0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if err := c.validateLog(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateDashboard(); err != nil {
		return err
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be between 0.0 and 1.0, got %f", c.Telemetry.SampleRatio)
	}
	if c.IsProduction() && c.Redis.Enabled && c.Redis.Password == "" {
		return fmt.Errorf("redis password must be set in production")
	}
	return nil
}

func (c *Config) validateLog() error {
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %s (must be json or text)", c.Log.Format)
	}
	if c.Log.SamplingRate < 0.0 || c.Log.SamplingRate > 1.0 {
		return fmt.Errorf("LOG_SAMPLING_RATE must be between 0.0 and 1.0, got %f", c.Log.SamplingRate)
	}
	if c.Log.SamplingThreshold < 0 {
		return fmt.Errorf("LOG_SAMPLING_THRESHOLD must be non-negative, got %d", c.Log.SamplingThreshold)
	}
	return nil
}

func (c *Config) validateProviders() error {
	p := c.Providers
	if p.Shodan.BaseURL == "" || p.URLScan.BaseURL == "" {
		return fmt.Errorf("provider base URLs are required")
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %v", p.Timeout)
	}
	if p.MaxRetries < 0 || p.MaxRetries > 5 {
		return fmt.Errorf("PROVIDER_MAX_RETRIES must be between 0 and 5, got %d", p.MaxRetries)
	}
	if p.RateLimit < 0 {
		return fmt.Errorf("PROVIDER_RATE_LIMIT must be non-negative, got %f", p.RateLimit)
	}
	return nil
}

func (c *Config) validateScan() error {
	if c.Scan.PacingDelay < 0 {
		return fmt.Errorf("SCAN_PACING_DELAY must be non-negative, got %v", c.Scan.PacingDelay)
	}
	if c.Scan.MaxFactsPerSource < 1 {
		return fmt.Errorf("SCAN_MAX_FACTS_PER_SOURCE must be at least 1, got %d", c.Scan.MaxFactsPerSource)
	}
	if c.Scan.RunTimeout <= 0 {
		return fmt.Errorf("SCAN_RUN_TIMEOUT must be positive, got %v", c.Scan.RunTimeout)
	}
	return nil
}

func (c *Config) validateDashboard() error {
	if c.Dashboard.CacheTTL <= 0 {
		return fmt.Errorf("DASHBOARD_CACHE_TTL must be positive, got %v", c.Dashboard.CacheTTL)
	}
	if c.Dashboard.RefreshSchedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(c.Dashboard.RefreshSchedule); err != nil {
		return fmt.Errorf("invalid DASHBOARD_REFRESH_SCHEDULE %q: %w", c.Dashboard.RefreshSchedule, err)
	}
	return nil
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the HTTP server address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment returns true if the application is in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == EnvDevelopment
}

// IsProduction returns true if the application is in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if result := splitAndTrim(value, ","); len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
