package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "KaliumOSINT", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.shodan.io", cfg.Providers.Shodan.BaseURL)
	assert.Equal(t, "https://urlscan.io", cfg.Providers.URLScan.BaseURL)
	assert.True(t, cfg.Providers.URLScanSubmit)
	assert.Equal(t, 5, cfg.Scan.MaxFactsPerSource)
	assert.Equal(t, "@every 5m", cfg.Dashboard.RefreshSchedule)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SHODAN_API_KEY", "shodan-key")
	t.Setenv("URLSCAN_API_KEY", "urlscan-key")
	t.Setenv("PROVIDER_TIMEOUT", "3s")
	t.Setenv("SCAN_PACING_DELAY", "0s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Providers.Shodan.IsConfigured())
	assert.True(t, cfg.Providers.URLScan.IsConfigured())
	assert.Equal(t, 3*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, time.Duration(0), cfg.Scan.PacingDelay)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("PROVIDER_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Providers.Timeout)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "invalid server port"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "verbose" }, wantErr: "LOG_LEVEL"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "LOG_FORMAT"},
		{name: "zero provider timeout", mutate: func(c *Config) { c.Providers.Timeout = 0 }, wantErr: "PROVIDER_TIMEOUT"},
		{name: "too many retries", mutate: func(c *Config) { c.Providers.MaxRetries = 9 }, wantErr: "PROVIDER_MAX_RETRIES"},
		{name: "no facts per source", mutate: func(c *Config) { c.Scan.MaxFactsPerSource = 0 }, wantErr: "SCAN_MAX_FACTS_PER_SOURCE"},
		{name: "bad cron schedule", mutate: func(c *Config) { c.Dashboard.RefreshSchedule = "every now and then" }, wantErr: "DASHBOARD_REFRESH_SCHEDULE"},
		{name: "empty schedule disables refresh", mutate: func(c *Config) { c.Dashboard.RefreshSchedule = "" }},
		{
			name: "production redis needs password",
			mutate: func(c *Config) {
				c.App.Env = EnvProduction
				c.Redis.Enabled = true
			},
			wantErr: "redis password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProvidersConfig_CallBudget(t *testing.T) {
	tests := []struct {
		name string
		cfg  ProvidersConfig
		want time.Duration
	}{
		{name: "no retries", cfg: ProvidersConfig{Timeout: 10 * time.Second}, want: 10 * time.Second},
		{name: "two retries", cfg: ProvidersConfig{Timeout: 10 * time.Second, MaxRetries: 2, RetryDelay: 500 * time.Millisecond}, want: 31500 * time.Millisecond},
		{name: "negative retries", cfg: ProvidersConfig{Timeout: time.Second, MaxRetries: -1, RetryDelay: time.Second}, want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.CallBudget())
		})
	}
}
