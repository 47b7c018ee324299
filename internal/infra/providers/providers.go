package providers

import (
	"github.com/kaliumosint/api/internal/config"
	"github.com/kaliumosint/api/pkg/domain/intel"
	"github.com/kaliumosint/api/pkg/logger"
)

var (
	_ intel.Adapter   = (*Shodan)(nil)
	_ intel.Adapter   = (*URLScan)(nil)
	_ intel.Adapter   = (*Synthetic)(nil)
	_ intel.Generator = (*Synthetic)(nil)
)

// Set bundles the configured providers.
type Set struct {
	Shodan    *Shodan
	URLScan   *URLScan
	Synthetic *Synthetic
}

// NewSet builds both providers from configuration.
func NewSet(cfg config.ProvidersConfig, log *logger.Logger) *Set {
	shared := func(p config.ProviderConfig) ClientConfig {
		return ClientConfig{
			BaseURL:    p.BaseURL,
			APIKey:     p.APIKey,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			RateLimit:  cfg.RateLimit,
			UserAgent:  cfg.UserAgent,
		}
	}

	set := &Set{
		Shodan:    NewShodan(shared(cfg.Shodan), log),
		URLScan:   NewURLScan(shared(cfg.URLScan), cfg.URLScanSubmit, log),
		Synthetic: NewSynthetic(),
	}

	log.Info("providers initialized",
		"shodan_configured", set.Shodan.Configured(),
		"urlscan_configured", set.URLScan.Configured(),
		"urlscan_submit", cfg.URLScanSubmit,
	)
	return set
}

// Registry returns the real adapters keyed by capability.
func (s *Set) Registry() *intel.Registry {
	return intel.NewRegistry(s.Shodan, s.URLScan)
}
