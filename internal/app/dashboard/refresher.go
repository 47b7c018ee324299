package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kaliumosint/api/internal/metrics"
	"github.com/kaliumosint/api/pkg/logger"
)

const refreshTimeout = 30 * time.Second

// Refresher re-warms the target-independent proxy endpoints on a schedule.
type Refresher struct {
	service *Service
	cron    *cron.Cron
	logger  *logger.Logger
}

// NewRefresher schedules refreshes of the scans and sources endpoints.
// schedule accepts standard cron expressions and descriptors like "@every 5m".
func NewRefresher(service *Service, schedule string, log *logger.Logger) (*Refresher, error) {
	r := &Refresher{
		service: service,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  log.With("component", "dashboard_refresher"),
	}
	if _, err := r.cron.AddFunc(schedule, r.RefreshAll); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start runs the schedule in the background.
func (r *Refresher) Start() {
	r.cron.Start()
	r.logger.Info("dashboard refresher started", "entries", len(r.cron.Entries()))
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RefreshAll refreshes every target-independent endpoint once.
func (r *Refresher) RefreshAll() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	for _, ep := range []Endpoint{EndpointScans, EndpointSources} {
		if err := r.service.Refresh(ctx, ep); err != nil {
			metrics.ProxyRefreshTotal.WithLabelValues(string(ep), "error").Inc()
			r.logger.Warn("proxy refresh failed", "endpoint", ep, "error", err)
			continue
		}
		metrics.ProxyRefreshTotal.WithLabelValues(string(ep), "ok").Inc()
	}
}
