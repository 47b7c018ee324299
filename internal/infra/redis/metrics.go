package redis

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Redis Prometheus collectors.
type Metrics struct {
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec

	poolTotalConns prometheus.Gauge
	poolIdleConns  prometheus.Gauge
	poolTimeouts   prometheus.Gauge

	cacheLookups *prometheus.CounterVec
}

// DefaultMetrics is the process-wide metrics instance.
var DefaultMetrics = NewMetrics("kalium")

// NewMetrics registers the collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      name,
			Help:      help,
		})
	}

	return &Metrics{
		operationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "redis",
				Name:      "operation_duration_seconds",
				Help:      "Duration of Redis operations in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		operationErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "redis",
				Name:      "operation_errors_total",
				Help:      "Total number of failed Redis operations",
			},
			[]string{"operation"},
		),
		poolTotalConns: gauge("pool_total_connections", "Connections in the pool"),
		poolIdleConns:  gauge("pool_idle_connections", "Idle connections in the pool"),
		poolTimeouts:   gauge("pool_timeouts", "Times a wait for a pooled connection timed out"),
		cacheLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "redis",
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by cache and result (hit or miss)",
			},
			[]string{"cache", "result"},
		),
	}
}

// ObserveOperation records the duration and result of a Redis operation.
func (m *Metrics) ObserveOperation(operation string, duration time.Duration, err error) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.operationErrors.WithLabelValues(operation).Inc()
	}
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit(cacheName string) {
	m.cacheLookups.WithLabelValues(cacheName, "hit").Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss(cacheName string) {
	m.cacheLookups.WithLabelValues(cacheName, "miss").Inc()
}

// UpdatePoolStats copies the client's pool statistics into the gauges.
func (m *Metrics) UpdatePoolStats(client *Client) {
	if client == nil {
		return
	}
	stats := client.PoolStats()
	if stats == nil {
		return
	}
	m.poolTotalConns.Set(float64(stats.TotalConns))
	m.poolIdleConns.Set(float64(stats.IdleConns))
	m.poolTimeouts.Set(float64(stats.Timeouts))
}

// StartPoolStatsCollector refreshes pool stats every interval until ctx
// ends or the returned function is called.
func StartPoolStatsCollector(ctx context.Context, client *Client, interval time.Duration) func() {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				DefaultMetrics.UpdatePoolStats(client)
			}
		}
	}()
	return cancel
}

// Timed times an operation:
//
//	done := redis.Timed("ping")
//	err := client.Ping(ctx).Err()
//	done(err)
func Timed(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		DefaultMetrics.ObserveOperation(operation, time.Since(start), err)
	}
}
