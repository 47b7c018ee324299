// Package redis provides the optional Redis integration of the API.
//
// # Overview
//
//   - Client: connection management with pooling and connect retries
//   - Cache[T]: type-safe JSON cache with TTL, used for proxy responses
//   - Metrics: Prometheus collectors for operations, pool and cache hit rate
//
// # Quick Start
//
//	client, err := redis.New(&cfg.Redis, log)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	cache, err := redis.NewCache[dashboard.CachedResponse](client, "proxy", cfg.Dashboard.CacheTTL)
//
// # Cache Semantics
//
// Get returns ErrCacheMiss for absent keys. Values are stored as JSON, so T
// must round-trip through encoding/json. The cache does not coalesce loads;
// the proxy service does that with singleflight before it reaches Redis.
package redis
