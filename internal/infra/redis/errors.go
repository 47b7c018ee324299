package redis

import "errors"

var (
	// ErrCacheMiss is returned by Cache.Get for absent keys.
	ErrCacheMiss = errors.New("redis: cache miss")

	// ErrDisabled is returned by New when Redis is turned off in config.
	ErrDisabled = errors.New("redis: disabled")
)
