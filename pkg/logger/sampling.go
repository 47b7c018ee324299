package logger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// SamplingConfig configures log sampling. The first Threshold records with
// the same level and message in a Tick are always written; after that only
// one in every 1/Rate is. Warnings and errors use ErrorRate instead.
type SamplingConfig struct {
	Enabled   bool
	Tick      time.Duration
	Threshold uint64
	Rate      float64
	ErrorRate float64

	// NeverSample lists message prefixes that bypass sampling.
	NeverSample []string
}

// Sampling defaults.
const (
	DefaultSamplingTick      = time.Second
	DefaultSamplingThreshold = 100
	DefaultSamplingRate      = 0.1
	DefaultSamplingErrorRate = 1.0
)

// DefaultSamplingConfig returns production defaults with sampling disabled.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Tick:      DefaultSamplingTick,
		Threshold: DefaultSamplingThreshold,
		Rate:      DefaultSamplingRate,
		ErrorRate: DefaultSamplingErrorRate,
	}
}

// samplingState is shared by a handler and every handler derived from it
// with WithAttrs/WithGroup, so counting is per message across the tree.
type samplingState struct {
	mu        sync.Mutex
	counts    map[string]uint64
	resetAt   time.Time
	now       func() time.Time
	maxCounts int
}

type samplingHandler struct {
	next  slog.Handler
	cfg   SamplingConfig
	state *samplingState
}

// NewSamplingHandler wraps h with sampling. It returns h unchanged when
// sampling is disabled.
func NewSamplingHandler(h slog.Handler, cfg SamplingConfig) slog.Handler {
	if !cfg.Enabled {
		return h
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultSamplingTick
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultSamplingThreshold
	}
	return &samplingHandler{
		next: h,
		cfg:  cfg,
		state: &samplingState{
			counts:    make(map[string]uint64),
			now:       time.Now,
			maxCounts: 10000,
		},
	}
}

func (h *samplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *samplingHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, prefix := range h.cfg.NeverSample {
		if strings.HasPrefix(r.Message, prefix) {
			return h.next.Handle(ctx, r)
		}
	}

	count := h.state.increment(r.Level.String()+":"+r.Message, h.cfg.Tick)
	if count <= h.cfg.Threshold {
		return h.next.Handle(ctx, r)
	}

	rate := h.cfg.Rate
	if r.Level >= slog.LevelWarn {
		rate = h.cfg.ErrorRate
	}
	if keep(count, rate) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *samplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &samplingHandler{next: h.next.WithAttrs(attrs), cfg: h.cfg, state: h.state}
}

func (h *samplingHandler) WithGroup(name string) slog.Handler {
	return &samplingHandler{next: h.next.WithGroup(name), cfg: h.cfg, state: h.state}
}

func (s *samplingState) increment(key string, tick time.Duration) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.resetAt) >= tick {
		clear(s.counts)
		s.resetAt = now
	}
	if _, ok := s.counts[key]; !ok && len(s.counts) >= s.maxCounts {
		return 0
	}
	s.counts[key]++
	return s.counts[key]
}

func keep(count uint64, rate float64) bool {
	if rate >= 1.0 {
		return true
	}
	if rate <= 0 {
		return false
	}
	interval := uint64(1.0 / rate)
	return count%interval == 0
}
