package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func countLines(buf *bytes.Buffer) int {
	s := strings.TrimSpace(buf.String())
	if s == "" {
		return 0
	}
	return len(strings.Split(s, "\n"))
}

func TestSamplingHandler_Disabled(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})

	for range 50 {
		log.Info("same message")
	}
	assert.Equal(t, 50, countLines(&buf))
}

func TestSamplingHandler_ThresholdThenRate(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:  "info",
		Output: &buf,
		Sampling: SamplingConfig{
			Enabled:   true,
			Tick:      time.Hour,
			Threshold: 10,
			Rate:      0.5,
			ErrorRate: 1.0,
		},
	})

	for range 30 {
		log.Info("event pushed")
	}
	// 10 under threshold, then every 2nd of counts 11..30.
	assert.Equal(t, 20, countLines(&buf))
}

func TestSamplingHandler_ErrorsUseErrorRate(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:  "info",
		Output: &buf,
		Sampling: SamplingConfig{
			Enabled:   true,
			Tick:      time.Hour,
			Threshold: 1,
			Rate:      0,
			ErrorRate: 1.0,
		},
	})

	for range 5 {
		log.Error("upstream failed")
		log.Info("noise")
	}
	assert.Equal(t, 6, countLines(&buf))
}

func TestSamplingHandler_NeverSample(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:  "info",
		Output: &buf,
		Sampling: SamplingConfig{
			Enabled:     true,
			Tick:        time.Hour,
			Threshold:   1,
			Rate:        0,
			NeverSample: []string{"run "},
		},
	})

	for range 5 {
		log.Info("run completed")
	}
	assert.Equal(t, 5, countLines(&buf))
}

func TestSamplingHandler_SharedAcrossWith(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:  "info",
		Output: &buf,
		Sampling: SamplingConfig{
			Enabled:   true,
			Tick:      time.Hour,
			Threshold: 2,
			Rate:      0,
		},
	})

	log.With("a", 1).Info("msg")
	log.With("b", 2).Info("msg")
	log.With("c", 3).Info("msg")
	assert.Equal(t, 2, countLines(&buf))
}

func TestKeep(t *testing.T) {
	assert.True(t, keep(7, 1.0))
	assert.False(t, keep(7, 0))
	assert.True(t, keep(10, 0.1))
	assert.False(t, keep(11, 0.1))
}
