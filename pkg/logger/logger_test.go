package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_RedactsSensitiveAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("provider configured",
		"shodan_api_key", "abc123",
		"key", "xyz",
		"provider", "shodan",
		"request_url", "https://api.shodan.io/shodan/ports?key=abc123",
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "[REDACTED]", lines[0]["shodan_api_key"])
	assert.Equal(t, "[REDACTED]", lines[0]["key"])
	assert.Equal(t, "shodan", lines[0]["provider"])
	assert.NotContains(t, lines[0]["request_url"], "abc123")
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://api.shodan.io/shodan/ports?key=%5BREDACTED%5D", RedactURL("https://api.shodan.io/shodan/ports?key=secret"))
	assert.Equal(t, "https://urlscan.io/api/v1/search/?q=domain:example.com", RedactURL("https://urlscan.io/api/v1/search/?q=domain:example.com"))
	assert.Equal(t, "not a url", RedactURL("not a url"))
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	ctx := context.WithValue(context.Background(), ContextKeyRequestID, "req-1")
	ctx = context.WithValue(ctx, ContextKeyRunID, "run-1")
	log.WithContext(ctx).Info("hello")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "req-1", lines[0]["request_id"])
	assert.Equal(t, "run-1", lines[0]["run_id"])
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})

	log.Info("dropped")
	log.Warn("kept")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["msg"])
}

func TestContextRoundTrip(t *testing.T) {
	log := NewNop()
	ctx := ToContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
