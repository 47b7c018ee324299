package providers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaliumosint/api/pkg/domain/intel"
)

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func TestSynthetic_HostSearchShape(t *testing.T) {
	s := NewSynthetic(WithSeed(7), WithClock(fixedClock))
	result := s.Generate(intel.CapabilityHostPortExposure, mustTarget(t, "example.com"))

	assert.True(t, result.Synthetic)
	assert.Equal(t, SyntheticName, result.Provider)

	var doc intel.HostSearchResponse
	require.NoError(t, json.Unmarshal(result.Data, &doc))
	require.NotEmpty(t, doc.Matches)
	assert.Equal(t, len(doc.Matches), doc.Total)
	for _, m := range doc.Matches {
		assert.NotEmpty(t, m.IPStr)
		assert.Positive(t, m.Port)
		assert.NotEmpty(t, m.Product)
		assert.Equal(t, []string{"example.com"}, m.Hostnames)
	}

	var generic map[string]any
	require.NoError(t, json.Unmarshal(result.Data, &generic))
	assert.Contains(t, generic, "matches")
	assert.Contains(t, generic, "total")
}

func TestSynthetic_URLSearchShape(t *testing.T) {
	s := NewSynthetic(WithSeed(7), WithClock(fixedClock))
	result := s.Generate(intel.CapabilityWebThreatSearch, mustTarget(t, "www.example.com"))

	var doc intel.URLSearchResponse
	require.NoError(t, json.Unmarshal(result.Data, &doc))
	require.NotEmpty(t, doc.Results)
	for _, r := range doc.Results {
		assert.Equal(t, "example.com", r.Task.Domain)
		assert.Equal(t, "example.com", r.Page.Domain)
		assert.NotEmpty(t, r.Page.IP)
		assert.Equal(t, r.Stats.Malicious > 0, r.Verdicts.Overall.Malicious)
	}
}

func TestSynthetic_SeedIsReproducible(t *testing.T) {
	a := NewSynthetic(WithSeed(42), WithClock(fixedClock))
	b := NewSynthetic(WithSeed(42), WithClock(fixedClock))

	assert.JSONEq(t, string(a.HostSearch("example.com")), string(b.HostSearch("example.com")))
	assert.JSONEq(t, string(a.URLSearch("example.com")), string(b.URLSearch("example.com")))
	assert.JSONEq(t, string(a.Ports()), string(b.Ports()))
}

func TestSynthetic_ProxyDocuments(t *testing.T) {
	s := NewSynthetic()

	var count intel.HostCountResponse
	require.NoError(t, json.Unmarshal(s.HostCount(), &count))
	assert.Positive(t, count.Total)
	assert.NotNil(t, count.Matches)

	var ports []int
	require.NoError(t, json.Unmarshal(s.Ports(), &ports))
	assert.GreaterOrEqual(t, len(ports), 20)
	assert.IsNonDecreasing(t, ports)
}

func TestSynthetic_FetchHonoursContext(t *testing.T) {
	s := NewSynthetic()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Fetch(ctx, intel.CapabilityHostPortExposure, mustTarget(t, "example.com"))
	assert.ErrorIs(t, err, context.Canceled)
}
