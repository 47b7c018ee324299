package scan_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scanapp "github.com/kaliumosint/api/internal/app/scan"
	"github.com/kaliumosint/api/pkg/domain/intel"
)

const hostFixture = `{
  "matches": [
    {"ip_str": "93.184.216.34", "port": 443, "transport": "tcp", "product": "nginx", "version": "1.18.0",
     "vulns": {"CVE-2021-3618": {"cvss": 7.4}, "CVE-2021-23017": {"cvss": 7.7}, "CVE-2019-20372": {"cvss": 5.3}}},
    {"ip_str": "93.184.216.34", "port": 80, "product": "nginx", "version": "1.18.0"},
    {"ip_str": "93.184.216.35", "port": 443, "transport": "tcp"}
  ],
  "total": 3
}`

const urlFixture = `{
  "results": [
    {"_id": "a", "task": {"url": "https://example.com/"},
     "page": {"url": "https://example.com/", "domain": "example.com", "ip": "93.184.216.34", "country": "US", "server": "ECS"},
     "stats": {"malicious": 0}, "verdicts": {"overall": {"score": 0, "malicious": false}}},
    {"_id": "b", "task": {"url": "https://example.com/login"},
     "page": {"url": "https://example.com/login", "domain": "example.com", "ip": "93.184.216.34"},
     "stats": {"malicious": 2}, "verdicts": {"overall": {"score": 100, "malicious": true}}}
  ],
  "total": 2
}`

func TestTranslate_HostSearch(t *testing.T) {
	facts, err := scanapp.Translate(intel.CapabilityHostPortExposure, json.RawMessage(hostFixture))
	require.NoError(t, err)

	keys := make([]string, 0, len(facts))
	for _, f := range facts {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{
		"port:443/tcp",
		"service:nginx 1.18.0",
		"vuln:CVE-2021-23017",
		"vuln:CVE-2021-3618",
		"port:80/tcp",
	}, keys)

	assert.Equal(t, "CVE-2021-23017 (CVSS 7.7) affecting nginx 1.18.0", facts[2].Details)
	assert.Equal(t, "2 open ports, 1 service, 2 high-severity vulnerabilities", scanapp.CountFacts(facts))
}

func TestTranslate_URLSearch(t *testing.T) {
	facts, err := scanapp.Translate(intel.CapabilityWebThreatSearch, json.RawMessage(urlFixture))
	require.NoError(t, err)
	require.Len(t, facts, 2)

	assert.Equal(t, scanapp.FactHosting, facts[0].Kind)
	assert.Equal(t, "example.com served from 93.184.216.34 (US, ECS)", facts[0].Details)
	assert.Equal(t, scanapp.FactThreat, facts[1].Kind)
	assert.Equal(t, "threat:https://example.com/login", facts[1].Key)
}

func TestTranslate_Idempotent(t *testing.T) {
	for _, tc := range []struct {
		capability intel.Capability
		data       string
	}{
		{intel.CapabilityHostPortExposure, hostFixture},
		{intel.CapabilityWebThreatSearch, urlFixture},
	} {
		first, err := scanapp.Translate(tc.capability, json.RawMessage(tc.data))
		require.NoError(t, err)
		for range 5 {
			again, err := scanapp.Translate(tc.capability, json.RawMessage(tc.data))
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	}
}

func TestTranslate_Errors(t *testing.T) {
	_, err := scanapp.Translate(intel.CapabilityHostPortExposure, json.RawMessage(`{"matches": "nope"}`))
	assert.ErrorIs(t, err, intel.ErrMalformedResponse)

	_, err = scanapp.Translate("dns", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, intel.ErrUnsupportedCapability)
}

func TestCountFacts_Empty(t *testing.T) {
	assert.Equal(t, "no notable findings", scanapp.CountFacts(nil))
}
