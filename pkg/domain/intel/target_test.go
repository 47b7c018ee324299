package intel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		kind        TargetKind
		host        string
		domain      string
		registrable string
		url         string
	}{
		{
			name:        "bare domain",
			raw:         "example.com",
			kind:        TargetKindDomain,
			host:        "example.com",
			domain:      "example.com",
			registrable: "example.com",
			url:         "https://example.com",
		},
		{
			name:        "www prefix stripped for domain",
			raw:         "  WWW.Example.com. ",
			kind:        TargetKindDomain,
			host:        "www.example.com",
			domain:      "example.com",
			registrable: "example.com",
			url:         "https://www.example.com",
		},
		{
			name:        "url with path",
			raw:         "https://www.example.co.uk/login?next=/",
			kind:        TargetKindURL,
			host:        "www.example.co.uk",
			domain:      "example.co.uk",
			registrable: "example.co.uk",
			url:         "https://www.example.co.uk/login?next=/",
		},
		{
			name:        "scheme-less url",
			raw:         "shop.example.com/cart",
			kind:        TargetKindURL,
			host:        "shop.example.com",
			domain:      "shop.example.com",
			registrable: "example.com",
			url:         "https://shop.example.com/cart",
		},
		{
			name:   "ipv4",
			raw:    "93.184.216.34",
			kind:   TargetKindIP,
			host:   "93.184.216.34",
			domain: "93.184.216.34",
			url:    "https://93.184.216.34",
		},
		{
			name:        "host with port",
			raw:         "example.com:8443",
			kind:        TargetKindDomain,
			host:        "example.com",
			domain:      "example.com",
			registrable: "example.com",
			url:         "https://example.com",
		},
		{
			name:   "single label is accepted",
			raw:    "x",
			kind:   TargetKindUnknown,
			host:   "x",
			domain: "x",
			url:    "https://x",
		},
		{
			name:        "zero width characters removed",
			raw:         "exa\u200bmple.com",
			kind:        TargetKindDomain,
			host:        "example.com",
			domain:      "example.com",
			registrable: "example.com",
			url:         "https://example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.host, got.Host)
			assert.Equal(t, tt.domain, got.Domain)
			assert.Equal(t, tt.registrable, got.Registrable)
			assert.Equal(t, tt.url, got.URL)
		})
	}
}

func TestParseTarget_Empty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\u200b\t"} {
		_, err := ParseTarget(raw)
		assert.ErrorIs(t, err, ErrEmptyTarget, "%q", raw)
	}
}

func TestTarget_HostSearchQuery(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "93.184.216.34", want: "ip:93.184.216.34"},
		{raw: "http://1.2.3.4/", want: "ip:1.2.3.4"},
		{raw: "https://[2001:db8::1]:8443/login", want: "ip:2001:db8::1"},
		{raw: "www.example.com", want: "hostname:www.example.com"},
		{raw: "https://example.com/path", want: "hostname:example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			target, err := ParseTarget(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, target.HostSearchQuery())
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", Describe(nil))
	assert.Equal(t, "credentials missing", Describe(ErrUnauthenticated))
	assert.Equal(t, "request timed out", Describe(ErrTimeout))
	assert.Equal(t, "upstream status 503", Describe(&UpstreamError{Provider: "shodan", StatusCode: 503}))
	assert.Equal(t, "unreadable response", Describe(ErrMalformedResponse))
}

func TestSelectStrategy(t *testing.T) {
	assert.Equal(t, StrategySynthetic, SelectStrategy(nil))
}
