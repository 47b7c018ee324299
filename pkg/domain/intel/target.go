package intel

import (
	"net"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TargetKind classifies what the user typed.
type TargetKind string

const (
	TargetKindDomain  TargetKind = "domain"
	TargetKindIP      TargetKind = "ip"
	TargetKindURL     TargetKind = "url"
	TargetKindUnknown TargetKind = "unknown"
)

// Target is a normalized scan target.
type Target struct {
	// Raw is the input after trimming.
	Raw string `json:"raw"`
	// Kind is the classification of Raw.
	Kind TargetKind `json:"kind"`
	// Host is the lowercase ASCII hostname or IP.
	Host string `json:"host"`
	// Domain is Host without a leading "www.".
	Domain string `json:"domain"`
	// Registrable is the eTLD+1 of Host, empty for IPs and bare labels.
	Registrable string `json:"registrable,omitempty"`
	// URL is an absolute URL suitable for submitting to a web scanner.
	URL string `json:"url"`
}

var targetCleaner = transform.Chain(
	norm.NFKC,
	runes.Remove(runes.Predicate(func(r rune) bool {
		if unicode.IsControl(r) {
			return true
		}
		return r == '\u200B' || r == '\u200C' || r == '\u200D' || r == '\uFEFF'
	})),
)

// ParseTarget normalizes a hostname or URL. It is permissive: anything that
// is non-empty after cleaning is accepted, unknown shapes are classified as
// TargetKindUnknown rather than rejected.
func ParseTarget(raw string) (Target, error) {
	cleaned, _, err := transform.String(targetCleaner, raw)
	if err != nil {
		cleaned = raw
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return Target{}, ErrEmptyTarget
	}

	t := Target{Raw: cleaned, Kind: TargetKindUnknown}

	host := cleaned
	if strings.Contains(cleaned, "://") {
		if u, err := url.Parse(cleaned); err == nil && u.Hostname() != "" {
			host = u.Hostname()
			t.Kind = TargetKindURL
			t.URL = cleaned
		}
	} else if i := strings.IndexAny(cleaned, "/?#"); i > 0 {
		if u, err := url.Parse("https://" + cleaned); err == nil && u.Hostname() != "" {
			host = u.Hostname()
			t.Kind = TargetKindURL
			t.URL = "https://" + cleaned
		}
	}

	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		t.Host = ip.String()
		t.Domain = t.Host
		if t.Kind == TargetKindUnknown {
			t.Kind = TargetKindIP
		}
	} else {
		if ascii, err := idna.Lookup.ToASCII(host); err == nil && ascii != "" {
			host = ascii
		}
		t.Host = host
		t.Domain = strings.TrimPrefix(host, "www.")
		if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			t.Registrable = etld1
			if t.Kind == TargetKindUnknown {
				t.Kind = TargetKindDomain
			}
		}
	}

	if t.URL == "" {
		t.URL = "https://" + t.Host
	}
	return t, nil
}

// IsIP reports whether Host is an address, including the host of a URL
// target.
func (t Target) IsIP() bool {
	return net.ParseIP(t.Host) != nil
}

// HostSearchQuery is the host exposure search filter for the target.
func (t Target) HostSearchQuery() string {
	if t.IsIP() {
		return "ip:" + t.Host
	}
	return "hostname:" + t.Host
}

// String returns the host, which is what providers are queried with.
func (t Target) String() string {
	return t.Host
}
