package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/kaliumosint/api/pkg/domain/intel"
)

// SyntheticName is the provider name reported for generated results.
const SyntheticName = "synthetic"

// Synthetic generates placeholder provider responses. Every document it
// produces decodes into the same schema types as the real responses.
type Synthetic struct {
	mu    sync.Mutex
	seed  uint64
	fixed bool
	now   func() time.Time
}

// SyntheticOption configures a Synthetic generator.
type SyntheticOption func(*Synthetic)

// WithSeed makes generation reproducible for a given capability and target.
func WithSeed(seed uint64) SyntheticOption {
	return func(s *Synthetic) {
		s.seed = seed
		s.fixed = true
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) SyntheticOption {
	return func(s *Synthetic) {
		s.now = now
	}
}

// NewSynthetic creates a generator.
func NewSynthetic(opts ...SyntheticOption) *Synthetic {
	s := &Synthetic{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the provider name.
func (s *Synthetic) Name() string { return SyntheticName }

// Configured is always true.
func (s *Synthetic) Configured() bool { return true }

// Supports accepts every known capability.
func (s *Synthetic) Supports(capability intel.Capability) bool { return capability.IsValid() }

// Fetch returns a generated result.
func (s *Synthetic) Fetch(ctx context.Context, capability intel.Capability, target intel.Target) (intel.RawResult, error) {
	if err := ctx.Err(); err != nil {
		return intel.RawResult{}, err
	}
	if !s.Supports(capability) {
		return intel.RawResult{}, intel.ErrUnsupportedCapability
	}
	return s.Generate(capability, target), nil
}

// Generate returns a result shaped like the real provider response for the
// capability.
func (s *Synthetic) Generate(capability intel.Capability, target intel.Target) intel.RawResult {
	var data json.RawMessage
	switch capability {
	case intel.CapabilityWebThreatSearch:
		data = s.URLSearch(target.Domain)
	default:
		data = s.HostSearch(target.Host)
	}
	return intel.RawResult{
		Capability: capability,
		Provider:   SyntheticName,
		Data:       data,
		Synthetic:  true,
		FetchedAt:  s.now().UTC(),
	}
}

func (s *Synthetic) rng(parts ...string) *rand.Rand {
	h := murmur3.New64()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	s.mu.Lock()
	stream := s.seed
	if !s.fixed {
		stream = uint64(s.now().UnixNano())
	}
	s.mu.Unlock()
	return rand.New(rand.NewPCG(h.Sum64(), stream))
}

type serviceTemplate struct {
	port      int
	transport string
	product   string
	version   string
}

var serviceCatalog = []serviceTemplate{
	{22, "tcp", "OpenSSH", "8.9p1"},
	{80, "tcp", "nginx", "1.18.0"},
	{443, "tcp", "nginx", "1.18.0"},
	{21, "tcp", "vsftpd", "3.0.3"},
	{25, "tcp", "Postfix smtpd", ""},
	{3306, "tcp", "MySQL", "8.0.28"},
	{5432, "tcp", "PostgreSQL", "13.4"},
	{8080, "tcp", "Apache Tomcat", "9.0.58"},
	{8443, "tcp", "Apache httpd", "2.4.49"},
	{3389, "tcp", "Remote Desktop Protocol", ""},
	{53, "udp", "dnsmasq", "2.85"},
	{6379, "tcp", "Redis key-value store", "6.0.9"},
}

var vulnCatalog = map[string][]struct {
	id      string
	cvss    float64
	summary string
}{
	"nginx":         {{"CVE-2021-23017", 7.7, "Off-by-one in the resolver allows memory corruption."}, {"CVE-2019-20372", 5.3, "HTTP request smuggling with error_page."}},
	"OpenSSH":       {{"CVE-2023-38408", 9.8, "PKCS#11 forwarding allows remote code execution."}, {"CVE-2021-41617", 7.0, "Privilege escalation with supplemental groups."}},
	"Apache httpd":  {{"CVE-2021-41773", 7.5, "Path traversal and file disclosure."}, {"CVE-2021-42013", 9.8, "Path traversal leading to remote code execution."}},
	"Apache Tomcat": {{"CVE-2022-22965", 9.8, "Data binding allows remote code execution."}},
	"MySQL":         {{"CVE-2022-21417", 4.9, "InnoDB denial of service."}},
	"vsftpd":        {{"CVE-2021-3618", 7.4, "ALPACA cross-protocol attack."}},
}

// HostSearch returns a Shodan host search document for the host.
func (s *Synthetic) HostSearch(host string) json.RawMessage {
	return mustMarshal(s.hostSearch(host))
}

func (s *Synthetic) hostSearch(host string) intel.HostSearchResponse {
	r := s.rng(string(intel.CapabilityHostPortExposure), host)
	now := s.now().UTC()

	picks := r.Perm(len(serviceCatalog))[:2+r.IntN(4)]
	slices.Sort(picks)

	ip := fmt.Sprintf("203.0.113.%d", 1+r.IntN(254))
	matches := make([]intel.HostMatch, 0, len(picks))
	for _, i := range picks {
		svc := serviceCatalog[i]
		m := intel.HostMatch{
			IPStr:     ip,
			Port:      svc.port,
			Transport: svc.transport,
			Product:   svc.product,
			Version:   svc.version,
			Hostnames: []string{host},
			Org:       "Example Hosting",
			Timestamp: now.Add(-time.Duration(r.IntN(72*60)) * time.Minute).Format("2006-01-02T15:04:05.000000"),
		}
		for _, v := range vulnCatalog[svc.product] {
			if r.IntN(2) == 0 {
				continue
			}
			if m.Vulns == nil {
				m.Vulns = make(map[string]intel.Vulnerability)
			}
			m.Vulns[v.id] = intel.Vulnerability{CVSS: v.cvss, Summary: v.summary}
		}
		matches = append(matches, m)
	}

	return intel.HostSearchResponse{Matches: matches, Total: len(matches)}
}

// HostCount returns a Shodan host count document.
func (s *Synthetic) HostCount() json.RawMessage {
	r := s.rng("host_count")
	return mustMarshal(intel.HostCountResponse{
		Matches: []intel.HostMatch{},
		Total:   50000 + r.IntN(1950000),
	})
}

var crawledPorts = []int{
	7, 11, 13, 17, 19, 21, 22, 23, 25, 26, 37, 49, 53, 69, 70, 79, 80, 81, 82, 83, 84, 88,
	102, 110, 111, 113, 119, 123, 135, 137, 139, 143, 161, 179, 389, 443, 445, 465, 500,
	502, 503, 515, 587, 623, 631, 636, 873, 902, 993, 995, 1080, 1194, 1433, 1521, 1723,
	1883, 1900, 2049, 2082, 2083, 2181, 2222, 2375, 2376, 3000, 3306, 3389, 5000, 5060,
	5432, 5601, 5900, 5985, 6379, 6443, 7001, 8000, 8080, 8081, 8443, 8888, 9000, 9090,
	9200, 9443, 10000, 11211, 27017,
}

// Ports returns a Shodan port list document.
func (s *Synthetic) Ports() json.RawMessage {
	r := s.rng("ports")
	n := 20 + r.IntN(20)
	picks := r.Perm(len(crawledPorts))[:n]
	ports := make([]int, 0, n)
	for _, i := range picks {
		ports = append(ports, crawledPorts[i])
	}
	slices.Sort(ports)
	return mustMarshal(ports)
}

var (
	pageServers = []string{"nginx", "cloudflare", "Apache", "Microsoft-IIS/10.0", "AmazonS3", "gws"}
	countries   = []string{"US", "DE", "NL", "FR", "GB", "SG", "JP"}
	asnNames    = []string{"CLOUDFLARENET, US", "AMAZON-02, US", "HETZNER-AS, DE", "OVH, FR", "DIGITALOCEAN-ASN, US"}
	pagePaths   = []string{"/", "/login", "/index.php", "/wp-admin/", "/account/verify", "/download"}
)

// URLSearch returns a urlscan.io search document for the domain.
func (s *Synthetic) URLSearch(domain string) json.RawMessage {
	return mustMarshal(s.urlSearch(domain))
}

func (s *Synthetic) urlSearch(domain string) intel.URLSearchResponse {
	r := s.rng(string(intel.CapabilityWebThreatSearch), domain)
	now := s.now().UTC()

	n := 3 + r.IntN(6)
	results := make([]intel.URLResult, 0, n)
	for i := range n {
		id := fmt.Sprintf("%08x-%04x-4%03x-a%03x-%012x", r.Uint32(), r.IntN(1<<16), r.IntN(1<<12), r.IntN(1<<12), r.Uint64()&0xffffffffffff)
		pageURL := "https://" + domain + pagePaths[r.IntN(len(pagePaths))]

		malicious := 0
		if r.IntN(4) == 0 {
			malicious = 1 + r.IntN(3)
		}
		score := 0
		if malicious > 0 {
			score = 50 + r.IntN(51)
		}

		results = append(results, intel.URLResult{
			ID: id,
			Task: intel.URLTask{
				Time:       now.Add(-time.Duration(i*90+r.IntN(90)) * time.Minute).Format(time.RFC3339),
				URL:        pageURL,
				Domain:     domain,
				Visibility: "public",
			},
			Page: intel.URLPage{
				URL:     pageURL,
				Domain:  domain,
				IP:      fmt.Sprintf("198.51.100.%d", 1+r.IntN(254)),
				Country: countries[r.IntN(len(countries))],
				Server:  pageServers[r.IntN(len(pageServers))],
				ASNName: asnNames[r.IntN(len(asnNames))],
			},
			Stats: intel.URLStats{
				Malicious:  malicious,
				UniqIPs:    1 + r.IntN(12),
				DataLength: 10000 + r.IntN(2000000),
			},
			Verdicts: intel.URLVerdicts{Overall: intel.URLVerdict{Score: score, Malicious: malicious > 0}},
			Result:   "https://urlscan.io/api/v1/result/" + id + "/",
		})
	}

	return intel.URLSearchResponse{Results: results, Total: len(results)}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal synthetic document: %v", err))
	}
	return b
}
