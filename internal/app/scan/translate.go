package scan

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kaliumosint/api/pkg/domain/intel"
)

// FactKind classifies a notable finding extracted from a provider response.
type FactKind string

const (
	FactPort          FactKind = "port"
	FactService       FactKind = "service"
	FactVulnerability FactKind = "vulnerability"
	FactThreat        FactKind = "threat"
	FactHosting       FactKind = "hosting"
)

// HighSeverityCVSS is the lowest CVSS score reported as a finding.
const HighSeverityCVSS = 7.0

// Fact is one deduplicated finding. Each fact becomes one progress event.
type Fact struct {
	Kind    FactKind `json:"kind"`
	Key     string   `json:"key"`
	Status  string   `json:"status"`
	Details string   `json:"details"`
}

// Translate extracts the notable facts of a provider response in the order
// the provider returned them. It is a pure function of its input.
func Translate(capability intel.Capability, data json.RawMessage) ([]Fact, error) {
	switch capability {
	case intel.CapabilityHostPortExposure:
		return translateHostSearch(data)
	case intel.CapabilityWebThreatSearch:
		return translateURLSearch(data)
	default:
		return nil, fmt.Errorf("%w: %s", intel.ErrUnsupportedCapability, capability)
	}
}

type factSet struct {
	seen  map[string]struct{}
	facts []Fact
}

func (s *factSet) add(f Fact) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[f.Key]; ok {
		return
	}
	s.seen[f.Key] = struct{}{}
	s.facts = append(s.facts, f)
}

func translateHostSearch(data json.RawMessage) ([]Fact, error) {
	var doc intel.HostSearchResponse
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: host search: %w", intel.ErrMalformedResponse, err)
	}

	var set factSet
	for _, m := range doc.Matches {
		if m.Port > 0 {
			transport := m.Transport
			if transport == "" {
				transport = "tcp"
			}
			set.add(Fact{
				Kind:    FactPort,
				Key:     fmt.Sprintf("port:%d/%s", m.Port, transport),
				Status:  "Port discovered",
				Details: fmt.Sprintf("%d/%s open on %s", m.Port, transport, m.IPStr),
			})
		}

		service := serviceName(m)
		if service != "" {
			set.add(Fact{
				Kind:    FactService,
				Key:     "service:" + strings.ToLower(service),
				Status:  "Service identified",
				Details: fmt.Sprintf("%s on port %d", service, m.Port),
			})
		}

		for _, v := range highSeverityVulns(m.Vulns) {
			on := service
			if on == "" {
				on = fmt.Sprintf("port %d", m.Port)
			}
			set.add(Fact{
				Kind:    FactVulnerability,
				Key:     "vuln:" + strings.ToUpper(v.id),
				Status:  "Vulnerability found",
				Details: fmt.Sprintf("%s (CVSS %.1f) affecting %s", v.id, v.cvss, on),
			})
		}
	}
	return set.facts, nil
}

func serviceName(m intel.HostMatch) string {
	if m.Product == "" {
		return ""
	}
	if m.Version == "" {
		return m.Product
	}
	return m.Product + " " + m.Version
}

type scoredVuln struct {
	id   string
	cvss float64
}

// highSeverityVulns orders by score, then id, so map iteration order never
// leaks into the event sequence.
func highSeverityVulns(vulns map[string]intel.Vulnerability) []scoredVuln {
	out := make([]scoredVuln, 0, len(vulns))
	for id, v := range vulns {
		if v.CVSS >= HighSeverityCVSS {
			out = append(out, scoredVuln{id: id, cvss: v.CVSS})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].cvss != out[j].cvss {
			return out[i].cvss > out[j].cvss
		}
		return out[i].id < out[j].id
	})
	return out
}

func translateURLSearch(data json.RawMessage) ([]Fact, error) {
	var doc intel.URLSearchResponse
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: url search: %w", intel.ErrMalformedResponse, err)
	}

	var set factSet
	for _, r := range doc.Results {
		page := r.Page.URL
		if page == "" {
			page = r.Task.URL
		}

		if r.Stats.Malicious > 0 || r.Verdicts.Overall.Malicious {
			set.add(Fact{
				Kind:    FactThreat,
				Key:     "threat:" + page,
				Status:  "Threat indicator",
				Details: fmt.Sprintf("%s flagged malicious (score %d, %d malicious requests)", page, r.Verdicts.Overall.Score, r.Stats.Malicious),
			})
		}

		if r.Page.IP != "" {
			details := fmt.Sprintf("%s served from %s", r.Page.Domain, r.Page.IP)
			if extra := joinNonEmpty(r.Page.Country, r.Page.Server); extra != "" {
				details += " (" + extra + ")"
			}
			set.add(Fact{
				Kind:    FactHosting,
				Key:     "host:" + r.Page.IP,
				Status:  "Hosting observed",
				Details: details,
			})
		}
	}
	return set.facts, nil
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

var factNouns = []struct {
	kind             FactKind
	singular, plural string
}{
	{FactPort, "open port", "open ports"},
	{FactService, "service", "services"},
	{FactVulnerability, "high-severity vulnerability", "high-severity vulnerabilities"},
	{FactThreat, "threat indicator", "threat indicators"},
	{FactHosting, "hosting observation", "hosting observations"},
}

// CountFacts renders a count per kind, e.g. "3 open ports, 1 service".
func CountFacts(facts []Fact) string {
	counts := make(map[FactKind]int, len(factNouns))
	for _, f := range facts {
		counts[f.Kind]++
	}

	var parts []string
	for _, n := range factNouns {
		switch c := counts[n.kind]; {
		case c == 1:
			parts = append(parts, "1 "+n.singular)
		case c > 1:
			parts = append(parts, fmt.Sprintf("%d %s", c, n.plural))
		}
	}
	if len(parts) == 0 {
		return "no notable findings"
	}
	return strings.Join(parts, ", ")
}
