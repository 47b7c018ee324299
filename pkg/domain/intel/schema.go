package intel

// Wire shapes of the provider responses. Only the fields the dashboard and
// the orchestrator read are modelled; both the real adapters and the
// synthetic generator produce documents that decode into these types.

// HostCountResponse is returned by Shodan /shodan/host/count.
type HostCountResponse struct {
	Matches []HostMatch      `json:"matches"`
	Total   int              `json:"total"`
	Facets  map[string][]any `json:"facets,omitempty"`
}

// HostSearchResponse is returned by Shodan /shodan/host/search.
type HostSearchResponse struct {
	Matches []HostMatch `json:"matches"`
	Total   int         `json:"total"`
}

// HostMatch is one service banner.
type HostMatch struct {
	IPStr     string                   `json:"ip_str"`
	Port      int                      `json:"port"`
	Transport string                   `json:"transport,omitempty"`
	Product   string                   `json:"product,omitempty"`
	Version   string                   `json:"version,omitempty"`
	Hostnames []string                 `json:"hostnames,omitempty"`
	Org       string                   `json:"org,omitempty"`
	Timestamp string                   `json:"timestamp,omitempty"`
	Ports     []int                    `json:"ports,omitempty"`
	Vulns     map[string]Vulnerability `json:"vulns,omitempty"`
}

// Vulnerability is a CVE attached to a banner.
type Vulnerability struct {
	CVSS     float64 `json:"cvss"`
	Summary  string  `json:"summary,omitempty"`
	Verified bool    `json:"verified"`
}

// URLSearchResponse is returned by urlscan.io /api/v1/search/.
type URLSearchResponse struct {
	Results []URLResult `json:"results"`
	Total   int         `json:"total"`
	HasMore bool        `json:"has_more"`
}

// URLResult is one public scan of a page.
type URLResult struct {
	ID       string      `json:"_id"`
	Task     URLTask     `json:"task"`
	Page     URLPage     `json:"page"`
	Stats    URLStats    `json:"stats"`
	Verdicts URLVerdicts `json:"verdicts"`
	Result   string      `json:"result,omitempty"`
}

// URLTask describes when and how the scan was made.
type URLTask struct {
	Time       string `json:"time"`
	URL        string `json:"url"`
	Domain     string `json:"domain"`
	Visibility string `json:"visibility,omitempty"`
}

// URLPage describes the final page that was loaded.
type URLPage struct {
	URL     string `json:"url"`
	Domain  string `json:"domain"`
	IP      string `json:"ip,omitempty"`
	Country string `json:"country,omitempty"`
	Server  string `json:"server,omitempty"`
	ASNName string `json:"asnname,omitempty"`
}

// URLStats holds request counters for the scan.
type URLStats struct {
	Malicious  int `json:"malicious"`
	UniqIPs    int `json:"uniqIPs"`
	DataLength int `json:"dataLength,omitempty"`
}

// URLVerdicts holds the aggregated verdict.
type URLVerdicts struct {
	Overall URLVerdict `json:"overall"`
}

// URLVerdict is a scored classification.
type URLVerdict struct {
	Score     int  `json:"score"`
	Malicious bool `json:"malicious"`
}

// URLSubmission is the body posted to /api/v1/scan/.
type URLSubmission struct {
	URL        string `json:"url"`
	Visibility string `json:"visibility"`
}
