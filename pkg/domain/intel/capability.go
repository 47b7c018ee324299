// Package intel defines the contract between scan orchestration and the
// intelligence providers that answer host and web queries.
package intel

// Capability is a logical kind of intelligence query, independent of the
// provider that answers it.
type Capability string

const (
	// CapabilityHostPortExposure asks which ports and services a host exposes.
	CapabilityHostPortExposure Capability = "host_port_exposure"
	// CapabilityWebThreatSearch asks what public scans know about a web domain.
	CapabilityWebThreatSearch Capability = "web_threat_search"
)

// AllCapabilities returns every known capability.
func AllCapabilities() []Capability {
	return []Capability{CapabilityHostPortExposure, CapabilityWebThreatSearch}
}

// String returns the string representation.
func (c Capability) String() string {
	return string(c)
}

// IsValid reports whether the capability is known.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityHostPortExposure, CapabilityWebThreatSearch:
		return true
	}
	return false
}

// Label returns a short human-readable name.
func (c Capability) Label() string {
	switch c {
	case CapabilityHostPortExposure:
		return "Host exposure"
	case CapabilityWebThreatSearch:
		return "Web threat search"
	default:
		return string(c)
	}
}
