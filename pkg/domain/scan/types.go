// Package scan holds the value types of a scan run: the request, the
// progress events it produces and the outcome it resolves to.
package scan

import (
	"maps"
	"slices"
	"strings"

	"github.com/kaliumosint/api/pkg/domain/intel"
	"github.com/kaliumosint/api/pkg/domain/shared"
)

// Type is the kind of scan a caller asks for.
type Type string

const (
	TypeQuick   Type = "quick"
	TypeFull    Type = "full"
	TypePorts   Type = "ports"
	TypeWeb     Type = "web"
	TypeMalware Type = "malware"
)

// AllTypes returns every recognized scan type.
func AllTypes() []Type {
	return []Type{TypeQuick, TypeFull, TypePorts, TypeWeb, TypeMalware}
}

// IsKnown reports whether the type is one of the recognized scan types.
// Unknown types are still runnable; they get the minimal pipeline.
func (t Type) IsKnown() bool {
	return slices.Contains(AllTypes(), t)
}

// String returns the string representation.
func (t Type) String() string {
	return string(t)
}

// Recognized configuration keys and their values.
const (
	ConfigPortRange  = "portRange"
	ConfigScanTypes  = "scanTypes"
	ConfigEngineType = "engineType"

	PortRangeCommon   = "common"
	PortRangeExtended = "extended"
	PortRangeFull     = "full"

	ScanTypesAll = "all"

	EngineStandard = "standard"
	EngineDeep     = "deep"
)

// allowedConfigValues lists keys whose values are restricted. Keys not in
// this map are accepted with any value.
var allowedConfigValues = map[string][]string{
	ConfigPortRange:  {PortRangeCommon, PortRangeExtended, PortRangeFull},
	ConfigEngineType: {EngineStandard, EngineDeep},
}

// PortRanges returns the accepted portRange values.
func PortRanges() []string {
	return slices.Clone(allowedConfigValues[ConfigPortRange])
}

// EngineTypes returns the accepted engineType values.
func EngineTypes() []string {
	return slices.Clone(allowedConfigValues[ConfigEngineType])
}

// Request is an immutable scan request. Build it with NewRequest.
type Request struct {
	scanType Type
	target   string
	config   map[string]string
}

// NewRequest creates a request. The config map is copied.
func NewRequest(scanType Type, target string, config map[string]string) Request {
	return Request{
		scanType: scanType,
		target:   target,
		config:   maps.Clone(config),
	}
}

// Type returns the scan type.
func (r Request) Type() Type { return r.scanType }

// Target returns the target as given by the caller.
func (r Request) Target() string { return r.target }

// ConfigValue returns a config value and whether it was set.
func (r Request) ConfigValue(key string) (string, bool) {
	v, ok := r.config[key]
	return v, ok
}

// Config returns a copy of the config map.
func (r Request) Config() map[string]string {
	return maps.Clone(r.config)
}

// Validate checks the request shape. Only a target that is empty after
// normalization or a recognized config key with an out-of-set value make a
// request invalid.
func (r Request) Validate() error {
	if _, err := intel.ParseTarget(r.target); err != nil {
		return invalid("target", "target is required")
	}
	for key, allowed := range allowedConfigValues {
		v, ok := r.config[key]
		if !ok {
			continue
		}
		if !slices.Contains(allowed, v) {
			return invalid(key, "must be one of "+strings.Join(allowed, ", "))
		}
	}
	return nil
}

func invalid(field, msg string) error {
	return shared.NewFieldError("INVALID_REQUEST", field, msg, ErrInvalidRequest)
}
