package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name     string
		scanType Type
		config   map[string]string
		want     int
	}{
		{name: "quick", scanType: TypeQuick, want: 8},
		{name: "quick ignores config", scanType: TypeQuick, config: map[string]string{ConfigPortRange: PortRangeFull}, want: 8},
		{name: "full", scanType: TypeFull, want: 15},
		{name: "ports full range", scanType: TypePorts, config: map[string]string{ConfigPortRange: PortRangeFull}, want: 20},
		{name: "ports common range", scanType: TypePorts, config: map[string]string{ConfigPortRange: PortRangeCommon}, want: 12},
		{name: "ports extended range", scanType: TypePorts, config: map[string]string{ConfigPortRange: PortRangeExtended}, want: 12},
		{name: "ports no config", scanType: TypePorts, want: 12},
		{name: "web all", scanType: TypeWeb, config: map[string]string{ConfigScanTypes: ScanTypesAll}, want: 18},
		{name: "web subset", scanType: TypeWeb, config: map[string]string{ConfigScanTypes: "subset"}, want: 10},
		{name: "web no config", scanType: TypeWeb, want: 10},
		{name: "malware deep", scanType: TypeMalware, config: map[string]string{ConfigEngineType: EngineDeep}, want: 15},
		{name: "malware standard", scanType: TypeMalware, config: map[string]string{ConfigEngineType: EngineStandard}, want: 8},
		{name: "malware no config", scanType: TypeMalware, want: 8},
		{name: "empty type", scanType: "", want: DefaultTotalSteps},
		{name: "unknown type", scanType: "osint", config: map[string]string{ConfigPortRange: PortRangeFull}, want: DefaultTotalSteps},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Estimate(tt.scanType, tt.config)
			assert.Equal(t, tt.want, got)
			assert.Positive(t, got)
		})
	}
}

func TestEstimateRequest_UsesRequestConfig(t *testing.T) {
	req := NewRequest(TypePorts, "example.com", map[string]string{ConfigPortRange: PortRangeFull})
	assert.Equal(t, 20, EstimateRequest(req))
}

func TestPercent(t *testing.T) {
	tests := []struct {
		step, total, want int
	}{
		{1, 8, 13},
		{2, 8, 25},
		{7, 8, 88},
		{8, 8, 100},
		{1, 20, 5},
		{19, 20, 95},
		{1, 3, 33},
		{2, 3, 67},
		{0, 10, 0},
		{12, 10, 100},
		{1, 0, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.step, tt.total), "step %d of %d", tt.step, tt.total)
	}
}

func TestPercent_NonDecreasing(t *testing.T) {
	for _, total := range []int{8, 10, 12, 15, 18, 20} {
		prev := 0
		for step := 1; step <= total; step++ {
			p := Percent(step, total)
			assert.GreaterOrEqual(t, p, prev)
			prev = p
		}
		assert.Equal(t, 100, prev)
	}
}
