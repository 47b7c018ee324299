package scan

// DefaultTotalSteps is used for scan types the estimator does not recognize.
const DefaultTotalSteps = 8

// Estimate returns the fixed number of progress steps a run of the given
// type and config will report. It is pure and always positive.
func Estimate(scanType Type, config map[string]string) int {
	switch scanType {
	case TypeQuick:
		return 8
	case TypeFull:
		return 15
	case TypePorts:
		if config[ConfigPortRange] == PortRangeFull {
			return 20
		}
		return 12
	case TypeWeb:
		if config[ConfigScanTypes] == ScanTypesAll {
			return 18
		}
		return 10
	case TypeMalware:
		if config[ConfigEngineType] == EngineDeep {
			return 15
		}
		return 8
	default:
		return DefaultTotalSteps
	}
}

// EstimateRequest is Estimate applied to a request.
func EstimateRequest(r Request) int {
	return Estimate(r.scanType, r.config)
}
