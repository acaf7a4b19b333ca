// Package policy builds the immutable collector list and weight table the
// rest of the module signs against, derived once at init from a
// capability snapshot.
package policy

import "hivehydeanti/internal/dataloom"

// Per-collector risk weights. These are part of the scoring contract with
// the server, not tunables.
const (
	WeightCanvas      = 15.0
	WeightWebGL       = 15.0
	WeightAudio       = 20.0
	WeightPerformance = 5.0
	WeightPlugins     = 5.0
	WeightTrajectory  = 25.0
	WeightAnomalyScan = 50.0
)

// Policy is the immutable output of Build. Collectors is ordered:
// always-included probes first, then conditionally-included ones.
type Policy struct {
	Collectors []string
	Weights    map[string]float64
}

// Build derives a Policy deterministically from a capability snapshot. The
// same snapshot always yields the same Policy; there is no hidden state.
func Build(caps dataloom.Capabilities) Policy {
	collectors := []string{"platform", "screen", "language", "plugins", "mouse_trajectory", "anomaly_scan"}
	weights := map[string]float64{
		"plugins":          WeightPlugins,
		"mouse_trajectory": WeightTrajectory,
		"anomaly_scan":     WeightAnomalyScan,
	}

	if caps.HasCanvas2D {
		collectors = append(collectors, "canvas")
		weights["canvas"] = WeightCanvas
	}
	if caps.HasWebGL {
		collectors = append(collectors, "webgl")
		weights["webgl"] = WeightWebGL
	}
	if caps.HasOfflineAudio && !caps.IsIOSFamily {
		collectors = append(collectors, "audio")
		weights["audio"] = WeightAudio
	}
	if caps.HasPerfTiming {
		collectors = append(collectors, "performance")
		weights["performance"] = WeightPerformance
	}

	return Policy{Collectors: collectors, Weights: weights}
}

// Weight returns the configured weight for a collector, or 0 if the
// collector carries no weight (e.g. platform, screen, language are always
// present but unweighted in the risk formula).
func (p Policy) Weight(name string) float64 {
	return p.Weights[name]
}

// Includes reports whether the policy dispatches the named collector.
func (p Policy) Includes(name string) bool {
	for _, c := range p.Collectors {
		if c == name {
			return true
		}
	}
	return false
}
