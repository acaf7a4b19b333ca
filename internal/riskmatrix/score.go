package riskmatrix

import (
	"hivehydeanti/internal/anomalyscan"
	"hivehydeanti/internal/dataloom"
)

// ScoreInput bundles everything the risk formula needs: the anomaly-scan
// findings, the mouse trajectory analysis, the click/touch counts from
// the platform probe, the performance probe result and the full
// fingerprint result set (for the sentinel-error count).
type ScoreInput struct {
	Anomaly          anomalyscan.Findings
	Trajectory       dataloom.TrajectoryResult
	HasTrajectory    bool
	TouchPoints      int
	ClickCount       int
	PerformanceType  string
	PerformanceSize  int64
	HasPerformance   bool
	FingerprintProbe map[string]dataloom.Result
}

// Score computes the integer risk score in [0, 100], given the policy
// weights for anomaly_scan and mouse_trajectory.
func Score(in ScoreInput, anomalyWeight, trajectoryWeight float64) int {
	score := 0.0

	// Anomaly scan contribution.
	W := anomalyWeight
	if in.Anomaly.Webdriver {
		score += W
	}
	if in.Anomaly.WebdriverTampered {
		score += 1.2 * W
	}
	if in.Anomaly.ToStringTampered {
		score += 1.1 * W
	}
	if in.Anomaly.StackAnomaly != "" && in.Anomaly.StackAnomaly != "false" {
		score += 0.7 * W
	}
	if in.Anomaly.PermissionsDenied == "true" {
		score += 5
	}

	// Trajectory contribution.
	T := trajectoryWeight
	points := in.Trajectory.Points
	analysis := in.Trajectory.Analysis
	switch {
	case !in.HasTrajectory || len(points) == 0:
		score += 3
	case len(points) < 5:
		score += 2
	case analysis.IsStraightLine:
		if in.TouchPoints > 0 {
			score += T * 0.1
		} else {
			score += T * 0.7
		}
	case analysis.RegularityScore > 0.5:
		score += T * 0.5
	}

	// Clicks.
	if in.ClickCount == 0 {
		score += 1
	}
	if in.ClickCount > 5 && len(points) > 20 {
		score -= 5
	}

	// Performance: cached navigation is a human-ish signal.
	if in.HasPerformance && in.PerformanceSize == 0 && in.PerformanceType == "navigate" {
		score -= 5
	}

	// Fingerprint sentinel-error count.
	errCount := 0
	for _, r := range in.FingerprintProbe {
		if r.IsError() && dataloom.IsSentinel(string(r.Err)) {
			errCount++
		}
	}
	if errCount > 2 {
		score += 2 * float64(errCount)
	}

	rounded := int(score + 0.5)
	if score < 0 {
		rounded = -int(-score + 0.5)
	}
	if rounded < 0 {
		rounded = 0
	}
	if rounded > 100 {
		rounded = 100
	}
	return rounded
}
