// Package riskmatrix is the risk and signing engine: it canonicalizes
// request parameters, scores the gathered probe data, composes the fixed
// ||-delimited signing record, derives HMAC and AES material from the
// current session key, and emits the transport header bundle.
package riskmatrix

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hivehydeanti/internal/anomalyscan"
	"hivehydeanti/internal/dataloom"
	"hivehydeanti/internal/policy"
	"hivehydeanti/internal/telemetry"
)

var log = telemetry.WithComponent("RISK_MATRIX")

// ErrSigningFailed wraps any unexpected failure during gather/score/
// encrypt/sign; the adapter package cancels the outbound request on this
// error.
var ErrSigningFailed = errors.New("riskmatrix: signing failed")

// Package is the engine's output: everything the adapter needs to build
// the X-Hive-* header bundle. JSON tags match the names a host sees when
// it logs or inspects the bundle.
type Package struct {
	Signature              string `json:"signature"`
	Timestamp              int64  `json:"timestamp"`
	Nonce                  string `json:"nonce"`
	RiskScore              int    `json:"riskScore"`
	Token                  string `json:"token"`
	FingerprintJsonForSign string `json:"fingerprintJsonForSign"`
}

// Vault is the subset of sessionvault.Vault the engine depends on,
// narrowed to ease testing with a fake.
type Vault interface {
	GetCurrentKey(ctx context.Context) (string, error)
	GetCurrentToken() string
}

// Engine ties the session vault, the capability-derived policy, and the
// probe fabric together into one signing operation per protected request.
type Engine struct {
	vault  Vault
	policy policy.Policy
	env    dataloom.Environment
	mouse  *dataloom.MouseTracker
}

// New constructs an Engine. policy is the immutable output of
// policy.Build, computed once at init; env and mouse are the same
// Environment/MouseTracker instances the host wires to its pointer events.
func New(vault Vault, pol policy.Policy, env dataloom.Environment, mouse *dataloom.MouseTracker) *Engine {
	return &Engine{vault: vault, policy: pol, env: env, mouse: mouse}
}

// Sign gathers probe data, scores it, canonicalizes params, and produces
// the signed header bundle for one outbound request. Any failure
// (missing session key, a panic escaping the gather layer, serialization
// or crypto error) is wrapped in ErrSigningFailed.
func (e *Engine) Sign(ctx context.Context, method, path string, params map[string]interface{}) (pkg Package, err error) {
	start := time.Now()
	defer func() { telemetry.SigningDuration.Observe(time.Since(start).Seconds()) }()
	defer func() {
		if rec := recover(); rec != nil {
			pkg = Package{}
			err = fmt.Errorf("%w: panic: %v", ErrSigningFailed, rec)
		}
	}()

	key, err := e.vault.GetCurrentKey(ctx)
	if err != nil {
		return Package{}, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	results := dataloom.Gather(ctx, e.policy.Collectors, e.env, e.mouse)

	var anomaly anomalyscan.Findings
	if e.policy.Includes("anomaly_scan") {
		anomaly = anomalyscan.Scan(ctx, e.env)
	}

	scoreInput := buildScoreInput(results, anomaly)
	score := Score(scoreInput, e.policy.Weight("anomaly_scan"), e.policy.Weight("mouse_trajectory"))
	telemetry.RiskScoreHistogram.Observe(float64(score))

	rawFP := buildRawFingerprint(results)
	rawFPJSON := rawFP.MarshalOrdered()

	serializedParams, err := SerializeParams(method, params)
	if err != nil {
		return Package{}, fmt.Errorf("%w: serializing params: %w", ErrSigningFailed, err)
	}

	timestamp := time.Now().UnixMilli()
	nonce, err := GenerateNonce(timestamp)
	if err != nil {
		return Package{}, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	record := BuildSigningRecord(timestamp, nonce, method, path, serializedParams, score, rawFPJSON)

	signature, err := HMACHex(key, record)
	if err != nil {
		return Package{}, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	cipherFP, err := EncryptFingerprint(key, rawFPJSON)
	if err != nil {
		return Package{}, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	log.WithRiskScore(score).Debug("signed %s %s", method, path)

	return Package{
		Signature:              signature,
		Timestamp:              timestamp,
		Nonce:                  nonce,
		RiskScore:              score,
		Token:                  e.vault.GetCurrentToken(),
		FingerprintJsonForSign: cipherFP,
	}, nil
}

func buildScoreInput(results map[string]dataloom.Result, anomaly anomalyscan.Findings) ScoreInput {
	in := ScoreInput{Anomaly: anomaly, FingerprintProbe: results}

	if tr, ok := results["mouse_trajectory"]; ok && !tr.IsError() {
		if v, ok := tr.Value.(dataloom.TrajectoryResult); ok {
			in.Trajectory = v
			in.HasTrajectory = true
		}
	}

	if pf, ok := results["platform"]; ok && !pf.IsError() {
		if v, ok := pf.Value.(dataloom.PlatformResult); ok {
			in.TouchPoints = v.TouchPoints
			in.ClickCount = v.ClickCount
		}
	}

	if perf, ok := results["performance"]; ok && !perf.IsError() {
		if v, ok := perf.Value.(dataloom.PerformanceResult); ok {
			in.PerformanceType = v.Type
			in.PerformanceSize = v.TransferSize
			in.HasPerformance = true
		}
	}

	return in
}

func buildRawFingerprint(results map[string]dataloom.Result) RawFingerprint {
	fp := RawFingerprint{Platform: "N/A", Renderer: "N/A", Audio: string(dataloom.ErrNoOfflineContext)}

	if pf, ok := results["platform"]; ok && !pf.IsError() {
		if v, ok := pf.Value.(dataloom.PlatformResult); ok && v.Platform != "" {
			fp.Platform = v.Platform
		}
	}

	if wg, ok := results["webgl"]; ok && !wg.IsError() {
		if v, ok := wg.Value.(dataloom.WebGLResult); ok && v.Renderer != "" {
			fp.Renderer = v.Renderer
		}
	}

	if au, ok := results["audio"]; ok {
		if au.IsError() {
			fp.Audio = string(au.Err)
		} else if s, ok := au.Value.(string); ok {
			fp.Audio = s
		}
	}

	return fp
}
