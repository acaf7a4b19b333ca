// Package dataloom is the probe fabric: canvas, WebGL, audio, platform,
// screen and performance fingerprint collectors, plus the live mouse
// trajectory tracker and analyzer. Every probe honors the same fault
// contract: a well-formed value or one of the sentinel strings below,
// never a panic or error escaping to the caller.
package dataloom

// SentinelError is one of the closed-set error strings probes return in
// lieu of throwing. The risk scorer pattern-matches these verbatim, so the
// string values are part of the wire contract, not an implementation
// detail.
type SentinelError string

const (
	ErrCanvas           SentinelError = "err_canvas"
	ErrNoWebGL          SentinelError = "err_no_webgl"
	ErrWebGL            SentinelError = "err_webgl"
	ErrNoOfflineContext SentinelError = "err_no_offline_context"
	ErrAudioRender      SentinelError = "err_audio_render"
	ErrAudioContext     SentinelError = "err_audio_context"
	ErrPlatform         SentinelError = "err_platform"
	ErrScreen           SentinelError = "err_screen"
	ErrNoPerfAPI        SentinelError = "err_no_perf_api"
	ErrNoTiming         SentinelError = "err_no_timing"
	ErrPerf             SentinelError = "err_perf"
)

// sentinels is the closed set used by IsSentinel and by the risk engine's
// fingerprint-error count.
var sentinels = map[SentinelError]struct{}{
	ErrCanvas:           {},
	ErrNoWebGL:          {},
	ErrWebGL:            {},
	ErrNoOfflineContext: {},
	ErrAudioRender:      {},
	ErrAudioContext:     {},
	ErrPlatform:         {},
	ErrScreen:           {},
	ErrNoPerfAPI:        {},
	ErrNoTiming:         {},
	ErrPerf:             {},
}

// IsSentinel reports whether s names one of the closed-set probe errors.
func IsSentinel(s string) bool {
	_, ok := sentinels[SentinelError(s)]
	return ok
}

// Result is a probe's outcome: exactly one of Value or Err is set, never
// both. The zero Result is invalid and should never be returned by a probe.
type Result struct {
	Value interface{}
	Err   SentinelError
}

// Ok wraps a successful probe value.
func Ok(v interface{}) Result { return Result{Value: v} }

// Fail wraps a sentinel error.
func Fail(e SentinelError) Result { return Result{Err: e} }

// IsError reports whether the result is a sentinel error.
func (r Result) IsError() bool { return r.Err != "" }

// PlatformResult is the Platform probe's success value.
type PlatformResult struct {
	Platform    string `json:"platform"`
	Plugins     string `json:"plugins"`
	TouchPoints int    `json:"touchPoints"`
	ClickCount  int    `json:"clickCount"`
}

// ScreenResult is the Screen probe's success value.
type ScreenResult struct {
	Screen   string `json:"screen"`
	Language string `json:"language"`
}

// PerformanceResult is the Performance probe's success value.
type PerformanceResult struct {
	Type         string `json:"type"`
	TransferSize int64  `json:"transferSize"`
	LoadTime     float64 `json:"loadTime"`
}

// WebGLResult is the WebGL probe's success value.
type WebGLResult struct {
	Vendor   string `json:"vendor"`
	Renderer string `json:"renderer"`
}
