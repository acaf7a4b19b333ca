package dataloom

import "context"

// Capabilities is the host capability snapshot, derived once by an
// Environment at init and consumed by the policy scheduler.
type Capabilities struct {
	HasScreen      bool
	HasNavigator   bool
	HasCanvas2D    bool
	HasOfflineAudio bool
	HasWebGL       bool
	HasPerfTiming  bool
	HasDeviceMotion bool
	IsIOSFamily    bool
}

// Environment is the host's window into whatever "browser" the signing
// pipeline is running against. A real implementation drives an actual
// headless Chrome over CDP (see dataloom/roddriver); a degraded
// implementation answers every DOM-dependent probe with its sentinel (see
// dataloom/staticdriver). Both satisfy the same uniform fault contract, so
// the fabric above them never needs to know which one it was handed.
type Environment interface {
	// Detect produces the capability snapshot once, at init.
	Detect(ctx context.Context) (Capabilities, error)

	// Eval runs a probe's script and returns its raw JSON-ish result
	// (string, number, bool, map, or nil). A non-nil error means the
	// environment could not run the script at all (no browser attached,
	// context canceled, CDP round-trip failure); callers translate that
	// into the probe-appropriate sentinel. The environment itself never
	// needs to know which sentinel that is.
	Eval(ctx context.Context, script string) (interface{}, error)
}
