// Package staticdriver implements dataloom.Environment without any browser
// attached. It is the degraded path: Eval never runs a script, so every
// probe, platform, screen and language included, sees its sentinel, as if
// running in a capability-starved environment. The only process-level
// fact it offers is Platform, a best-effort platform string from the Go
// runtime that is not wired into any probe. It exists so the signing
// pipeline always has something to wire in (during tests, or when no CDP target is reachable) without
// special-casing "no browser" throughout the rest of the module.
package staticdriver

import (
	"context"
	"runtime"
	"strings"

	"hivehydeanti/internal/dataloom"
)

// Driver is a no-op dataloom.Environment. The zero value is ready to use.
type Driver struct{}

// New returns a ready Driver.
func New() *Driver { return &Driver{} }

// Detect reports every capability as absent; a static environment has no
// DOM to feature-detect.
func (d *Driver) Detect(ctx context.Context) (dataloom.Capabilities, error) {
	return dataloom.Capabilities{}, nil
}

// Eval never runs script (there is nothing to run it in) and always
// returns an error so callers fall back to their probe-specific sentinel.
func (d *Driver) Eval(ctx context.Context, script string) (interface{}, error) {
	return nil, errNoEnvironment
}

var errNoEnvironment = staticError("staticdriver: no environment attached")

type staticError string

func (e staticError) Error() string { return string(e) }

// Platform returns a best-effort platform string derived from the Go
// runtime, for callers that want a non-sentinel fallback outside the
// probe fault contract (e.g. a CLI's diagnostic output).
func Platform() string {
	return strings.ToUpper(runtime.GOOS[:1]) + runtime.GOOS[1:]
}
