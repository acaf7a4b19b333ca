// Package roddriver drives a real headless Chrome over the Chrome
// DevTools Protocol via go-rod/rod and implements dataloom.Environment
// against it.
package roddriver

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"hivehydeanti/internal/dataloom"
)

const capabilitiesScript = `(function() {
  return {
    hasScreen: typeof screen !== 'undefined',
    hasNavigator: typeof navigator !== 'undefined',
    hasCanvas2D: (function() {
      try {
        return !!document.createElement('canvas').getContext('2d');
      } catch (e) { return false; }
    })(),
    hasOfflineAudio: !!(window.OfflineAudioContext || window.webkitOfflineAudioContext),
    hasWebGL: (function() {
      try {
        var c = document.createElement('canvas');
        return !!(c.getContext('webgl') || c.getContext('experimental-webgl'));
      } catch (e) { return false; }
    })(),
    hasPerfTiming: !!(window.performance && (performance.getEntriesByType || performance.timing)),
    hasDeviceMotion: 'DeviceMotionEvent' in window,
    isIOSFamily: /iPad|iPhone|iPod/.test(navigator.platform || navigator.userAgent || '')
  };
})()`

// Driver is a dataloom.Environment backed by a single connected browser
// page. It is not safe for concurrent Eval calls against the same page;
// callers that need concurrent probes should give each its own page via
// NewPage.
type Driver struct {
	browser *rod.Browser
	page    *rod.Page
}

// New launches (or attaches to, when controlURL is non-empty) a headless
// Chrome instance and opens a blank page to evaluate probes against.
func New(ctx context.Context, controlURL string) (*Driver, error) {
	if controlURL == "" {
		u, err := launcher.New().Headless(true).Launch()
		if err != nil {
			return nil, fmt.Errorf("roddriver: launch: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("roddriver: connect: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("roddriver: open page: %w", err)
	}

	return &Driver{browser: browser, page: page}, nil
}

// Close releases the underlying browser.
func (d *Driver) Close() error {
	return d.browser.Close()
}

// NewPage opens a fresh blank page against the same browser, for callers
// that want to run probes concurrently.
func (d *Driver) NewPage(ctx context.Context) (*Driver, error) {
	page, err := d.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("roddriver: open page: %w", err)
	}
	return &Driver{browser: d.browser, page: page}, nil
}

// Detect runs the capability-detection script once and parses its
// booleans into a dataloom.Capabilities snapshot.
func (d *Driver) Detect(ctx context.Context) (dataloom.Capabilities, error) {
	v, err := d.Eval(ctx, capabilitiesScript)
	if err != nil {
		return dataloom.Capabilities{}, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return dataloom.Capabilities{}, fmt.Errorf("roddriver: unexpected capabilities shape")
	}
	return dataloom.Capabilities{
		HasScreen:       asBool(m["hasScreen"]),
		HasNavigator:    asBool(m["hasNavigator"]),
		HasCanvas2D:     asBool(m["hasCanvas2D"]),
		HasOfflineAudio: asBool(m["hasOfflineAudio"]),
		HasWebGL:        asBool(m["hasWebGL"]),
		HasPerfTiming:   asBool(m["hasPerfTiming"]),
		HasDeviceMotion: asBool(m["hasDeviceMotion"]),
		IsIOSFamily:     asBool(m["isIOSFamily"]),
	}, nil
}

// Eval runs script on the page. Scripts that return a Promise (the audio
// probe) are awaited before the value is unwrapped.
func (d *Driver) Eval(ctx context.Context, script string) (interface{}, error) {
	res, err := d.page.Context(ctx).Evaluate(rod.Eval(script).ByPromise())
	if err != nil {
		return nil, fmt.Errorf("roddriver: eval: %w", err)
	}
	return res.Value.Val(), nil
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}
