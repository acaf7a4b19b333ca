// Package anomalyscan runs the fixed bundle of automation-detection
// probes. It shares dataloom's Environment abstraction but lives in its
// own package because the bundle is always dispatched together as one
// unit, never looked up probe-by-probe from a policy collector list the
// way the dataloom probes are.
package anomalyscan

import (
	"context"

	"golang.org/x/sync/errgroup"

	"hivehydeanti/internal/dataloom"
	"hivehydeanti/internal/telemetry"
)

const webdriverScript = `(function() {
  try { return !!navigator.webdriver; } catch (e) { return false; }
})()`

const webdriverTamperedScript = `(function() {
  try {
    var d = Object.getOwnPropertyDescriptor(navigator, 'webdriver');
    return !!(d && d.configurable);
  } catch (e) { return false; }
})()`

const headlessChromeScript = `(function() {
  try {
    if (!window.chrome || !window.chrome.runtime) return false;
    var csi = window.chrome.csi;
    return typeof csi !== 'function';
  } catch (e) { return false; }
})()`

const toStringTamperedScript = `(function() {
  try {
    var nativeStr = Function.prototype.toString.call(Array.prototype.push);
    if (nativeStr.indexOf('native code') === -1) return true;
    var fn = function probe() {};
    var fnStr = Function.prototype.toString.call(fn);
    return fnStr.indexOf('probe') === -1;
  } catch (e) { return true; }
})()`

const stackAnomalyScript = `(function() {
  try {
    var stack;
    try { throw new Error('probe'); } catch (e) { stack = e.stack; }
    if (!stack) return 'no_stack';
    var lower = stack.toLowerCase();
    if (lower.indexOf('puppeteer') !== -1 || lower.indexOf('webdriver') !== -1 || lower.indexOf('phantom') !== -1) {
      return 'contains_keyword';
    }
    var frames = stack.split('\n').length;
    if (frames < 3) return 'stack_too_short';
    return 'false';
  } catch (e) {
    return 'no_stack';
  }
})()`

const permissionsDeniedScript = `(function() {
  return new Promise(function(resolve) {
    try {
      if (!navigator.permissions || !navigator.permissions.query) {
        resolve('no_permissions_api');
        return;
      }
      navigator.permissions.query({ name: 'notifications' }).then(function(status) {
        try {
          var legacy = (window.Notification && Notification.permission) || 'default';
          resolve(String(status.state === 'denied' && legacy === 'denied'));
        } catch (e) {
          resolve('permissions_error');
        }
      }).catch(function() { resolve('permissions_error'); });
    } catch (e) {
      resolve('permissions_error');
    }
  });
})()`

// Findings is the bundle's result shape, keyed exactly as the risk engine
// consumes it.
type Findings struct {
	Webdriver         bool   `json:"webdriver"`
	WebdriverTampered bool   `json:"webdriver_tampered"`
	HeadlessChrome    bool   `json:"headless_chrome"`
	ToStringTampered  bool   `json:"tostring_tampered"`
	StackAnomaly      string `json:"stack_anomaly"`
	PermissionsDenied string `json:"permissions_denied"`
}

// Scan dispatches all six probes concurrently against env and waits for
// every one, regardless of individual failure: a probe that cannot run
// degrades to its documented inert value rather than failing the whole
// scan.
func Scan(ctx context.Context, env dataloom.Environment) Findings {
	var f Findings

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		f.Webdriver = evalBool(gctx, env, "webdriver", webdriverScript, false)
		return nil
	})
	g.Go(func() error {
		f.WebdriverTampered = evalBool(gctx, env, "webdriver_tampered", webdriverTamperedScript, false)
		return nil
	})
	g.Go(func() error {
		f.HeadlessChrome = evalBool(gctx, env, "headless_chrome", headlessChromeScript, false)
		return nil
	})
	g.Go(func() error {
		f.ToStringTampered = evalBool(gctx, env, "tostring_tampered", toStringTamperedScript, false)
		return nil
	})
	g.Go(func() error {
		f.StackAnomaly = evalString(gctx, env, "stack_anomaly", stackAnomalyScript, "no_stack")
		return nil
	})
	g.Go(func() error {
		f.PermissionsDenied = evalString(gctx, env, "permissions_denied", permissionsDeniedScript, "no_permissions_api")
		return nil
	})

	_ = g.Wait()
	return f
}

func evalBool(ctx context.Context, env dataloom.Environment, probe, script string, fallback bool) (result bool) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.RecoverProbePanic("ANOMALY_SCAN", probe, rec)
			result = fallback
		}
	}()
	v, err := env.Eval(ctx, script)
	if err != nil {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}

func evalString(ctx context.Context, env dataloom.Environment, probe, script string, fallback string) (result string) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.RecoverProbePanic("ANOMALY_SCAN", probe, rec)
			result = fallback
		}
	}()
	v, err := env.Eval(ctx, script)
	if err != nil {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	return s
}

// IsAnomalous reports whether any finding would push the risk score: used
// by callers that want a quick boolean gate before full scoring.
func (f Findings) IsAnomalous() bool {
	return f.Webdriver || f.WebdriverTampered || f.ToStringTampered ||
		(f.StackAnomaly != "false" && f.StackAnomaly != "") ||
		f.PermissionsDenied == "true"
}
