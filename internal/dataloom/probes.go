package dataloom

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"hivehydeanti/internal/telemetry"
)

// The draw/query scripts below are embedded verbatim as the probes that
// actually run inside an attached browser (see dataloom/roddriver). Their
// literal byte sequence is part of the fingerprint: changing so much as
// a color literal changes every canvas fingerprint a client produces.
const canvasScript = `(function() {
  try {
    var canvas = document.createElement('canvas');
    canvas.width = 200;
    canvas.height = 60;
    var ctx = canvas.getContext('2d');
    if (!ctx) return 'err_canvas';
    ctx.textBaseline = 'top';
    ctx.font = '14px Arial';
    ctx.fillStyle = '#f60';
    ctx.fillRect(125, 1, 62, 20);
    ctx.fillStyle = '#069';
    ctx.fillText('HiveHyde Anti-Crawler <canvas> 1.0 @!#$', 2, 15);
    ctx.fillStyle = 'rgba(102,204,0,0.7)';
    ctx.fillText('HiveHyde Anti-Crawler <canvas> 1.0 @!#$', 4, 17);
    return canvas.toDataURL();
  } catch (e) {
    return 'err_canvas';
  }
})()`

const webglScript = `(function() {
  try {
    var canvas = document.createElement('canvas');
    var gl = canvas.getContext('webgl') || canvas.getContext('experimental-webgl');
    if (!gl) return { sentinel: 'err_no_webgl' };
    var ext = gl.getExtension('WEBGL_debug_renderer_info');
    if (ext) {
      return {
        vendor: gl.getParameter(ext.UNMASKED_VENDOR_WEBGL),
        renderer: gl.getParameter(ext.UNMASKED_RENDERER_WEBGL)
      };
    }
    return { vendor: gl.getParameter(gl.VENDOR), renderer: gl.getParameter(gl.RENDERER) };
  } catch (e) {
    return { sentinel: 'err_webgl' };
  }
})()`

const audioScript = `(function() {
  return new Promise(function(resolve) {
    try {
      var Ctor = window.OfflineAudioContext || window.webkitOfflineAudioContext;
      if (!Ctor) { resolve('err_no_offline_context'); return; }
      var ctx = new Ctor(2, 44100, 44100);
      var osc = ctx.createOscillator();
      osc.type = 'triangle';
      osc.frequency.value = 10000;
      var comp = ctx.createDynamicsCompressor();
      if (comp.threshold) comp.threshold.value = -50;
      if (comp.knee) comp.knee.value = 40;
      if (comp.ratio) comp.ratio.value = 12;
      if (comp.attack) comp.attack.value = 0;
      if (comp.release) comp.release.value = 0.25;
      try { if (comp.reduction) comp.reduction.value = -20; } catch (e) {}
      osc.connect(comp);
      comp.connect(ctx.destination);
      osc.start(0);
      ctx.startRendering().then(function(buffer) {
        try {
          var data = buffer.getChannelData(0);
          var sum = 0;
          for (var i = 4500; i < 5000; i++) { sum += Math.abs(data[i]); }
          resolve(String(sum));
        } catch (e) {
          resolve('err_audio_render');
        }
      }).catch(function() { resolve('err_audio_render'); });
    } catch (e) {
      resolve('err_audio_context');
    }
  });
})()`

const platformScript = `(function() {
  try {
    var plugins = Array.prototype.map.call(navigator.plugins || [], function(p) { return p.name; });
    return {
      platform: navigator.platform,
      plugins: plugins.join(','),
      touchPoints: navigator.maxTouchPoints || 0
    };
  } catch (e) {
    return null;
  }
})()`

const screenScript = `(function() {
  try {
    return {
      screen: screen.width + 'x' + screen.height + 'x' + screen.colorDepth,
      language: navigator.language
    };
  } catch (e) {
    return null;
  }
})()`

const performanceScript = `(function() {
  try {
    if (window.performance && typeof performance.getEntriesByType === 'function') {
      var nav = performance.getEntriesByType('navigation')[0];
      if (nav) {
        return { type: nav.type, transferSize: nav.transferSize, loadTime: nav.duration };
      }
    }
    if (window.performance && performance.timing) {
      var t = performance.timing;
      return { type: 'legacy', transferSize: -1, loadTime: t.loadEventEnd - t.navigationStart };
    }
    return null;
  } catch (e) {
    return null;
  }
})()`

const pluginsScript = `(function() {
  try {
    return Array.prototype.map.call(navigator.plugins || [], function(p) { return p.name; }).join(',');
  } catch (e) {
    return null;
  }
})()`

const languageScript = `(function() { try { return navigator.language; } catch (e) { return null; } })()`

// CanvasProbe renders the fixed fingerprint payload and returns its
// data-URL, or err_canvas if no 2D context could be obtained.
func CanvasProbe(ctx context.Context, env Environment) Result {
	v, err := env.Eval(ctx, canvasScript)
	if err != nil {
		return Fail(ErrCanvas)
	}
	s, ok := v.(string)
	if !ok {
		return Fail(ErrCanvas)
	}
	if SentinelError(s) == ErrCanvas {
		return Fail(ErrCanvas)
	}
	return Ok(s)
}

// WebGLProbe prefers the unmasked vendor/renderer extension, falling back
// to the masked pair when unavailable.
func WebGLProbe(ctx context.Context, env Environment) Result {
	v, err := env.Eval(ctx, webglScript)
	if err != nil {
		return Fail(ErrNoWebGL)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return Fail(ErrWebGL)
	}
	if sentinel, ok := m["sentinel"].(string); ok {
		if sentinel == string(ErrNoWebGL) {
			return Fail(ErrNoWebGL)
		}
		return Fail(ErrWebGL)
	}
	vendor, _ := m["vendor"].(string)
	renderer, _ := m["renderer"].(string)
	return Ok(WebGLResult{Vendor: vendor, Renderer: renderer})
}

// AudioProbe renders the fixed oscillator/compressor chain and sums the
// absolute value of channel-0 samples [4500, 5000).
func AudioProbe(ctx context.Context, env Environment) Result {
	v, err := env.Eval(ctx, audioScript)
	if err != nil {
		return Fail(ErrNoOfflineContext)
	}
	s, ok := v.(string)
	if !ok {
		return Fail(ErrAudioContext)
	}
	switch SentinelError(s) {
	case ErrNoOfflineContext, ErrAudioRender, ErrAudioContext:
		return Fail(SentinelError(s))
	}
	return Ok(s)
}

// PlatformProbe bundles navigator.platform, joined plugin names, touch
// point count and the current mouse-tracker click count.
func PlatformProbe(ctx context.Context, env Environment, mouse *MouseTracker) Result {
	v, err := env.Eval(ctx, platformScript)
	if err != nil || v == nil {
		return Fail(ErrPlatform)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return Fail(ErrPlatform)
	}
	platform, _ := m["platform"].(string)
	plugins, _ := m["plugins"].(string)
	touchPoints := asInt(m["touchPoints"])
	return Ok(PlatformResult{
		Platform:    platform,
		Plugins:     plugins,
		TouchPoints: touchPoints,
		ClickCount:  mouse.ClickCount(),
	})
}

// ScreenProbe returns "WxHxD" plus the active navigator language.
func ScreenProbe(ctx context.Context, env Environment) Result {
	v, err := env.Eval(ctx, screenScript)
	if err != nil || v == nil {
		return Fail(ErrScreen)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return Fail(ErrScreen)
	}
	screen, _ := m["screen"].(string)
	language, _ := m["language"].(string)
	return Ok(ScreenResult{Screen: screen, Language: language})
}

// PerformanceProbe prefers the modern navigation-timing entry, falling
// back to the legacy Navigation Timing API.
func PerformanceProbe(ctx context.Context, env Environment) Result {
	v, err := env.Eval(ctx, performanceScript)
	if err != nil {
		return Fail(ErrNoPerfAPI)
	}
	if v == nil {
		return Fail(ErrNoTiming)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return Fail(ErrPerf)
	}
	t, _ := m["type"].(string)
	return Ok(PerformanceResult{
		Type:         t,
		TransferSize: int64(asInt(m["transferSize"])),
		LoadTime:     asFloat(m["loadTime"]),
	})
}

// PluginsProbe returns the comma-joined plugin name list alone; it is its
// own policy collector, distinct from the platform bundle.
func PluginsProbe(ctx context.Context, env Environment) Result {
	v, err := env.Eval(ctx, pluginsScript)
	if err != nil || v == nil {
		return Fail(ErrPlatform)
	}
	s, _ := v.(string)
	return Ok(s)
}

// LanguageProbe returns navigator.language alone.
func LanguageProbe(ctx context.Context, env Environment) Result {
	v, err := env.Eval(ctx, languageScript)
	if err != nil || v == nil {
		return Fail(ErrScreen)
	}
	s, _ := v.(string)
	return Ok(s)
}

// TrajectoryProbe drains the mouse tracker's buffer and returns the points
// plus their derived analysis.
func TrajectoryProbe(mouse *MouseTracker) Result {
	points := mouse.Drain()
	return Ok(TrajectoryResult{Points: points, Analysis: AnalyzeTrajectory(points)})
}

// Gather dispatches every named collector concurrently and waits for all
// of them. anomaly_scan is excluded; it is a fixed bundle run separately
// by the anomalyscan package, not a dataloom probe.
func Gather(ctx context.Context, names []string, env Environment, mouse *MouseTracker) map[string]Result {
	results := make(map[string]Result, len(names))
	var mu lockedMap
	mu.m = results

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		if name == "anomaly_scan" {
			continue
		}
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					telemetry.RecoverProbePanic("DATA_LOOM", name, rec)
					mu.set(name, Fail(sentinelFor(name)))
				}
			}()
			mu.set(name, dispatch(gctx, name, env, mouse))
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func dispatch(ctx context.Context, name string, env Environment, mouse *MouseTracker) Result {
	switch name {
	case "canvas":
		return CanvasProbe(ctx, env)
	case "webgl":
		return WebGLProbe(ctx, env)
	case "audio":
		return AudioProbe(ctx, env)
	case "platform":
		return PlatformProbe(ctx, env, mouse)
	case "screen":
		return ScreenProbe(ctx, env)
	case "performance":
		return PerformanceProbe(ctx, env)
	case "plugins":
		return PluginsProbe(ctx, env)
	case "language":
		return LanguageProbe(ctx, env)
	case "mouse_trajectory":
		return TrajectoryProbe(mouse)
	default:
		return Fail(ErrPlatform)
	}
}

func sentinelFor(name string) SentinelError {
	switch name {
	case "webgl":
		return ErrWebGL
	case "audio":
		return ErrAudioContext
	case "screen", "language":
		return ErrScreen
	case "performance":
		return ErrPerf
	default:
		return ErrPlatform
	}
}

// lockedMap is a minimal concurrent map used only inside Gather; the probe
// count is small and bounded by the policy, so a mutex is simpler and
// clearer than sharding.
type lockedMap struct {
	mu sync.Mutex
	m  map[string]Result
}

func (l *lockedMap) set(k string, v Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m[k] = v
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
