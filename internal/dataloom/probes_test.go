package dataloom

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEnv struct {
	responses map[string]interface{}
	errors    map[string]error
}

func (f *fakeEnv) Detect(ctx context.Context) (Capabilities, error) { return Capabilities{}, nil }

func (f *fakeEnv) Eval(ctx context.Context, script string) (interface{}, error) {
	for key, err := range f.errors {
		if script == key {
			return nil, err
		}
	}
	if v, ok := f.responses[script]; ok {
		return v, nil
	}
	return nil, errors.New("fakeEnv: no response configured")
}

func TestCanvasProbeSuccess(t *testing.T) {
	env := &fakeEnv{responses: map[string]interface{}{canvasScript: "data:image/png;base64,abc"}}
	r := CanvasProbe(context.Background(), env)
	require.False(t, r.IsError())
	require.Equal(t, "data:image/png;base64,abc", r.Value)
}

func TestCanvasProbeFailureYieldsSentinel(t *testing.T) {
	env := &fakeEnv{errors: map[string]error{canvasScript: errors.New("no canvas")}}
	r := CanvasProbe(context.Background(), env)
	require.True(t, r.IsError())
	require.Equal(t, ErrCanvas, r.Err)
}

func TestWebGLProbePrefersUnmasked(t *testing.T) {
	env := &fakeEnv{responses: map[string]interface{}{
		webglScript: map[string]interface{}{"vendor": "Google Inc.", "renderer": "ANGLE"},
	}}
	r := WebGLProbe(context.Background(), env)
	require.False(t, r.IsError())
	require.Equal(t, WebGLResult{Vendor: "Google Inc.", Renderer: "ANGLE"}, r.Value)
}

func TestWebGLProbeNoContextSentinel(t *testing.T) {
	env := &fakeEnv{responses: map[string]interface{}{
		webglScript: map[string]interface{}{"sentinel": "err_no_webgl"},
	}}
	r := WebGLProbe(context.Background(), env)
	require.True(t, r.IsError())
	require.Equal(t, ErrNoWebGL, r.Err)
}

func TestAudioProbeReturnsSentinelVerbatim(t *testing.T) {
	env := &fakeEnv{responses: map[string]interface{}{audioScript: "err_no_offline_context"}}
	r := AudioProbe(context.Background(), env)
	require.True(t, r.IsError())
	require.Equal(t, ErrNoOfflineContext, r.Err)
}

func TestAudioProbeReturnsNumericStringOnSuccess(t *testing.T) {
	env := &fakeEnv{responses: map[string]interface{}{audioScript: "12.34567"}}
	r := AudioProbe(context.Background(), env)
	require.False(t, r.IsError())
	require.Equal(t, "12.34567", r.Value)
}

func TestGatherNeverPanicsAndReturnsSentinels(t *testing.T) {
	env := &fakeEnv{} // every script errors: "no response configured"
	mouse := NewMouseTracker()

	results := Gather(context.Background(), []string{"canvas", "webgl", "platform", "screen"}, env, mouse)

	require.Len(t, results, 4)
	for name, r := range results {
		require.True(t, r.IsError(), "collector %s should degrade to a sentinel", name)
	}
}

func TestGatherExcludesAnomalyScanFromDataloomDispatch(t *testing.T) {
	env := &fakeEnv{}
	mouse := NewMouseTracker()
	results := Gather(context.Background(), []string{"anomaly_scan", "platform"}, env, mouse)
	_, present := results["anomaly_scan"]
	require.False(t, present, "anomaly_scan is dispatched by the anomalyscan package, not Gather")
	_, hasPlatform := results["platform"]
	require.True(t, hasPlatform)
}

func TestTrajectoryProbeDrainsMouse(t *testing.T) {
	mouse := NewMouseTracker()
	mouse.Record(1, 1, 1000)
	mouse.Record(2, 2, 1200)

	r := TrajectoryProbe(mouse)
	require.False(t, r.IsError())
	tr, ok := r.Value.(TrajectoryResult)
	require.True(t, ok)
	require.Len(t, tr.Points, 2)
	require.Empty(t, mouse.Drain(), "buffer must be empty after the probe runs")
}
