package dataloom

import "sync"

// Point is one sample in a mouse trajectory: position and epoch-ms time.
type Point struct {
	X, Y, T int64
}

// MaxTrajectoryPoints bounds the trajectory buffer.
const MaxTrajectoryPoints = 50

// SampleIntervalMs is the minimum gap between accepted samples.
const SampleIntervalMs = 100

// MouseTracker is the single owner of mouse position, click count and the
// trajectory buffer. Event-handler glue the host wires up (a CDP input
// hook, a DOM listener under a real browser, or a manual callback) holds
// a reference to one of these; it never reaches into package state.
type MouseTracker struct {
	mu         sync.Mutex
	lastX      int64
	lastY      int64
	lastT      int64
	clickCount int
	buffer     []Point
}

// NewMouseTracker returns an empty tracker.
func NewMouseTracker() *MouseTracker {
	return &MouseTracker{}
}

// Record handles a mousemove sample. It is a no-op unless at least
// SampleIntervalMs has elapsed since the last accepted sample; accepted
// samples update the current position and are appended to the trajectory
// buffer while it has room.
func (m *MouseTracker) Record(x, y, t int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastT != 0 && t-m.lastT < SampleIntervalMs {
		return
	}

	m.lastX, m.lastY, m.lastT = x, y, t
	if len(m.buffer) < MaxTrajectoryPoints {
		m.buffer = append(m.buffer, Point{X: x, Y: y, T: t})
	}
}

// Click handles a click event. clickCount is monotonic and never reset
// except implicitly by process restart.
func (m *MouseTracker) Click() {
	m.mu.Lock()
	m.clickCount++
	m.mu.Unlock()
}

// ClickCount returns the current click count.
func (m *MouseTracker) ClickCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clickCount
}

// Drain snapshots and empties the trajectory buffer in a single critical
// section, so a concurrent Record can never land between the snapshot and
// the clear.
func (m *MouseTracker) Drain() []Point {
	m.mu.Lock()
	defer m.mu.Unlock()

	pts := m.buffer
	m.buffer = nil
	return pts
}
