// Package hivehydeanti is the public facade of the anti-automation and
// request-integrity signing pipeline. New wires the session vault, the
// capability-driven policy scheduler, the probe fabric, the anomaly
// scanner and the risk/signing engine together and hands back one handle;
// nothing lives in package globals.
package hivehydeanti

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"hivehydeanti/internal/apisentinel"
	"hivehydeanti/internal/config"
	"hivehydeanti/internal/dataloom"
	"hivehydeanti/internal/dataloom/staticdriver"
	"hivehydeanti/internal/policy"
	"hivehydeanti/internal/riskmatrix"
	"hivehydeanti/internal/sessionvault"
	"hivehydeanti/internal/telemetry"
)

var log = telemetry.WithComponent("HIVEHYDE")

// ErrNotInitialized is returned by ProcessRequest and Attach when called
// before Initialize has completed successfully.
var ErrNotInitialized = errors.New("hivehydeanti: module not initialized")

// ErrConfigMissing re-exports config.ErrConfigMissing so callers can
// errors.Is against either name.
var ErrConfigMissing = config.ErrConfigMissing

// Module is the wired handle New returns. The zero value is not usable.
type Module struct {
	cfg        config.Config
	httpClient *http.Client
	env        dataloom.Environment

	mouse *dataloom.MouseTracker
	vault *sessionvault.Vault

	mu          sync.Mutex
	initialized bool
	policy      policy.Policy
	engine      *riskmatrix.Engine
}

// Option customizes New's wiring; the zero set of options gives a module
// ready to run against a host with no attached browser (the static
// driver) and http.DefaultClient.
type Option func(*Module)

// WithEnvironment overrides the probe-fabric Environment driver. Pass a
// *roddriver.Driver to run probes against a real headless Chrome instance,
// or a test double for unit tests. Defaults to staticdriver.New().
func WithEnvironment(env dataloom.Environment) Option {
	return func(m *Module) { m.env = env }
}

// WithHTTPClient overrides the *http.Client the session vault uses to
// reach apiBaseUrl/warden/init. Defaults to http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Module) { m.httpClient = c }
}

// New validates cfg and wires every subsystem. It does not perform any
// I/O; call Initialize to acquire the first session and detect
// capabilities.
func New(cfg config.Config, opts ...Option) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Module{
		cfg:        cfg,
		httpClient: http.DefaultClient,
		mouse:      dataloom.NewMouseTracker(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.env == nil {
		m.env = staticdriver.New()
	}

	m.vault = sessionvault.New(m.httpClient, cfg.ApiBaseUrl)
	return m, nil
}

// Initialize performs the first session fetch, then detects capabilities
// and builds the probe policy. A failed session fetch is fatal: protected
// requests cannot proceed without a first session key. A failed capability
// detection is not: it is logged and the policy is built from an empty
// snapshot.
func (m *Module) Initialize(ctx context.Context) error {
	if err := m.vault.Initialize(ctx); err != nil {
		return err
	}

	caps, err := m.env.Detect(ctx)
	if err != nil {
		log.Warn("capability detection failed, falling back to an empty snapshot: %v", err)
		caps = dataloom.Capabilities{}
	}
	pol := policy.Build(caps)

	m.mu.Lock()
	m.policy = pol
	m.engine = riskmatrix.New(m.vault, pol, m.env, m.mouse)
	m.initialized = true
	m.mu.Unlock()

	log.Info("initialized: collectors=%v", pol.Collectors)
	return nil
}

// ProcessRequest signs one request outside of the http.Client interceptor
// path, for hosts that build their own transport or for the ops CLI in
// cmd/hivehydeanti.
func (m *Module) ProcessRequest(ctx context.Context, method, path string, params map[string]interface{}) (riskmatrix.Package, error) {
	m.mu.Lock()
	engine := m.engine
	initialized := m.initialized
	m.mu.Unlock()

	if !initialized {
		return riskmatrix.Package{}, ErrNotInitialized
	}
	return engine.Sign(ctx, method, path, params)
}

// Attach wires the request-integration adapter into client, signing every
// request whose context carries apisentinel.WithProtected. Attach-once
// idempotent, delegated to apisentinel.Attach.
func (m *Module) Attach(client *http.Client) error {
	m.mu.Lock()
	engine := m.engine
	initialized := m.initialized
	m.mu.Unlock()

	if !initialized {
		return ErrNotInitialized
	}
	return apisentinel.Attach(client, engine)
}

// Mouse returns the MouseTracker the host should feed pointer events
// into: a CDP input hook under a real browser driver, or a manual
// callback under the static driver.
func (m *Module) Mouse() *dataloom.MouseTracker { return m.mouse }

// Vault exposes the session vault directly, for hosts that want the
// current token/key (e.g. to display session state in a diagnostics
// panel) without going through ProcessRequest.
func (m *Module) Vault() *sessionvault.Vault { return m.vault }

// Policy returns the immutable policy computed at Initialize. Calling it
// before Initialize returns the zero Policy (no collectors).
func (m *Module) Policy() policy.Policy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy
}

// String renders a short diagnostic summary, useful for startup logs.
func (m *Module) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("hivehydeanti{initialized=%v collectors=%v}", m.initialized, m.policy.Collectors)
}
