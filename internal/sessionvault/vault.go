// Package sessionvault fetches, caches and silently rotates the
// short-lived session secret the rest of the signing pipeline binds every
// request to. The secret lives only in process memory; it is never
// written to disk.
package sessionvault

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/singleflight"

	"hivehydeanti/internal/telemetry"
)

var log = telemetry.WithComponent("SESSION_VAULT")

// Session lifespan and refresh-window constants, in milliseconds.
const (
	LifespanMs    = 30 * 60 * 1000
	RefreshBuffer = 2 * 60 * 1000
)

// ErrSessionFetchFailed is returned when the init endpoint cannot be
// reached or its response does not match the documented envelope.
var ErrSessionFetchFailed = errors.New("sessionvault: session fetch failed")

// ErrSessionKeyUnavailable is surfaced by callers that need a key and find
// none cached: a vault that has never completed initialize, or one whose
// last fetch failed outright.
var ErrSessionKeyUnavailable = errors.New("sessionvault: no session key available")

const envelopeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["code", "data"],
  "properties": {
    "code": { "type": "integer" },
    "msg": { "type": "string" },
    "data": {
      "type": "object",
      "required": ["key", "token"],
      "properties": {
        "key":   { "type": "string" },
        "token": { "type": "string" }
      }
    }
  }
}`

var compiledEnvelopeSchema = mustCompileEnvelopeSchema()

func mustCompileEnvelopeSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const url = "https://hivehydeanti.local/warden/init-response.schema.json"
	if err := c.AddResource(url, strings.NewReader(envelopeSchema)); err != nil {
		panic(fmt.Sprintf("sessionvault: compiling envelope schema: %v", err))
	}
	schema, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("sessionvault: compiling envelope schema: %v", err))
	}
	return schema
}

// envelope is the typed decode of a /warden/init response, used once the
// JSON Schema validation above has confirmed the shape is well-formed.
type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Key   string `json:"key"`
		Token string `json:"token"`
	} `json:"data"`
}

// session's zero value is the uninitialized state.
type session struct {
	key       string
	token     string
	expiresAt time.Time
}

func (s session) valid() bool { return s.key != "" }

// Vault acquires and silently rotates the session secret. The zero value
// is not usable; construct with New.
type Vault struct {
	httpClient *http.Client
	apiBaseURL string

	mu      sync.RWMutex
	current session

	// refreshGroup collapses concurrent refresh callers onto one in-flight
	// fetch, released on every exit path, with no hand-rolled lock
	// bookkeeping.
	refreshGroup singleflight.Group
}

// New constructs a Vault bound to httpClient and apiBaseURL. httpClient
// must not be nil; the caller owns its lifecycle and transport.
func New(httpClient *http.Client, apiBaseURL string) *Vault {
	return &Vault{httpClient: httpClient, apiBaseURL: strings.TrimRight(apiBaseURL, "/")}
}

// Initialize performs the first session fetch. Unlike silent refresh, a
// failure here is fatal: protected requests cannot proceed without a
// first key.
func (v *Vault) Initialize(ctx context.Context) error {
	sess, err := v.fetchNewSession(ctx)
	if err != nil {
		v.mu.Lock()
		v.current = session{}
		v.mu.Unlock()
		telemetry.CaptureSessionFetchFailure(err)
		return fmt.Errorf("%w: %w", ErrSessionFetchFailed, err)
	}
	v.mu.Lock()
	v.current = sess
	v.mu.Unlock()
	return nil
}

// GetCurrentKey resolves the current session key, performing a silent
// refresh check first. It only returns ErrSessionKeyUnavailable when no
// key is cached: Initialize has never succeeded, or the last Initialize
// call failed and cleared the session.
func (v *Vault) GetCurrentKey(ctx context.Context) (string, error) {
	v.maybeRefresh(ctx)

	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.current.valid() {
		return "", ErrSessionKeyUnavailable
	}
	return v.current.key, nil
}

// GetCurrentToken returns the cached token without I/O.
func (v *Vault) GetCurrentToken() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current.token
}

// maybeRefresh starts a silent refresh when the current key has entered
// its refresh window. Failures are logged and swallowed: the caller keeps
// using the old, possibly expired, key and the next caller re-attempts.
func (v *Vault) maybeRefresh(ctx context.Context) {
	v.mu.RLock()
	cur := v.current
	v.mu.RUnlock()

	if !cur.valid() {
		return
	}
	if time.Now().Before(cur.expiresAt.Add(-RefreshBuffer * time.Millisecond)) {
		return
	}

	// singleflight keys on "refresh" rather than the key value itself:
	// every concurrent caller during the same refresh window collapses
	// onto the one fetch in flight.
	_, _, _ = v.refreshGroup.Do("refresh", func() (interface{}, error) {
		sess, err := v.fetchNewSession(ctx)
		if err != nil {
			log.Warn("silent session refresh failed, retaining previous key: %v", err)
			telemetry.CaptureSessionRefreshFailure(err)
			telemetry.SessionRefreshTotal.WithLabelValues("failure").Inc()
			return nil, nil
		}
		v.mu.Lock()
		v.current = sess
		v.mu.Unlock()
		telemetry.SessionRefreshTotal.WithLabelValues("success").Inc()
		log.Debug("session refreshed silently")
		return nil, nil
	})
}

// fetchNewSession is the one codepath both Initialize and maybeRefresh
// call.
func (v *Vault) fetchNewSession(ctx context.Context) (session, error) {
	var sess session

	// Only network-level failures are retried; a malformed envelope or a
	// non-zero business code is terminal for the attempt;
	// retry.Unrecoverable marks those so retry-go stops early instead of
	// burning the attempt budget on a response that will never change
	// shape.
	err := retry.Do(func() error {
		reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, v.apiBaseURL+"/warden/init", bytes.NewReader(nil))
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("building request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := v.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("transport: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return retry.Unrecoverable(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}

		var raw interface{}
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return retry.Unrecoverable(fmt.Errorf("decoding body: %w", err))
		}
		if err := compiledEnvelopeSchema.Validate(raw); err != nil {
			return retry.Unrecoverable(fmt.Errorf("envelope schema: %w", err))
		}

		encoded, err := json.Marshal(raw)
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("re-encoding validated body: %w", err))
		}
		var env envelope
		if err := json.Unmarshal(encoded, &env); err != nil {
			return retry.Unrecoverable(fmt.Errorf("decoding envelope: %w", err))
		}
		if env.Code != 0 {
			return retry.Unrecoverable(fmt.Errorf("envelope code=%d msg=%q", env.Code, env.Msg))
		}
		if env.Data.Key == "" || env.Data.Token == "" {
			return retry.Unrecoverable(errors.New("envelope missing key/token"))
		}

		now := time.Now()
		sess = session{
			key:       env.Data.Key,
			token:     env.Data.Token,
			expiresAt: now.Add(LifespanMs * time.Millisecond),
		}
		return nil
	}, retry.Attempts(3), retry.Delay(200*time.Millisecond))

	if err != nil {
		return session{}, err
	}
	return sess, nil
}
