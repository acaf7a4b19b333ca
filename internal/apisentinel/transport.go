// Package apisentinel is the request-integration adapter: it intercepts
// outbound requests flagged protected, asks the risk/signing engine to
// compute a header bundle, and injects it, or cancels the request if
// signing fails.
//
// Attaching to one HTTP-client instance is expressed as an
// http.RoundTripper wrapping the client's existing Transport: the wrapper
// rejects or decorates the request before the base transport ever sees
// it.
package apisentinel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"hivehydeanti/internal/riskmatrix"
	"hivehydeanti/internal/telemetry"
)

var log = telemetry.WithComponent("API_SENTINEL")

// ErrSigningFailed is surfaced to the caller (as the RoundTrip error) when
// the engine cannot produce a header bundle for a protected request; the
// request is cancelled, never sent.
var ErrSigningFailed = errors.New("apisentinel: signing failed, request cancelled")

// protectedContextKey marks a request as needing signature injection.
// net/http has no per-request flag field, so the host sets a typed
// context key via WithProtected before issuing the request.
type protectedContextKey struct{}

// WithProtected marks ctx (and therefore any *http.Request built from it)
// as protected: the transport signs it before sending.
func WithProtected(ctx context.Context) context.Context {
	return context.WithValue(ctx, protectedContextKey{}, true)
}

// IsProtected reports whether ctx was marked with WithProtected.
func IsProtected(ctx context.Context) bool {
	v, _ := ctx.Value(protectedContextKey{}).(bool)
	return v
}

// signer is the subset of riskmatrix.Engine the transport depends on,
// narrowed for testability.
type signer interface {
	Sign(ctx context.Context, method, path string, params map[string]interface{}) (riskmatrix.Package, error)
}

// Transport wraps a base http.RoundTripper and signs every protected
// request before it is sent.
type Transport struct {
	base   http.RoundTripper
	engine signer
}

// newTransport is unexported; construct via Attach so the attach-once
// bookkeeping always runs.
func newTransport(base http.RoundTripper, engine signer) *Transport {
	return &Transport{base: base, engine: engine}
}

// Attach wires a Transport into client, wrapping whatever RoundTripper it
// already has. Attach-once idempotent: calling it again on a client that
// already carries a *Transport is a no-op warning, never a double-wrap.
func Attach(client *http.Client, engine *riskmatrix.Engine) error {
	if client == nil {
		return errors.New("apisentinel: client must not be nil")
	}
	if _, already := client.Transport.(*Transport); already {
		log.Warn("apisentinel already attached to this client, skipping")
		return nil
	}

	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client.Transport = newTransport(base, engine)
	return nil
}

// RoundTrip implements http.RoundTripper. Unprotected requests pass
// through untouched; protected requests are signed and get the six
// X-Hive-* headers injected before being handed to the base transport. A
// signing failure cancels the request by returning an error instead of
// calling the base transport at all.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !IsProtected(req.Context()) {
		return t.base.RoundTrip(req)
	}

	attemptID := uuid.NewString()
	path, err := derivePath(req.URL)
	if err != nil {
		telemetry.RequestsSignedTotal.WithLabelValues("cancelled").Inc()
		return nil, fmt.Errorf("%w: deriving path: %w", ErrSigningFailed, err)
	}

	params, err := chooseParams(req)
	if err != nil {
		telemetry.RequestsSignedTotal.WithLabelValues("cancelled").Inc()
		return nil, fmt.Errorf("%w: reading params: %w", ErrSigningFailed, err)
	}

	pkg, err := t.engine.Sign(req.Context(), req.Method, path, params)
	if err != nil {
		telemetry.RequestsSignedTotal.WithLabelValues("cancelled").Inc()
		telemetry.CaptureSigningFailure(err, attemptID)
		log.WithAttempt(attemptID).Error("signing failed for %s %s: %v", req.Method, path, err)
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	injectHeaders(req, pkg)
	telemetry.RequestsSignedTotal.WithLabelValues("signed").Inc()
	log.WithAttempt(attemptID).WithRiskScore(pkg.RiskScore).Debug("signed %s %s", req.Method, path)

	return t.base.RoundTrip(req)
}

// derivePath strips scheme, host, query and fragment, normalizing slashes
// so only the URL path component is signed.
func derivePath(u *url.URL) (string, error) {
	if u == nil {
		return "", errors.New("request has no URL")
	}
	cleaned := path.Clean("/" + u.Path)
	if cleaned == "." {
		cleaned = "/"
	}
	return cleaned, nil
}

// chooseParams picks query parameters for GET, body params otherwise,
// defaulting to {} when there is nothing to read.
func chooseParams(req *http.Request) (map[string]interface{}, error) {
	if strings.EqualFold(req.Method, http.MethodGet) {
		values := req.URL.Query()
		params := make(map[string]interface{}, len(values))
		for k, v := range values {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		return params, nil
	}

	if params, ok := req.Context().Value(bodyParamsContextKey{}).(map[string]interface{}); ok {
		return params, nil
	}
	return map[string]interface{}{}, nil
}

// bodyParamsContextKey lets a host that already has its request body as a
// map (the common case for a JSON API client) hand it to the adapter
// without the adapter needing to drain and replace req.Body itself.
type bodyParamsContextKey struct{}

// WithBodyParams attaches the map the adapter should sign for non-GET
// protected requests, since net/http's Body is an opaque io.Reader the
// adapter must not consume destructively.
func WithBodyParams(ctx context.Context, params map[string]interface{}) context.Context {
	return context.WithValue(ctx, bodyParamsContextKey{}, params)
}

func injectHeaders(req *http.Request, pkg riskmatrix.Package) {
	req.Header.Set("X-Hive-Timestamp", fmt.Sprintf("%d", pkg.Timestamp))
	req.Header.Set("X-Hive-Nonce", pkg.Nonce)
	req.Header.Set("X-Hive-Signature", pkg.Signature)
	req.Header.Set("X-Hive-Token", pkg.Token)
	req.Header.Set("X-Hive-RiskScore", fmt.Sprintf("%d", pkg.RiskScore))
	req.Header.Set("X-Hive-Fingerprint-Json", pkg.FingerprintJsonForSign)
}
