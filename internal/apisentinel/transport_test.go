package apisentinel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"hivehydeanti/internal/riskmatrix"
)

type fakeSigner struct {
	pkg riskmatrix.Package
	err error

	lastMethod string
	lastPath   string
	lastParams map[string]interface{}
}

func (f *fakeSigner) Sign(_ context.Context, method, path string, params map[string]interface{}) (riskmatrix.Package, error) {
	f.lastMethod = method
	f.lastPath = path
	f.lastParams = params
	return f.pkg, f.err
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestUnprotectedRequestsPassThroughUntouched(t *testing.T) {
	var called bool
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		require.Empty(t, r.Header.Get("X-Hive-Signature"))
		return &http.Response{StatusCode: 200, Body: http.NoBody}, nil
	})

	tr := newTransport(base, &fakeSigner{})
	req := httptest.NewRequest(http.MethodGet, "http://example.com/unprotected", nil)

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.True(t, called)
}

func TestProtectedRequestGetsHeadersInjected(t *testing.T) {
	var capturedHeaders http.Header
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		capturedHeaders = r.Header.Clone()
		return &http.Response{StatusCode: 200, Body: http.NoBody}, nil
	})

	signer := &fakeSigner{pkg: riskmatrix.Package{
		Signature:              "abc123",
		Timestamp:              1700000000000,
		Nonce:                  "1700000000000-abcd1234",
		RiskScore:              12,
		Token:                  "tok-xyz",
		FingerprintJsonForSign: "cGxhaW50ZXh0",
	}}
	tr := newTransport(base, signer)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/widgets?b=2&a=1", nil)
	req = req.WithContext(WithProtected(req.Context()))

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	require.Equal(t, "1700000000000", capturedHeaders.Get("X-Hive-Timestamp"))
	require.Equal(t, "1700000000000-abcd1234", capturedHeaders.Get("X-Hive-Nonce"))
	require.Equal(t, "abc123", capturedHeaders.Get("X-Hive-Signature"))
	require.Equal(t, "tok-xyz", capturedHeaders.Get("X-Hive-Token"))
	require.Equal(t, "12", capturedHeaders.Get("X-Hive-RiskScore"))
	require.Equal(t, "cGxhaW50ZXh0", capturedHeaders.Get("X-Hive-Fingerprint-Json"))

	require.Equal(t, "/api/widgets", signer.lastPath)
	require.Equal(t, map[string]interface{}{"a": "1", "b": "2"}, signer.lastParams)
}

func TestSigningFailureCancelsRequest(t *testing.T) {
	var baseCalled bool
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		baseCalled = true
		return &http.Response{StatusCode: 200, Body: http.NoBody}, nil
	})

	signer := &fakeSigner{err: errors.New("boom")}
	tr := newTransport(base, signer)

	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/pay", nil)
	req = req.WithContext(WithProtected(req.Context()))

	_, err := tr.RoundTrip(req)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrSigningFailed)
	require.False(t, baseCalled, "base transport must never see a cancelled request")
}

func TestPostUsesBodyParamsFromContext(t *testing.T) {
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: http.NoBody}, nil
	})
	signer := &fakeSigner{pkg: riskmatrix.Package{Token: "t"}}
	tr := newTransport(base, signer)

	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/pay", nil)
	ctx := WithProtected(req.Context())
	ctx = WithBodyParams(ctx, map[string]interface{}{"amount": 42})
	req = req.WithContext(ctx)

	_, err := tr.RoundTrip(req)
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"amount": float64(42)}, toFloatMap(signer.lastParams))
}

func toFloatMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if n, ok := v.(int); ok {
			out[k] = float64(n)
			continue
		}
		out[k] = v
	}
	return out
}

func TestAttachIsIdempotent(t *testing.T) {
	client := &http.Client{}
	engine := &riskmatrix.Engine{}

	require.NoError(t, Attach(client, engine))
	first := client.Transport

	require.NoError(t, Attach(client, engine))
	require.Same(t, first, client.Transport, "second Attach must not double-wrap")
}

func TestDerivePathNormalizesSlashes(t *testing.T) {
	u, err := url.Parse("http://example.com//api//widgets/../items")
	require.NoError(t, err)

	p, err := derivePath(u)
	require.NoError(t, err)
	require.Equal(t, "/api/items", p)
}
