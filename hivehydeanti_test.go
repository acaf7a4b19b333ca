package hivehydeanti

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"hivehydeanti/internal/apisentinel"
	"hivehydeanti/internal/config"
)

func newWardenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"data": map[string]string{
				"key":   "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff",
				"token": "session-token-1",
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewRejectsMissingApiBaseUrl(t *testing.T) {
	_, err := New(config.Config{})
	require.ErrorIs(t, err, ErrConfigMissing)
}

func TestProcessRequestBeforeInitializeFails(t *testing.T) {
	srv := newWardenServer(t)
	m, err := New(config.Config{ApiBaseUrl: srv.URL}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = m.ProcessRequest(context.Background(), "GET", "/api/ping", nil)
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitializeThenProcessRequestSucceeds(t *testing.T) {
	srv := newWardenServer(t)
	m, err := New(config.Config{ApiBaseUrl: srv.URL}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	require.NoError(t, m.Initialize(context.Background()))
	require.NotEmpty(t, m.Policy().Collectors)

	pkg, err := m.ProcessRequest(context.Background(), "GET", "/api/ping", map[string]interface{}{})
	require.NoError(t, err)
	require.NotEmpty(t, pkg.Signature)
	require.Equal(t, "session-token-1", pkg.Token)
	require.GreaterOrEqual(t, pkg.RiskScore, 0)
	require.LessOrEqual(t, pkg.RiskScore, 100)
}

func TestAttachInjectsHeadersOnProtectedRequest(t *testing.T) {
	wardenSrv := newWardenServer(t)
	m, err := New(config.Config{ApiBaseUrl: wardenSrv.URL}, WithHTTPClient(wardenSrv.Client()))
	require.NoError(t, err)
	require.NoError(t, m.Initialize(context.Background()))

	var capturedHeaders http.Header
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer apiSrv.Close()

	client := apiSrv.Client()
	require.NoError(t, m.Attach(client))

	req, err := http.NewRequest(http.MethodGet, apiSrv.URL+"/api/widgets", nil)
	require.NoError(t, err)
	req = req.WithContext(apisentinel.WithProtected(req.Context()))

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NotEmpty(t, capturedHeaders.Get("X-Hive-Signature"))
	require.NotEmpty(t, capturedHeaders.Get("X-Hive-Timestamp"))
	require.Equal(t, "session-token-1", capturedHeaders.Get("X-Hive-Token"))
}
