package sessionvault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Vault, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(srv.Client(), srv.URL), &hits
}

func writeOK(w http.ResponseWriter, key, token string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code": 0,
		"data": map[string]string{"key": key, "token": token},
	})
}

func TestInitializeSuccess(t *testing.T) {
	v, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/warden/init", r.URL.Path)
		writeOK(w, "deadbeef", "tok-1")
	})

	err := v.Initialize(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, *hits)

	key, err := v.GetCurrentKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "deadbeef", key)
	require.Equal(t, "tok-1", v.GetCurrentToken())
}

func TestInitializeFailurePropagates(t *testing.T) {
	v, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := v.Initialize(context.Background())
	require.Error(t, err)

	_, err = v.GetCurrentKey(context.Background())
	require.ErrorIs(t, err, ErrSessionKeyUnavailable)
}

func TestInitializeRejectsMalformedEnvelope(t *testing.T) {
	v, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": 0, "data": map[string]string{"key": "onlykey"}})
	})

	err := v.Initialize(context.Background())
	require.Error(t, err)
}

func TestInitializeRejectsNonZeroCode(t *testing.T) {
	v, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 1, "msg": "denied",
			"data": map[string]string{"key": "deadbeef", "token": "t"},
		})
	})

	err := v.Initialize(context.Background())
	require.Error(t, err)
}

func TestSilentRefreshRaceSingleFetch(t *testing.T) {
	var gate sync.WaitGroup
	gate.Add(1)
	v, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gate.Wait()
		writeOK(w, "newkey", "newtok")
	})

	// Seed an already-expired session directly so GetCurrentKey sees a
	// refresh window without waiting 28 real minutes.
	v.mu.Lock()
	v.current = session{key: "oldkey", token: "oldtok", expiresAt: time.Now().Add(-time.Second)}
	v.mu.Unlock()

	const n = 10
	var wg sync.WaitGroup
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k, err := v.GetCurrentKey(context.Background())
			require.NoError(t, err)
			keys[i] = k
		}(i)
	}

	// Give every goroutine time to join the in-flight fetch before the
	// handler is released.
	time.Sleep(50 * time.Millisecond)
	gate.Done()
	wg.Wait()

	require.EqualValues(t, 1, *hits, "exactly one POST to /warden/init for 10 concurrent refreshers")
	for _, k := range keys {
		require.Contains(t, []string{"oldkey", "newkey"}, k)
	}
}

func TestSilentRefreshFailureRetainsOldKey(t *testing.T) {
	v, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	v.mu.Lock()
	v.current = session{key: "oldkey", token: "oldtok", expiresAt: time.Now().Add(-time.Second)}
	v.mu.Unlock()

	key, err := v.GetCurrentKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "oldkey", key)
	require.Equal(t, "oldtok", v.GetCurrentToken())
}

func TestGetCurrentKeyNoRefreshWhenFresh(t *testing.T) {
	v, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, "shouldnotbecalled", "x")
	})

	v.mu.Lock()
	v.current = session{key: "freshkey", token: "freshtok", expiresAt: time.Now().Add(29 * time.Minute)}
	v.mu.Unlock()

	key, err := v.GetCurrentKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "freshkey", key)
	require.EqualValues(t, 0, *hits)
}
