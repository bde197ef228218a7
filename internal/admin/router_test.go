package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"safecache/internal/cache"
)

func newTestManager(t *testing.T) (*cache.Manager, *cache.Cache[string, int]) {
	t.Helper()
	m := cache.NewManager()
	t.Cleanup(func() { _ = m.RemoveAll() })

	c, err := cache.Create[string, int](m, "admin-users", &cache.Config{
		SizeLimit:             100,
		DefaultItemExpiration: time.Hour,
	})
	require.NoError(t, err)
	_, err = cache.Create[int, string](m, "admin-blobs", &cache.Config{SizeLimit: 10})
	require.NoError(t, err)
	return m, c
}

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestHealth(t *testing.T) {
	m, _ := newTestManager(t)
	rr := serve(t, NewRouter(m), http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestListCaches(t *testing.T) {
	m, c := newTestManager(t)
	require.NoError(t, c.AddOrUpdate("a", 1, cache.WithSize(3)))

	rr := serve(t, NewRouter(m), http.MethodGet, "/caches")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body struct {
		Caches []cache.Stats `json:"caches"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Caches, 2)
	require.Equal(t, "admin-blobs", body.Caches[0].Name)
	require.Equal(t, "admin-users", body.Caches[1].Name)
	require.Equal(t, int64(3), body.Caches[1].Size)
}

func TestGetCache(t *testing.T) {
	m, c := newTestManager(t)
	require.NoError(t, c.AddOrUpdate("a", 1))
	_, _ = c.Get("a", 0)

	router := NewRouter(m)

	rr := serve(t, router, http.MethodGet, "/caches/admin-users")
	require.Equal(t, http.StatusOK, rr.Code)
	var s cache.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &s))
	require.Equal(t, "admin-users", s.Name)
	require.Equal(t, 1, s.Items)
	require.Equal(t, uint64(1), s.Hits)

	rr = serve(t, router, http.MethodGet, "/caches/missing")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.JSONEq(t, `{"error":"cache not found"}`, rr.Body.String())
}

func TestClearCache(t *testing.T) {
	m, c := newTestManager(t)
	require.NoError(t, c.AddOrUpdate("a", 1))
	router := NewRouter(m)

	rr := serve(t, router, http.MethodPost, "/caches/admin-users/clear")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Zero(t, c.Len())

	rr = serve(t, router, http.MethodPost, "/caches/missing/clear")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(t, router, http.MethodGet, "/caches/admin-users/clear")
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m, c := newTestManager(t)
	require.NoError(t, c.AddOrUpdate("a", 1))

	rr := serve(t, NewRouter(m), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), `safecache_items{cache="admin-users"} 1`))
}
