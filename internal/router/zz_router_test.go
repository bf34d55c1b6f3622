package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookpilot/bookpilot/internal/browser"
	"github.com/bookpilot/bookpilot/internal/concurrency"
	"github.com/bookpilot/bookpilot/internal/pool"
	"github.com/bookpilot/bookpilot/internal/registry"
)

type fakeBrowser struct {
	mu        sync.Mutex
	connected bool
}

func (f *fakeBrowser) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeBrowser) NewContext(opts browser.ContextOptions) (browser.Context, error) {
	return &fakeContext{}, nil
}

func (f *fakeBrowser) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

type fakeLauncher struct{}

func (f *fakeLauncher) Launch(ctx context.Context) (browser.Browser, error) {
	return &fakeBrowser{connected: true}, nil
}

type fakeContext struct{}

func (f *fakeContext) NewPage() (browser.Page, error) { return &fakePage{}, nil }
func (f *fakeContext) Close() error                   { return nil }

type fakePage struct{ closed bool }

func (f *fakePage) IsClosed() bool { return f.closed }
func (f *fakePage) Close() error   { f.closed = true; return nil }

func setupRouter(t *testing.T) (*gin.Engine, *registry.Registry, *pool.Pool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	p := pool.New(&fakeLauncher{}, pool.Options{MaxSize: 2})
	reg := registry.New(p, registry.Options{})

	r := New(Deps{
		Manager:  concurrency.NewManager(3, 5),
		Pool:     p,
		Registry: reg,
	})
	return r, reg, p
}

func TestHealthEndpoint(t *testing.T) {
	r, _, _ := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestStatusEndpoint(t *testing.T) {
	r, _, _ := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Concurrency concurrency.Status `json:"concurrency"`
		Pool        pool.Stats         `json:"pool"`
		Sessions    int                `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Concurrency.Capacity)
	assert.Equal(t, 5, body.Concurrency.QueueSize)
	assert.Equal(t, 2, body.Pool.MaxSize)
	assert.Equal(t, 0, body.Sessions)
}

func TestSessionEndpoints(t *testing.T) {
	r, reg, p := setupRouter(t)

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)
	reg.Register("alice@example.com", h, &fakeContext{}, &fakePage{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/alice@example.com", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, reg.Len())
}
